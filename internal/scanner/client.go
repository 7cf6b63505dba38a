package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/partaj/referral-api/config"
	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/pkg/circuitbreaker"
	apperrors "github.com/partaj/referral-api/pkg/errors"
)

// Client submits uploaded documents to the external malware-scan service and
// maps its verdict. A FOUND verdict rejects the upload before anything is
// persisted.
type Client interface {
	Scan(ctx context.Context, filename string) (model.ScanStatus, error)
}

type httpClient struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  zerolog.Logger
}

func NewClient(cfg config.ScannerConfig, logger zerolog.Logger) Client {
	if !cfg.Enabled {
		return NoopClient{}
	}
	return &httpClient{
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "scanner",
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
		logger: logger,
	}
}

type scanRequest struct {
	Filename string `json:"filename"`
}

type scanResponse struct {
	Status string `json:"status"`
}

func (c *httpClient) Scan(ctx context.Context, filename string) (model.ScanStatus, error) {
	var status model.ScanStatus

	err := c.breaker.Execute(func() error {
		body, err := json.Marshal(scanRequest{Filename: filename})
		if err != nil {
			return fmt.Errorf("failed to marshal scan request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scan", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build scan request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("scan request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("scan service returned status %d", resp.StatusCode)
		}

		var result scanResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("failed to decode scan response: %w", err)
		}

		status = model.ScanStatus(result.Status)
		return nil
	})
	if err != nil {
		// An unreachable scanner must not block uploads indefinitely; the
		// verdict is recorded as UNKNOWN.
		c.logger.Error().Err(err).Str("filename", filename).Msg("scan service unavailable")
		return model.ScanStatusUnknown, nil
	}

	return status, nil
}

// CheckVerdict converts a FOUND verdict into the dedicated rejection error.
func CheckVerdict(status model.ScanStatus, filename string) error {
	if status == model.ScanStatusFound {
		return apperrors.ScanRejected(filename)
	}
	return nil
}

// NoopClient reports every file clean. Used when scanning is disabled and in
// tests.
type NoopClient struct{}

func (NoopClient) Scan(ctx context.Context, filename string) (model.ScanStatus, error) {
	return model.ScanStatusClean, nil
}
