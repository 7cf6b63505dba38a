package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
)

type reportRepository struct {
	BaseRepository
}

func NewReportRepository(db sqlx.ExtContext) repository.ReportRepository {
	return &reportRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *reportRepository) Create(ctx context.Context, report *model.ReferralReport) error {
	query := `
		INSERT INTO referral_reports (id, referral_id, published_at, final_version_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	report.CreatedAt = time.Now()
	report.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		report.ID, report.ReferralID, report.PublishedAt, report.FinalVersionID,
		report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (r *reportRepository) Get(ctx context.Context, id uuid.UUID) (*model.ReferralReport, error) {
	query := `
		SELECT id, referral_id, published_at, final_version_id, created_at, updated_at, deleted_at
		FROM referral_reports
		WHERE id = $1 AND deleted_at IS NULL
	`
	var report model.ReferralReport
	if err := sqlx.GetContext(ctx, r.db, &report, query, id); err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

func (r *reportRepository) GetByReferral(ctx context.Context, referralID uuid.UUID) (*model.ReferralReport, error) {
	query := `
		SELECT id, referral_id, published_at, final_version_id, created_at, updated_at, deleted_at
		FROM referral_reports
		WHERE referral_id = $1 AND deleted_at IS NULL
	`
	var report model.ReferralReport
	if err := sqlx.GetContext(ctx, r.db, &report, query, referralID); err != nil {
		return nil, fmt.Errorf("failed to get report by referral: %w", err)
	}
	return &report, nil
}

func (r *reportRepository) Update(ctx context.Context, report *model.ReferralReport) error {
	query := `
		UPDATE referral_reports
		SET published_at = $1, final_version_id = $2, updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL
	`
	report.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		report.PublishedAt, report.FinalVersionID, report.UpdatedAt, report.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("report not found")
	}
	return nil
}

func (r *reportRepository) CreateVersion(ctx context.Context, version *model.ReportVersion) error {
	query := `
		INSERT INTO report_versions (id, report_id, author_id, version_number, document_name, scan_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	version.CreatedAt = time.Now()
	version.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		version.ID, version.ReportID, version.AuthorID, version.VersionNumber,
		version.DocumentName, version.ScanStatus, version.CreatedAt, version.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report version: %w", err)
	}
	return nil
}

func (r *reportRepository) GetVersion(ctx context.Context, id uuid.UUID) (*model.ReportVersion, error) {
	query := `
		SELECT id, report_id, author_id, version_number, document_name, scan_status, created_at, updated_at, deleted_at
		FROM report_versions
		WHERE id = $1 AND deleted_at IS NULL
	`
	var version model.ReportVersion
	if err := sqlx.GetContext(ctx, r.db, &version, query, id); err != nil {
		return nil, fmt.Errorf("failed to get report version: %w", err)
	}
	return &version, nil
}

func (r *reportRepository) UpdateVersion(ctx context.Context, version *model.ReportVersion) error {
	query := `
		UPDATE report_versions
		SET document_name = $1, scan_status = $2, updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL
	`
	version.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		version.DocumentName, version.ScanStatus, version.UpdatedAt, version.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update report version: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("report version not found")
	}
	return nil
}

func (r *reportRepository) ListVersions(ctx context.Context, reportID uuid.UUID) ([]*model.ReportVersion, error) {
	query := `
		SELECT id, report_id, author_id, version_number, document_name, scan_status, created_at, updated_at, deleted_at
		FROM report_versions
		WHERE report_id = $1 AND deleted_at IS NULL
		ORDER BY version_number
	`
	var versions []*model.ReportVersion
	if err := sqlx.SelectContext(ctx, r.db, &versions, query, reportID); err != nil {
		return nil, fmt.Errorf("failed to list report versions: %w", err)
	}
	return versions, nil
}

func (r *reportRepository) GetLatestVersion(ctx context.Context, reportID uuid.UUID) (*model.ReportVersion, error) {
	query := `
		SELECT id, report_id, author_id, version_number, document_name, scan_status, created_at, updated_at, deleted_at
		FROM report_versions
		WHERE report_id = $1 AND deleted_at IS NULL
		ORDER BY version_number DESC
		LIMIT 1
	`
	var version model.ReportVersion
	if err := sqlx.GetContext(ctx, r.db, &version, query, reportID); err != nil {
		return nil, fmt.Errorf("failed to get latest report version: %w", err)
	}
	return &version, nil
}

func (r *reportRepository) CreateAppendix(ctx context.Context, appendix *model.ReportAppendix) error {
	query := `
		INSERT INTO report_appendixes (id, report_id, author_id, document_name, scan_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if appendix.ID == uuid.Nil {
		appendix.ID = uuid.New()
	}
	appendix.CreatedAt = time.Now()
	appendix.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		appendix.ID, appendix.ReportID, appendix.AuthorID, appendix.DocumentName,
		appendix.ScanStatus, appendix.CreatedAt, appendix.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appendix: %w", err)
	}
	return nil
}

func (r *reportRepository) GetAppendix(ctx context.Context, id uuid.UUID) (*model.ReportAppendix, error) {
	query := `
		SELECT id, report_id, author_id, document_name, scan_status, created_at, updated_at, deleted_at
		FROM report_appendixes
		WHERE id = $1 AND deleted_at IS NULL
	`
	var appendix model.ReportAppendix
	if err := sqlx.GetContext(ctx, r.db, &appendix, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appendix: %w", err)
	}
	return &appendix, nil
}

func (r *reportRepository) UpdateAppendix(ctx context.Context, appendix *model.ReportAppendix) error {
	query := `
		UPDATE report_appendixes
		SET document_name = $1, scan_status = $2, updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL
	`
	appendix.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appendix.DocumentName, appendix.ScanStatus, appendix.UpdatedAt, appendix.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appendix: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appendix not found")
	}
	return nil
}

func (r *reportRepository) ListAppendixes(ctx context.Context, reportID uuid.UUID) ([]*model.ReportAppendix, error) {
	query := `
		SELECT id, report_id, author_id, document_name, scan_status, created_at, updated_at, deleted_at
		FROM report_appendixes
		WHERE report_id = $1 AND deleted_at IS NULL
		ORDER BY created_at
	`
	var appendixes []*model.ReportAppendix
	if err := sqlx.SelectContext(ctx, r.db, &appendixes, query, reportID); err != nil {
		return nil, fmt.Errorf("failed to list appendixes: %w", err)
	}
	return appendixes, nil
}

func (r *reportRepository) GetLatestAppendix(ctx context.Context, reportID uuid.UUID) (*model.ReportAppendix, error) {
	query := `
		SELECT id, report_id, author_id, document_name, scan_status, created_at, updated_at, deleted_at
		FROM report_appendixes
		WHERE report_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	var appendix model.ReportAppendix
	if err := sqlx.GetContext(ctx, r.db, &appendix, query, reportID); err != nil {
		return nil, fmt.Errorf("failed to get latest appendix: %w", err)
	}
	return &appendix, nil
}
