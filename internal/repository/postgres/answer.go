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

type answerRepository struct {
	BaseRepository
}

func NewAnswerRepository(db sqlx.ExtContext) repository.AnswerRepository {
	return &answerRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *answerRepository) Create(ctx context.Context, answer *model.ReferralAnswer) error {
	query := `
		INSERT INTO referral_answers (id, referral_id, author_id, state, content, published_answer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if answer.ID == uuid.Nil {
		answer.ID = uuid.New()
	}
	answer.CreatedAt = time.Now()
	answer.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		answer.ID, answer.ReferralID, answer.AuthorID, answer.State,
		answer.Content, answer.PublishedAnswerID, answer.CreatedAt, answer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	return nil
}

func (r *answerRepository) Get(ctx context.Context, id uuid.UUID) (*model.ReferralAnswer, error) {
	query := `
		SELECT id, referral_id, author_id, state, content, published_answer_id, created_at, updated_at, deleted_at
		FROM referral_answers
		WHERE id = $1 AND deleted_at IS NULL
	`
	var answer model.ReferralAnswer
	if err := sqlx.GetContext(ctx, r.db, &answer, query, id); err != nil {
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	return &answer, nil
}

func (r *answerRepository) Update(ctx context.Context, answer *model.ReferralAnswer) error {
	query := `
		UPDATE referral_answers
		SET state = $1, content = $2, published_answer_id = $3, updated_at = $4
		WHERE id = $5 AND deleted_at IS NULL
	`
	answer.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		answer.State, answer.Content, answer.PublishedAnswerID, answer.UpdatedAt, answer.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update answer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("answer not found")
	}
	return nil
}

func (r *answerRepository) ListByReferral(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralAnswer, error) {
	query := `
		SELECT id, referral_id, author_id, state, content, published_answer_id, created_at, updated_at, deleted_at
		FROM referral_answers
		WHERE referral_id = $1 AND deleted_at IS NULL
		ORDER BY created_at
	`
	var answers []*model.ReferralAnswer
	if err := sqlx.SelectContext(ctx, r.db, &answers, query, referralID); err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	return answers, nil
}

func (r *answerRepository) CreateValidationRequest(ctx context.Context, request *model.ReferralAnswerValidationRequest) error {
	query := `
		INSERT INTO answer_validation_requests (id, answer_id, validator_id, requester_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	request.CreatedAt = time.Now()
	request.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		request.ID, request.AnswerID, request.ValidatorID, request.RequesterID,
		request.CreatedAt, request.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create validation request: %w", err)
	}
	return nil
}

func (r *answerRepository) GetValidationRequest(ctx context.Context, id uuid.UUID) (*model.ReferralAnswerValidationRequest, error) {
	query := `
		SELECT vr.id, vr.answer_id, vr.validator_id, vr.requester_id, vr.created_at, vr.updated_at, vr.deleted_at,
		       TRIM(u.first_name || ' ' || u.last_name) AS validator_full_name
		FROM answer_validation_requests vr
		JOIN users u ON u.id = vr.validator_id
		WHERE vr.id = $1 AND vr.deleted_at IS NULL
	`
	var request model.ReferralAnswerValidationRequest
	if err := sqlx.GetContext(ctx, r.db, &request, query, id); err != nil {
		return nil, fmt.Errorf("failed to get validation request: %w", err)
	}
	return &request, nil
}

func (r *answerRepository) GetOpenValidationRequest(ctx context.Context, answerID, validatorID uuid.UUID) (*model.ReferralAnswerValidationRequest, error) {
	query := `
		SELECT vr.id, vr.answer_id, vr.validator_id, vr.requester_id, vr.created_at, vr.updated_at, vr.deleted_at,
		       TRIM(u.first_name || ' ' || u.last_name) AS validator_full_name
		FROM answer_validation_requests vr
		JOIN users u ON u.id = vr.validator_id
		LEFT JOIN answer_validation_responses resp ON resp.request_id = vr.id
		WHERE vr.answer_id = $1 AND vr.validator_id = $2 AND resp.id IS NULL AND vr.deleted_at IS NULL
	`
	var request model.ReferralAnswerValidationRequest
	if err := sqlx.GetContext(ctx, r.db, &request, query, answerID, validatorID); err != nil {
		return nil, fmt.Errorf("failed to get open validation request: %w", err)
	}
	return &request, nil
}

func (r *answerRepository) ListValidationRequests(ctx context.Context, answerID uuid.UUID) ([]*model.ReferralAnswerValidationRequest, error) {
	query := `
		SELECT vr.id, vr.answer_id, vr.validator_id, vr.requester_id, vr.created_at, vr.updated_at, vr.deleted_at,
		       TRIM(u.first_name || ' ' || u.last_name) AS validator_full_name
		FROM answer_validation_requests vr
		JOIN users u ON u.id = vr.validator_id
		WHERE vr.answer_id = $1 AND vr.deleted_at IS NULL
		ORDER BY vr.created_at
	`
	var requests []*model.ReferralAnswerValidationRequest
	if err := sqlx.SelectContext(ctx, r.db, &requests, query, answerID); err != nil {
		return nil, fmt.Errorf("failed to list validation requests: %w", err)
	}
	return requests, nil
}

func (r *answerRepository) CreateValidationResponse(ctx context.Context, response *model.ReferralAnswerValidationResponse) error {
	query := `
		INSERT INTO answer_validation_responses (id, request_id, state, comment, responded_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if response.ID == uuid.Nil {
		response.ID = uuid.New()
	}
	response.CreatedAt = time.Now()
	response.UpdatedAt = time.Now()
	if response.RespondedAt.IsZero() {
		response.RespondedAt = response.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, query,
		response.ID, response.RequestID, response.State, response.Comment,
		response.RespondedAt, response.CreatedAt, response.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create validation response: %w", err)
	}
	return nil
}

func (r *answerRepository) GetValidationResponse(ctx context.Context, requestID uuid.UUID) (*model.ReferralAnswerValidationResponse, error) {
	query := `
		SELECT id, request_id, state, comment, responded_at, created_at, updated_at, deleted_at
		FROM answer_validation_responses
		WHERE request_id = $1 AND deleted_at IS NULL
	`
	var response model.ReferralAnswerValidationResponse
	if err := sqlx.GetContext(ctx, r.db, &response, query, requestID); err != nil {
		return nil, fmt.Errorf("failed to get validation response: %w", err)
	}
	return &response, nil
}
