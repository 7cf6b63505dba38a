package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/partaj/referral-api/internal/repository"
)

// BaseRepository provides common functionality for all repositories. The
// executor is either the root *sqlx.DB or a *sqlx.Tx bound by the unit of
// work, so the same repository code serves both paths.
type BaseRepository struct {
	db sqlx.ExtContext
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db sqlx.ExtContext) BaseRepository {
	return BaseRepository{db: db}
}

// UnitOfWork binds all repositories to one transaction per call.
type UnitOfWork struct {
	db *sqlx.DB
}

func NewUnitOfWork(db *sqlx.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// NewRepos builds the repository bundle over the given executor.
func NewRepos(db sqlx.ExtContext) repository.Repos {
	return repository.Repos{
		Users:         NewUserRepository(db),
		Units:         NewUnitRepository(db),
		Referrals:     NewReferralRepository(db),
		Answers:       NewAnswerRepository(db),
		Reports:       NewReportRepository(db),
		Events:        NewEventRepository(db),
		Activities:    NewActivityRepository(db),
		Notifications: NewNotificationRepository(db),
		Outbox:        NewOutboxRepository(db),
	}
}

// WithinTx executes fn against transaction-bound repositories.
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(NewRepos(tx)); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
