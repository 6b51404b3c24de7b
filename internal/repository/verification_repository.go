package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrTokenNotFound  = errors.New("verification token not found")
	ErrTokenConsumed  = errors.New("verification token already consumed")
	ErrTokenExpired   = errors.New("verification token expired")
	ErrDuplicateToken = errors.New("verification token already exists")
)

type VerificationRepository interface {
	Create(t *domain.VerificationToken) error
	FindByHash(hash string) (*domain.VerificationToken, error)
	Consume(hash, purpose string, now time.Time) (*domain.VerificationToken, error)
	DeleteByAccountID(accountID, purpose string) (int64, error)
	CleanupExpired() (int64, error)
}

type GormVerificationRepository struct{ db *gorm.DB }

func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &GormVerificationRepository{db: db}
}

func (r *GormVerificationRepository) Create(t *domain.VerificationToken) error {
	err := r.db.Create(t).Error
	if err != nil {
		if isDuplicateErr(err) {
			observability.RecordRepositoryOperation(context.Background(), "verification_token", "create", "duplicate")
			return ErrDuplicateToken
		}
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "verification_token", "create", "success")
	return nil
}

func (r *GormVerificationRepository) FindByHash(hash string) (*domain.VerificationToken, error) {
	var t domain.VerificationToken
	err := r.db.Where("token_hash = ?", hash).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "verification_token", "find_by_hash", "not_found")
			return nil, ErrTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "find_by_hash", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "verification_token", "find_by_hash", "success")
	return &t, nil
}

// Consume marks the token consumed with a single conditional update so
// exactly one caller wins when the same token is redeemed concurrently.
// Losers get ErrTokenConsumed, ErrTokenExpired or ErrTokenNotFound
// depending on the state of the row after the race.
func (r *GormVerificationRepository) Consume(hash, purpose string, now time.Time) (*domain.VerificationToken, error) {
	res := r.db.Model(&domain.VerificationToken{}).
		Where("token_hash = ? AND purpose = ? AND consumed_at IS NULL AND expires_at > ?", hash, purpose, now).
		Update("consumed_at", now.UTC())
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "consume", "error")
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, r.classifyConsumeFailure(hash, purpose, now)
	}

	var t domain.VerificationToken
	if err := r.db.Where("token_hash = ? AND purpose = ?", hash, purpose).First(&t).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "consume", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "verification_token", "consume", "success")
	return &t, nil
}

func (r *GormVerificationRepository) classifyConsumeFailure(hash, purpose string, now time.Time) error {
	var t domain.VerificationToken
	err := r.db.Where("token_hash = ? AND purpose = ?", hash, purpose).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "verification_token", "consume", "not_found")
			return ErrTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "consume", "error")
		return err
	}
	if t.ConsumedAt != nil {
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "consume", "already_consumed")
		return ErrTokenConsumed
	}
	if t.IsExpiredAt(now) {
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "consume", "expired")
		return ErrTokenExpired
	}
	observability.RecordRepositoryOperation(context.Background(), "verification_token", "consume", "not_found")
	return ErrTokenNotFound
}

func (r *GormVerificationRepository) DeleteByAccountID(accountID, purpose string) (int64, error) {
	res := r.db.Where("account_id = ? AND purpose = ?", accountID, purpose).
		Delete(&domain.VerificationToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "delete_by_account_id", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "verification_token", "delete_by_account_id", "success")
	return res.RowsAffected, nil
}

func (r *GormVerificationRepository) CleanupExpired() (int64, error) {
	res := r.db.Where("expires_at <= ?", time.Now()).Delete(&domain.VerificationToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "verification_token", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "verification_token", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
