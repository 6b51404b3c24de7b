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
	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSession = errors.New("session token already exists")
)

type SessionRepository interface {
	Create(s *domain.SessionToken) error
	FindByHash(hash string) (*domain.SessionToken, error)
	FindActiveByTokenID(accountID, tokenID string) (*domain.SessionToken, error)
	ListActiveByAccountID(accountID string) ([]domain.SessionToken, error)
	TouchLastSeenByHash(hash string, at time.Time) error
	RevokeByHash(hash, reason string) (bool, error)
	RevokeByAccountID(accountID, reason string) (int64, error)
	CleanupExpired() (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(s *domain.SessionToken) error {
	err := r.db.Create(s).Error
	if err != nil {
		if isDuplicateErr(err) {
			observability.RecordRepositoryOperation(context.Background(), "session", "create", "duplicate")
			return ErrDuplicateSession
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindByHash(hash string) (*domain.SessionToken, error) {
	var s domain.SessionToken
	err := r.db.Where("token_hash = ?", hash).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_by_hash", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_by_hash", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_by_hash", "success")
	return &s, nil
}

func (r *GormSessionRepository) FindActiveByTokenID(accountID, tokenID string) (*domain.SessionToken, error) {
	var s domain.SessionToken
	err := r.db.Where("account_id = ? AND token_id = ? AND revoked_at IS NULL AND expires_at > ?", accountID, tokenID, time.Now()).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_active_by_token_id", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_active_by_token_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_active_by_token_id", "success")
	return &s, nil
}

func (r *GormSessionRepository) ListActiveByAccountID(accountID string) ([]domain.SessionToken, error) {
	var sessions []domain.SessionToken
	err := r.db.Where("account_id = ? AND revoked_at IS NULL AND expires_at > ?", accountID, time.Now()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "list_active_by_account_id", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "list_active_by_account_id", "success")
	return sessions, err
}

func (r *GormSessionRepository) TouchLastSeenByHash(hash string, at time.Time) error {
	err := r.db.Model(&domain.SessionToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Update("last_seen_at", at).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "touch_last_seen_by_hash", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "touch_last_seen_by_hash", "success")
	return nil
}

func (r *GormSessionRepository) RevokeByHash(hash, reason string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.Model(&domain.SessionToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Updates(map[string]any{"revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "revoke_by_hash", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "revoke_by_hash", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormSessionRepository) RevokeByAccountID(accountID, reason string) (int64, error) {
	now := time.Now().UTC()
	res := r.db.Model(&domain.SessionToken{}).
		Where("account_id = ? AND revoked_at IS NULL", accountID).
		Updates(map[string]any{"revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "revoke_by_account_id", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "revoke_by_account_id", "success")
	return res.RowsAffected, nil
}

func (r *GormSessionRepository) CleanupExpired() (int64, error) {
	res := r.db.Where("expires_at <= ?", time.Now()).Delete(&domain.SessionToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
