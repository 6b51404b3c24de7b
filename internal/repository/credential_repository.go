package repository

import (
	"context"
	"errors"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrDuplicateAccount   = errors.New("account already has a credential")
)

type CredentialRepository interface {
	Create(c *domain.Credential) error
	FindByAccountID(accountID string) (*domain.Credential, error)
	UpdateHash(accountID, passwordHash string, iterations int) error
}

type GormCredentialRepository struct{ db *gorm.DB }

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &GormCredentialRepository{db: db}
}

func (r *GormCredentialRepository) Create(c *domain.Credential) error {
	err := r.db.Create(c).Error
	if err != nil {
		if isDuplicateErr(err) {
			observability.RecordRepositoryOperation(context.Background(), "credential", "create", "duplicate")
			return ErrDuplicateAccount
		}
		observability.RecordRepositoryOperation(context.Background(), "credential", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "credential", "create", "success")
	return nil
}

func (r *GormCredentialRepository) FindByAccountID(accountID string) (*domain.Credential, error) {
	var c domain.Credential
	err := r.db.Where("account_id = ?", accountID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "credential", "find_by_account_id", "not_found")
			return nil, ErrCredentialNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "credential", "find_by_account_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "credential", "find_by_account_id", "success")
	return &c, nil
}

func (r *GormCredentialRepository) UpdateHash(accountID, passwordHash string, iterations int) error {
	res := r.db.Model(&domain.Credential{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{"password_hash": passwordHash, "iterations": iterations})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "credential", "update_hash", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "credential", "update_hash", "not_found")
		return ErrCredentialNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "credential", "update_hash", "success")
	return nil
}
