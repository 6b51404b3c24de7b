package service

import (
	"errors"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/repository"
	"github.com/sandeepkv93/credential-session-core/internal/security"
)

var (
	ErrAccountExists      = errors.New("account already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type CredentialService struct {
	credRepo   repository.CredentialRepository
	iterations int

	// dummyHash is verified against the supplied password whenever the
	// account does not exist, so unknown accounts cost the same as a
	// wrong password.
	dummyHash string
}

func NewCredentialService(credRepo repository.CredentialRepository, iterations int) (*CredentialService, error) {
	decoy, err := security.NewTokenValue()
	if err != nil {
		return nil, err
	}
	dummyHash, err := security.HashPasswordWithIterations(decoy, iterations)
	if err != nil {
		return nil, err
	}
	return &CredentialService{
		credRepo:   credRepo,
		iterations: iterations,
		dummyHash:  dummyHash,
	}, nil
}

// Register hashes the password at the configured cost and stores the
// credential. The iteration count is persisted next to the hash so
// later verifications never have to guess it.
func (s *CredentialService) Register(accountID, password string) (*domain.Credential, error) {
	encoded, err := security.HashPasswordWithIterations(password, s.iterations)
	if err != nil {
		return nil, err
	}
	cred := &domain.Credential{
		AccountID:    accountID,
		PasswordHash: encoded,
		Iterations:   s.iterations,
	}
	if err := s.credRepo.Create(cred); err != nil {
		if errors.Is(err, repository.ErrDuplicateAccount) {
			observability.RecordAuthEvent("register", "duplicate")
			return nil, ErrAccountExists
		}
		observability.RecordAuthEvent("register", "error")
		return nil, err
	}
	observability.RecordAuthEvent("register", "success")
	return cred, nil
}

// Verify checks the password against the stored credential. Unknown
// account and wrong password are indistinguishable to the caller, and
// both paths perform one full key derivation.
func (s *CredentialService) Verify(accountID, password string) error {
	cred, err := s.credRepo.FindByAccountID(accountID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			_, _ = security.VerifyPassword(password, s.dummyHash)
			return ErrInvalidCredentials
		}
		return err
	}

	ok, err := security.VerifyPassword(password, cred.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if security.NeedsRehash(cred.PasswordHash, s.iterations) {
		// Best effort upgrade to the current cost; a failed rewrite
		// must not fail the login.
		if encoded, err := security.HashPasswordWithIterations(password, s.iterations); err == nil {
			_ = s.credRepo.UpdateHash(accountID, encoded, s.iterations)
		}
	}
	return nil
}

// Replace swaps the stored hash for one derived from the new password
// at the current cost.
func (s *CredentialService) Replace(accountID, newPassword string) error {
	encoded, err := security.HashPasswordWithIterations(newPassword, s.iterations)
	if err != nil {
		return err
	}
	if err := s.credRepo.UpdateHash(accountID, encoded, s.iterations); err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// Exists reports whether the account already holds a credential.
func (s *CredentialService) Exists(accountID string) (bool, error) {
	_, err := s.credRepo.FindByAccountID(accountID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
