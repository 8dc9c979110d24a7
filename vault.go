package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RefreshTokenHasher produces the stored form of a refresh token
type RefreshTokenHasher func(token string, cost int) (string, error)

// RefreshTokenVault keeps a salted hash of the latest refresh token issued
// to each account. Storing a new hash replaces the previous one, so only the
// most recent token verifies.
type RefreshTokenVault struct {
	repo   RepositoryManager
	config Config
	hasher RefreshTokenHasher
	logger Logger
}

func NewRefreshTokenVault(repo RepositoryManager, config Config) *RefreshTokenVault {
	return &RefreshTokenVault{
		repo:   repo,
		config: config,
		hasher: HashRefreshToken,
		logger: defLogger{},
	}
}

func (v *RefreshTokenVault) WithLogger(logger Logger) *RefreshTokenVault {
	if logger != nil {
		v.logger = logger
	}
	return v
}

func (v *RefreshTokenVault) WithHasher(hasher RefreshTokenHasher) *RefreshTokenVault {
	if hasher != nil {
		v.hasher = hasher
	}
	return v
}

func (v *RefreshTokenVault) Store(ctx context.Context, ref AccountRef, refreshToken string) error {
	return v.StoreTx(ctx, v.repo.DB(), ref, refreshToken)
}

// StoreTx hashes refreshToken and replaces the hash stored for ref
func (v *RefreshTokenVault) StoreTx(ctx context.Context, tx bun.IDB, ref AccountRef, refreshToken string) error {
	store, err := v.repo.Accounts(ref.Kind)
	if err != nil {
		return withCause(ErrTokenProcessing, err, map[string]any{"account": ref.String()})
	}

	hash, err := v.hasher(refreshToken, v.config.GetRefreshTokenHashCost())
	if err != nil {
		v.logger.Error("RefreshTokenVault failed to hash refresh token", "account", ref.String(), "error", err)
		return withCause(ErrTokenProcessing, err, map[string]any{"account": ref.String()})
	}

	if err := store.SetCurrentRefreshTokenHashTx(ctx, tx, ref.ID, hash); err != nil {
		if repository.IsRecordNotFound(err) {
			return withCause(ErrAccountNotFound, err, map[string]any{"account": ref.String()})
		}
		v.logger.Error("RefreshTokenVault failed to store refresh token hash", "account", ref.String(), "error", err)
		return withCause(ErrTokenProcessing, err, map[string]any{"account": ref.String()})
	}

	return nil
}

// Verify checks refreshToken against the hash stored for ref
func (v *RefreshTokenVault) Verify(ctx context.Context, ref AccountRef, refreshToken string) error {
	return v.VerifyTx(ctx, v.repo.DB(), ref, refreshToken)
}

func (v *RefreshTokenVault) VerifyTx(ctx context.Context, tx bun.IDB, ref AccountRef, refreshToken string) error {
	store, err := v.repo.Accounts(ref.Kind)
	if err != nil {
		return withCause(ErrInvalidRefreshToken, err, nil)
	}

	account, err := store.FindAccountTx(ctx, tx, ref.ID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return withCause(ErrInvalidRefreshToken, err, map[string]any{"account": ref.String()})
		}
		return err
	}

	return CompareRefreshTokenAndHash(refreshToken, account.GetRefreshTokenHash())
}

// Rotate replaces the hash of presented with the hash of next. The compare
// and the replace act as one step: when two callers present the same token
// only one of them rotates, the other gets ErrInvalidRefreshToken.
func (v *RefreshTokenVault) Rotate(ctx context.Context, ref AccountRef, presented, next string) error {
	return v.RotateTx(ctx, v.repo.DB(), ref, presented, next)
}

func (v *RefreshTokenVault) RotateTx(ctx context.Context, tx bun.IDB, ref AccountRef, presented, next string) error {
	store, err := v.repo.Accounts(ref.Kind)
	if err != nil {
		return withCause(ErrInvalidRefreshToken, err, nil)
	}

	account, err := store.FindAccountTx(ctx, tx, ref.ID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return withCause(ErrInvalidRefreshToken, err, map[string]any{"account": ref.String()})
		}
		return err
	}

	current := account.GetRefreshTokenHash()
	if err := CompareRefreshTokenAndHash(presented, current); err != nil {
		return err
	}

	hash, err := v.hasher(next, v.config.GetRefreshTokenHashCost())
	if err != nil {
		v.logger.Error("RefreshTokenVault failed to hash refresh token", "account", ref.String(), "error", err)
		return withCause(ErrTokenProcessing, err, map[string]any{"account": ref.String()})
	}

	swapped, err := store.SwapRefreshTokenHashTx(ctx, tx, ref.ID, current, hash)
	if err != nil {
		v.logger.Error("RefreshTokenVault failed to rotate refresh token hash", "account", ref.String(), "error", err)
		return withCause(ErrTokenProcessing, err, map[string]any{"account": ref.String()})
	}

	if !swapped {
		return withCause(ErrInvalidRefreshToken, nil, map[string]any{
			"account": ref.String(),
			"reason":  "refresh token already rotated",
		})
	}

	return nil
}

// Revoke clears the stored hash, no refresh token verifies afterwards
func (v *RefreshTokenVault) Revoke(ctx context.Context, ref AccountRef) error {
	return v.RevokeTx(ctx, v.repo.DB(), ref)
}

func (v *RefreshTokenVault) RevokeTx(ctx context.Context, tx bun.IDB, ref AccountRef) error {
	store, err := v.repo.Accounts(ref.Kind)
	if err != nil {
		return withCause(ErrAccountNotFound, err, nil)
	}

	if err := store.SetCurrentRefreshTokenHashTx(ctx, tx, ref.ID, ""); err != nil {
		if repository.IsRecordNotFound(err) {
			return withCause(ErrAccountNotFound, err, map[string]any{"account": ref.String()})
		}
		return err
	}
	return nil
}
