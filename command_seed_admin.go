package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// SeedAdminMessage registers an administrator that may use federated
// sign-in. Seeding the same email twice is a no-op.
type SeedAdminMessage struct {
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

func (e SeedAdminMessage) Type() string { return "admin.seed" }

// Validate checks the normalized message, surrounding spaces and letter
// case in the email are not errors
func (e SeedAdminMessage) Validate() error {
	e = e.normalized()
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&e.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.LastName, validation.Required, validation.Length(1, 200)),
	)
}

func (e SeedAdminMessage) normalized() SeedAdminMessage {
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	e.FirstName = strings.TrimSpace(e.FirstName)
	e.LastName = strings.TrimSpace(e.LastName)
	e.PhoneNumber = strings.TrimSpace(e.PhoneNumber)
	return e
}

type SeedAdminHandler struct {
	repo RepositoryManager
}

func NewSeedAdminHandler(repo RepositoryManager) *SeedAdminHandler {
	return &SeedAdminHandler{repo: repo}
}

func (h *SeedAdminHandler) Execute(ctx context.Context, event SeedAdminMessage) (*Admin, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin seeding",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SeedAdminHandler) execute(ctx context.Context, event SeedAdminMessage) (*Admin, error) {
	event = event.normalized()
	if err := event.Validate(); err != nil {
		return nil, withCause(ErrInvalidPayload, err, map[string]any{"validation": err.Error()})
	}

	email := event.Email
	admin := &Admin{
		Email:       email,
		FirstName:   event.FirstName,
		LastName:    event.LastName,
		PhoneNumber: event.PhoneNumber,
	}

	if id, err := hashid.NewUUID(email); err == nil {
		admin.ID = id
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := h.repo.Admins().FindOneTx(ctx, tx, ByEmail(email))
		if err == nil {
			admin = existing
			return nil
		}

		if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not look up admin")
		}

		if admin, err = h.repo.Admins().CreateTx(ctx, tx, admin); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create admin")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "admin seeding transaction failed")
	}

	return admin, nil
}
