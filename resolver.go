package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// IdentityResolver maps an identifier or phone number to the account that
// owns it. Student and citizen stores are probed concurrently, a student
// match wins when both stores answer.
type IdentityResolver struct {
	repo   RepositoryManager
	logger Logger
}

func NewIdentityResolver(repo RepositoryManager) *IdentityResolver {
	return &IdentityResolver{repo: repo, logger: defLogger{}}
}

func (r *IdentityResolver) WithLogger(logger Logger) *IdentityResolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Resolve finds the student or citizen with the given id
func (r *IdentityResolver) Resolve(ctx context.Context, id string) (AccountRef, Account, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return AccountRef{}, nil, withCause(ErrAccountNotFound, nil, map[string]any{"id": id})
	}

	account, err := r.probe(ctx, ByID(uid))
	if err != nil {
		return AccountRef{}, nil, err
	}

	if account == nil {
		return AccountRef{}, nil, withCause(ErrAccountNotFound, nil, map[string]any{"id": id})
	}

	return account.Ref(), account, nil
}

// PhoneNumberOwner returns the student or citizen holding phone, or nil
func (r *IdentityResolver) PhoneNumberOwner(ctx context.Context, phone string) (Account, error) {
	return r.probe(ctx, ByPhoneNumber(phone))
}

// ResolveAdminByEmail finds the administrator registered under email
func (r *IdentityResolver) ResolveAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	if strings.TrimSpace(email) == "" {
		return nil, withCause(ErrAdminNotRegistered, nil, nil)
	}

	admin, err := r.repo.Admins().FindOne(ctx, ByEmail(email))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, withCause(ErrAdminNotRegistered, err, map[string]any{"email": email})
		}
		r.logger.Error("IdentityResolver admin lookup error", "error", err)
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to resolve administrator")
	}

	return admin, nil
}

func (r *IdentityResolver) probe(ctx context.Context, cond Condition) (Account, error) {
	var (
		student *Student
		citizen *Citizen
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		record, err := r.repo.Students().FindOne(gctx, cond)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return nil
			}
			return err
		}
		student = record
		return nil
	})

	g.Go(func() error {
		record, err := r.repo.Citizens().FindOne(gctx, cond)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return nil
			}
			return err
		}
		citizen = record
		return nil
	})

	if err := g.Wait(); err != nil {
		r.logger.Error("IdentityResolver store probe error", "error", err)
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to resolve identity")
	}

	switch {
	case student != nil:
		return student, nil
	case citizen != nil:
		return citizen, nil
	default:
		return nil, nil
	}
}
