package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// PhoneNumbers keeps the cross store phone number registry
type PhoneNumbers interface {
	Claim(ctx context.Context, phone string, ref AccountRef) error
	ClaimTx(ctx context.Context, tx bun.IDB, phone string, ref AccountRef) error
	Owner(ctx context.Context, phone string) (*PhoneNumberClaim, error)
}

type phoneNumbers struct {
	db *bun.DB
}

func NewPhoneNumbersRepository(db *bun.DB) PhoneNumbers {
	return &phoneNumbers{db: db}
}

func (p *phoneNumbers) Claim(ctx context.Context, phone string, ref AccountRef) error {
	return p.ClaimTx(ctx, p.db, phone, ref)
}

// ClaimTx reserves phone for ref. A phone number that is already claimed
// yields ErrPhoneNumberExists.
func (p *phoneNumbers) ClaimTx(ctx context.Context, tx bun.IDB, phone string, ref AccountRef) error {
	record := &PhoneNumberClaim{
		PhoneNumber: phone,
		AccountKind: ref.Kind,
		AccountID:   ref.ID,
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return withCause(ErrPhoneNumberExists, err, map[string]any{
				"phone_number": phone,
			})
		}
		return err
	}

	return nil
}

func (p *phoneNumbers) Owner(ctx context.Context, phone string) (*PhoneNumberClaim, error) {
	record := &PhoneNumberClaim{}
	err := p.db.NewSelect().
		Model(record).
		Where("?TableAlias.phone_number = ?", phone).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// isUniqueViolation detects unique constraint failures from postgres and
// sqlite drivers
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
