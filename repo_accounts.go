package auth

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Condition is a column to value filter, all entries must match
type Condition map[string]any

func ByID(id uuid.UUID) Condition {
	return Condition{"id": id}
}

func ByPhoneNumber(phone string) Condition {
	return Condition{"phone_number": strings.TrimSpace(phone)}
}

func ByEmail(email string) Condition {
	return Condition{"email": strings.ToLower(strings.TrimSpace(email))}
}

// AccountRepository is the store for one account kind
type AccountRepository[T Account] interface {
	Kind() AccountKind
	FindOne(ctx context.Context, cond Condition) (T, error)
	FindOneTx(ctx context.Context, tx bun.IDB, cond Condition) (T, error)
	FindByID(ctx context.Context, id uuid.UUID) (T, error)
	Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error)
	CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error)
	SetCurrentRefreshTokenHash(ctx context.Context, id uuid.UUID, hash string) error
	SetCurrentRefreshTokenHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash string) error
}

// AccountStore is the kind agnostic view used by token rotation
type AccountStore interface {
	Kind() AccountKind
	FindAccountTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (Account, error)
	SetCurrentRefreshTokenHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash string) error
	SwapRefreshTokenHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, previous, next string) (bool, error)
}

type accounts[T Account] struct {
	repository.Repository[T]
	db        *bun.DB
	kind      AccountKind
	newRecord func() T
}

var (
	_ AccountRepository[*Student] = (*accounts[*Student])(nil)
	_ AccountStore                = (*accounts[*Citizen])(nil)
)

func newAccountsRepository[T Account](db *bun.DB, kind AccountKind, identifier string, newRecord func() T) *accounts[T] {
	repo := repository.NewRepository[T](db, repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			return record.GetID()
		},
		SetID: func(record T, id uuid.UUID) {
			record.SetID(id)
		},
		GetIdentifier: func() string {
			return identifier
		},
	})

	return &accounts[T]{
		Repository: repo,
		db:         db,
		kind:       kind,
		newRecord:  newRecord,
	}
}

func NewStudentsRepository(db *bun.DB) AccountRepository[*Student] {
	return newAccountsRepository(db, KindStudent, "phone_number", func() *Student { return &Student{} })
}

func NewCitizensRepository(db *bun.DB) AccountRepository[*Citizen] {
	return newAccountsRepository(db, KindCitizen, "phone_number", func() *Citizen { return &Citizen{} })
}

func NewAdminsRepository(db *bun.DB) AccountRepository[*Admin] {
	return newAccountsRepository(db, KindAdmin, "email", func() *Admin { return &Admin{} })
}

func (a *accounts[T]) Kind() AccountKind {
	return a.kind
}

func (a *accounts[T]) FindOne(ctx context.Context, cond Condition) (T, error) {
	return a.FindOneTx(ctx, a.db, cond)
}

func (a *accounts[T]) FindOneTx(ctx context.Context, tx bun.IDB, cond Condition) (T, error) {
	var zero T
	if len(cond) == 0 {
		return zero, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"kind": a.kind,
			})
	}

	columns := make([]string, 0, len(cond))
	for column := range cond {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	record := a.newRecord()
	q := tx.NewSelect().Model(record)
	for _, column := range columns {
		q = q.Where("?TableAlias.? = ?", bun.Ident(column), cond[column])
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		if repository.IsRecordNotFound(err) {
			return zero, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"kind":      a.kind,
					"condition": conditionMetadata(cond),
				})
		}
		return zero, err
	}

	return record, nil
}

func (a *accounts[T]) FindByID(ctx context.Context, id uuid.UUID) (T, error) {
	return a.FindOne(ctx, ByID(id))
}

func (a *accounts[T]) FindAccountTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (Account, error) {
	record, err := a.FindOneTx(ctx, tx, ByID(id))
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *accounts[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts[T]) SetCurrentRefreshTokenHash(ctx context.Context, id uuid.UUID, hash string) error {
	return a.SetCurrentRefreshTokenHashTx(ctx, a.db, id, hash)
}

// SetCurrentRefreshTokenHashTx replaces the stored hash, an empty hash
// clears it
func (a *accounts[T]) SetCurrentRefreshTokenHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash string) error {
	q := tx.NewUpdate().Model(a.newRecord())
	if hash == "" {
		q = q.Set("current_refresh_token_hash = NULL")
	} else {
		q = q.Set("current_refresh_token_hash = ?", hash)
	}

	res, err := q.
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"kind": a.kind,
				"id":   id.String(),
			})
	}

	return nil
}

// SwapRefreshTokenHashTx replaces the stored hash only while it still equals
// previous. It reports false when another rotation got there first.
func (a *accounts[T]) SwapRefreshTokenHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, previous, next string) (bool, error) {
	res, err := tx.NewUpdate().Model(a.newRecord()).
		Set("current_refresh_token_hash = ?", next).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("current_refresh_token_hash = ?", previous).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func prepareAccountDefaults(record Account) {
	if record == nil {
		return
	}

	if record.GetID() == uuid.Nil {
		record.SetID(uuid.New())
	}

	if admin, ok := record.(*Admin); ok && admin != nil {
		admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	}
}

func conditionMetadata(cond Condition) map[string]any {
	out := make(map[string]any, len(cond))
	for k, v := range cond {
		out[k] = v
	}
	return out
}
