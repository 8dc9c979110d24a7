package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	DB() bun.IDB
	Students() AccountRepository[*Student]
	Citizens() AccountRepository[*Citizen]
	Admins() AccountRepository[*Admin]
	PhoneNumbers() PhoneNumbers
	Accounts(kind AccountKind) (AccountStore, error)
}

type mngr struct {
	db           *bun.DB
	students     AccountRepository[*Student]
	citizens     AccountRepository[*Citizen]
	admins       AccountRepository[*Admin]
	phoneNumbers PhoneNumbers
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:           db,
		students:     NewStudentsRepository(db),
		citizens:     NewCitizensRepository(db),
		admins:       NewAdminsRepository(db),
		phoneNumbers: NewPhoneNumbersRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
	}

	if m.students == nil {
		return errors.New("repository students should be initialized")
	}

	if m.citizens == nil {
		return errors.New("repository citizens should be initialized")
	}

	if m.admins == nil {
		return errors.New("repository admins should be initialized")
	}

	if m.phoneNumbers == nil {
		return errors.New("repository phoneNumbers should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) DB() bun.IDB {
	return m.db
}

func (m mngr) Students() AccountRepository[*Student] {
	return m.students
}

func (m mngr) Citizens() AccountRepository[*Citizen] {
	return m.citizens
}

func (m mngr) Admins() AccountRepository[*Admin] {
	return m.admins
}

func (m mngr) PhoneNumbers() PhoneNumbers {
	return m.phoneNumbers
}

// Accounts returns the store that owns accounts of the given kind
func (m mngr) Accounts(kind AccountKind) (AccountStore, error) {
	var store any
	switch kind {
	case KindStudent:
		store = m.students
	case KindCitizen:
		store = m.citizens
	case KindAdmin:
		store = m.admins
	default:
		return nil, fmt.Errorf("unknown account kind %q", kind)
	}

	accountStore, ok := store.(AccountStore)
	if !ok {
		return nil, fmt.Errorf("repository for %q does not support token rotation", kind)
	}
	return accountStore, nil
}
