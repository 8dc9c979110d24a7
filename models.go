package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountKind names the store that owns an account
type AccountKind string

const (
	KindStudent AccountKind = "student"
	KindCitizen AccountKind = "citizen"
	KindAdmin   AccountKind = "admin"
)

// AccountRef identifies an account across stores. It is resolved once and
// threaded through a flow instead of probing stores again.
type AccountRef struct {
	Kind AccountKind
	ID   uuid.UUID
}

func StudentRef(id uuid.UUID) AccountRef { return AccountRef{Kind: KindStudent, ID: id} }
func CitizenRef(id uuid.UUID) AccountRef { return AccountRef{Kind: KindCitizen, ID: id} }
func AdminRef(id uuid.UUID) AccountRef   { return AccountRef{Kind: KindAdmin, ID: id} }

// Role returns the token role for the referenced account kind
func (r AccountRef) Role() Role {
	return r.Kind.Role()
}

// IsZero reports whether the reference points nowhere
func (r AccountRef) IsZero() bool {
	return r.Kind == "" || r.ID == uuid.Nil
}

func (r AccountRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// Account is the auth view shared by Student, Citizen and Admin
type Account interface {
	GetID() uuid.UUID
	SetID(id uuid.UUID)
	Ref() AccountRef
	GetPhoneNumber() string
	GetRefreshTokenHash() string
}

var (
	_ Account = (*Student)(nil)
	_ Account = (*Citizen)(nil)
	_ Account = (*Admin)(nil)
)

// Student is the student account model
type Student struct {
	bun.BaseModel           `bun:"table:students,alias:std"`
	ID                      uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName               string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName                string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	PhoneNumber             string     `bun:"phone_number,notnull,unique" json:"phone_number,omitempty"`
	OrganizationID          string     `bun:"organization_id" json:"organization_id,omitempty"`
	CurrentRefreshTokenHash string     `bun:"current_refresh_token_hash,nullzero" json:"-"`
	CreatedAt               *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt               *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

func (s *Student) GetID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.ID
}

func (s *Student) SetID(id uuid.UUID) {
	if s != nil {
		s.ID = id
	}
}

func (s *Student) Ref() AccountRef              { return StudentRef(s.GetID()) }
func (s *Student) GetPhoneNumber() string      { return s.PhoneNumber }
func (s *Student) GetRefreshTokenHash() string { return s.CurrentRefreshTokenHash }

// Citizen is the citizen account model
type Citizen struct {
	bun.BaseModel           `bun:"table:citizens,alias:ctz"`
	ID                      uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName               string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName                string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	PhoneNumber             string     `bun:"phone_number,notnull,unique" json:"phone_number,omitempty"`
	CurrentRefreshTokenHash string     `bun:"current_refresh_token_hash,nullzero" json:"-"`
	CreatedAt               *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt               *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

func (c *Citizen) GetID() uuid.UUID {
	if c == nil {
		return uuid.Nil
	}
	return c.ID
}

func (c *Citizen) SetID(id uuid.UUID) {
	if c != nil {
		c.ID = id
	}
}

func (c *Citizen) Ref() AccountRef              { return CitizenRef(c.GetID()) }
func (c *Citizen) GetPhoneNumber() string      { return c.PhoneNumber }
func (c *Citizen) GetRefreshTokenHash() string { return c.CurrentRefreshTokenHash }

// Admin is the administrator account model. Admins sign in through an
// external identity provider and are looked up by email.
type Admin struct {
	bun.BaseModel           `bun:"table:admins,alias:adm"`
	ID                      uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email                   string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName               string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName                string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	PhoneNumber             string     `bun:"phone_number,nullzero" json:"phone_number,omitempty"`
	CurrentRefreshTokenHash string     `bun:"current_refresh_token_hash,nullzero" json:"-"`
	CreatedAt               *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt               *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

func (a *Admin) GetID() uuid.UUID {
	if a == nil {
		return uuid.Nil
	}
	return a.ID
}

func (a *Admin) SetID(id uuid.UUID) {
	if a != nil {
		a.ID = id
	}
}

func (a *Admin) Ref() AccountRef              { return AdminRef(a.GetID()) }
func (a *Admin) GetPhoneNumber() string      { return a.PhoneNumber }
func (a *Admin) GetRefreshTokenHash() string { return a.CurrentRefreshTokenHash }

// PhoneNumberClaim reserves a phone number for exactly one student or
// citizen. The primary key enforces cross-store uniqueness at write time.
type PhoneNumberClaim struct {
	bun.BaseModel `bun:"table:phone_numbers,alias:phn"`
	PhoneNumber   string      `bun:"phone_number,pk" json:"phone_number"`
	AccountKind   AccountKind `bun:"account_kind,notnull" json:"account_kind"`
	AccountID     uuid.UUID   `bun:"account_id,notnull,type:uuid" json:"account_id"`
	CreatedAt     *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
