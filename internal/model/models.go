package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountRole is the account's role
type AccountRole = string

const (
	// RoleUser is a regular customer
	RoleUser AccountRole = "user"
	// RoleAdmin is an administrator
	RoleAdmin AccountRole = "admin"
)

// SignupMethod records which flow created the account
type SignupMethod = string

const (
	SignupEmail  SignupMethod = "email"
	SignupGoogle SignupMethod = "google"
)

// Account is one registered person.
//
// Email is stored lowercased and is globally unique. Phone, UID and
// GoogleID are unique when present (nullzero keeps empty values out of
// the unique indexes). A pure Google account carries no password hash.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID         uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UID        string       `bun:"uid,notnull,unique" json:"uid,omitempty"`
	Email      string       `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone      string       `bun:"phone,unique,nullzero" json:"phone,omitempty"`
	GoogleID   string       `bun:"google_id,unique,nullzero" json:"-"`
	SignupWith SignupMethod `bun:"signup_with,notnull" json:"signup_with,omitempty"`

	PasswordHash string `bun:"password_hash" json:"-"`

	FirstName string `bun:"first_name" json:"first_name,omitempty"`
	LastName  string `bun:"last_name" json:"last_name,omitempty"`
	Picture   string `bun:"picture" json:"picture,omitempty"`

	Activated             bool       `bun:"activated" json:"activated"`
	ActivationCode        string     `bun:"activation_code,nullzero" json:"-"`
	ActivationCodeExpires *time.Time `bun:"activation_code_expires,nullzero" json:"-"`
	LinkResent            int        `bun:"link_resent" json:"-"`

	Balance int64       `bun:"balance,notnull,default:0" json:"balance"`
	Role    AccountRole `bun:"role,notnull" json:"role,omitempty"`

	LastLoginAt *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt   *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt   *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt   *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// HasPassword reports whether the account can complete a local
// password sign in.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// ActivationExpired reports whether the outstanding activation code
// has passed its expiry.
func (a *Account) ActivationExpired(now time.Time) bool {
	if a.ActivationCodeExpires == nil {
		return true
	}
	return now.After(*a.ActivationCodeExpires)
}

// TransactionType distinguishes airtime from data orders
type TransactionType = string

const (
	TransactionAirtime TransactionType = "vtu"
	TransactionData    TransactionType = "data"
)

// Transaction statuses
const (
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

// Transaction is one wallet movement, usually a purchase order.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:txn"`

	ID          uuid.UUID       `bun:"id,pk,nullzero,type:uuid" json:"-"`
	AccountID   uuid.UUID       `bun:"account_id,notnull,type:uuid" json:"-"`
	Account     *Account        `bun:"rel:belongs-to,join:account_id=id" json:"-"`
	Amount      int64           `bun:"amount,notnull" json:"amount"`
	Type        TransactionType `bun:"type,notnull" json:"type"`
	Which       string          `bun:"which" json:"which,omitempty"`
	Status      string          `bun:"status,notnull" json:"status"`
	Description string          `bun:"description" json:"-"`
	Sub         string          `bun:"sub" json:"sub,omitempty"`
	SubInfo     string          `bun:"sub_info" json:"subInfo,omitempty"`
	Debit       bool            `bun:"debit" json:"debit"`
	CreatedAt   *time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"-"`
}
