package store

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/loadxpress/loadxpress/internal/model"
)

// ErrInsufficientFunds is returned when a debit would take the wallet
// below zero.
var ErrInsufficientFunds = goerrors.New("insufficient wallet balance", goerrors.CategoryConflict).
	WithTextCode("INSUFFICIENT_FUNDS").
	WithCode(goerrors.CodeConflict)

// Users is the persistence contract for accounts.
type Users interface {
	repository.Repository[*model.Account]

	ByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	ByEmail(ctx context.Context, email string) (*model.Account, error)
	ByActivationCode(ctx context.Context, code string) (*model.Account, error)
	ByGoogleID(ctx context.Context, sub string) (*model.Account, error)

	// FindCollision looks up any existing account whose uid, email,
	// phone or google id collides with the candidate record.
	FindCollision(ctx context.Context, candidate *model.Account) (*model.Account, error)

	Register(ctx context.Context, record *model.Account) (*model.Account, error)

	RefreshActivation(ctx context.Context, id uuid.UUID, code string, expires time.Time) error
	MarkActivated(ctx context.Context, id uuid.UUID) error
	LinkGoogle(ctx context.Context, id uuid.UUID, sub string) error
	TrackLogin(ctx context.Context, id uuid.UUID) error

	Credit(ctx context.Context, id uuid.UUID, amount int64) error
	CreditTx(ctx context.Context, tx bun.IDB, id uuid.UUID, amount int64) error
	Debit(ctx context.Context, id uuid.UUID, amount int64) error
	DebitTx(ctx context.Context, tx bun.IDB, id uuid.UUID, amount int64) error
}

type users struct {
	repository.Repository[*model.Account]
	db *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository builds the accounts repository.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*model.Account](db, repository.ModelHandlers[*model.Account]{
		NewRecord: func() *model.Account { return &model.Account{} },
		GetID: func(a *model.Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *model.Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string { return "email" },
	})

	return &users{Repository: repo, db: db}
}

func (u *users) byColumn(ctx context.Context, column string, value any) (*model.Account, error) {
	record := &model.Account{}

	err := u.db.NewSelect().Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || strings.Contains(err.Error(), "no rows") {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				"column": column,
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account lookup failed")
	}

	return record, nil
}

func (u *users) ByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return u.byColumn(ctx, "id", id)
}

func (u *users) ByEmail(ctx context.Context, email string) (*model.Account, error) {
	return u.byColumn(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (u *users) ByActivationCode(ctx context.Context, code string) (*model.Account, error) {
	return u.byColumn(ctx, "activation_code", code)
}

func (u *users) ByGoogleID(ctx context.Context, sub string) (*model.Account, error) {
	return u.byColumn(ctx, "google_id", sub)
}

func (u *users) FindCollision(ctx context.Context, candidate *model.Account) (*model.Account, error) {
	record := &model.Account{}

	q := u.db.NewSelect().Model(record).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.WhereOr("?TableAlias.uid = ?", candidate.UID).
				WhereOr("?TableAlias.email = ?", candidate.Email)
			if candidate.Phone != "" {
				q = q.WhereOr("?TableAlias.phone = ?", candidate.Phone)
			}
			if candidate.GoogleID != "" {
				q = q.WhereOr("?TableAlias.google_id = ?", candidate.GoogleID)
			}
			return q
		}).
		Limit(1)

	err := q.Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) || strings.Contains(err.Error(), "no rows") {
			return nil, repository.NewRecordNotFound()
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "collision lookup failed")
	}

	return record, nil
}

func (u *users) Register(ctx context.Context, record *model.Account) (*model.Account, error) {
	prepareAccountDefaults(record)
	return u.Repository.Create(ctx, record)
}

func (u *users) RefreshActivation(ctx context.Context, id uuid.UUID, code string, expires time.Time) error {
	res, err := u.db.NewUpdate().Model((*model.Account)(nil)).
		Set("activation_code = ?", code).
		Set("activation_code_expires = ?", expires).
		Set("link_resent = link_resent + 1").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to refresh activation code")
	}

	return requireAffected(res, id)
}

func (u *users) MarkActivated(ctx context.Context, id uuid.UUID) error {
	res, err := u.db.NewUpdate().Model((*model.Account)(nil)).
		Set("activated = ?", true).
		Set("activation_code = NULL").
		Set("activation_code_expires = NULL").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark account activated")
	}

	return requireAffected(res, id)
}

// LinkGoogle attaches a provider subject to a locally created account.
// Provider verification counts as activation proof, so any pending
// activation state is cleared in the same statement.
func (u *users) LinkGoogle(ctx context.Context, id uuid.UUID, sub string) error {
	res, err := u.db.NewUpdate().Model((*model.Account)(nil)).
		Set("google_id = ?", sub).
		Set("activated = ?", true).
		Set("activation_code = NULL").
		Set("activation_code_expires = NULL").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		if IsDuplicate(err) {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "google account already linked")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to link google account")
	}

	return requireAffected(res, id)
}

func (u *users) TrackLogin(ctx context.Context, id uuid.UUID) error {
	_, err := u.db.NewUpdate().Model((*model.Account)(nil)).
		Set("last_login_at = ?", time.Now()).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login")
	}
	return nil
}

func (u *users) Credit(ctx context.Context, id uuid.UUID, amount int64) error {
	return u.CreditTx(ctx, u.db, id, amount)
}

func (u *users) CreditTx(ctx context.Context, tx bun.IDB, id uuid.UUID, amount int64) error {
	res, err := tx.NewUpdate().Model((*model.Account)(nil)).
		Set("balance = balance + ?", amount).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to credit wallet")
	}
	return requireAffected(res, id)
}

func (u *users) Debit(ctx context.Context, id uuid.UUID, amount int64) error {
	return u.DebitTx(ctx, u.db, id, amount)
}

// DebitTx takes amount out of the wallet. The balance guard lives in
// the WHERE clause so a concurrent debit cannot overdraw.
func (u *users) DebitTx(ctx context.Context, tx bun.IDB, id uuid.UUID, amount int64) error {
	res, err := tx.NewUpdate().Model((*model.Account)(nil)).
		Set("balance = balance - ?", amount).
		Where("id = ?", id).
		Where("balance >= ?", amount).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to debit wallet")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to debit wallet")
	}
	if affected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func requireAffected(res interface{ RowsAffected() (int64, error) }, id uuid.UUID) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read update result")
	}
	if affected == 0 {
		return repository.NewRecordNotFound().WithMetadata(map[string]any{
			"id": id.String(),
		})
	}
	return nil
}

func prepareAccountDefaults(record *model.Account) {
	if record == nil {
		return
	}

	record.Email = strings.ToLower(strings.TrimSpace(record.Email))

	if record.Role == "" {
		record.Role = model.RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
