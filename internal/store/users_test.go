package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/loadxpress/loadxpress/internal/model"
	"github.com/loadxpress/loadxpress/internal/store"
)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := store.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func newAccount(email string) *model.Account {
	return &model.Account{
		UID:        uuid.NewString()[:16],
		Email:      email,
		SignupWith: model.SignupEmail,
	}
}

func TestRegisterAndLookup(t *testing.T) {
	db := openTestDB(t)
	users := store.NewUsersRepository(db)
	ctx := context.Background()

	created, err := users.Register(ctx, newAccount("User@Example.com"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "user@example.com", created.Email, "emails are stored lowercased")
	assert.Equal(t, model.RoleUser, created.Role)

	found, err := users.ByEmail(ctx, "USER@example.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	byID, err := users.ByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, byID.Email)
}

func TestDuplicateEmailRejected(t *testing.T) {
	db := openTestDB(t)
	users := store.NewUsersRepository(db)
	ctx := context.Background()

	_, err := users.Register(ctx, newAccount("dup@example.com"))
	require.NoError(t, err)

	_, err = users.Register(ctx, newAccount("dup@example.com"))
	require.Error(t, err)
	assert.True(t, store.IsDuplicate(err), "expected a unique constraint violation, got: %v", err)
}

func TestLookupMissesAreNotFound(t *testing.T) {
	db := openTestDB(t)
	users := store.NewUsersRepository(db)
	ctx := context.Background()

	_, err := users.ByEmail(ctx, "nobody@example.com")
	assert.True(t, store.IsNotFound(err), "expected not found, got: %v", err)

	_, err = users.ByActivationCode(ctx, "no-such-token")
	assert.True(t, store.IsNotFound(err))

	_, err = users.ByGoogleID(ctx, "no-such-sub")
	assert.True(t, store.IsNotFound(err))
}

func TestFindCollision(t *testing.T) {
	db := openTestDB(t)
	users := store.NewUsersRepository(db)
	ctx := context.Background()

	existing := newAccount("taken@example.com")
	existing.Phone = "8031234567"
	existing.GoogleID = "google-sub-1"
	_, err := users.Register(ctx, existing)
	require.NoError(t, err)

	cases := []struct {
		name      string
		candidate *model.Account
	}{
		{"same email", &model.Account{UID: "fresh-uid-000001", Email: "taken@example.com"}},
		{"same phone", &model.Account{UID: "fresh-uid-000002", Email: "new@example.com", Phone: "8031234567"}},
		{"same provider id", &model.Account{UID: "fresh-uid-000003", Email: "new@example.com", GoogleID: "google-sub-1"}},
		{"same uid", &model.Account{UID: existing.UID, Email: "new@example.com"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := users.FindCollision(ctx, tc.candidate)
			require.NoError(t, err)
			assert.Equal(t, existing.Email, got.Email)
		})
	}

	_, err = users.FindCollision(ctx, &model.Account{
		UID:   "fresh-uid-000004",
		Email: "clean@example.com",
		Phone: "8099999999",
	})
	assert.True(t, store.IsNotFound(err), "no collision expected, got: %v", err)
}

func TestFindCollisionSkipsEmptyOptionals(t *testing.T) {
	db := openTestDB(t)
	users := store.NewUsersRepository(db)
	ctx := context.Background()

	// an account without phone or provider id must not collide with
	// another candidate that also has them empty
	_, err := users.Register(ctx, newAccount("first@example.com"))
	require.NoError(t, err)

	_, err = users.FindCollision(ctx, &model.Account{
		UID:   "fresh-uid-000005",
		Email: "second@example.com",
	})
	assert.True(t, store.IsNotFound(err))
}

func TestActivationRoundTrip(t *testing.T) {
	db := openTestDB(t)
	users := store.NewUsersRepository(db)
	ctx := context.Background()

	acct := newAccount("pending@example.com")
	expires := time.Now().Add(30 * time.Minute)
	acct.ActivationCode = "token-1"
	acct.ActivationCodeExpires = &expires

	created, err := users.Register(ctx, acct)
	require.NoError(t, err)

	found, err := users.ByActivationCode(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.False(t, found.Activated)

	require.NoError(t, users.RefreshActivation(ctx, created.ID, "token-2", time.Now().Add(30*time.Minute)))

	refreshed, err := users.ByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "token-2", refreshed.ActivationCode)
	assert.Equal(t, 1, refreshed.LinkResent)

	_, err = users.ByActivationCode(ctx, "token-1")
	assert.True(t, store.IsNotFound(err), "the replaced token must stop resolving")

	require.NoError(t, users.MarkActivated(ctx, created.ID))

	active, err := users.ByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, active.Activated)
	assert.Empty(t, active.ActivationCode)
}

func TestLinkGoogleAndTrackLogin(t *testing.T) {
	db := openTestDB(t)
	users := store.NewUsersRepository(db)
	ctx := context.Background()

	created, err := users.Register(ctx, newAccount("local@example.com"))
	require.NoError(t, err)

	require.NoError(t, users.LinkGoogle(ctx, created.ID, "google-sub-9"))

	linked, err := users.ByGoogleID(ctx, "google-sub-9")
	require.NoError(t, err)
	assert.Equal(t, created.ID, linked.ID)
	assert.True(t, linked.Activated, "linking a verified provider identity activates the account")

	require.NoError(t, users.TrackLogin(ctx, created.ID))

	tracked, err := users.ByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, tracked.LastLoginAt)
	assert.WithinDuration(t, time.Now(), *tracked.LastLoginAt, time.Minute)
}

func TestWalletCreditAndDebit(t *testing.T) {
	db := openTestDB(t)
	users := store.NewUsersRepository(db)
	ctx := context.Background()

	created, err := users.Register(ctx, newAccount("wallet@example.com"))
	require.NoError(t, err)

	require.NoError(t, users.Credit(ctx, created.ID, 1000))

	funded, err := users.ByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), funded.Balance)

	require.NoError(t, users.Debit(ctx, created.ID, 400))

	debited, err := users.ByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), debited.Balance)
}

func TestDebitGuardsBalance(t *testing.T) {
	db := openTestDB(t)
	users := store.NewUsersRepository(db)
	ctx := context.Background()

	created, err := users.Register(ctx, newAccount("poor@example.com"))
	require.NoError(t, err)
	require.NoError(t, users.Credit(ctx, created.ID, 100))

	err = users.Debit(ctx, created.ID, 500)
	assert.ErrorIs(t, err, store.ErrInsufficientFunds)

	unchanged, err := users.ByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), unchanged.Balance, "a rejected debit must not move the balance")
}
