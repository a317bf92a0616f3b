package orders_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/loadxpress/loadxpress/internal/model"
	"github.com/loadxpress/loadxpress/internal/orders"
	"github.com/loadxpress/loadxpress/internal/store"
)

type fakeWallet struct {
	balances map[uuid.UUID]int64
	debits   []int64
	credits  []int64
}

func (f *fakeWallet) ByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	bal, ok := f.balances[id]
	if !ok {
		return nil, goerrors.New("record not found", goerrors.CategoryNotFound)
	}
	return &model.Account{ID: id, Balance: bal}, nil
}

func (f *fakeWallet) DebitTx(_ context.Context, _ bun.IDB, id uuid.UUID, amount int64) error {
	if f.balances[id] < amount {
		return store.ErrInsufficientFunds
	}
	f.balances[id] -= amount
	f.debits = append(f.debits, amount)
	return nil
}

func (f *fakeWallet) Credit(_ context.Context, id uuid.UUID, amount int64) error {
	f.balances[id] += amount
	f.credits = append(f.credits, amount)
	return nil
}

type fakeLedger struct {
	records  []*model.Transaction
	statuses map[uuid.UUID]string
}

func (f *fakeLedger) RecordTx(_ context.Context, _ bun.IDB, record *model.Transaction) (*model.Transaction, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	f.records = append(f.records, record)
	return record, nil
}

func (f *fakeLedger) MarkStatus(_ context.Context, id uuid.UUID, status string) error {
	if f.statuses == nil {
		f.statuses = map[uuid.UUID]string{}
	}
	f.statuses[id] = status
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) RunInTx(ctx context.Context, _ *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

type fakeReseller struct {
	airtimeCalls int
	dataCalls    int
	lastPhone    string
	lastAmount   int64
	lastProvider int
	lastBundle   int
	err          error
}

func (f *fakeReseller) BuyAirtime(_ context.Context, phone string, amount int64, providerID int) error {
	f.airtimeCalls++
	f.lastPhone = phone
	f.lastAmount = amount
	f.lastProvider = providerID
	return f.err
}

func (f *fakeReseller) BuyData(_ context.Context, phone string, bundleID int) error {
	f.dataCalls++
	f.lastPhone = phone
	f.lastBundle = bundleID
	return f.err
}

type orderFixture struct {
	wallet   *fakeWallet
	ledger   *fakeLedger
	reseller *fakeReseller
	service  *orders.Service
	user     *model.Account
}

func newOrderFixture(balance int64) *orderFixture {
	user := &model.Account{ID: uuid.New(), Balance: balance}

	f := &orderFixture{
		wallet:   &fakeWallet{balances: map[uuid.UUID]int64{user.ID: balance}},
		ledger:   &fakeLedger{},
		reseller: &fakeReseller{},
		user:     user,
	}
	f.service = orders.NewService(fakeTxRunner{}, f.wallet, f.ledger, f.reseller)
	return f
}

func TestPlaceAirtimeOrder(t *testing.T) {
	f := newOrderFixture(5000)

	receipt, err := f.service.PlaceOrder(context.Background(), f.user, orders.OrderInput{
		Type:    model.TransactionAirtime,
		Network: orders.NetworkMTN,
		Phone:   "8031234567",
		Amount:  500,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.reseller.airtimeCalls)
	assert.Equal(t, "08031234567", f.reseller.lastPhone, "recipient is normalized to local form")
	assert.Equal(t, int64(500), f.reseller.lastAmount)
	assert.Equal(t, 1, f.reseller.lastProvider)

	assert.Equal(t, int64(4500), receipt.Balance)
	require.NotNil(t, receipt.Transaction)
	assert.Equal(t, model.TransactionAirtime, receipt.Transaction.Type)
	assert.Equal(t, model.TransactionCompleted, receipt.Transaction.Status)
	assert.True(t, receipt.Transaction.Debit)
	assert.Equal(t, orders.NetworkMTN, receipt.Transaction.Which)
}

func TestPlaceDataOrderUsesCatalogPrice(t *testing.T) {
	f := newOrderFixture(5000)

	receipt, err := f.service.PlaceOrder(context.Background(), f.user, orders.OrderInput{
		Type:     model.TransactionData,
		Network:  orders.NetworkGlo,
		BundleID: 36,
		Phone:    "08051234567",
		// client supplied amounts are ignored for data orders
		Amount: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.reseller.dataCalls)
	assert.Equal(t, 36, f.reseller.lastBundle)
	assert.Equal(t, int64(450), receipt.Transaction.Amount, "wallet charged the catalog price")
	assert.Equal(t, "1GB", receipt.Transaction.Sub)
	assert.Equal(t, "30 days", receipt.Transaction.SubInfo)
	assert.Equal(t, int64(4550), receipt.Balance)
}

func TestPlaceOrderInsufficientFunds(t *testing.T) {
	f := newOrderFixture(100)

	_, err := f.service.PlaceOrder(context.Background(), f.user, orders.OrderInput{
		Type:    model.TransactionAirtime,
		Network: orders.NetworkMTN,
		Phone:   "8031234567",
		Amount:  500,
	})
	assert.ErrorIs(t, err, store.ErrInsufficientFunds)
	assert.Equal(t, 0, f.reseller.airtimeCalls, "upstream is never called without a debit")
	assert.Empty(t, f.ledger.records)
}

func TestPlaceOrderRefundsOnUpstreamFailure(t *testing.T) {
	f := newOrderFixture(5000)
	f.reseller.err = errors.New("upstream down")

	_, err := f.service.PlaceOrder(context.Background(), f.user, orders.OrderInput{
		Type:     model.TransactionData,
		Network:  orders.NetworkMTN,
		BundleID: 46,
		Phone:    "8031234567",
	})
	assert.ErrorIs(t, err, orders.ErrPurchaseFailed)

	assert.Equal(t, int64(5000), f.wallet.balances[f.user.ID], "debit was refunded")
	require.Len(t, f.ledger.records, 1)
	recorded := f.ledger.records[0]
	assert.Equal(t, model.TransactionFailed, f.ledger.statuses[recorded.ID])
	assert.Equal(t, model.TransactionFailed, recorded.Status)
}

func TestPlaceOrderUnknownBundle(t *testing.T) {
	f := newOrderFixture(5000)

	_, err := f.service.PlaceOrder(context.Background(), f.user, orders.OrderInput{
		Type:     model.TransactionData,
		Network:  orders.NetworkMTN,
		BundleID: 9999,
		Phone:    "8031234567",
	})
	assert.ErrorIs(t, err, orders.ErrUnknownPlan)
	assert.Equal(t, int64(5000), f.wallet.balances[f.user.ID])
}

func TestPlaceOrderRejectsInvalidInput(t *testing.T) {
	f := newOrderFixture(5000)
	ctx := context.Background()

	cases := []struct {
		name  string
		input orders.OrderInput
	}{
		{"bad type", orders.OrderInput{Type: "loan", Network: orders.NetworkMTN, Phone: "8031234567", Amount: 500}},
		{"bad network", orders.OrderInput{Type: model.TransactionAirtime, Network: "9mobile", Phone: "8031234567", Amount: 500}},
		{"bad phone", orders.OrderInput{Type: model.TransactionAirtime, Network: orders.NetworkMTN, Phone: "nope", Amount: 500}},
		{"amount too small", orders.OrderInput{Type: model.TransactionAirtime, Network: orders.NetworkMTN, Phone: "8031234567", Amount: 10}},
		{"amount too large", orders.OrderInput{Type: model.TransactionAirtime, Network: orders.NetworkMTN, Phone: "8031234567", Amount: 90000}},
		{"data without bundle", orders.OrderInput{Type: model.TransactionData, Network: orders.NetworkMTN, Phone: "8031234567"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.PlaceOrder(ctx, f.user, tc.input)
			require.Error(t, err)
			assert.NotErrorIs(t, err, orders.ErrPurchaseFailed)
		})
	}

	assert.Equal(t, 0, f.reseller.airtimeCalls+f.reseller.dataCalls)
	assert.Empty(t, f.ledger.records)
}
