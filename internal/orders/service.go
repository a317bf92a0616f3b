package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/loadxpress/loadxpress/internal/logger"
	"github.com/loadxpress/loadxpress/internal/model"
	"github.com/loadxpress/loadxpress/internal/store"
)

// Airtime order bounds in naira.
const (
	MinAirtimeAmount = 50
	MaxAirtimeAmount = 50000
)

var recipientPattern = regexp.MustCompile(`^[0-9]{10,11}$`)

// ErrUnknownPlan rejects orders referencing a carrier or bundle the
// catalog does not list.
var ErrUnknownPlan = goerrors.New("unknown network or plan", goerrors.CategoryValidation).
	WithTextCode("UNKNOWN_PLAN").
	WithCode(goerrors.CodeBadRequest)

// OrderInput is the purchase payload.
type OrderInput struct {
	Type     string `form:"type" json:"type"`
	Network  string `form:"network" json:"network"`
	BundleID int    `form:"bundle_id" json:"bundle_id"`
	Phone    string `form:"phone" json:"phone"`
	Amount   int64  `form:"amount" json:"amount"`
}

// Validate runs field level validation. Plan resolution happens later
// against the catalog.
func (r OrderInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Type,
			validation.Required,
			validation.In(model.TransactionAirtime, model.TransactionData),
		),
		validation.Field(
			&r.Network,
			validation.Required,
			validation.In(NetworkMTN, NetworkGlo, NetworkAirtel),
		),
		validation.Field(
			&r.Phone,
			validation.Required,
			validation.Match(recipientPattern).Error("must be 10 or 11 digits"),
		),
	)
}

// validate combines the struct rules with the per-type conditional
// rules.
func (r OrderInput) validate() error {
	if err := r.Validate(); err != nil {
		return err
	}

	switch r.Type {
	case model.TransactionData:
		return validation.ValidateStruct(&r,
			validation.Field(&r.BundleID, validation.Required),
		)
	default:
		return validation.ValidateStruct(&r,
			validation.Field(
				&r.Amount,
				validation.Required,
				validation.Min(int64(MinAirtimeAmount)),
				validation.Max(int64(MaxAirtimeAmount)),
			),
		)
	}
}

// Receipt is what a completed order returns to the caller.
type Receipt struct {
	Transaction *model.Transaction `json:"transaction"`
	Balance     int64              `json:"balance"`
}

// Wallet is the slice of the accounts repository the order flow
// needs.
type Wallet interface {
	ByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	DebitTx(ctx context.Context, tx bun.IDB, id uuid.UUID, amount int64) error
	Credit(ctx context.Context, id uuid.UUID, amount int64) error
}

// Ledger records wallet movements.
type Ledger interface {
	RecordTx(ctx context.Context, tx bun.IDB, record *model.Transaction) (*model.Transaction, error)
	MarkStatus(ctx context.Context, id uuid.UUID, status string) error
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

// Service places purchase orders. The wallet debit and the transaction
// record commit together before the upstream call; an upstream failure
// refunds the wallet and flips the record to failed.
type Service struct {
	tx       TxRunner
	wallet   Wallet
	ledger   Ledger
	reseller Reseller
	logger   logger.Logger
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithServiceLogger overrides the logger.
func WithServiceLogger(log logger.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// NewService wires the order service over the stores and the upstream
// client.
func NewService(tx TxRunner, wallet Wallet, ledger Ledger, reseller Reseller, opts ...ServiceOption) *Service {
	s := &Service{
		tx:       tx,
		wallet:   wallet,
		ledger:   ledger,
		reseller: reseller,
		logger:   logger.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// PlaceOrder executes a purchase for the given account.
func (s *Service) PlaceOrder(ctx context.Context, user *model.Account, input OrderInput) (*Receipt, error) {
	if err := input.validate(); err != nil {
		return nil, goerrors.FromOzzoValidation(err, "invalid order payload")
	}

	recipient, err := NormalizeRecipient(input.Phone)
	if err != nil {
		return nil, err
	}

	network, ok := NetworkByKey(input.Network)
	if !ok {
		return nil, ErrUnknownPlan
	}

	record := &model.Transaction{
		AccountID: user.ID,
		Type:      input.Type,
		Which:     input.Network,
		Status:    model.TransactionCompleted,
		Debit:     true,
	}

	var bundle Bundle
	switch input.Type {
	case model.TransactionData:
		_, bundle, ok = FindBundle(input.Network, input.BundleID)
		if !ok {
			return nil, ErrUnknownPlan
		}
		record.Amount = bundle.Price
		record.Sub = bundle.Size
		record.SubInfo = bundle.Duration
		record.Description = fmt.Sprintf("%s %s data to %s", input.Network, bundle.Size, recipient)
	default:
		record.Amount = input.Amount
		record.Description = fmt.Sprintf("%s airtime to %s", input.Network, recipient)
	}

	err = s.tx.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := s.wallet.DebitTx(ctx, tx, user.ID, record.Amount); err != nil {
			return err
		}
		_, err := s.ledger.RecordTx(ctx, tx, record)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			return nil, store.ErrInsufficientFunds
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to charge wallet")
	}

	switch input.Type {
	case model.TransactionData:
		err = s.reseller.BuyData(ctx, recipient, bundle.ID)
	default:
		err = s.reseller.BuyAirtime(ctx, recipient, record.Amount, network.ID)
	}

	if err != nil {
		s.refund(ctx, user, record)
		return nil, ErrPurchaseFailed
	}

	refreshed, lookupErr := s.wallet.ByID(ctx, user.ID)
	balance := user.Balance - record.Amount
	if lookupErr == nil {
		balance = refreshed.Balance
	}

	return &Receipt{Transaction: record, Balance: balance}, nil
}

// refund reverses the debit after an upstream failure. Both steps are
// retried nowhere; a partial refund is logged loudly for manual
// reconciliation.
func (s *Service) refund(ctx context.Context, user *model.Account, record *model.Transaction) {
	if err := s.wallet.Credit(ctx, user.ID, record.Amount); err != nil {
		s.logger.Error("refund failed, wallet out of sync",
			"error", err,
			"account", user.ID.String(),
			"transaction", record.ID.String(),
			"amount", record.Amount,
		)
	}

	if err := s.ledger.MarkStatus(ctx, record.ID, model.TransactionFailed); err != nil {
		s.logger.Error("failed to flag failed purchase",
			"error", err,
			"transaction", record.ID.String(),
		)
	}
	record.Status = model.TransactionFailed
}
