package store

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/loadxpress/loadxpress/internal/model"
)

// HistoryDefaultLimit caps dashboard history queries.
const HistoryDefaultLimit = 10

// WeeklyChart is the dashboard spend chart, Monday first.
type WeeklyChart struct {
	Labels []string `json:"labels"`
	Data   []int64  `json:"data"`
}

// History bundles the chart and the most recent transactions.
type History struct {
	WeeklyChart
	Transactions []model.Transaction `json:"transactions"`
}

// Transactions is the persistence contract for wallet movements.
type Transactions interface {
	repository.Repository[*model.Transaction]

	Record(ctx context.Context, record *model.Transaction) (*model.Transaction, error)
	RecordTx(ctx context.Context, tx bun.IDB, record *model.Transaction) (*model.Transaction, error)
	MarkStatus(ctx context.Context, id uuid.UUID, status string) error
	HistoryFor(ctx context.Context, accountID uuid.UUID, limit int) (*History, error)
}

type transactions struct {
	repository.Repository[*model.Transaction]
	db  *bun.DB
	now func() time.Time
}

var _ Transactions = (*transactions)(nil)

// NewTransactionsRepository builds the transactions repository.
func NewTransactionsRepository(db *bun.DB) Transactions {
	repo := repository.NewRepository[*model.Transaction](db, repository.ModelHandlers[*model.Transaction]{
		NewRecord: func() *model.Transaction { return &model.Transaction{} },
		GetID: func(t *model.Transaction) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *model.Transaction, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})

	return &transactions{Repository: repo, db: db, now: time.Now}
}

func (t *transactions) Record(ctx context.Context, record *model.Transaction) (*model.Transaction, error) {
	return t.RecordTx(ctx, t.db, record)
}

func (t *transactions) RecordTx(ctx context.Context, tx bun.IDB, record *model.Transaction) (*model.Transaction, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt == nil {
		now := t.now()
		record.CreatedAt = &now
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record transaction")
	}

	return record, nil
}

func (t *transactions) MarkStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := t.db.NewUpdate().Model((*model.Transaction)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update transaction status")
	}
	return nil
}

// HistoryFor returns the weekly totals chart plus the latest
// transactions for the dashboard.
func (t *transactions) HistoryFor(ctx context.Context, accountID uuid.UUID, limit int) (*History, error) {
	if limit <= 0 {
		limit = HistoryDefaultLimit
	}

	weekStart := startOfWeek(t.now())

	var week []model.Transaction
	err := t.db.NewSelect().Model(&week).
		Where("account_id = ?", accountID).
		Where("created_at >= ?", weekStart).
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load weekly transactions")
	}

	chart := WeeklyChart{
		Labels: []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"},
		Data:   make([]int64, 7),
	}
	for _, txn := range week {
		if txn.CreatedAt == nil {
			continue
		}
		// time.Weekday has Sunday = 0; the chart is Monday anchored
		idx := (int(txn.CreatedAt.Weekday()) + 6) % 7
		chart.Data[idx] += txn.Amount
	}

	var recent []model.Transaction
	err = t.db.NewSelect().Model(&recent).
		Where("account_id = ?", accountID).
		OrderExpr("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load transaction history")
	}

	return &History{WeeklyChart: chart, Transactions: recent}, nil
}

// startOfWeek returns midnight of the Monday on or before t.
func startOfWeek(now time.Time) time.Time {
	diff := (int(now.Weekday()) + 6) % 7
	day := now.AddDate(0, 0, -diff)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
}
