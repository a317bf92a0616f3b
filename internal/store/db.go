package store

import (
	"context"
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/loadxpress/loadxpress/internal/model"
)

// Open connects to the database and ensures the schema exists.
// Failure here is fatal to the process; everything after startup is
// per request.
func Open(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open database")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := db.PingContext(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reach database")
	}

	models := []any{
		(*model.Account)(nil),
		(*model.Transaction)(nil),
	}

	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create table")
		}
	}

	return db, nil
}

// IsNotFound reports whether the error is a missing record. The
// repository layer tags these with its own database category, so the
// plain goerrors check alone is not enough.
func IsNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || goerrors.IsNotFound(err)
}

// IsDuplicate reports whether the error is a unique constraint
// violation. This is the only concurrency guard for two signups
// racing on the same email, phone or uid.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Error 1062")
}
