package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

type failingBeginner struct{}

func (failingBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return nil, errors.New("connection refused")
}
