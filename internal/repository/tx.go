package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// DBTX は*sql.DBと*sql.Txに共通するクエリ実行インターフェース。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxRunner は複数のリポジトリ操作を1つのトランザクションで実行する。
type TxRunner interface {
	// InTx はfnをトランザクション内で実行する。
	// fnがエラーを返した場合はロールバックし、そのエラーを返す。
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// SQLTxRunner はdatabase/sqlのトランザクションを使うTxRunner実装。
// 開始したトランザクションはコンテキストに格納され、各リポジトリが取り出して使う。
type SQLTxRunner struct {
	db TxBeginner
}

// NewSQLTxRunner はSQLTxRunnerを生成する。
func NewSQLTxRunner(db TxBeginner) *SQLTxRunner {
	return &SQLTxRunner{db: db}
}

// InTx はfnをトランザクション内で実行する。
// すでにトランザクション内の場合は新たに開始せずそのまま実行する。
func (r *SQLTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// conn はコンテキストにトランザクションがあればそれを、なければdbを返す。
func conn(ctx context.Context, db DBTX) DBTX {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

var _ TxRunner = (*SQLTxRunner)(nil)
