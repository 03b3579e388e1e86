package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zafarze/gat-sub000/internal/models"
)

// conditions accumulates WHERE clauses with positional arguments.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) arg(v interface{}) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", len(c.args))
}

func (c *conditions) where(clause string) {
	c.clauses = append(c.clauses, clause)
}

// uuidIn restricts column to ids. Nothing is added when ids is empty.
func (c *conditions) uuidIn(column string, ids []string) {
	if len(ids) == 0 {
		return
	}
	c.where(fmt.Sprintf("%s = ANY(%s::uuid[])", column, c.arg(pq.Array(ids))))
}

func (c *conditions) intIn(column string, values []int) {
	if len(values) == 0 {
		return
	}
	ints := make([]int64, len(values))
	for i, v := range values {
		ints[i] = int64(v)
	}
	c.where(fmt.Sprintf("%s = ANY(%s)", column, c.arg(pq.Int64Array(ints))))
}

// scope applies an access scope to a school id column.
func (c *conditions) scope(column string, scope models.AccessScope) {
	if scope.All {
		return
	}
	if len(scope.SchoolIDs) == 0 {
		c.where("FALSE")
		return
	}
	c.uuidIn(column, scope.SchoolIDs)
}

func (c *conditions) sql() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 50
	}
	return size, (page - 1) * size
}

// Transactor runs a function inside a database transaction.
type Transactor struct {
	db *sqlx.DB
}

// NewTransactor constructs a Transactor.
func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx commits when fn succeeds and rolls back otherwise.
func (t *Transactor) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
