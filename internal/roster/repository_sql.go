package roster

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect 区分 postgres（lib/pq）与 sqlite（modernc.org/sqlite）。
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

type sqlRepo struct {
	db      *sql.DB
	dialect Dialect
	names   ListNames
}

// NewSQLRepo 创建表（如不存在）并返回 Repo。
func NewSQLRepo(ctx context.Context, db *sql.DB, dialect Dialect, names ListNames) (Repo, error) {
	r := &sqlRepo{db: db, dialect: dialect, names: names}
	if err := r.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate roster schema: %w", err)
	}
	return r, nil
}

func (r *sqlRepo) migrate(ctx context.Context) error {
	idCol := "BIGSERIAL PRIMARY KEY"
	if r.dialect == SQLite {
		idCol = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS roster_entries (
			id ` + idCol + `,
			list TEXT NOT NULL,
			entry TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_roster_entries_list ON roster_entries (list, id)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// rebind 把 $1,$2 占位符改写为 sqlite 的 ?。
func (r *sqlRepo) rebind(q string) string {
	if r.dialect != SQLite {
		return q
	}
	var b strings.Builder
	for i := 0; i < len(q); i++ {
		if q[i] == '$' {
			j := i + 1
			for j < len(q) && q[j] >= '0' && q[j] <= '9' {
				j++
			}
			if _, err := strconv.Atoi(q[i+1 : j]); err == nil {
				b.WriteByte('?')
				i = j - 1
				continue
			}
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func (r *sqlRepo) ReadAll(ctx context.Context, c Category) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		r.rebind(`SELECT entry FROM roster_entries WHERE list = $1 ORDER BY id`),
		r.names.Name(c))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (r *sqlRepo) Append(ctx context.Context, c Category, entry string) error {
	_, err := r.db.ExecContext(ctx,
		r.rebind(`INSERT INTO roster_entries (list, entry) VALUES ($1, $2)`),
		r.names.Name(c), entry)
	return err
}

// ReplaceAll 在一个事务内删除并重写，失败时回滚保持原名单。
func (r *sqlRepo) ReplaceAll(ctx context.Context, c Category, entries []string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	list := r.names.Name(c)
	if _, err = tx.ExecContext(ctx, r.rebind(`DELETE FROM roster_entries WHERE list = $1`), list); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err = tx.ExecContext(ctx,
			r.rebind(`INSERT INTO roster_entries (list, entry) VALUES ($1, $2)`), list, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}
