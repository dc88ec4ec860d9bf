package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finbot/internal/core"
	applog "finbot/internal/log"

	_ "modernc.org/sqlite"
)

// Timestamps are stored as UTC text so that lexical and chronological order agree.
const timeLayout = "2006-01-02 15:04:05"

var ErrInvalidWindow = errors.New("window must be at least one day")

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// Option customizes a SQLiteRepository.
type Option func(*SQLiteRepository)

// WithClock replaces time.Now. The clock's location defines "today".
func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) {
		r.now = now
	}
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	inMemory := isInMemory(dbPath)
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := buildDSN(dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if inMemory {
		// Every new connection to :memory: is a fresh, empty database.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(repo)
	}

	return repo, nil
}

func isInMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, ":memory:?")
}

func buildDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// storageLog returns the per-update logger from ctx tagged as storage.
func storageLog(ctx context.Context) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(applog.ComponentStorage)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) timestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// EnsureDefaultCategories seeds the default categories for a user that owns
// no category rows yet, deleted ones included. It reports whether it seeded.
func (r *SQLiteRepository) EnsureDefaultCategories(ctx context.Context, uid int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var count int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE user_id = ?`, uid,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	created := r.timestamp(r.now())
	for _, def := range core.DefaultCategories {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO categories (user_id, name, emoji, created_at) VALUES (?, ?, ?, ?)`,
			uid, def.Name, def.Glyph, created,
		); err != nil {
			return false, fmt.Errorf("insert default category %s: %w", def.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit default categories: %w", err)
	}

	storageLog(ctx).InfoContext(ctx, "Seeded default categories", applog.FieldRows, len(core.DefaultCategories))
	return true, nil
}

// ListCategories returns the user's categories ordered by creation.
func (r *SQLiteRepository) ListCategories(ctx context.Context, uid int64, includeDeleted bool) ([]core.Category, error) {
	query := `SELECT id, user_id, name, emoji, is_deleted, created_at
		FROM categories
		WHERE user_id = ?`
	if !includeDeleted {
		query += ` AND is_deleted = 0`
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c       core.Category
			deleted int64
			created string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Glyph, &deleted, &created); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Deleted = deleted != 0
		if c.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory upserts by (uid, name): an existing row keeps its id, takes
// the new glyph and is undeleted. Name length is not checked here.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, uid int64, name, glyph string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO categories (user_id, name, emoji, is_deleted, created_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT (user_id, name) DO UPDATE SET emoji = excluded.emoji, is_deleted = 0
		RETURNING id`,
		uid, name, glyph, r.timestamp(r.now()),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}

	storageLog(ctx).InfoContext(ctx, "Category saved", applog.FieldOperation, applog.OpCreate, applog.FieldCategoryID, id, applog.FieldCategory, name)
	return id, nil
}

// SoftDeleteCategory flags the category as deleted. It returns false when no
// category with that id belongs to uid.
func (r *SQLiteRepository) SoftDeleteCategory(ctx context.Context, uid, categoryID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET is_deleted = 1 WHERE id = ? AND user_id = ?`,
		categoryID, uid,
	)
	if err != nil {
		return false, fmt.Errorf("soft delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	storageLog(ctx).InfoContext(ctx, "Category soft deleted", applog.FieldOperation, applog.OpDelete, applog.FieldCategoryID, categoryID, applog.FieldRows, n)
	return n > 0, nil
}

// AddExpense records an expense. Amount validation is the caller's job; the
// schema still refuses non-positive amounts.
func (r *SQLiteRepository) AddExpense(ctx context.Context, uid, categoryID int64, amount core.Money) (int64, error) {
	if err := amount.Validate(); err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, category_id, amount_cents, created_at) VALUES (?, ?, ?, ?)`,
		uid, categoryID, amount.Cents, r.timestamp(r.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	storageLog(ctx).InfoContext(ctx, "Expense saved to SQLite", applog.NewFields().
		WithOperation(applog.OpRecord).
		WithExpense(categoryID, amount.Cents).
		ToSlice()...)

	return id, nil
}

// CategoryTotals sums expenses per live category over the trailing window,
// largest first. Expenses of soft-deleted categories are left out.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, uid int64, windowDays int) ([]core.CategoryTotal, error) {
	if windowDays < 1 {
		return nil, ErrInvalidWindow
	}
	since := r.now().Add(-time.Duration(windowDays) * 24 * time.Hour)

	rows, err := r.db.QueryContext(ctx,
		`SELECT c.name, c.emoji, SUM(e.amount_cents) AS total
		FROM expenses e
		JOIN categories c ON e.category_id = c.id
		WHERE e.user_id = ?
		AND e.created_at >= ?
		AND c.is_deleted = 0
		GROUP BY c.id
		ORDER BY total DESC, c.id`,
		uid, r.timestamp(since),
	)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var (
			c  core.Category
			ct core.CategoryTotal
		)
		if err := rows.Scan(&c.Name, &c.Glyph, &ct.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.Label = c.StatsLabel()
		out = append(out, ct)
	}
	return out, rows.Err()
}

// TodayTotal sums the expenses recorded since local midnight.
func (r *SQLiteRepository) TodayTotal(ctx context.Context, uid int64) (core.Money, error) {
	now := r.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		WHERE user_id = ? AND created_at >= ? AND created_at < ?`,
		uid, r.timestamp(start), r.timestamp(end),
	).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("today total: %w", err)
	}
	return core.Money{Cents: total}, nil
}

// ClearAllExpenses deletes every expense of the user. Categories stay.
func (r *SQLiteRepository) ClearAllExpenses(ctx context.Context, uid int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE user_id = ?`, uid)
	if err != nil {
		return 0, fmt.Errorf("clear expenses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	storageLog(ctx).InfoContext(ctx, "Expenses cleared", applog.FieldOperation, applog.OpClear, applog.FieldRows, n)
	return n, nil
}

// ClearCategoryExpenses deletes the user's expenses of a single category.
func (r *SQLiteRepository) ClearCategoryExpenses(ctx context.Context, uid, categoryID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE user_id = ? AND category_id = ?`,
		uid, categoryID,
	)
	if err != nil {
		return 0, fmt.Errorf("clear category expenses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	storageLog(ctx).InfoContext(ctx, "Category expenses cleared", applog.FieldOperation, applog.OpClear, applog.FieldCategoryID, categoryID, applog.FieldRows, n)
	return n, nil
}

// RecentExpenses returns the latest expenses of live categories, newest first.
func (r *SQLiteRepository) RecentExpenses(ctx context.Context, uid int64, limit int) ([]core.ExpenseLine, error) {
	return r.queryLines(ctx,
		`SELECT e.id, e.user_id, e.category_id, e.amount_cents, e.created_at, c.name || ' ' || c.emoji
		FROM expenses e
		JOIN categories c ON e.category_id = c.id
		WHERE e.user_id = ? AND c.is_deleted = 0
		ORDER BY e.created_at DESC, e.id DESC
		LIMIT ?`,
		uid, limit,
	)
}

// ExpensesSince returns every expense recorded at or after since, oldest
// first, including those of soft-deleted categories.
func (r *SQLiteRepository) ExpensesSince(ctx context.Context, uid int64, since time.Time) ([]core.ExpenseLine, error) {
	return r.queryLines(ctx,
		`SELECT e.id, e.user_id, e.category_id, e.amount_cents, e.created_at, c.name || ' ' || c.emoji
		FROM expenses e
		JOIN categories c ON e.category_id = c.id
		WHERE e.user_id = ? AND e.created_at >= ?
		ORDER BY e.created_at, e.id`,
		uid, r.timestamp(since),
	)
}

func (r *SQLiteRepository) queryLines(ctx context.Context, query string, args ...any) ([]core.ExpenseLine, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseLine
	for rows.Next() {
		var (
			l       core.ExpenseLine
			created string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.CategoryID, &l.Amount.Cents, &created, &l.CategoryLabel); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if l.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
