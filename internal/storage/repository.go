// Package storage persists wallets and transactions in SQLite and
// exposes the small aggregation surface the services need (totals,
// category sums, sorted listings).
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"walletd/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a wallet or transaction does not
	// exist, or exists but belongs to a different owner.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateWallet reports a violation of the one-wallet-per
	// (owner, month, year) constraint. The resolver treats it as "someone
	// else created the wallet first" and re-fetches.
	ErrDuplicateWallet = errors.New("wallet already exists for this period")
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Pragmas go on the DSN so every pooled connection waits out writer
	// locks instead of failing with SQLITE_BUSY.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database connection is still usable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateWallet inserts a wallet for (owner, month, year). It returns
// ErrDuplicateWallet when a wallet for that period already exists.
func (r *SQLiteRepository) CreateWallet(ctx context.Context, ownerID int64, month, year int, budgetCents int64, now time.Time) (core.Wallet, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (owner_id, month, year, budget_cents, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)`,
		ownerID, month, year, budgetCents, now.Unix(), now.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return core.Wallet{}, ErrDuplicateWallet
		}
		return core.Wallet{}, fmt.Errorf("insert wallet: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Wallet{}, fmt.Errorf("wallet insert id: %w", err)
	}

	slog.InfoContext(ctx, "Wallet created",
		"id", id, "owner_id", ownerID, "month", month, "year", year, "budget_cents", budgetCents)

	return core.Wallet{
		ID:          id,
		OwnerID:     ownerID,
		Month:       month,
		Year:        year,
		BudgetCents: budgetCents,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// FindWallet returns the owner's wallet for the given period, or
// ErrNotFound when none exists.
func (r *SQLiteRepository) FindWallet(ctx context.Context, ownerID int64, month, year int) (core.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		walletColumns+` WHERE owner_id = ? AND month = ? AND year = ?`,
		ownerID, month, year)
	return scanWallet(row)
}

// LatestWallet returns the owner's most recent wallet, ordered by year
// then month descending.
func (r *SQLiteRepository) LatestWallet(ctx context.Context, ownerID int64) (core.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		walletColumns+` WHERE owner_id = ? ORDER BY year DESC, month DESC LIMIT 1`,
		ownerID)
	return scanWallet(row)
}

// ListWallets returns all of the owner's wallets, newest period first.
func (r *SQLiteRepository) ListWallets(ctx context.Context, ownerID int64) ([]core.Wallet, error) {
	rows, err := r.db.QueryContext(ctx,
		walletColumns+` WHERE owner_id = ? ORDER BY year DESC, month DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []core.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// DeactivateOtherWallets clears is_active on every wallet of the owner
// except keepID.
func (r *SQLiteRepository) DeactivateOtherWallets(ctx context.Context, ownerID, keepID int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET is_active = 0, updated_at = ? WHERE owner_id = ? AND id <> ? AND is_active = 1`,
		now.Unix(), ownerID, keepID)
	if err != nil {
		return fmt.Errorf("deactivate wallets: %w", err)
	}
	return nil
}

// UpdateWalletBudget sets a wallet's budget.
func (r *SQLiteRepository) UpdateWalletBudget(ctx context.Context, walletID, budgetCents int64, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET budget_cents = ?, updated_at = ? WHERE id = ?`,
		budgetCents, now.Unix(), walletID)
	if err != nil {
		return fmt.Errorf("update wallet budget: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTransaction appends a transaction to its wallet.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (wallet_id, kind, amount_cents, category, description, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.WalletID, string(t.Kind), t.AmountCents, string(t.Category), t.Description,
		t.Date.Unix(), t.CreatedAt.Unix())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction insert id: %w", err)
	}
	t.ID = id

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID, "wallet_id", t.WalletID, "kind", t.Kind,
		"amount_cents", t.AmountCents, "category", t.Category)

	return t, nil
}

// GetTransactionForOwner loads a transaction only when its owning wallet
// belongs to ownerID; a foreign transaction is indistinguishable from a
// missing one.
func (r *SQLiteRepository) GetTransactionForOwner(ctx context.Context, id, ownerID int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT t.id, t.wallet_id, t.kind, t.amount_cents, t.category, t.description, t.date, t.created_at
		 FROM transactions t
		 JOIN wallets w ON w.id = t.wallet_id
		 WHERE t.id = ? AND w.owner_id = ?`,
		id, ownerID)
	return scanTransaction(row)
}

// UpdateTransaction replaces the mutable fields of a transaction.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET kind = ?, amount_cents = ?, category = ?, description = ?, date = ?
		 WHERE id = ?`,
		string(t.Kind), t.AmountCents, string(t.Category), t.Description, t.Date.Unix(), t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTransaction removes a transaction permanently.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTransactions returns all transactions of a wallet, newest date
// first; equal dates fall back to newest id first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, walletID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, wallet_id, kind, amount_cents, category, description, date, created_at
		 FROM transactions WHERE wallet_id = ? ORDER BY date DESC, id DESC`,
		walletID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// WalletTotals aggregates a wallet's expense sum, income sum and expense
// count in a single pass.
func (r *SQLiteRepository) WalletTotals(ctx context.Context, walletID int64) (core.WalletTotals, error) {
	var totals core.WalletTotals
	err := r.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents END), 0),
		   COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents END), 0),
		   COUNT(CASE WHEN kind = 'expense' THEN 1 END)
		 FROM transactions WHERE wallet_id = ?`,
		walletID).Scan(&totals.ExpenseCents, &totals.IncomeCents, &totals.ExpenseCount)
	if err != nil {
		return core.WalletTotals{}, fmt.Errorf("wallet totals: %w", err)
	}
	return totals, nil
}

// CategoryTotals sums expense transactions per category, highest first.
// Ties break by category name so the ordering is deterministic.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, walletID int64, limit int) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents) AS total
		 FROM transactions WHERE wallet_id = ? AND kind = 'expense'
		 GROUP BY category ORDER BY total DESC, category ASC LIMIT ?`,
		walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var totals []core.CategoryTotal
	for rows.Next() {
		var ct core.CategoryTotal
		var category string
		if err := rows.Scan(&category, &ct.TotalCents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.Category = core.Category(category)
		totals = append(totals, ct)
	}
	return totals, rows.Err()
}

const walletColumns = `SELECT id, owner_id, month, year, budget_cents, is_active, created_at, updated_at FROM wallets`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (core.Wallet, error) {
	var (
		w                    core.Wallet
		isActive             int
		createdAt, updatedAt int64
	)
	err := row.Scan(&w.ID, &w.OwnerID, &w.Month, &w.Year, &w.BudgetCents, &isActive, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Wallet{}, ErrNotFound
	}
	if err != nil {
		return core.Wallet{}, fmt.Errorf("scan wallet: %w", err)
	}
	w.IsActive = isActive != 0
	w.CreatedAt = time.Unix(createdAt, 0).UTC()
	w.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return w, nil
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t               core.Transaction
		kind, category  string
		date, createdAt int64
	)
	err := row.Scan(&t.ID, &t.WalletID, &kind, &t.AmountCents, &category, &t.Description, &date, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.Kind = core.TransactionKind(kind)
	t.Category = core.Category(category)
	t.Date = time.Unix(date, 0).UTC()
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	return t, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
