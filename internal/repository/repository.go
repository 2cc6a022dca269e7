package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finclass/bank-sim/internal/models"
)

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO finclass.users (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM finclass.users
		WHERE email = $1`
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreateAccount creates a new account in the database
func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO finclass.accounts (user_id, balance, currency, created_at, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, account.UserID, account.Balance, account.Currency).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Account retrieves one account with its history and scheduled transactions
func (r *Repository) Account(ctx context.Context, id int64) (*models.Account, error) {
	account := &models.Account{}
	query := `
		SELECT a.id, a.user_id, u.username, u.email, a.balance, a.currency, a.created_at, a.updated_at
		FROM finclass.accounts a
		JOIN finclass.users u ON u.id = a.user_id
		WHERE a.id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&account.ID, &account.UserID, &account.Holder, &account.Email,
			&account.Balance, &account.Currency, &account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if err := r.loadHistory(ctx, account); err != nil {
		return nil, err
	}
	if err := r.loadScheduled(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// FindAccountOwner returns the user id owning the account
func (r *Repository) FindAccountOwner(ctx context.Context, accountID int64) (int64, error) {
	var userID int64
	query := `SELECT user_id FROM finclass.accounts WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("account not found")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find account: %w", err)
	}
	return userID, nil
}

// AccountsWithSchedules returns every account holding at least one scheduled
// transaction, with bills and payments populated. History is not loaded.
func (r *Repository) AccountsWithSchedules(ctx context.Context) ([]*models.Account, error) {
	query := `
		SELECT DISTINCT a.id, a.user_id, u.username, u.email, a.balance, a.currency, a.created_at, a.updated_at
		FROM finclass.accounts a
		JOIN finclass.users u ON u.id = a.user_id
		JOIN finclass.scheduled_transactions st ON st.account_id = a.id
		ORDER BY a.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts with schedules: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account := &models.Account{}
		if err := rows.Scan(&account.ID, &account.UserID, &account.Holder, &account.Email,
			&account.Balance, &account.Currency, &account.CreatedAt, &account.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	for _, account := range accounts {
		if err := r.loadScheduled(ctx, account); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

// ApplyTransaction appends a history entry and resets the account balance to
// the sum of all history rows inside a single database transaction, so a
// partial write can never leave balance and history disagreeing.
func (r *Repository) ApplyTransaction(ctx context.Context, accountID int64, entry *models.Transaction) (float64, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	insert := `
		INSERT INTO finclass.transactions (account_id, amount, name, category, effective_date, catchup, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err = dbTx.QueryRowContext(ctx, insert, accountID, entry.Amount, entry.Name, entry.Category,
		entry.EffectiveDate, entry.Catchup).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to append transaction: %w", err)
	}
	entry.AccountID = accountID

	var balance float64
	update := `
		UPDATE finclass.accounts
		SET balance = (SELECT COALESCE(SUM(amount), 0) FROM finclass.transactions WHERE account_id = $1),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING balance`
	if err := dbTx.QueryRowContext(ctx, update, accountID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return balance, nil
}

// CreateScheduled stores a new scheduled transaction definition
func (r *Repository) CreateScheduled(ctx context.Context, tx *models.ScheduledTransaction) error {
	query := `
		INSERT INTO finclass.scheduled_transactions
			(id, account_id, kind, amount, name, category, recur_interval, creation_date, next_execution)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query, tx.ID, tx.AccountID, tx.Kind, tx.Amount, tx.Name,
		tx.Category, tx.Interval, tx.CreationDate, tx.NextExecution)
	if err != nil {
		return fmt.Errorf("failed to create scheduled transaction: %w", err)
	}
	return nil
}

// SetNextExecution persists a recomputed next-due date
func (r *Repository) SetNextExecution(ctx context.Context, accountID int64, txID string, next time.Time) error {
	query := `
		UPDATE finclass.scheduled_transactions
		SET next_execution = $3
		WHERE account_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, query, accountID, txID, next)
	if err != nil {
		return fmt.Errorf("failed to set next execution: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("scheduled transaction not found")
	}
	return nil
}

// RemoveScheduled deletes a scheduled transaction definition
func (r *Repository) RemoveScheduled(ctx context.Context, accountID int64, txID string) error {
	query := `DELETE FROM finclass.scheduled_transactions WHERE account_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, accountID, txID); err != nil {
		return fmt.Errorf("failed to remove scheduled transaction: %w", err)
	}
	return nil
}

// LatestShutdown returns the most recent shutdown record timestamp, or the
// zero time when the log is empty
func (r *Repository) LatestShutdown(ctx context.Context) (time.Time, error) {
	rec := &models.ShutdownRecord{}
	query := `SELECT id, recorded_at FROM finclass.shutdown_log ORDER BY id DESC LIMIT 1`
	err := r.db.QueryRowContext(ctx, query).Scan(&rec.ID, &rec.RecordedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read shutdown log: %w", err)
	}
	return rec.RecordedAt, nil
}

// RecordShutdown appends a shutdown record; the log is never pruned
func (r *Repository) RecordShutdown(ctx context.Context, at time.Time) error {
	query := `INSERT INTO finclass.shutdown_log (recorded_at) VALUES ($1)`
	if _, err := r.db.ExecContext(ctx, query, at); err != nil {
		return fmt.Errorf("failed to record shutdown: %w", err)
	}
	return nil
}

// CatchupStats aggregates catch-up history entries effective since the given moment
func (r *Repository) CatchupStats(ctx context.Context, since time.Time) (*models.CatchupStats, error) {
	stats := &models.CatchupStats{Since: since}
	query := `
		SELECT COUNT(*), COALESCE(SUM(amount), 0), COUNT(DISTINCT account_id)
		FROM finclass.transactions
		WHERE catchup AND effective_date >= $1`
	err := r.db.QueryRowContext(ctx, query, since).
		Scan(&stats.Count, &stats.TotalAmount, &stats.Accounts)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate catch-up stats: %w", err)
	}
	return stats, nil
}

func (r *Repository) loadHistory(ctx context.Context, account *models.Account) error {
	query := `
		SELECT id, account_id, amount, name, category, effective_date, catchup, created_at
		FROM finclass.transactions
		WHERE account_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, account.ID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Amount, &tx.Name, &tx.Category,
			&tx.EffectiveDate, &tx.Catchup, &tx.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan transaction: %w", err)
		}
		account.History = append(account.History, tx)
	}
	return rows.Err()
}

func (r *Repository) loadScheduled(ctx context.Context, account *models.Account) error {
	query := `
		SELECT id, account_id, kind, amount, name, category, recur_interval, creation_date, next_execution
		FROM finclass.scheduled_transactions
		WHERE account_id = $1
		ORDER BY creation_date`
	rows, err := r.db.QueryContext(ctx, query, account.ID)
	if err != nil {
		return fmt.Errorf("failed to load scheduled transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		tx := &models.ScheduledTransaction{}
		var next sql.NullTime
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Kind, &tx.Amount, &tx.Name,
			&tx.Category, &tx.Interval, &tx.CreationDate, &next); err != nil {
			return fmt.Errorf("failed to scan scheduled transaction: %w", err)
		}
		if next.Valid {
			due := next.Time
			tx.NextExecution = &due
		}
		if tx.Kind == models.KindBill {
			account.Bills = append(account.Bills, tx)
		} else {
			account.Payments = append(account.Payments, tx)
		}
	}
	return rows.Err()
}
