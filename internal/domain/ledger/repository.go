package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// Repository provides the durable token ledger: per-account balances plus
// the append-only transaction log. Balance and log are always committed as
// a single database transaction; concurrent mutations on one account
// serialize on the account row lock.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureAccount lazily creates the account row
func (r *Repository) EnsureAccount(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO token_accounts (id, current_balance, lifetime_purchased, lifetime_spent)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (id) DO NOTHING
	`, accountID)
	return err
}

// GetAccount returns the account, creating it lazily
func (r *Repository) GetAccount(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := r.EnsureAccount(ctx2, accountID); err != nil {
		return nil, err
	}

	var acc Account
	err := r.db.GetContext(ctx2, &acc, `
		SELECT id, current_balance, lifetime_purchased, lifetime_spent, updated_at
		FROM token_accounts WHERE id = $1
	`, accountID)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// lockAccount creates the account row if missing and takes the row lock
func (r *Repository) lockAccount(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID) (*Account, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO token_accounts (id, current_balance, lifetime_purchased, lifetime_spent)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (id) DO NOTHING
	`, accountID); err != nil {
		return nil, err
	}

	var acc Account
	err := tx.GetContext(ctx, &acc, `
		SELECT id, current_balance, lifetime_purchased, lifetime_spent, updated_at
		FROM token_accounts WHERE id = $1 FOR UPDATE
	`, accountID)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *Repository) updateAccount(ctx context.Context, tx *sqlx.Tx, acc *Account) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE token_accounts
		SET current_balance = $2, lifetime_purchased = $3, lifetime_spent = $4, updated_at = now()
		WHERE id = $1
	`, acc.ID, acc.CurrentBalance, acc.LifetimePurchased, acc.LifetimeSpent)
	return err
}

func (r *Repository) insertTransaction(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO token_transactions (
			id, account_id, kind, status, amount, balance_before, balance_after,
			description, correlation_kind, payment_ref, campaign_id, ad_id, admin_id,
			created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, t.ID, t.AccountID, t.Kind, t.Status, t.Amount, t.BalanceBefore, t.BalanceAfter,
		t.Description, t.CorrelationKind, t.PaymentRef, t.CampaignID, t.AdID, t.AdminID,
		t.CreatedAt, t.CompletedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func newTransaction(accountID uuid.UUID, kind Kind, status Status, amount int64, description string, corr Correlation) *Transaction {
	t := &Transaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Kind:        kind,
		Status:      status,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	t.CorrelationKind = sql.NullString{String: string(corr.Kind), Valid: corr.Kind != ""}
	switch corr.Kind {
	case CorrelationPayment:
		t.PaymentRef = sql.NullString{String: corr.PaymentRef, Valid: true}
	case CorrelationCampaign:
		t.CampaignID = uuid.NullUUID{UUID: corr.CampaignID, Valid: true}
	case CorrelationAd:
		t.AdID = uuid.NullUUID{UUID: corr.AdID, Valid: true}
	case CorrelationAdmin:
		t.AdminID = uuid.NullUUID{UUID: corr.AdminID, Valid: true}
	}
	return t
}

// apply commits one balance mutation plus its transaction row atomically.
// delta is the signed amount: positive mutations raise lifetime_purchased,
// negative ones raise lifetime_spent, refunds lower lifetime_spent.
func (r *Repository) apply(ctx context.Context, accountID uuid.UUID, kind Kind, delta int64, description string, corr Correlation) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.beginTx(ctx2)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	acc, err := r.lockAccount(ctx2, tx, accountID)
	if err != nil {
		return nil, err
	}

	before := acc.CurrentBalance
	after := before + delta
	if after < 0 {
		return nil, ErrInsufficientBalance
	}

	switch kind {
	case KindPurchase:
		acc.LifetimePurchased += delta
	case KindSpend:
		acc.LifetimeSpent += -delta
	case KindRefund:
		acc.LifetimeSpent -= delta
	case KindAdjustment:
		if delta >= 0 {
			acc.LifetimePurchased += delta
		} else {
			acc.LifetimeSpent += -delta
		}
	}
	acc.CurrentBalance = after

	if err := r.updateAccount(ctx2, tx, acc); err != nil {
		return nil, err
	}

	t := newTransaction(accountID, kind, StatusCompleted, delta, description, corr)
	t.BalanceBefore = sql.NullInt64{Int64: before, Valid: true}
	t.BalanceAfter = sql.NullInt64{Int64: after, Valid: true}
	t.CompletedAt = sql.NullTime{Time: t.CreatedAt, Valid: true}

	if err := r.insertTransaction(ctx2, tx, t); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return t, nil
}

// Credit increases the balance and appends a completed purchase transaction
func (r *Repository) Credit(ctx context.Context, accountID uuid.UUID, amount int64, description string, corr Correlation) (*Transaction, error) {
	return r.apply(ctx, accountID, KindPurchase, amount, description, corr)
}

// Debit atomically checks balance >= amount and appends a spend transaction.
// Fails with ErrInsufficientBalance without side effects otherwise.
func (r *Repository) Debit(ctx context.Context, accountID uuid.UUID, amount int64, description string, corr Correlation) (*Transaction, error) {
	return r.apply(ctx, accountID, KindSpend, -amount, description, corr)
}

// Refund returns previously spent tokens to the balance
func (r *Repository) Refund(ctx context.Context, accountID uuid.UUID, amount int64, description string, corr Correlation) (*Transaction, error) {
	return r.apply(ctx, accountID, KindRefund, amount, description, corr)
}

// Adjust applies a signed admin adjustment
func (r *Repository) Adjust(ctx context.Context, accountID uuid.UUID, delta int64, description string, corr Correlation) (*Transaction, error) {
	return r.apply(ctx, accountID, KindAdjustment, delta, description, corr)
}

// RegisterPending creates the pending purchase transaction at checkout
// initiation, keyed by the unique external payment reference. The balance
// is not touched until the gateway confirms.
func (r *Repository) RegisterPending(ctx context.Context, accountID uuid.UUID, amount int64, externalRef, description string) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := r.EnsureAccount(ctx2, accountID); err != nil {
		return nil, err
	}

	tx, err := r.beginTx(ctx2)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	t := newTransaction(accountID, KindPurchase, StatusPending, amount, description, PaymentCorrelation(externalRef))
	if err := r.insertTransaction(ctx2, tx, t); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return t, nil
}

// ConfirmPending promotes the pending purchase identified by externalRef to
// completed and credits the balance, all in one database transaction. The
// conditional status transition is the exactly-once guard: if the row is
// already completed (or unknown) no rows match, the balance is untouched and
// ErrDuplicateEvent is returned.
func (r *Repository) ConfirmPending(ctx context.Context, externalRef string) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.beginTx(ctx2)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	var t Transaction
	err = tx.GetContext(ctx2, &t, `
		UPDATE token_transactions
		SET status = 'completed', completed_at = now()
		WHERE payment_ref = $1 AND kind = 'purchase' AND status = 'pending'
		RETURNING id, account_id, kind, status, amount, balance_before, balance_after,
		          description, correlation_kind, payment_ref, campaign_id, ad_id, admin_id,
		          created_at, completed_at
	`, externalRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDuplicateEvent
		}
		return nil, err
	}

	acc, err := r.lockAccount(ctx2, tx, t.AccountID)
	if err != nil {
		return nil, err
	}

	before := acc.CurrentBalance
	acc.CurrentBalance += t.Amount
	acc.LifetimePurchased += t.Amount
	if err := r.updateAccount(ctx2, tx, acc); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx2, `
		UPDATE token_transactions SET balance_before = $2, balance_after = $3 WHERE id = $1
	`, t.ID, before, acc.CurrentBalance); err != nil {
		return nil, err
	}
	t.BalanceBefore = sql.NullInt64{Int64: before, Valid: true}
	t.BalanceAfter = sql.NullInt64{Int64: acc.CurrentBalance, Valid: true}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return &t, nil
}

// FailPending moves the pending purchase to failed. No balance change.
// Duplicate or unknown references return ErrDuplicateEvent.
func (r *Repository) FailPending(ctx context.Context, externalRef string) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Transaction
	err := r.db.GetContext(ctx2, &t, `
		UPDATE token_transactions
		SET status = 'failed', completed_at = now()
		WHERE payment_ref = $1 AND kind = 'purchase' AND status = 'pending'
		RETURNING id, account_id, kind, status, amount, balance_before, balance_after,
		          description, correlation_kind, payment_ref, campaign_id, ad_id, admin_id,
		          created_at, completed_at
	`, externalRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDuplicateEvent
		}
		return nil, err
	}
	return &t, nil
}

// History returns completed and pending transactions, most recent first
func (r *Repository) History(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, account_id, kind, status, amount, balance_before, balance_after,
		       description, correlation_kind, payment_ref, campaign_id, ad_id, admin_id,
		       created_at, completed_at
		FROM token_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// DerivedBalance sums completed transaction amounts for an account. The
// transaction log is the source of truth; the cached balance must equal this.
func (r *Repository) DerivedBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var sum int64
	err := r.db.GetContext(ctx2, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM token_transactions
		WHERE account_id = $1 AND status = 'completed'
	`, accountID)
	return sum, err
}

// Reconcile re-derives the cached balance from the transaction log under the
// account row lock and repairs drift. Returns the drift that was corrected.
func (r *Repository) Reconcile(ctx context.Context, accountID uuid.UUID) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.beginTx(ctx2)
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	acc, err := r.lockAccount(ctx2, tx, accountID)
	if err != nil {
		return 0, err
	}

	var derived, purchased, spent int64
	err = tx.QueryRowContext(ctx2, `
		SELECT COALESCE(SUM(amount), 0),
		       COALESCE(SUM(amount) FILTER (WHERE amount > 0), 0),
		       COALESCE(-SUM(amount) FILTER (WHERE amount < 0), 0)
		FROM token_transactions
		WHERE account_id = $1 AND status = 'completed'
	`, accountID).Scan(&derived, &purchased, &spent)
	if err != nil {
		return 0, err
	}

	drift := derived - acc.CurrentBalance
	if drift == 0 {
		return 0, nil
	}

	acc.CurrentBalance = derived
	acc.LifetimePurchased = purchased
	acc.LifetimeSpent = spent
	if err := r.updateAccount(ctx2, tx, acc); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return drift, nil
}
