package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists wallets, holds, topups, refunds and the append-only
// ledger in PostgreSQL. Every mutation runs in one transaction that locks the
// wallet row first, so concurrent operations on one wallet serialize while
// different wallets proceed independently.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed wallet engine.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const walletColumns = `id, tenant_id, currency, available_balance::text, reserved_balance::text,
	low_balance_threshold::text, auto_topup_enabled, auto_topup_amount::text, auto_topup_trigger::text,
	status, allow_negative, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (Wallet, error) {
	var (
		w                                 Wallet
		available, reserved, threshold    string
		autoTopupAmount, autoTopupTrigger string
	)
	if err := row.Scan(&w.ID, &w.TenantID, &w.Currency, &available, &reserved,
		&threshold, &w.AutoTopupEnabled, &autoTopupAmount, &autoTopupTrigger,
		&w.Status, &w.AllowNegative, &w.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	var err error
	if w.Available, err = decimal.NewFromString(available); err != nil {
		return Wallet{}, fmt.Errorf("parse available_balance: %w", err)
	}
	if w.Reserved, err = decimal.NewFromString(reserved); err != nil {
		return Wallet{}, fmt.Errorf("parse reserved_balance: %w", err)
	}
	if w.LowBalanceThreshold, err = decimal.NewFromString(threshold); err != nil {
		return Wallet{}, fmt.Errorf("parse low_balance_threshold: %w", err)
	}
	if w.AutoTopupAmount, err = decimal.NewFromString(autoTopupAmount); err != nil {
		return Wallet{}, fmt.Errorf("parse auto_topup_amount: %w", err)
	}
	if w.AutoTopupTrigger, err = decimal.NewFromString(autoTopupTrigger); err != nil {
		return Wallet{}, fmt.Errorf("parse auto_topup_trigger: %w", err)
	}
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}

func lockWallet(ctx context.Context, tx pgx.Tx, walletID string) (Wallet, error) {
	row := tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, walletID)
	return scanWallet(row)
}

func insertEntry(ctx context.Context, tx pgx.Tx, walletID, entryType string, amount, running decimal.Decimal, ref Reference, actorID string) (Entry, error) {
	e := Entry{
		ID:             uuid.NewString(),
		WalletID:       walletID,
		Type:           entryType,
		Amount:         amount,
		RunningBalance: running,
		ReferenceType:  ref.Type,
		ReferenceID:    ref.ID,
		ActorID:        actorID,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := tx.Exec(ctx, `INSERT INTO wallet_entries
		(id, wallet_id, entry_type, amount, running_balance, reference_type, reference_id, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.WalletID, e.Type, e.Amount.String(), e.RunningBalance.String(),
		e.ReferenceType, e.ReferenceID, e.ActorID, e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func setBalances(ctx context.Context, tx pgx.Tx, walletID string, available, reserved decimal.Decimal) error {
	_, err := tx.Exec(ctx, `UPDATE wallets SET available_balance = $2, reserved_balance = $3 WHERE id = $1`,
		walletID, available.String(), reserved.String())
	return err
}

// EnsureWallet lazily creates the wallet row for (tenant, currency).
func (s *PostgresStore) EnsureWallet(ctx context.Context, tenantID, currency string) (Wallet, error) {
	_, err := s.db.Exec(ctx, `INSERT INTO wallets (id, tenant_id, currency) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, currency) DO NOTHING`, uuid.NewString(), tenantID, currency)
	if err != nil {
		return Wallet{}, err
	}
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE tenant_id = $1 AND currency = $2`,
		tenantID, currency)
	return scanWallet(row)
}

// GetWallet fetches the wallet by identifier.
func (s *PostgresStore) GetWallet(ctx context.Context, walletID string) (Wallet, error) {
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletID)
	return scanWallet(row)
}

// UpdatePolicy replaces the owner-mutable settings under the wallet lock.
func (s *PostgresStore) UpdatePolicy(ctx context.Context, walletID string, policy Policy) (Wallet, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Wallet{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return Wallet{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE wallets SET low_balance_threshold = $2, auto_topup_enabled = $3,
		auto_topup_amount = $4, auto_topup_trigger = $5, allow_negative = $6 WHERE id = $1`,
		walletID, policy.LowBalanceThreshold.String(), policy.AutoTopupEnabled,
		policy.AutoTopupAmount.String(), policy.AutoTopupTrigger.String(), policy.AllowNegative); err != nil {
		return Wallet{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}

	w.LowBalanceThreshold = policy.LowBalanceThreshold
	w.AutoTopupEnabled = policy.AutoTopupEnabled
	w.AutoTopupAmount = policy.AutoTopupAmount
	w.AutoTopupTrigger = policy.AutoTopupTrigger
	w.AllowNegative = policy.AllowNegative
	return w, nil
}

// SetStatus freezes or reactivates the wallet.
func (s *PostgresStore) SetStatus(ctx context.Context, walletID, status string) (Wallet, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Wallet{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return Wallet{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE wallets SET status = $2 WHERE id = $1`, walletID, status); err != nil {
		return Wallet{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}
	w.Status = status
	return w, nil
}

// Charge debits available balance and appends the debit entry atomically.
func (s *PostgresStore) Charge(ctx context.Context, walletID string, amount decimal.Decimal, ref Reference, actorID string) (Entry, error) {
	if !validAmount(amount) {
		return Entry{}, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return Entry{}, err
	}
	if w.Status == StatusFrozen {
		return Entry{}, ErrWalletFrozen
	}
	if !w.AllowNegative && w.Effective().LessThan(amount) {
		return Entry{}, ErrInsufficientFunds
	}

	newAvailable := w.Available.Sub(amount)
	if err := setBalances(ctx, tx, walletID, newAvailable, w.Reserved); err != nil {
		return Entry{}, err
	}
	entry, err := insertEntry(ctx, tx, walletID, EntryDebit, amount.Neg(), newAvailable, ref, actorID)
	if err != nil {
		return Entry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Credit increases available balance; allowed on frozen wallets.
func (s *PostgresStore) Credit(ctx context.Context, walletID string, amount decimal.Decimal, entryType string, ref Reference, actorID string) (Entry, error) {
	if !validAmount(amount) {
		return Entry{}, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return Entry{}, err
	}

	newAvailable := w.Available.Add(amount)
	if err := setBalances(ctx, tx, walletID, newAvailable, w.Reserved); err != nil {
		return Entry{}, err
	}
	entry, err := insertEntry(ctx, tx, walletID, entryType, amount, newAvailable, ref, actorID)
	if err != nil {
		return Entry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

const holdColumns = `id, wallet_id, amount::text, reference_type, reference_id, idempotency_key, status, expires_at, created_at`

func scanHold(row rowScanner) (Hold, error) {
	var h Hold
	var amount string
	if err := row.Scan(&h.ID, &h.WalletID, &amount, &h.ReferenceType, &h.ReferenceID,
		&h.IdempotencyKey, &h.Status, &h.ExpiresAt, &h.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Hold{}, ErrHoldNotFound
		}
		return Hold{}, err
	}
	var err error
	if h.Amount, err = decimal.NewFromString(amount); err != nil {
		return Hold{}, fmt.Errorf("parse hold amount: %w", err)
	}
	h.ExpiresAt = h.ExpiresAt.UTC()
	h.CreatedAt = h.CreatedAt.UTC()
	return h, nil
}

// CreateHold reserves funds, idempotent on (wallet, idempotency key).
func (s *PostgresStore) CreateHold(ctx context.Context, walletID string, amount decimal.Decimal, ref Reference, idempotencyKey string, expiresAt time.Time) (Hold, error) {
	if !validAmount(amount) {
		return Hold{}, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Hold{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return Hold{}, err
	}

	existing, err := scanHold(tx.QueryRow(ctx, `SELECT `+holdColumns+` FROM wallet_holds
		WHERE wallet_id = $1 AND idempotency_key = $2`, walletID, idempotencyKey))
	if err == nil {
		if !existing.Amount.Equal(amount) || existing.ReferenceType != ref.Type || existing.ReferenceID != ref.ID {
			return Hold{}, ErrIdempotencyConflict
		}
		return existing, nil
	}
	if !errors.Is(err, ErrHoldNotFound) {
		return Hold{}, err
	}

	if w.Status == StatusFrozen {
		return Hold{}, ErrWalletFrozen
	}
	// Holds never honor allow_negative.
	if w.Effective().LessThan(amount) {
		return Hold{}, ErrInsufficientFunds
	}

	if err := setBalances(ctx, tx, walletID, w.Available, w.Reserved.Add(amount)); err != nil {
		return Hold{}, err
	}

	h := Hold{
		ID:             uuid.NewString(),
		WalletID:       walletID,
		Amount:         amount,
		ReferenceType:  ref.Type,
		ReferenceID:    ref.ID,
		IdempotencyKey: idempotencyKey,
		Status:         HoldActive,
		ExpiresAt:      expiresAt.UTC(),
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := tx.Exec(ctx, `INSERT INTO wallet_holds
		(id, wallet_id, amount, reference_type, reference_id, idempotency_key, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		h.ID, h.WalletID, h.Amount.String(), h.ReferenceType, h.ReferenceID,
		h.IdempotencyKey, h.Status, h.ExpiresAt, h.CreatedAt); err != nil {
		return Hold{}, err
	}
	if _, err := insertEntry(ctx, tx, walletID, EntryLock, decimal.Zero, w.Available, ref, ""); err != nil {
		return Hold{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Hold{}, err
	}
	return h, nil
}

// GetHold fetches a hold by identifier.
func (s *PostgresStore) GetHold(ctx context.Context, holdID string) (Hold, error) {
	return scanHold(s.db.QueryRow(ctx, `SELECT `+holdColumns+` FROM wallet_holds WHERE id = $1`, holdID))
}

// CaptureHold converts an active hold into a debit of exactly the held amount.
func (s *PostgresStore) CaptureHold(ctx context.Context, holdID, actorID string) (Entry, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	h, err := scanHold(tx.QueryRow(ctx, `SELECT `+holdColumns+` FROM wallet_holds WHERE id = $1 FOR UPDATE`, holdID))
	if err != nil {
		return Entry{}, err
	}
	if h.Status != HoldActive {
		return Entry{}, ErrHoldNotActive
	}

	w, err := lockWallet(ctx, tx, h.WalletID)
	if err != nil {
		return Entry{}, err
	}
	if w.Status == StatusFrozen {
		return Entry{}, ErrWalletFrozen
	}

	newAvailable := w.Available.Sub(h.Amount)
	if err := setBalances(ctx, tx, h.WalletID, newAvailable, w.Reserved.Sub(h.Amount)); err != nil {
		return Entry{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE wallet_holds SET status = $2 WHERE id = $1`, holdID, HoldCaptured); err != nil {
		return Entry{}, err
	}
	entry, err := insertEntry(ctx, tx, h.WalletID, EntryDebit, h.Amount.Neg(), newAvailable,
		Reference{Type: h.ReferenceType, ID: h.ReferenceID}, actorID)
	if err != nil {
		return Entry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *PostgresStore) releaseHold(ctx context.Context, holdID, terminal string) (Hold, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Hold{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	h, err := scanHold(tx.QueryRow(ctx, `SELECT `+holdColumns+` FROM wallet_holds WHERE id = $1 FOR UPDATE`, holdID))
	if err != nil {
		return Hold{}, err
	}
	if h.Status != HoldActive {
		return Hold{}, ErrHoldNotActive
	}

	w, err := lockWallet(ctx, tx, h.WalletID)
	if err != nil {
		return Hold{}, err
	}
	if err := setBalances(ctx, tx, h.WalletID, w.Available, w.Reserved.Sub(h.Amount)); err != nil {
		return Hold{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE wallet_holds SET status = $2 WHERE id = $1`, holdID, terminal); err != nil {
		return Hold{}, err
	}
	if _, err := insertEntry(ctx, tx, h.WalletID, EntryUnlock, decimal.Zero, w.Available,
		Reference{Type: h.ReferenceType, ID: h.ReferenceID}, ""); err != nil {
		return Hold{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Hold{}, err
	}
	h.Status = terminal
	return h, nil
}

// ReleaseHold returns reserved funds without spending them.
func (s *PostgresStore) ReleaseHold(ctx context.Context, holdID string) (Hold, error) {
	return s.releaseHold(ctx, holdID, HoldReleased)
}

// ExpireHolds releases every active hold past its expiry, one transaction per
// hold so a failure never blocks the rest; holds that slip through are picked
// up by the next sweep.
func (s *PostgresStore) ExpireHolds(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM wallet_holds WHERE status = $1 AND expires_at <= $2`,
		HoldActive, now.UTC())
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	expired := 0
	var errs error
	for _, id := range ids {
		if _, err := s.releaseHold(ctx, id, HoldExpired); err != nil {
			// A concurrent capture or release won the race; nothing to do.
			if errors.Is(err, ErrHoldNotActive) || errors.Is(err, ErrHoldNotFound) {
				continue
			}
			errs = errors.Join(errs, fmt.Errorf("expire hold %s: %w", id, err))
			continue
		}
		expired++
	}
	return expired, errs
}

// ActiveHolds lists the wallet's active holds.
func (s *PostgresStore) ActiveHolds(ctx context.Context, walletID string) ([]Hold, error) {
	rows, err := s.db.Query(ctx, `SELECT `+holdColumns+` FROM wallet_holds
		WHERE wallet_id = $1 AND status = $2 ORDER BY created_at`, walletID, HoldActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

const topupColumns = `id, wallet_id, amount::text, currency, status, payment_gateway, payment_reference,
	checkout_url, idempotency_key, failure_reason, confirmed_at, failed_at, created_at`

func scanTopup(row rowScanner) (Topup, error) {
	var t Topup
	var amount string
	var confirmedAt, failedAt *time.Time
	if err := row.Scan(&t.ID, &t.WalletID, &amount, &t.Currency, &t.Status, &t.Gateway,
		&t.PaymentReference, &t.CheckoutURL, &t.IdempotencyKey, &t.FailureReason,
		&confirmedAt, &failedAt, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Topup{}, ErrTopupNotFound
		}
		return Topup{}, err
	}
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return Topup{}, fmt.Errorf("parse topup amount: %w", err)
	}
	if confirmedAt != nil {
		t.ConfirmedAt = confirmedAt.UTC()
	}
	if failedAt != nil {
		t.FailedAt = failedAt.UTC()
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

// CreateTopup records a pending topup, idempotent on (wallet, key).
func (s *PostgresStore) CreateTopup(ctx context.Context, t Topup) (Topup, error) {
	if !validAmount(t.Amount) {
		return Topup{}, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Topup{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := lockWallet(ctx, tx, t.WalletID); err != nil {
		return Topup{}, err
	}

	existing, err := scanTopup(tx.QueryRow(ctx, `SELECT `+topupColumns+` FROM wallet_topups
		WHERE wallet_id = $1 AND idempotency_key = $2`, t.WalletID, t.IdempotencyKey))
	if err == nil {
		if !existing.Amount.Equal(t.Amount) || existing.Gateway != t.Gateway {
			return Topup{}, ErrIdempotencyConflict
		}
		return existing, nil
	}
	if !errors.Is(err, ErrTopupNotFound) {
		return Topup{}, err
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Status = TopupPending
	t.CreatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx, `INSERT INTO wallet_topups
		(id, wallet_id, amount, currency, status, payment_gateway, payment_reference, checkout_url, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.WalletID, t.Amount.String(), t.Currency, t.Status, t.Gateway,
		t.PaymentReference, t.CheckoutURL, t.IdempotencyKey, t.CreatedAt); err != nil {
		return Topup{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Topup{}, err
	}
	return t, nil
}

// GetTopup fetches a topup by identifier.
func (s *PostgresStore) GetTopup(ctx context.Context, topupID string) (Topup, error) {
	return scanTopup(s.db.QueryRow(ctx, `SELECT `+topupColumns+` FROM wallet_topups WHERE id = $1`, topupID))
}

// ConfirmTopup moves a pending topup to success and credits the wallet in the
// same transaction. Confirming an already successful topup returns the
// original entry without re-crediting.
func (s *PostgresStore) ConfirmTopup(ctx context.Context, topupID, paymentReference, actorID string) (Topup, Entry, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Topup{}, Entry{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	t, err := scanTopup(tx.QueryRow(ctx, `SELECT `+topupColumns+` FROM wallet_topups WHERE id = $1 FOR UPDATE`, topupID))
	if err != nil {
		return Topup{}, Entry{}, err
	}
	switch t.Status {
	case TopupPending:
	case TopupSuccess:
		entry, err := s.entryForTopup(ctx, t)
		if err != nil {
			return Topup{}, Entry{}, err
		}
		return t, entry, nil
	default:
		return Topup{}, Entry{}, ErrTopupNotPending
	}

	w, err := lockWallet(ctx, tx, t.WalletID)
	if err != nil {
		return Topup{}, Entry{}, err
	}

	newAvailable := w.Available.Add(t.Amount)
	if err := setBalances(ctx, tx, t.WalletID, newAvailable, w.Reserved); err != nil {
		return Topup{}, Entry{}, err
	}

	t.Status = TopupSuccess
	if paymentReference != "" {
		t.PaymentReference = paymentReference
	}
	t.ConfirmedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE wallet_topups SET status = $2, payment_reference = $3, confirmed_at = $4 WHERE id = $1`,
		topupID, t.Status, t.PaymentReference, t.ConfirmedAt); err != nil {
		return Topup{}, Entry{}, err
	}
	entry, err := insertEntry(ctx, tx, t.WalletID, EntryTopup, t.Amount, newAvailable,
		Reference{Type: EntryTopup, ID: t.ID}, actorID)
	if err != nil {
		return Topup{}, Entry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Topup{}, Entry{}, err
	}
	return t, entry, nil
}

func (s *PostgresStore) entryForTopup(ctx context.Context, t Topup) (Entry, error) {
	row := s.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM wallet_entries
		WHERE wallet_id = $1 AND entry_type = $2 AND reference_id = $3`, t.WalletID, EntryTopup, t.ID)
	return scanEntry(row)
}

// FailTopup moves a pending topup to failed; failing twice is a no-op.
func (s *PostgresStore) FailTopup(ctx context.Context, topupID, reason string) (Topup, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Topup{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	t, err := scanTopup(tx.QueryRow(ctx, `SELECT `+topupColumns+` FROM wallet_topups WHERE id = $1 FOR UPDATE`, topupID))
	if err != nil {
		return Topup{}, err
	}
	switch t.Status {
	case TopupPending:
	case TopupFailed:
		return t, nil
	default:
		return Topup{}, ErrTopupNotPending
	}

	t.Status = TopupFailed
	t.FailureReason = reason
	t.FailedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE wallet_topups SET status = $2, failure_reason = $3, failed_at = $4 WHERE id = $1`,
		topupID, t.Status, t.FailureReason, t.FailedAt); err != nil {
		return Topup{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Topup{}, err
	}
	return t, nil
}

// ExpirePendingTopups marks stale pending topups as expired.
func (s *PostgresStore) ExpirePendingTopups(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `UPDATE wallet_topups SET status = $1 WHERE status = $2 AND created_at < $3`,
		TopupExpired, TopupPending, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// TopupsSettledOn lists topups that reached a reconciled terminal state on
// the given day for one gateway.
func (s *PostgresStore) TopupsSettledOn(ctx context.Context, gateway string, day time.Time) ([]Topup, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	rows, err := s.db.Query(ctx, `SELECT `+topupColumns+` FROM wallet_topups
		WHERE payment_gateway = $1
		AND ((status = $2 AND confirmed_at >= $4 AND confirmed_at < $5)
		  OR (status = $3 AND failed_at >= $4 AND failed_at < $5))
		ORDER BY created_at`, gateway, TopupSuccess, TopupFailed, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topups []Topup
	for rows.Next() {
		t, err := scanTopup(rows)
		if err != nil {
			return nil, err
		}
		topups = append(topups, t)
	}
	return topups, rows.Err()
}

// Refund credits back part of a prior charge. The cumulative refunded amount
// against one reference may never exceed the charged amount.
func (s *PostgresStore) Refund(ctx context.Context, walletID string, amount decimal.Decimal, ref Reference, reason, idempotencyKey, actorID string) (Entry, error) {
	if !validAmount(amount) {
		return Entry{}, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return Entry{}, err
	}

	var existingAmount, existingRefType, existingRefID, existingEntryID string
	err = tx.QueryRow(ctx, `SELECT amount::text, reference_type, reference_id, entry_id FROM wallet_refunds
		WHERE wallet_id = $1 AND idempotency_key = $2`, walletID, idempotencyKey).
		Scan(&existingAmount, &existingRefType, &existingRefID, &existingEntryID)
	if err == nil {
		prior, perr := decimal.NewFromString(existingAmount)
		if perr != nil {
			return Entry{}, fmt.Errorf("parse refund amount: %w", perr)
		}
		if !prior.Equal(amount) || existingRefType != ref.Type || existingRefID != ref.ID {
			return Entry{}, ErrIdempotencyConflict
		}
		return scanEntry(tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM wallet_entries WHERE id = $1`, existingEntryID))
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, err
	}

	var chargedCount int
	var chargedStr, refundedStr string
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FILTER (WHERE entry_type = $4),
			COALESCE(SUM(-amount) FILTER (WHERE entry_type = $4), 0)::text,
			COALESCE(SUM(amount) FILTER (WHERE entry_type = $5), 0)::text
		FROM wallet_entries WHERE wallet_id = $1 AND reference_type = $2 AND reference_id = $3`,
		walletID, ref.Type, ref.ID, EntryDebit, EntryRefund).
		Scan(&chargedCount, &chargedStr, &refundedStr); err != nil {
		return Entry{}, err
	}
	if chargedCount == 0 {
		return Entry{}, ErrChargeNotFound
	}
	charged, err := decimal.NewFromString(chargedStr)
	if err != nil {
		return Entry{}, fmt.Errorf("parse charged total: %w", err)
	}
	refunded, err := decimal.NewFromString(refundedStr)
	if err != nil {
		return Entry{}, fmt.Errorf("parse refunded total: %w", err)
	}
	if refunded.Add(amount).GreaterThan(charged) {
		return Entry{}, ErrRefundExceedsOriginal
	}

	newAvailable := w.Available.Add(amount)
	if err := setBalances(ctx, tx, walletID, newAvailable, w.Reserved); err != nil {
		return Entry{}, err
	}
	entry, err := insertEntry(ctx, tx, walletID, EntryRefund, amount, newAvailable, ref, actorID)
	if err != nil {
		return Entry{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO wallet_refunds
		(id, wallet_id, amount, reference_type, reference_id, entry_id, reason, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.NewString(), walletID, amount.String(), ref.Type, ref.ID, entry.ID, reason,
		idempotencyKey, time.Now().UTC()); err != nil {
		return Entry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

const entryColumns = `id, wallet_id, entry_type, amount::text, running_balance::text,
	reference_type, reference_id, actor_id, created_at`

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var amount, running string
	if err := row.Scan(&e.ID, &e.WalletID, &e.Type, &amount, &running,
		&e.ReferenceType, &e.ReferenceID, &e.ActorID, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("ledger entry not found")
		}
		return Entry{}, err
	}
	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return Entry{}, fmt.Errorf("parse entry amount: %w", err)
	}
	if e.RunningBalance, err = decimal.NewFromString(running); err != nil {
		return Entry{}, fmt.Errorf("parse running balance: %w", err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

// Entries pages through the ledger in creation order.
func (s *PostgresStore) Entries(ctx context.Context, walletID string, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `SELECT `+entryColumns+` FROM wallet_entries
		WHERE wallet_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`, walletID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
