package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"ev-marketplace/internal/domain"
)

// MySQLLedgerRepository owns the user balance rows. Every mutation runs in
// a transaction that locks the touched user rows FOR UPDATE, in ascending
// ID order so two admissions touching the same pair of users cannot
// deadlock each other.
type MySQLLedgerRepository struct {
	db *sql.DB
}

func NewMySQLLedgerRepository(db *sql.DB) *MySQLLedgerRepository {
	return &MySQLLedgerRepository{db: db}
}

func (r *MySQLLedgerRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
        SELECT id, email, balance, locked_balance, balance_version, created_at
        FROM users WHERE id = ?
    `

	var user domain.User
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID, &user.Email, &user.Balance, &user.LockedBalance,
		&user.BalanceVersion, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *MySQLLedgerRepository) AdmitBid(ctx context.Context, bid *domain.Bid, release *domain.LockRelease) ([]*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin admit tx: %w", err)
	}
	defer tx.Rollback()

	lockIDs := []string{bid.BidderID}
	if release != nil && release.UserID != bid.BidderID {
		lockIDs = append(lockIDs, release.UserID)
	}
	sort.Strings(lockIDs)

	locked := make(map[string]*domain.User, len(lockIDs))
	for _, id := range lockIDs {
		user, err := lockUserRow(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = user
	}

	// Authoritative funds check under the row lock. A concurrent admission
	// on another listing may have reserved funds since the caller's read.
	bidder := locked[bid.BidderID]
	if bidder.Available() < bid.Amount {
		return nil, domain.InvalidOperationf(
			"insufficient balance: available %.2f, required %.2f",
			bidder.Available(), bid.Amount)
	}

	insertBid := `
        INSERT INTO bids (id, bidder_id, listing_id, amount, created_at)
        VALUES (?, ?, ?, ?, ?)
    `
	if _, err := tx.ExecContext(ctx, insertBid,
		bid.ID, bid.BidderID, bid.ListingID, bid.Amount, bid.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert bid: %w", err)
	}

	lockDelta := map[string]float64{bid.BidderID: bid.Amount}
	if release != nil {
		lockDelta[release.UserID] -= release.Amount
	}

	touched := make([]*domain.User, 0, len(lockIDs))
	for _, id := range []string{bid.BidderID, otherID(lockIDs, bid.BidderID)} {
		if id == "" {
			continue
		}
		user, err := applyLockDelta(ctx, tx, locked[id], lockDelta[id])
		if err != nil {
			return nil, err
		}
		touched = append(touched, user)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit admit tx: %w", err)
	}

	return touched, nil
}

func (r *MySQLLedgerRepository) SettleAuction(ctx context.Context, listingID string, winner *domain.Bid) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin settle tx: %w", err)
	}
	defer tx.Rollback()

	user, err := lockUserRow(ctx, tx, winner.BidderID)
	if err != nil {
		return nil, err
	}

	user.Balance -= winner.Amount
	user.LockedBalance -= winner.Amount
	user.BalanceVersion++

	updateUser := `
        UPDATE users SET balance = ?, locked_balance = ?, balance_version = ?
        WHERE id = ?
    `
	if _, err := tx.ExecContext(ctx, updateUser,
		user.Balance, user.LockedBalance, user.BalanceVersion, user.ID); err != nil {
		return nil, fmt.Errorf("settle winner: %w", err)
	}

	updateListing := `
        UPDATE listings SET settled = TRUE, end_price = ?, updated_at = ? WHERE id = ?
    `
	if _, err := tx.ExecContext(ctx, updateListing, winner.Amount, time.Now(), listingID); err != nil {
		return nil, fmt.Errorf("mark settled: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit settle tx: %w", err)
	}

	return user, nil
}

func lockUserRow(ctx context.Context, tx *sql.Tx, userID string) (*domain.User, error) {
	query := `
        SELECT id, email, balance, locked_balance, balance_version, created_at
        FROM users WHERE id = ? FOR UPDATE
    `

	var user domain.User
	err := tx.QueryRowContext(ctx, query, userID).Scan(
		&user.ID, &user.Email, &user.Balance, &user.LockedBalance,
		&user.BalanceVersion, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("user with id %s not found", userID)
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func applyLockDelta(ctx context.Context, tx *sql.Tx, user *domain.User, delta float64) (*domain.User, error) {
	user.LockedBalance += delta
	user.BalanceVersion++

	query := `UPDATE users SET locked_balance = ?, balance_version = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, query,
		user.LockedBalance, user.BalanceVersion, user.ID); err != nil {
		return nil, fmt.Errorf("update locked balance for %s: %w", user.ID, err)
	}

	return user, nil
}

func otherID(ids []string, bidderID string) string {
	for _, id := range ids {
		if id != bidderID {
			return id
		}
	}
	return ""
}
