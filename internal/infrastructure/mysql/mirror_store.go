package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"ev-marketplace/internal/domain"
)

// MySQLMirrorStore is the balance-sync service's replica of user ledger
// rows. Writes are absolute overwrites guarded by the fact's version, so
// redelivered and reordered facts cannot regress the replica.
type MySQLMirrorStore struct {
	db *sql.DB
}

func NewMySQLMirrorStore(db *sql.DB) *MySQLMirrorStore {
	return &MySQLMirrorStore{db: db}
}

func (s *MySQLMirrorStore) ApplyBalanceFact(ctx context.Context, fact *domain.UserBalanceUpdated) (domain.ApplyResult, error) {
	query := `
        UPDATE users
        SET balance = ?, locked_balance = ?, balance_version = ?
        WHERE id = ? AND balance_version < ?
    `

	res, err := s.db.ExecContext(ctx, query,
		fact.Balance, fact.LockedBalance, fact.Version, fact.UserID, fact.Version)
	if err != nil {
		return 0, fmt.Errorf("apply balance fact for %s: %w", fact.UserID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		return domain.ApplyOK, nil
	}

	// No row updated: either the user is unknown here or the fact is stale.
	var stored int64
	err = s.db.QueryRowContext(ctx, `SELECT balance_version FROM users WHERE id = ?`, fact.UserID).Scan(&stored)
	if err == sql.ErrNoRows {
		return domain.ApplyUserMissing, nil
	}
	if err != nil {
		return 0, fmt.Errorf("check mirror user %s: %w", fact.UserID, err)
	}

	return domain.ApplyStale, nil
}
