package services

import (
	"context"
	"encoding/json"

	"ev-marketplace/internal/domain"
	"ev-marketplace/pkg/logger"
)

// BalanceSyncService applies published balance facts to this service's
// replica of the user ledger. Facts are absolute overwrites, so applying
// the same fact twice is safe; older facts are dropped by version.
type BalanceSyncService struct {
	store domain.MirrorStore
	log   logger.Logger
}

func NewBalanceSyncService(store domain.MirrorStore, log logger.Logger) *BalanceSyncService {
	return &BalanceSyncService{
		store: store,
		log:   log,
	}
}

func (s *BalanceSyncService) HandleMessage(ctx context.Context, body []byte) domain.SyncDecision {
	var fact domain.UserBalanceUpdated
	if err := json.Unmarshal(body, &fact); err != nil {
		s.log.Error("Malformed balance fact", "error", err)
		return domain.SyncDeadLetter
	}
	if fact.UserID == "" {
		s.log.Error("Balance fact missing user id", "body", string(body))
		return domain.SyncDeadLetter
	}

	result, err := s.store.ApplyBalanceFact(ctx, &fact)
	if err != nil {
		s.log.Error("Failed to sync balance", "user_id", fact.UserID, "error", err)
		return domain.SyncRequeue
	}

	switch result {
	case domain.ApplyUserMissing:
		// This replica never provisions users; drop without requeue.
		s.log.Warn("User not found for balance sync", "user_id", fact.UserID)
		return domain.SyncAck

	case domain.ApplyStale:
		s.log.Info("Dropping stale balance fact",
			"user_id", fact.UserID, "version", fact.Version)
		return domain.SyncAck
	}

	s.log.Info("Balance synced successfully",
		"user_id", fact.UserID, "balance", fact.Balance,
		"locked_balance", fact.LockedBalance, "version", fact.Version)
	return domain.SyncAck
}
