package services

import (
	"context"

	"ev-marketplace/internal/domain"
	"ev-marketplace/pkg/logger"
)

// publishBalanceUpdates hands ledger snapshots to the change publisher.
// One attempt per user, best effort: a failed publish leaves the local
// ledger correct and the mirror stale until the user's next fact, and is
// never surfaced to the caller.
func publishBalanceUpdates(ctx context.Context, publisher domain.BalancePublisher, log logger.Logger, users []*domain.User) {
	if publisher == nil {
		return
	}

	for _, user := range users {
		fact := domain.NewBalanceFact(user)
		if err := publisher.PublishUserBalanceUpdated(ctx, fact); err != nil {
			log.Error("Failed to publish balance update",
				"user_id", user.ID, "version", user.BalanceVersion, "error", err)
			continue
		}

		log.Info("Balance update published",
			"user_id", user.ID, "balance", user.Balance,
			"locked_balance", user.LockedBalance, "version", user.BalanceVersion)
	}
}
