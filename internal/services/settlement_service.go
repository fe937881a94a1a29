package services

import (
	"context"
	"fmt"
	"time"

	"ev-marketplace/internal/domain"
	"ev-marketplace/pkg/logger"

	"github.com/robfig/cron/v3"
)

// SettlementService closes ended auctions: the winner's reserved funds are
// deducted and unlocked, and the listing is marked settled. Losing bidders
// hold no reservation by then (released when they were outbid), so there
// is nothing to unwind for them. Runs on the leader instance only.
type SettlementService struct {
	listingRepo domain.ListingRepository
	bidRepo     domain.BidRepository
	ledger      domain.LedgerRepository
	publisher   domain.BalancePublisher
	broadcaster domain.ListingBroadcaster
	connections domain.ConnectionManager
	leader      domain.LeaderElection
	locks       *ListingLocks
	cron        *cron.Cron
	interval    time.Duration
	instanceID  string
	log         logger.Logger
}

func NewSettlementService(
	listingRepo domain.ListingRepository,
	bidRepo domain.BidRepository,
	ledger domain.LedgerRepository,
	publisher domain.BalancePublisher,
	broadcaster domain.ListingBroadcaster,
	connections domain.ConnectionManager,
	leader domain.LeaderElection,
	locks *ListingLocks,
	interval time.Duration,
	instanceID string,
	log logger.Logger,
) *SettlementService {
	return &SettlementService{
		listingRepo: listingRepo,
		bidRepo:     bidRepo,
		ledger:      ledger,
		publisher:   publisher,
		broadcaster: broadcaster,
		connections: connections,
		leader:      leader,
		locks:       locks,
		cron:        cron.New(cron.WithSeconds()),
		interval:    interval,
		instanceID:  instanceID,
		log:         log,
	}
}

func (s *SettlementService) Start(ctx context.Context) error {
	s.log.Info("Starting settlement scheduler", "interval", s.interval.String())

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.settleEndedAuctions(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *SettlementService) Stop() error {
	s.log.Info("Stopping settlement scheduler")
	s.cron.Stop()
	return nil
}

func (s *SettlementService) settleEndedAuctions(ctx context.Context) {
	isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil || !isLeader {
		return
	}

	listings, err := s.listingRepo.GetEndedUnsettled(ctx, time.Now())
	if err != nil {
		s.log.Error("Failed to load ended auctions", "error", err)
		return
	}

	for _, listing := range listings {
		if err := s.SettleListing(ctx, listing); err != nil {
			s.log.Error("Failed to settle auction", "listing_id", listing.ID, "error", err)
			// Left unsettled, picked up on the next tick
		}
	}
}

func (s *SettlementService) SettleListing(ctx context.Context, listing *domain.Listing) error {
	unlock := s.locks.Lock(listing.ID)
	defer unlock()

	winner, err := s.bidRepo.GetHighestBid(ctx, listing.ID)
	if err != nil {
		return err
	}

	if winner == nil {
		if err := s.listingRepo.MarkSettled(ctx, listing.ID, nil); err != nil {
			return err
		}
		s.closeWatchers(listing.ID)
		s.log.Info("Auction settled without bids", "listing_id", listing.ID)
		return nil
	}

	user, err := s.ledger.SettleAuction(ctx, listing.ID, winner)
	if err != nil {
		return err
	}

	publishBalanceUpdates(ctx, s.publisher, s.log, []*domain.User{user})

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToListing(ctx, listing.ID, map[string]interface{}{
			"type":       "auction_ended",
			"listing_id": listing.ID,
			"winner_id":  winner.BidderID,
			"end_price":  winner.Amount,
		})
	}
	s.closeWatchers(listing.ID)

	s.log.Info("Auction settled",
		"listing_id", listing.ID, "winner_id", winner.BidderID, "end_price", winner.Amount)
	return nil
}

// closeWatchers drops the listing's live feed connections once the
// auction_ended message has gone out. The upgrade handler already rejects
// new watchers on ended auctions.
func (s *SettlementService) closeWatchers(listingID string) {
	if s.connections == nil {
		return
	}
	if err := s.connections.CloseAndUnregisterConnections(listingID); err != nil {
		s.log.Error("Failed to close listing connections", "listing_id", listingID, "error", err)
	}
}
