package services

import (
	"context"
	"time"

	"ev-marketplace/internal/domain"
	"ev-marketplace/pkg/logger"

	"github.com/google/uuid"
)

const defaultStoreTimeout = 3 * time.Second

type BidService struct {
	listingRepo  domain.ListingRepository
	bidRepo      domain.BidRepository
	ledger       domain.LedgerRepository
	publisher    domain.BalancePublisher
	broadcaster  domain.ListingBroadcaster
	locks        *ListingLocks
	storeTimeout time.Duration
	now          func() time.Time
	log          logger.Logger
}

func NewBidService(
	listingRepo domain.ListingRepository,
	bidRepo domain.BidRepository,
	ledger domain.LedgerRepository,
	publisher domain.BalancePublisher,
	broadcaster domain.ListingBroadcaster,
	locks *ListingLocks,
	storeTimeout time.Duration,
	log logger.Logger,
) *BidService {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &BidService{
		listingRepo:  listingRepo,
		bidRepo:      bidRepo,
		ledger:       ledger,
		publisher:    publisher,
		broadcaster:  broadcaster,
		locks:        locks,
		storeTimeout: storeTimeout,
		now:          time.Now,
		log:          log,
	}
}

// PlaceBid validates and admits a bid against an auction listing. On
// success the bid append and the bidder's fund reservation commit as one
// transaction; the updated balances are then published for replication.
func (s *BidService) PlaceBid(ctx context.Context, bidderID, listingID string, amount float64) (*domain.Bid, error) {
	s.log.Info("Placing bid", "listing_id", listingID, "bidder_id", bidderID, "amount", amount)

	// Bound every store call in the admission path; a hung store must
	// surface an error rather than block the caller.
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	listing, err := s.listingRepo.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, domain.NotFoundf("listing with id %s not found", listingID)
	}

	if listing.Kind != domain.ListingAuction {
		return nil, domain.InvalidOperationf("bids can only be placed on auction listings")
	}

	if listing.AuctionStart == nil || listing.AuctionEnd == nil {
		return nil, domain.InvalidOperationf("auction start time and end time are not set for this listing")
	}

	now := s.now()
	if now.Before(*listing.AuctionStart) {
		return nil, domain.InvalidOperationf("auction has not started yet, start time: %s",
			listing.AuctionStart.Format(time.RFC3339))
	}
	if now.After(*listing.AuctionEnd) {
		return nil, domain.InvalidOperationf("auction has ended, end time: %s",
			listing.AuctionEnd.Format(time.RFC3339))
	}

	if listing.BiddingIncrement == nil {
		return nil, domain.InvalidOperationf("bidding increment is not set for this listing")
	}

	// Serialize against other admissions on this listing. The highest-bid
	// read below must not go stale before the write commits.
	unlock := s.locks.Lock(listingID)
	defer unlock()

	// Settlement may have closed the listing while we waited for the lock.
	// A reservation taken against a settled listing would never be released.
	listing, err = s.listingRepo.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, domain.NotFoundf("listing with id %s not found", listingID)
	}
	if listing.Settled {
		return nil, domain.InvalidOperationf("auction has already been settled")
	}

	highest, err := s.bidRepo.GetHighestBid(ctx, listingID)
	if err != nil {
		return nil, err
	}

	floor := listing.Price
	if highest != nil && highest.Amount > floor {
		floor = highest.Amount
	}

	minimum := floor + *listing.BiddingIncrement
	if amount < minimum {
		return nil, domain.InvalidArgumentf(
			"bid amount must be at least %.2f, current highest bid: %.2f, bidding increment: %.2f",
			minimum, floor, *listing.BiddingIncrement)
	}

	bidder, err := s.ledger.GetUser(ctx, bidderID)
	if err != nil {
		return nil, err
	}
	if bidder == nil {
		return nil, domain.NotFoundf("user with id %s not found", bidderID)
	}

	if bidder.Available() < amount {
		return nil, domain.InvalidOperationf("insufficient balance, available: %.2f, required: %.2f",
			bidder.Available(), amount)
	}

	bid := &domain.Bid{
		ID:        uuid.New().String(),
		BidderID:  bidderID,
		ListingID: listingID,
		Amount:    amount,
		CreatedAt: now,
	}

	// A bidder's reservation per listing is their current top bid only:
	// whoever held the previous top bid gets that lock back in the same
	// transaction that admits the displacing bid.
	var release *domain.LockRelease
	if highest != nil {
		release = &domain.LockRelease{UserID: highest.BidderID, Amount: highest.Amount}
	}

	touched, err := s.ledger.AdmitBid(ctx, bid, release)
	if err != nil {
		return nil, err
	}

	// Side effects after commit. Neither may alter the admission result.
	publishBalanceUpdates(ctx, s.publisher, s.log, touched)
	s.broadcastBidAccepted(ctx, listing, bid)

	s.log.Info("Bid created successfully",
		"bid_id", bid.ID, "bidder_id", bidderID, "listing_id", listingID,
		"amount", amount)

	return bid, nil
}

func (s *BidService) ListBids(ctx context.Context, listingID string) ([]*domain.Bid, error) {
	listing, err := s.listingRepo.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, domain.NotFoundf("listing with id %s not found", listingID)
	}

	return s.bidRepo.GetBidsByListing(ctx, listingID)
}

// ListBidsByBidder returns the caller's bids across all listings.
func (s *BidService) ListBidsByBidder(ctx context.Context, bidderID string) ([]*domain.Bid, error) {
	return s.bidRepo.GetBidsByBidder(ctx, bidderID)
}

func (s *BidService) broadcastBidAccepted(ctx context.Context, listing *domain.Listing, bid *domain.Bid) {
	if s.broadcaster == nil {
		return
	}

	message := map[string]interface{}{
		"type":         "bid_accepted",
		"listing_id":   bid.ListingID,
		"bidder_id":    bid.BidderID,
		"amount":       bid.Amount,
		"minimum_next": bid.Amount + *listing.BiddingIncrement,
	}
	if err := s.broadcaster.BroadcastToListing(ctx, bid.ListingID, message); err != nil {
		s.log.Error("Failed to broadcast bid", "listing_id", bid.ListingID, "error", err)
	}
}
