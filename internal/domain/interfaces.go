package domain

import (
	"context"
	"time"
)

// Repository interfaces
type ListingRepository interface {
	CreateListing(ctx context.Context, listing *Listing) error
	// GetListing returns (nil, nil) when the listing does not exist.
	GetListing(ctx context.Context, listingID string) (*Listing, error)
	ListListings(ctx context.Context) ([]*Listing, error)
	// GetEndedUnsettled returns auction listings whose end time has passed
	// and which have not yet been settled.
	GetEndedUnsettled(ctx context.Context, now time.Time) ([]*Listing, error)
	MarkSettled(ctx context.Context, listingID string, endPrice *float64) error
}

type BidRepository interface {
	// GetHighestBid returns (nil, nil) when the listing has no bids.
	GetHighestBid(ctx context.Context, listingID string) (*Bid, error)
	GetBidsByListing(ctx context.Context, listingID string) ([]*Bid, error)
	GetBidsByBidder(ctx context.Context, bidderID string) ([]*Bid, error)
}

// LedgerRepository owns the user balance rows and every transactional unit
// that touches them. Multi-row operations lock user rows in a stable order
// and re-check funds under the lock.
type LedgerRepository interface {
	// GetUser returns (nil, nil) when the user does not exist.
	GetUser(ctx context.Context, userID string) (*User, error)

	// AdmitBid appends the bid and reserves its amount from the bidder's
	// balance as one transaction, optionally releasing an outbid lock.
	// It fails with an insufficient-funds error if the bidder's available
	// balance no longer covers the amount at commit time. The returned
	// snapshots (bidder first) reflect committed post-transaction state.
	AdmitBid(ctx context.Context, bid *Bid, release *LockRelease) ([]*User, error)

	// SettleAuction debits the winning bidder, releases their reservation,
	// and marks the listing settled in one transaction.
	SettleAuction(ctx context.Context, listingID string, winner *Bid) (*User, error)
}

// Event interfaces
type BalancePublisher interface {
	PublishUserBalanceUpdated(ctx context.Context, fact *UserBalanceUpdated) error
}

// MirrorStore is the balance-sync service's local replica of user rows.
type MirrorStore interface {
	// ApplyBalanceFact overwrites the local row with the fact's values
	// unless the user is unknown or the fact's version is not newer.
	ApplyBalanceFact(ctx context.Context, fact *UserBalanceUpdated) (ApplyResult, error)
}

type ApplyResult int

const (
	ApplyOK ApplyResult = iota
	ApplyUserMissing
	ApplyStale
)

// Notification interfaces
type ListingBroadcaster interface {
	BroadcastToListing(ctx context.Context, listingID string, message interface{}) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	ListingID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, listingID string, conn WebSocketConnection) error
	UnregisterConnection(userID, listingID string) error
	BroadcastToListing(listingID string, message interface{}) error
	CloseAndUnregisterConnections(listingID string) error
}
