package domain

import (
	"time"
)

type User struct {
	ID            string
	Email         string
	Balance       float64
	LockedBalance float64
	// BalanceVersion increases on every committed ledger mutation and rides
	// along on published balance facts so replicas can reject stale updates.
	BalanceVersion int64
	CreatedAt      time.Time
}

// Available is the portion of the balance not reserved by open bids.
func (u *User) Available() float64 {
	return u.Balance - u.LockedBalance
}

type ListingKind int

const (
	ListingFixedPrice ListingKind = iota
	ListingAuction
)

func (k ListingKind) String() string {
	switch k {
	case ListingFixedPrice:
		return "fixed_price"
	case ListingAuction:
		return "auction"
	default:
		return "unknown"
	}
}

type Listing struct {
	ID          string
	SellerID    string
	Kind        ListingKind
	Title       string
	Description string
	Price       float64

	// Auction-only fields. Immutable once the auction has started.
	BiddingIncrement *float64
	AuctionStart     *time.Time
	AuctionEnd       *time.Time

	EndPrice  *float64
	Verified  bool
	Settled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bid is append-only; the current highest bid for a listing is the first
// row ordered by (amount desc, created_at desc).
type Bid struct {
	ID        string
	BidderID  string
	ListingID string
	Amount    float64
	CreatedAt time.Time
}

// LockRelease identifies funds to unlock for an outbid bidder in the same
// transaction that admits the bid displacing them.
type LockRelease struct {
	UserID string
	Amount float64
}
