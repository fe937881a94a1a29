package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"ev-marketplace/internal/domain"
)

// In-memory counterparts of the MySQL repositories. The ledger fake keeps
// the same transactional semantics as the real one: funds are re-checked
// under its lock, and the bid append plus lock movements commit together.

type fakeListingRepo struct {
	mu       sync.Mutex
	listings map[string]*domain.Listing
	err      error
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{listings: make(map[string]*domain.Listing)}
}

func (r *fakeListingRepo) CreateListing(ctx context.Context, listing *domain.Listing) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[listing.ID] = listing
	return nil
}

func (r *fakeListingRepo) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listings[listingID], nil
}

func (r *fakeListingRepo) ListListings(ctx context.Context) ([]*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Listing, 0, len(r.listings))
	for _, l := range r.listings {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeListingRepo) GetEndedUnsettled(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Listing
	for _, l := range r.listings {
		if l.Kind == domain.ListingAuction && !l.Settled &&
			l.AuctionEnd != nil && l.AuctionEnd.Before(now) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeListingRepo) MarkSettled(ctx context.Context, listingID string, endPrice *float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[listingID]
	if !ok {
		return domain.NotFoundf("listing with id %s not found", listingID)
	}
	l.Settled = true
	l.EndPrice = endPrice
	return nil
}

type fakeBidRepo struct {
	mu   sync.Mutex
	bids []*domain.Bid
	err  error
}

func newFakeBidRepo() *fakeBidRepo {
	return &fakeBidRepo{}
}

func (r *fakeBidRepo) append(bid *domain.Bid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids = append(r.bids, bid)
}

func (r *fakeBidRepo) GetHighestBid(ctx context.Context, listingID string) (*domain.Bid, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var highest *domain.Bid
	for _, b := range r.bids {
		if b.ListingID != listingID {
			continue
		}
		if highest == nil || b.Amount > highest.Amount ||
			(b.Amount == highest.Amount && b.CreatedAt.After(highest.CreatedAt)) {
			highest = b
		}
	}
	return highest, nil
}

func (r *fakeBidRepo) GetBidsByListing(ctx context.Context, listingID string) ([]*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Bid
	for _, b := range r.bids {
		if b.ListingID == listingID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeBidRepo) GetBidsByBidder(ctx context.Context, bidderID string) ([]*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Bid
	for _, b := range r.bids {
		if b.BidderID == bidderID {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeLedger struct {
	mu          sync.Mutex
	users       map[string]*domain.User
	bidRepo     *fakeBidRepo
	listingRepo *fakeListingRepo
	admitErr    error
}

func newFakeLedger(bidRepo *fakeBidRepo, listingRepo *fakeListingRepo) *fakeLedger {
	return &fakeLedger{
		users:       make(map[string]*domain.User),
		bidRepo:     bidRepo,
		listingRepo: listingRepo,
	}
}

func (l *fakeLedger) addUser(u *domain.User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[u.ID] = u
}

func (l *fakeLedger) user(id string) *domain.User {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.users[id]
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (l *fakeLedger) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u := l.user(userID)
	if u == nil {
		return nil, nil
	}
	return u, nil
}

func (l *fakeLedger) AdmitBid(ctx context.Context, bid *domain.Bid, release *domain.LockRelease) ([]*domain.User, error) {
	if l.admitErr != nil {
		return nil, l.admitErr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bidder, ok := l.users[bid.BidderID]
	if !ok {
		return nil, domain.NotFoundf("user with id %s not found", bid.BidderID)
	}

	// Funds re-check under the lock, as the real transaction does.
	if bidder.Available() < bid.Amount {
		return nil, domain.InvalidOperationf("insufficient balance, available: %.2f, required: %.2f",
			bidder.Available(), bid.Amount)
	}

	delta := map[string]float64{bid.BidderID: bid.Amount}
	if release != nil {
		delta[release.UserID] -= release.Amount
	}

	l.bidRepo.append(bid)

	touched := []*domain.User{}
	for id, d := range delta {
		u, ok := l.users[id]
		if !ok {
			return nil, domain.NotFoundf("user with id %s not found", id)
		}
		u.LockedBalance += d
		u.BalanceVersion++
		clone := *u
		if id == bid.BidderID {
			touched = append([]*domain.User{&clone}, touched...)
		} else {
			touched = append(touched, &clone)
		}
	}
	return touched, nil
}

func (l *fakeLedger) SettleAuction(ctx context.Context, listingID string, winner *domain.Bid) (*domain.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[winner.BidderID]
	if !ok {
		return nil, domain.NotFoundf("user with id %s not found", winner.BidderID)
	}

	u.Balance -= winner.Amount
	u.LockedBalance -= winner.Amount
	u.BalanceVersion++

	endPrice := winner.Amount
	if err := l.listingRepo.MarkSettled(ctx, listingID, &endPrice); err != nil {
		return nil, err
	}

	clone := *u
	return &clone, nil
}

type fakePublisher struct {
	mu    sync.Mutex
	facts []*domain.UserBalanceUpdated
	err   error
}

func (p *fakePublisher) PublishUserBalanceUpdated(ctx context.Context, fact *domain.UserBalanceUpdated) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.facts = append(p.facts, fact)
	return nil
}

func (p *fakePublisher) published() []*domain.UserBalanceUpdated {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.UserBalanceUpdated{}, p.facts...)
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []interface{}
}

func (b *fakeBroadcaster) BroadcastToListing(ctx context.Context, listingID string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, message)
	return nil
}

type fakeConnManager struct {
	mu     sync.Mutex
	closed []string
}

func (m *fakeConnManager) RegisterConnection(userID, listingID string, conn domain.WebSocketConnection) error {
	return nil
}

func (m *fakeConnManager) UnregisterConnection(userID, listingID string) error {
	return nil
}

func (m *fakeConnManager) BroadcastToListing(listingID string, message interface{}) error {
	return nil
}

func (m *fakeConnManager) CloseAndUnregisterConnections(listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, listingID)
	return nil
}

type fakeLeader struct {
	leader bool
}

func (f *fakeLeader) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	return f.leader, nil
}

func (f *fakeLeader) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	return f.leader, nil
}

func (f *fakeLeader) ReleaseLeadership(ctx context.Context, instanceID string) error {
	f.leader = false
	return nil
}

type fakeMirrorStore struct {
	mu    sync.Mutex
	users map[string]*domain.UserBalanceUpdated
	err   error
}

func newFakeMirrorStore() *fakeMirrorStore {
	return &fakeMirrorStore{users: make(map[string]*domain.UserBalanceUpdated)}
}

func (s *fakeMirrorStore) seed(userID string, balance, locked float64, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = &domain.UserBalanceUpdated{
		UserID: userID, Balance: balance, LockedBalance: locked, Version: version,
	}
}

func (s *fakeMirrorStore) ApplyBalanceFact(ctx context.Context, fact *domain.UserBalanceUpdated) (domain.ApplyResult, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[fact.UserID]
	if !ok {
		return domain.ApplyUserMissing, nil
	}
	if fact.Version <= current.Version {
		return domain.ApplyStale, nil
	}
	s.users[fact.UserID] = fact
	return domain.ApplyOK, nil
}

func (s *fakeMirrorStore) row(userID string) *domain.UserBalanceUpdated {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID]
}
