package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ev-marketplace/internal/domain"
	"ev-marketplace/internal/services"
	"ev-marketplace/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubListingRepo struct {
	listing *domain.Listing
}

func (r *stubListingRepo) CreateListing(ctx context.Context, listing *domain.Listing) error {
	return nil
}

func (r *stubListingRepo) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	if r.listing != nil && r.listing.ID == listingID {
		return r.listing, nil
	}
	return nil, nil
}

func (r *stubListingRepo) ListListings(ctx context.Context) ([]*domain.Listing, error) {
	return nil, nil
}

func (r *stubListingRepo) GetEndedUnsettled(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	return nil, nil
}

func (r *stubListingRepo) MarkSettled(ctx context.Context, listingID string, endPrice *float64) error {
	return nil
}

type stubBidRepo struct {
	bids []*domain.Bid
}

func (r *stubBidRepo) GetHighestBid(ctx context.Context, listingID string) (*domain.Bid, error) {
	return nil, nil
}

func (r *stubBidRepo) GetBidsByListing(ctx context.Context, listingID string) ([]*domain.Bid, error) {
	return r.bids, nil
}

func (r *stubBidRepo) GetBidsByBidder(ctx context.Context, bidderID string) ([]*domain.Bid, error) {
	var out []*domain.Bid
	for _, b := range r.bids {
		if b.BidderID == bidderID {
			out = append(out, b)
		}
	}
	return out, nil
}

type stubLedger struct {
	user *domain.User
}

func (l *stubLedger) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if l.user != nil && l.user.ID == userID {
		return l.user, nil
	}
	return nil, nil
}

func (l *stubLedger) AdmitBid(ctx context.Context, bid *domain.Bid, release *domain.LockRelease) ([]*domain.User, error) {
	l.user.LockedBalance += bid.Amount
	l.user.BalanceVersion++
	return []*domain.User{l.user}, nil
}

func (l *stubLedger) SettleAuction(ctx context.Context, listingID string, winner *domain.Bid) (*domain.User, error) {
	return l.user, nil
}

func newTestBidHandler(listing *domain.Listing, user *domain.User) *BidHandler {
	return newTestBidHandlerWithBids(listing, user, nil)
}

func newTestBidHandlerWithBids(listing *domain.Listing, user *domain.User, bids []*domain.Bid) *BidHandler {
	svc := services.NewBidService(
		&stubListingRepo{listing: listing},
		&stubBidRepo{bids: bids},
		&stubLedger{user: user},
		nil, nil,
		services.NewListingLocks(),
		0,
		logger.Nop(),
	)
	return NewBidHandler(svc, logger.Nop())
}

func performPlaceBid(h *BidHandler, userID, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bids", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h.PlaceBid(c)
	return rec
}

func openAuctionListing() *domain.Listing {
	increment := 50.0
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	return &domain.Listing{
		ID:               "listing-1",
		SellerID:         "seller-1",
		Kind:             domain.ListingAuction,
		Title:            "2021 Tesla Model 3",
		Price:            1000,
		BiddingIncrement: &increment,
		AuctionStart:     &start,
		AuctionEnd:       &end,
	}
}

func TestPlaceBid_Created(t *testing.T) {
	h := newTestBidHandler(openAuctionListing(), &domain.User{ID: "bidder-1", Balance: 5000})

	rec := performPlaceBid(h, "bidder-1", `{"listing_id":"listing-1","amount":1050}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"amount":1050`)
	assert.Contains(t, rec.Body.String(), `"bidder_id":"bidder-1"`)
}

func TestPlaceBid_MissingIdentity(t *testing.T) {
	h := newTestBidHandler(openAuctionListing(), &domain.User{ID: "bidder-1", Balance: 5000})

	rec := performPlaceBid(h, "", `{"listing_id":"listing-1","amount":1050}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceBid_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		user   *domain.User
		body   string
		status int
	}{
		{
			name:   "unknown listing is 404",
			user:   &domain.User{ID: "bidder-1", Balance: 5000},
			body:   `{"listing_id":"no-such-listing","amount":1050}`,
			status: http.StatusNotFound,
		},
		{
			name:   "below minimum is 400",
			user:   &domain.User{ID: "bidder-1", Balance: 5000},
			body:   `{"listing_id":"listing-1","amount":1000}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "insufficient balance is 409",
			user:   &domain.User{ID: "bidder-1", Balance: 500},
			body:   `{"listing_id":"listing-1","amount":1050}`,
			status: http.StatusConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestBidHandler(openAuctionListing(), tc.user)
			rec := performPlaceBid(h, "bidder-1", tc.body)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestListMyBids(t *testing.T) {
	bids := []*domain.Bid{
		{ID: "bid-1", BidderID: "bidder-1", ListingID: "listing-1", Amount: 1050, CreatedAt: time.Now()},
		{ID: "bid-2", BidderID: "bidder-2", ListingID: "listing-1", Amount: 1100, CreatedAt: time.Now()},
	}
	h := newTestBidHandlerWithBids(openAuctionListing(), &domain.User{ID: "bidder-1", Balance: 5000}, bids)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bids", nil)
	req.Header.Set("X-User-Id", "bidder-1")
	rec := httptest.NewRecorder()
	h.ListMyBids(e.NewContext(req, rec))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"bid-1"`)
	assert.NotContains(t, rec.Body.String(), `"id":"bid-2"`)
}

func TestListMyBids_MissingIdentity(t *testing.T) {
	h := newTestBidHandler(openAuctionListing(), &domain.User{ID: "bidder-1", Balance: 5000})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bids", nil)
	rec := httptest.NewRecorder()
	h.ListMyBids(e.NewContext(req, rec))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceBid_InvalidBody(t *testing.T) {
	h := newTestBidHandler(openAuctionListing(), &domain.User{ID: "bidder-1", Balance: 5000})

	rec := performPlaceBid(h, "bidder-1", `{"amount":1050}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
