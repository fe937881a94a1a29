package services

import (
	"context"
	"time"

	"ev-marketplace/internal/domain"
	"ev-marketplace/pkg/logger"

	"github.com/google/uuid"
)

type CreateListingInput struct {
	Kind             domain.ListingKind
	Title            string
	Description      string
	Price            float64
	BiddingIncrement *float64
	AuctionStart     *time.Time
	AuctionEnd       *time.Time
}

type ListingService struct {
	listingRepo domain.ListingRepository
	ledger      domain.LedgerRepository
	log         logger.Logger
}

func NewListingService(listingRepo domain.ListingRepository, ledger domain.LedgerRepository, log logger.Logger) *ListingService {
	return &ListingService{
		listingRepo: listingRepo,
		ledger:      ledger,
		log:         log,
	}
}

func (s *ListingService) CreateListing(ctx context.Context, sellerID string, input CreateListingInput) (*domain.Listing, error) {
	seller, err := s.ledger.GetUser(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if seller == nil {
		return nil, domain.NotFoundf("seller with id %s not found", sellerID)
	}

	if input.Title == "" {
		return nil, domain.InvalidArgumentf("title is required")
	}
	if input.Price <= 0 {
		return nil, domain.InvalidArgumentf("price must be positive")
	}

	if input.Kind == domain.ListingAuction {
		if input.BiddingIncrement == nil || *input.BiddingIncrement <= 0 {
			return nil, domain.InvalidArgumentf("bidding increment is required for auction listings")
		}
		if input.AuctionStart == nil || input.AuctionEnd == nil {
			return nil, domain.InvalidArgumentf("auction start and end times are required for auction listings")
		}
		if !input.AuctionEnd.After(*input.AuctionStart) {
			return nil, domain.InvalidArgumentf("auction end time must be after start time")
		}
	}

	now := time.Now()
	listing := &domain.Listing{
		ID:               uuid.New().String(),
		SellerID:         sellerID,
		Kind:             input.Kind,
		Title:            input.Title,
		Description:      input.Description,
		Price:            input.Price,
		BiddingIncrement: input.BiddingIncrement,
		AuctionStart:     input.AuctionStart,
		AuctionEnd:       input.AuctionEnd,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.listingRepo.CreateListing(ctx, listing); err != nil {
		return nil, err
	}

	s.log.Info("Listing created", "listing_id", listing.ID, "kind", listing.Kind.String())
	return listing, nil
}

func (s *ListingService) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	listing, err := s.listingRepo.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, domain.NotFoundf("listing with id %s not found", listingID)
	}

	return listing, nil
}

func (s *ListingService) ListListings(ctx context.Context) ([]*domain.Listing, error) {
	return s.listingRepo.ListListings(ctx)
}
