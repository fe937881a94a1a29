package handlers

import (
	"net/http"
	"time"

	"ev-marketplace/internal/domain"
	"ev-marketplace/internal/services"
	"ev-marketplace/pkg/logger"

	"github.com/labstack/echo/v4"
)

type ListingHandler struct {
	listingService *services.ListingService
	log            logger.Logger
}

type CreateListingRequest struct {
	Kind             string     `json:"kind"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Price            float64    `json:"price"`
	BiddingIncrement *float64   `json:"bidding_increment,omitempty"`
	AuctionStart     *time.Time `json:"auction_start,omitempty"`
	AuctionEnd       *time.Time `json:"auction_end,omitempty"`
}

type ListingResponse struct {
	ID               string     `json:"id"`
	SellerID         string     `json:"seller_id"`
	Kind             string     `json:"kind"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Price            float64    `json:"price"`
	BiddingIncrement *float64   `json:"bidding_increment,omitempty"`
	AuctionStart     *time.Time `json:"auction_start,omitempty"`
	AuctionEnd       *time.Time `json:"auction_end,omitempty"`
	EndPrice         *float64   `json:"end_price,omitempty"`
	Verified         bool       `json:"verified"`
	Settled          bool       `json:"settled"`
	CreatedAt        time.Time  `json:"created_at"`
}

func NewListingHandler(listingService *services.ListingService, log logger.Logger) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		log:            log,
	}
}

func (h *ListingHandler) CreateListing(c echo.Context) error {
	sellerID := callerID(c)
	if sellerID == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "caller identity required"})
	}

	var req CreateListingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	kind, err := parseListingKind(req.Kind)
	if err != nil {
		return writeError(c, h.log, err)
	}

	listing, err := h.listingService.CreateListing(c.Request().Context(), sellerID, services.CreateListingInput{
		Kind:             kind,
		Title:            req.Title,
		Description:      req.Description,
		Price:            req.Price,
		BiddingIncrement: req.BiddingIncrement,
		AuctionStart:     req.AuctionStart,
		AuctionEnd:       req.AuctionEnd,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, toListingResponse(listing))
}

func (h *ListingHandler) GetListing(c echo.Context) error {
	listing, err := h.listingService.GetListing(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, toListingResponse(listing))
}

func (h *ListingHandler) ListListings(c echo.Context) error {
	listings, err := h.listingService.ListListings(c.Request().Context())
	if err != nil {
		return writeError(c, h.log, err)
	}

	response := make([]ListingResponse, 0, len(listings))
	for _, listing := range listings {
		response = append(response, toListingResponse(listing))
	}

	return c.JSON(http.StatusOK, response)
}

func parseListingKind(kind string) (domain.ListingKind, error) {
	switch kind {
	case "fixed_price":
		return domain.ListingFixedPrice, nil
	case "auction":
		return domain.ListingAuction, nil
	default:
		return 0, domain.InvalidArgumentf("invalid listing kind: %q, valid values are fixed_price and auction", kind)
	}
}

func toListingResponse(listing *domain.Listing) ListingResponse {
	return ListingResponse{
		ID:               listing.ID,
		SellerID:         listing.SellerID,
		Kind:             listing.Kind.String(),
		Title:            listing.Title,
		Description:      listing.Description,
		Price:            listing.Price,
		BiddingIncrement: listing.BiddingIncrement,
		AuctionStart:     listing.AuctionStart,
		AuctionEnd:       listing.AuctionEnd,
		EndPrice:         listing.EndPrice,
		Verified:         listing.Verified,
		Settled:          listing.Settled,
		CreatedAt:        listing.CreatedAt,
	}
}
