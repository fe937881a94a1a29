package handlers

import (
	"net/http"
	"time"

	"ev-marketplace/internal/domain"
	"ev-marketplace/internal/services"
	"ev-marketplace/pkg/logger"

	"github.com/labstack/echo/v4"
)

type BidHandler struct {
	bidService *services.BidService
	log        logger.Logger
}

type PlaceBidRequest struct {
	ListingID string  `json:"listing_id"`
	Amount    float64 `json:"amount"`
}

type BidResponse struct {
	ID        string    `json:"id"`
	BidderID  string    `json:"bidder_id"`
	ListingID string    `json:"listing_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func NewBidHandler(bidService *services.BidService, log logger.Logger) *BidHandler {
	return &BidHandler{
		bidService: bidService,
		log:        log,
	}
}

func (h *BidHandler) PlaceBid(c echo.Context) error {
	bidderID := callerID(c)
	if bidderID == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "caller identity required"})
	}

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.ListingID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "listing_id is required"})
	}

	bid, err := h.bidService.PlaceBid(c.Request().Context(), bidderID, req.ListingID, req.Amount)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, toBidResponse(bid))
}

func (h *BidHandler) ListBids(c echo.Context) error {
	listingID := c.Param("id")

	bids, err := h.bidService.ListBids(c.Request().Context(), listingID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	response := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		response = append(response, toBidResponse(bid))
	}

	return c.JSON(http.StatusOK, response)
}

// ListMyBids returns the caller's bids across all listings.
func (h *BidHandler) ListMyBids(c echo.Context) error {
	bidderID := callerID(c)
	if bidderID == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "caller identity required"})
	}

	bids, err := h.bidService.ListBidsByBidder(c.Request().Context(), bidderID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	response := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		response = append(response, toBidResponse(bid))
	}

	return c.JSON(http.StatusOK, response)
}

func toBidResponse(bid *domain.Bid) BidResponse {
	return BidResponse{
		ID:        bid.ID,
		BidderID:  bid.BidderID,
		ListingID: bid.ListingID,
		Amount:    bid.Amount,
		CreatedAt: bid.CreatedAt,
	}
}

// callerID is the authenticated identity injected by the gateway.
func callerID(c echo.Context) string {
	return c.Request().Header.Get("X-User-Id")
}

func writeError(c echo.Context, log logger.Logger, err error) error {
	kind, ok := domain.KindOf(err)
	if !ok {
		log.Error("Request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	status := http.StatusInternalServerError
	switch kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindInvalidOperation:
		status = http.StatusConflict
	case domain.KindInvalidArgument:
		status = http.StatusBadRequest
	}

	return c.JSON(status, map[string]string{"error": err.Error()})
}
