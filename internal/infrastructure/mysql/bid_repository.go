package mysql

import (
	"context"
	"database/sql"

	"ev-marketplace/internal/domain"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) GetHighestBid(ctx context.Context, listingID string) (*domain.Bid, error) {
	query := `
        SELECT id, bidder_id, listing_id, amount, created_at
        FROM bids
        WHERE listing_id = ?
        ORDER BY amount DESC, created_at DESC
        LIMIT 1
    `

	var bid domain.Bid
	err := r.db.QueryRowContext(ctx, query, listingID).Scan(
		&bid.ID, &bid.BidderID, &bid.ListingID, &bid.Amount, &bid.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &bid, nil
}

func (r *MySQLBidRepository) GetBidsByListing(ctx context.Context, listingID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, bidder_id, listing_id, amount, created_at
        FROM bids
        WHERE listing_id = ?
        ORDER BY amount DESC, created_at DESC
    `
	return r.queryBids(ctx, query, listingID)
}

func (r *MySQLBidRepository) GetBidsByBidder(ctx context.Context, bidderID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, bidder_id, listing_id, amount, created_at
        FROM bids
        WHERE bidder_id = ?
        ORDER BY created_at DESC
    `
	return r.queryBids(ctx, query, bidderID)
}

func (r *MySQLBidRepository) queryBids(ctx context.Context, query string, arg interface{}) ([]*domain.Bid, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid
		err := rows.Scan(&bid.ID, &bid.BidderID, &bid.ListingID, &bid.Amount, &bid.CreatedAt)
		if err != nil {
			return nil, err
		}
		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}
