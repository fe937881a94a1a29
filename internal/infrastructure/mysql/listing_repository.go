package mysql

import (
	"context"
	"database/sql"
	"time"

	"ev-marketplace/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLListingRepository struct {
	db *sql.DB
}

func NewMySQLListingRepository(db *sql.DB) *MySQLListingRepository {
	return &MySQLListingRepository{db: db}
}

func (r *MySQLListingRepository) CreateListing(ctx context.Context, listing *domain.Listing) error {
	query := `
        INSERT INTO listings (id, seller_id, kind, title, description, price,
            bidding_increment, auction_start, auction_end, end_price,
            verified, settled, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		listing.ID, listing.SellerID, int(listing.Kind), listing.Title,
		listing.Description, listing.Price, listing.BiddingIncrement,
		listing.AuctionStart, listing.AuctionEnd, listing.EndPrice,
		listing.Verified, listing.Settled, listing.CreatedAt, listing.UpdatedAt)
	return err
}

func (r *MySQLListingRepository) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	query := `
        SELECT id, seller_id, kind, title, description, price,
               bidding_increment, auction_start, auction_end, end_price,
               verified, settled, created_at, updated_at
        FROM listings WHERE id = ?
    `

	listing, err := scanListing(r.db.QueryRowContext(ctx, query, listingID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return listing, err
}

func (r *MySQLListingRepository) ListListings(ctx context.Context) ([]*domain.Listing, error) {
	query := `
        SELECT id, seller_id, kind, title, description, price,
               bidding_increment, auction_start, auction_end, end_price,
               verified, settled, created_at, updated_at
        FROM listings ORDER BY created_at DESC
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*domain.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}

	return listings, rows.Err()
}

func (r *MySQLListingRepository) GetEndedUnsettled(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	query := `
        SELECT id, seller_id, kind, title, description, price,
               bidding_increment, auction_start, auction_end, end_price,
               verified, settled, created_at, updated_at
        FROM listings
        WHERE kind = ? AND settled = FALSE AND auction_end < ?
    `

	rows, err := r.db.QueryContext(ctx, query, int(domain.ListingAuction), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*domain.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}

	return listings, rows.Err()
}

func (r *MySQLListingRepository) MarkSettled(ctx context.Context, listingID string, endPrice *float64) error {
	query := `UPDATE listings SET settled = TRUE, end_price = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, endPrice, time.Now(), listingID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*domain.Listing, error) {
	var listing domain.Listing
	var kind int

	err := row.Scan(
		&listing.ID, &listing.SellerID, &kind, &listing.Title,
		&listing.Description, &listing.Price, &listing.BiddingIncrement,
		&listing.AuctionStart, &listing.AuctionEnd, &listing.EndPrice,
		&listing.Verified, &listing.Settled, &listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return nil, err
	}

	listing.Kind = domain.ListingKind(kind)
	return &listing, nil
}
