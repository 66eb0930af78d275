package mysql

import (
	"context"
	"database/sql"
	"errors"

	"reverse-auction/internal/domain"

	"github.com/shopspring/decimal"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) CreateBid(ctx context.Context, bid *domain.Bid) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bids (id, lot_id, supplier_id, amount, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		bid.ID, bid.LotID, bid.SupplierID, bid.Amount.String(), bid.CreatedAt)
	return err
}

// LowestBid is the standing bid: minimum amount, earliest creation breaking
// exact ties.
func (r *MySQLBidRepository) LowestBid(ctx context.Context, lotID string) (*domain.Bid, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, lot_id, supplier_id, amount, created_at FROM bids
		 WHERE lot_id = ?
		 ORDER BY amount ASC, created_at ASC
		 LIMIT 1`, lotID)
	return scanBid(row)
}

func (r *MySQLBidRepository) LatestBidBySupplier(ctx context.Context, lotID, supplierID string) (*domain.Bid, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, lot_id, supplier_id, amount, created_at FROM bids
		 WHERE lot_id = ? AND supplier_id = ?
		 ORDER BY created_at DESC
		 LIMIT 1`, lotID, supplierID)
	return scanBid(row)
}

func (r *MySQLBidRepository) GetBidsForLot(ctx context.Context, lotID string) ([]*domain.Bid, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, lot_id, supplier_id, amount, created_at FROM bids
		 WHERE lot_id = ?
		 ORDER BY created_at ASC`, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func scanBid(row rowScanner) (*domain.Bid, error) {
	var bid domain.Bid
	var amount string

	err := row.Scan(&bid.ID, &bid.LotID, &bid.SupplierID, &amount, &bid.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	bid.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}
