package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"reverse-auction/internal/domain"

	"github.com/shopspring/decimal"
)

type MySQLLotRepository struct {
	db *sql.DB
}

func NewMySQLLotRepository(db *sql.DB) *MySQLLotRepository {
	return &MySQLLotRepository{db: db}
}

func (r *MySQLLotRepository) GetLot(ctx context.Context, lotID string) (*domain.Lot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, lot_price, duration, start_time, status FROM lots WHERE id = ?`,
		lotID)
	return scanLot(row)
}

// GetLotsForListing returns the listing's lots in bidding order.
func (r *MySQLLotRepository) GetLotsForListing(ctx context.Context, listingID string) ([]*domain.Lot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT l.id, l.lot_price, l.duration, l.start_time, l.status
		 FROM lots l
		 JOIN listing_lots ll ON ll.lot_id = l.id
		 WHERE ll.listing_id = ?
		 ORDER BY ll.position`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []*domain.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (r *MySQLLotRepository) UpdateActivation(ctx context.Context, lotID string, startTime time.Time, status domain.LotStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE lots SET start_time = ?, status = ? WHERE id = ?`,
		startTime, string(status), lotID)
	return err
}

func (r *MySQLLotRepository) UpdateStatus(ctx context.Context, lotID string, status domain.LotStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE lots SET status = ? WHERE id = ?`, string(status), lotID)
	return err
}

func (r *MySQLLotRepository) GetItemSummaries(ctx context.Context, lotID string) ([]domain.ItemSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.name, li.qty, li.uom
		 FROM lot_items li
		 JOIN products p ON p.id = li.product_id
		 WHERE li.lot_id = ?
		 ORDER BY li.position`, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ItemSummary
	for rows.Next() {
		var item domain.ItemSummary
		if err := rows.Scan(&item.ProductName, &item.Qty, &item.UOM); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanLot(row rowScanner) (*domain.Lot, error) {
	var lot domain.Lot
	var price string
	var status string
	var startTime sql.NullTime

	err := row.Scan(&lot.ID, &price, &lot.Duration, &startTime, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	lot.LotPrice, err = decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	if startTime.Valid {
		lot.StartTime = startTime.Time
	}
	lot.Status = domain.LotStatus(status)
	return &lot, nil
}
