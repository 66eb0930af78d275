package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"reverse-auction/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLListingRepository struct {
	db *sql.DB
}

func NewMySQLListingRepository(db *sql.DB) *MySQLListingRepository {
	return &MySQLListingRepository{db: db}
}

// CreateGraph persists the full creation graph in one transaction: products,
// lot items, lots, the listing row, the ordered lot sequence, the supplier
// set and the commercial terms. Any failure rolls everything back so no
// orphaned lots or items stay visible.
func (r *MySQLListingRepository) CreateGraph(ctx context.Context, graph *domain.ListingGraph) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, product := range graph.Products {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO products (id, name, description) VALUES (?, ?, ?)`,
			product.ID, product.Name, product.Description)
		if err != nil {
			return err
		}
	}

	for _, lot := range graph.Lots {
		var startTime interface{}
		if !lot.StartTime.IsZero() {
			startTime = lot.StartTime
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO lots (id, lot_price, duration, start_time, status)
			 VALUES (?, ?, ?, ?, ?)`,
			lot.ID, lot.LotPrice.String(), lot.Duration, startTime, string(lot.Status))
		if err != nil {
			return err
		}
	}

	itemPositions := make(map[string]int)
	for _, item := range graph.LotItems {
		position := itemPositions[item.LotID]
		itemPositions[item.LotID]++
		_, err := tx.ExecContext(ctx,
			`INSERT INTO lot_items (id, lot_id, position, product_id, qty, uom)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, item.LotID, position, item.ProductID, item.Qty, item.UOM)
		if err != nil {
			return err
		}
	}

	listing := graph.Listing
	_, err = tx.ExecContext(ctx,
		`INSERT INTO listings
		 (id, buyer_id, name, slug, region, department_code, business_unit,
		  currency, description, start_date, start_time, bid_decrement_pct,
		  status, requires_supplier_login, active_lot_id, next_lot_id,
		  active_lot_end_time, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listing.ID, listing.BuyerID, listing.Name, listing.Slug, listing.Region,
		listing.DepartmentCode, listing.BusinessUnit, listing.Currency,
		listing.Description, listing.StartDate, listing.StartTime,
		listing.BidDecrementPercentage, string(listing.Status),
		listing.RequiresSupplierLogin, listing.ActiveLotID,
		nullable(listing.NextLotID), listing.ActiveLotEndTime,
		listing.CreatedAt, listing.UpdatedAt)
	if err != nil {
		return err
	}

	for position, lotID := range listing.LotIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO listing_lots (listing_id, lot_id, position) VALUES (?, ?, ?)`,
			listing.ID, lotID, position)
		if err != nil {
			return err
		}
	}

	for _, supplierID := range listing.SupplierIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO listing_suppliers (listing_id, supplier_id) VALUES (?, ?)`,
			listing.ID, supplierID)
		if err != nil {
			return err
		}
	}

	if graph.Terms != nil {
		terms := graph.Terms
		_, err := tx.ExecContext(ctx,
			`INSERT INTO terms_and_conditions
			 (id, listing_id, price_basis, taxes_and_duties, delivery,
			  payment_terms, warranty_guarantee, inspection_required,
			  other_terms, awarding_decision)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			terms.ID, terms.ListingID, terms.PriceBasis, terms.TaxesAndDuties,
			terms.Delivery, terms.PaymentTerms, terms.WarrantyGuarantee,
			terms.InspectionRequired, terms.OtherTerms, terms.AwardingDecision)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

const listingColumns = `id, buyer_id, name, slug, region, department_code,
	business_unit, currency, description, start_date, start_time,
	bid_decrement_pct, status, requires_supplier_login, active_lot_id,
	next_lot_id, active_lot_end_time, created_at, updated_at`

func (r *MySQLListingRepository) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, listingID)
	return r.scanListing(ctx, row)
}

func (r *MySQLListingRepository) FindByLot(ctx context.Context, lotID string) (*domain.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings
		 WHERE id = (SELECT listing_id FROM listing_lots WHERE lot_id = ?)`, lotID)
	return r.scanListing(ctx, row)
}

func (r *MySQLListingRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings WHERE slug = ?`, slug).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MySQLListingRepository) UpdateStatus(ctx context.Context, listingID string, status domain.ListingStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), listingID)
	return err
}

func (r *MySQLListingRepository) UpdateActiveLot(ctx context.Context, listingID, activeLotID, nextLotID string, endTime time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET active_lot_id = ?, next_lot_id = ?,
		 active_lot_end_time = ?, updated_at = ? WHERE id = ?`,
		activeLotID, nullable(nextLotID), endTime, time.Now(), listingID)
	return err
}

func (r *MySQLListingRepository) UpdateActiveLotEndTime(ctx context.Context, listingID string, endTime time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET active_lot_end_time = ?, updated_at = ? WHERE id = ?`,
		endTime, time.Now(), listingID)
	return err
}

func (r *MySQLListingRepository) GetRecoverable(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings
		 WHERE status IN (?, ?) AND start_date <= ?`,
		string(domain.ListingUpcoming), string(domain.ListingInProgress), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*domain.Listing
	for rows.Next() {
		listing, err := r.scanListingRow(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, listing := range listings {
		if err := r.loadRelations(ctx, listing); err != nil {
			return nil, err
		}
	}
	return listings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *MySQLListingRepository) scanListing(ctx context.Context, row *sql.Row) (*domain.Listing, error) {
	listing, err := r.scanListingRow(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadRelations(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (r *MySQLListingRepository) scanListingRow(row rowScanner) (*domain.Listing, error) {
	var listing domain.Listing
	var status string
	var nextLotID sql.NullString

	err := row.Scan(&listing.ID, &listing.BuyerID, &listing.Name, &listing.Slug,
		&listing.Region, &listing.DepartmentCode, &listing.BusinessUnit,
		&listing.Currency, &listing.Description, &listing.StartDate,
		&listing.StartTime, &listing.BidDecrementPercentage, &status,
		&listing.RequiresSupplierLogin, &listing.ActiveLotID, &nextLotID,
		&listing.ActiveLotEndTime, &listing.CreatedAt, &listing.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	listing.Status = domain.ListingStatus(status)
	listing.NextLotID = nextLotID.String
	return &listing, nil
}

func (r *MySQLListingRepository) loadRelations(ctx context.Context, listing *domain.Listing) error {
	lotRows, err := r.db.QueryContext(ctx,
		`SELECT lot_id FROM listing_lots WHERE listing_id = ? ORDER BY position`,
		listing.ID)
	if err != nil {
		return err
	}
	defer lotRows.Close()
	for lotRows.Next() {
		var lotID string
		if err := lotRows.Scan(&lotID); err != nil {
			return err
		}
		listing.LotIDs = append(listing.LotIDs, lotID)
	}
	if err := lotRows.Err(); err != nil {
		return err
	}

	supplierRows, err := r.db.QueryContext(ctx,
		`SELECT supplier_id FROM listing_suppliers WHERE listing_id = ?`, listing.ID)
	if err != nil {
		return err
	}
	defer supplierRows.Close()
	for supplierRows.Next() {
		var supplierID string
		if err := supplierRows.Scan(&supplierID); err != nil {
			return err
		}
		listing.SupplierIDs = append(listing.SupplierIDs, supplierID)
	}
	return supplierRows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
