package mysql

import (
	"context"
	"database/sql"
	"errors"

	"reverse-auction/internal/domain"
)

type MySQLSupplierRepository struct {
	db *sql.DB
}

func NewMySQLSupplierRepository(db *sql.DB) *MySQLSupplierRepository {
	return &MySQLSupplierRepository{db: db}
}

func (r *MySQLSupplierRepository) GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := r.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email FROM suppliers WHERE id = ?`,
		supplierID).
		Scan(&supplier.ID, &supplier.FirstName, &supplier.LastName, &supplier.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &supplier, nil
}

type MySQLBuyerRepository struct {
	db *sql.DB
}

func NewMySQLBuyerRepository(db *sql.DB) *MySQLBuyerRepository {
	return &MySQLBuyerRepository{db: db}
}

func (r *MySQLBuyerRepository) GetBuyer(ctx context.Context, buyerID string) (*domain.Buyer, error) {
	var buyer domain.Buyer
	err := r.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email FROM buyers WHERE id = ?`,
		buyerID).
		Scan(&buyer.ID, &buyer.FirstName, &buyer.LastName, &buyer.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &buyer, nil
}
