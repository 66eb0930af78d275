package mysql

import (
	"context"
	"database/sql"
	"errors"

	"reverse-auction/internal/domain"
)

type MySQLInviteRepository struct {
	db *sql.DB
}

func NewMySQLInviteRepository(db *sql.DB) *MySQLInviteRepository {
	return &MySQLInviteRepository{db: db}
}

func (r *MySQLInviteRepository) CreateInvite(ctx context.Context, invite *domain.ListingInvite) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO listing_invites (id, listing_id, supplier_id, email, invite_token, accepted)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		invite.ID, invite.ListingID, invite.SupplierID, invite.Email,
		invite.InviteToken, invite.Accepted)
	return err
}

func (r *MySQLInviteRepository) HasAcceptedInvite(ctx context.Context, listingID, supplierID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listing_invites
		 WHERE listing_id = ? AND supplier_id = ? AND accepted = TRUE`,
		listingID, supplierID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AcceptByToken consumes a one-time invite token and returns the accepted
// invite, or ErrNotFound when the token does not match a pending invite.
func (r *MySQLInviteRepository) AcceptByToken(ctx context.Context, token string) (*domain.ListingInvite, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE listing_invites SET accepted = TRUE
		 WHERE invite_token = ? AND accepted = FALSE`, token)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrNotFound
	}

	return r.getByToken(ctx, token)
}

func (r *MySQLInviteRepository) GetInvitesForListing(ctx context.Context, listingID string) ([]*domain.ListingInvite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, listing_id, supplier_id, email, invite_token, accepted
		 FROM listing_invites WHERE listing_id = ?`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []*domain.ListingInvite
	for rows.Next() {
		var invite domain.ListingInvite
		err := rows.Scan(&invite.ID, &invite.ListingID, &invite.SupplierID,
			&invite.Email, &invite.InviteToken, &invite.Accepted)
		if err != nil {
			return nil, err
		}
		invites = append(invites, &invite)
	}
	return invites, rows.Err()
}

func (r *MySQLInviteRepository) getByToken(ctx context.Context, token string) (*domain.ListingInvite, error) {
	var invite domain.ListingInvite
	err := r.db.QueryRowContext(ctx,
		`SELECT id, listing_id, supplier_id, email, invite_token, accepted
		 FROM listing_invites WHERE invite_token = ?`, token).
		Scan(&invite.ID, &invite.ListingID, &invite.SupplierID,
			&invite.Email, &invite.InviteToken, &invite.Accepted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &invite, nil
}
