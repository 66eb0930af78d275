package services

import (
	"context"
	"errors"
	"time"

	"reverse-auction/internal/domain"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// BidValidator decides whether a proposed bid is acceptable against the
// current auction state. It reads lot, listing, invite and bid history but
// never mutates anything; callers serialize invocations per lot.
type BidValidator struct {
	listingRepo domain.ListingRepository
	lotRepo     domain.LotRepository
	bidRepo     domain.BidRepository
	inviteRepo  domain.InviteRepository
}

func NewBidValidator(
	listingRepo domain.ListingRepository,
	lotRepo domain.LotRepository,
	bidRepo domain.BidRepository,
	inviteRepo domain.InviteRepository,
) *BidValidator {
	return &BidValidator{
		listingRepo: listingRepo,
		lotRepo:     lotRepo,
		bidRepo:     bidRepo,
		inviteRepo:  inviteRepo,
	}
}

// Validate runs the bid acceptance checks in order. Structural failures
// (missing lot, inactive auction, wrong lot) stop the run since later checks
// would be meaningless; amount checks accumulate so the bidder sees every
// violation at once.
func (v *BidValidator) Validate(ctx context.Context, lotID, supplierID string, amount decimal.Decimal, now time.Time) (*domain.BidResult, error) {
	var reasons []string

	lot, err := v.lotRepo.GetLot(ctx, lotID)
	if errors.Is(err, domain.ErrNotFound) {
		return rejected(domain.ReasonLotNotFound), nil
	} else if err != nil {
		return nil, err
	}

	listing, err := v.listingRepo.FindByLot(ctx, lotID)
	if errors.Is(err, domain.ErrNotFound) {
		return rejected(domain.ReasonListingNotFound), nil
	} else if err != nil {
		return nil, err
	}

	previous, err := v.bidRepo.LatestBidBySupplier(ctx, lotID, supplierID)
	if errors.Is(err, domain.ErrNotFound) {
		previous = nil
	} else if err != nil {
		return nil, err
	}

	// Before the auction opens a supplier holds at most one standing
	// pre-bid per lot.
	if listing.Status == domain.ListingUpcoming && previous != nil {
		return rejected(domain.ReasonDuplicatePrebid), nil
	}

	if listing.Status != domain.ListingUpcoming && listing.Status != domain.ListingInProgress {
		return rejected(domain.ReasonAuctionNotActive), nil
	}

	if listing.ActiveLotID != lotID {
		return rejected(domain.ReasonLotNotActive), nil
	}

	if listing.RequiresSupplierLogin {
		accepted, err := v.inviteRepo.HasAcceptedInvite(ctx, listing.ID, supplierID)
		if err != nil {
			return nil, err
		}
		if !accepted {
			reasons = append(reasons, domain.ReasonInviteNotAccepted)
		}
	}

	if !amount.IsPositive() {
		reasons = append(reasons, domain.ReasonNonpositiveAmount)
	}

	if amount.GreaterThanOrEqual(lot.LotPrice) {
		reasons = append(reasons, domain.ReasonAmountAboveReserve)
	}

	standing, err := v.bidRepo.LowestBid(ctx, lotID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if standing != nil && amount.GreaterThanOrEqual(standing.Amount) {
		reasons = append(reasons, domain.ReasonNotLowerThanStanding)
	}

	if previous != nil {
		if amount.GreaterThanOrEqual(previous.Amount) {
			reasons = append(reasons, domain.ReasonNotLowerThanOwnPrevious)
		}

		// Consecutive bids from the same supplier must drop by at least
		// the listing's decrement percentage, rounded up.
		decrement := previous.Amount.
			Mul(decimal.NewFromFloat(listing.BidDecrementPercentage)).
			Div(oneHundred).
			Ceil()
		minAllowed := previous.Amount.Sub(decrement)
		if amount.GreaterThan(minAllowed) {
			reasons = append(reasons, domain.ReasonDecrementTooSmall)
		}
	}

	if len(reasons) > 0 {
		return &domain.BidResult{Accepted: false, Reasons: reasons}, nil
	}
	return &domain.BidResult{Accepted: true}, nil
}

func rejected(reasons ...string) *domain.BidResult {
	return &domain.BidResult{Accepted: false, Reasons: reasons}
}
