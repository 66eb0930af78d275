package services

import (
	"context"
	"errors"
	"time"

	"reverse-auction/internal/domain"
	"reverse-auction/pkg/logger"
	"reverse-auction/pkg/utils"

	"github.com/shopspring/decimal"
)

// BidService is the concurrency-safe bid ingestion path. All read-then-write
// steps for one lot run under a per-(listing, lot) lock so two suppliers
// racing the standing-bid boundary cannot both be accepted.
type BidService struct {
	listingRepo     domain.ListingRepository
	bidRepo         domain.BidRepository
	validator       *BidValidator
	scheduler       domain.JobScheduler
	notifier        domain.Notifier
	locks           *LockTable
	extensionWindow time.Duration
	extensionBy     time.Duration
	loc             *time.Location
	log             logger.Logger
}

func NewBidService(
	listingRepo domain.ListingRepository,
	bidRepo domain.BidRepository,
	validator *BidValidator,
	scheduler domain.JobScheduler,
	notifier domain.Notifier,
	locks *LockTable,
	extensionWindow time.Duration,
	extensionBy time.Duration,
	loc *time.Location,
	log logger.Logger,
) *BidService {
	return &BidService{
		listingRepo:     listingRepo,
		bidRepo:         bidRepo,
		validator:       validator,
		scheduler:       scheduler,
		notifier:        notifier,
		locks:           locks,
		extensionWindow: extensionWindow,
		extensionBy:     extensionBy,
		loc:             loc,
		log:             log,
	}
}

// SubmitBid validates and records one bid. A rejection carries the specific
// reasons and changes nothing; an acceptance within the extension window
// also pushes the lot deadline forward and replaces the pending transition
// job under its existing key. Every qualifying bid extends, not just the
// first.
func (s *BidService) SubmitBid(ctx context.Context, listingID, lotID, supplierID string, amount decimal.Decimal) (*domain.BidResult, error) {
	release := s.locks.Acquire(lotLockKey(listingID, lotID))
	defer release()

	listing, err := s.listingRepo.GetListing(ctx, listingID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.BidResult{Accepted: false, Reasons: []string{domain.ReasonListingNotFound}}, nil
	} else if err != nil {
		return nil, err
	}

	now := time.Now().In(s.loc)
	result, err := s.validator.Validate(ctx, lotID, supplierID, amount, now)
	if err != nil {
		return nil, err
	}
	if !result.Accepted {
		s.log.Info("Bid rejected", "listing_id", listingID, "lot_id", lotID,
			"supplier_id", supplierID, "amount", amount, "reasons", result.Reasons)
		return result, nil
	}

	if timeLeft := listing.ActiveLotEndTime.Sub(now); timeLeft < s.extensionWindow {
		if err := s.extendActiveLot(ctx, listing, lotID, now); err != nil {
			return nil, err
		}
	}

	bid := &domain.Bid{
		ID:         utils.GenerateID("bid"),
		LotID:      lotID,
		SupplierID: supplierID,
		Amount:     amount,
		CreatedAt:  now,
	}
	if err := s.bidRepo.CreateBid(ctx, bid); err != nil {
		return nil, err
	}
	result.Bid = bid

	s.emit(ctx, &domain.AuctionEvent{
		Name:      domain.EventNewBid,
		ListingID: listingID,
		Payload: map[string]interface{}{
			"bid": map[string]interface{}{
				"id":         bid.ID,
				"lotId":      bid.LotID,
				"supplierId": bid.SupplierID,
				"amount":     bid.Amount,
				"createdAt":  bid.CreatedAt,
			},
		},
	})

	s.log.Info("Bid accepted", "listing_id", listingID, "lot_id", lotID,
		"supplier_id", supplierID, "amount", amount)
	return result, nil
}

// extendActiveLot is the anti-sniping defense: push the deadline out and
// replace the lot's transition job so exactly one stays pending.
func (s *BidService) extendActiveLot(ctx context.Context, listing *domain.Listing, lotID string, now time.Time) error {
	newEndTime := listing.ActiveLotEndTime.Add(s.extensionBy)

	if err := s.listingRepo.UpdateActiveLotEndTime(ctx, listing.ID, newEndTime); err != nil {
		return err
	}
	listing.ActiveLotEndTime = newEndTime

	payload := domain.JobPayload{
		ListingID: listing.ID,
		LotID:     lotID,
		Action:    domain.JobTransitionToNextLot,
	}
	if err := s.scheduler.Reschedule(ctx, domain.TransitionJobKey(listing.ID, lotID), newEndTime, payload); err != nil {
		return err
	}

	s.emit(ctx, &domain.AuctionEvent{
		Name:      domain.EventAuctionExtended,
		ListingID: listing.ID,
		Payload: map[string]interface{}{
			"newEndTime": newEndTime,
			"serverTime": now,
		},
	})

	s.log.Info("Auction extended", "listing_id", listing.ID, "lot_id", lotID,
		"new_end_time", newEndTime)
	return nil
}

func (s *BidService) emit(ctx context.Context, event *domain.AuctionEvent) {
	if err := s.notifier.Emit(ctx, event); err != nil {
		s.log.Error("Failed to emit event", "event", event.Name,
			"listing_id", event.ListingID, "error", err)
	}
}
