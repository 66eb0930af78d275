package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"reverse-auction/internal/domain"
	"reverse-auction/pkg/logger"
	"reverse-auction/pkg/utils"

	"github.com/shopspring/decimal"
)

// AuctionManager owns listing and lot lifecycle transitions. Listing status
// moves Upcoming -> In Progress -> Closed, lots Pending -> In Progress ->
// Closed, both one-directional. Every operation that a timer can trigger is
// idempotent so a stale job firing after a reschedule degrades to a no-op.
// Operations on a listing's active lot take the same per-lot lock the bid
// path holds, so a transition firing mid-bid waits for the bid to finish.
type AuctionManager struct {
	listingRepo  domain.ListingRepository
	lotRepo      domain.LotRepository
	bidRepo      domain.BidRepository
	inviteRepo   domain.InviteRepository
	supplierRepo domain.SupplierRepository
	buyerRepo    domain.BuyerRepository
	scheduler    domain.JobScheduler
	notifier     domain.Notifier
	mailer       domain.Mailer
	locks        *LockTable
	loc          *time.Location
	log          logger.Logger
}

func NewAuctionManager(
	listingRepo domain.ListingRepository,
	lotRepo domain.LotRepository,
	bidRepo domain.BidRepository,
	inviteRepo domain.InviteRepository,
	supplierRepo domain.SupplierRepository,
	buyerRepo domain.BuyerRepository,
	notifier domain.Notifier,
	mailer domain.Mailer,
	locks *LockTable,
	loc *time.Location,
	log logger.Logger,
) *AuctionManager {
	return &AuctionManager{
		listingRepo:  listingRepo,
		lotRepo:      lotRepo,
		bidRepo:      bidRepo,
		inviteRepo:   inviteRepo,
		supplierRepo: supplierRepo,
		buyerRepo:    buyerRepo,
		notifier:     notifier,
		mailer:       mailer,
		locks:        locks,
		loc:          loc,
		log:          log,
	}
}

// SetScheduler breaks the construction cycle between the manager and the
// scheduler that dispatches jobs back into it.
func (am *AuctionManager) SetScheduler(scheduler domain.JobScheduler) {
	am.scheduler = scheduler
}

// ListingSpec is the buyer's creation request after transport-level
// validation: the listing fields plus the full lot/item/product graph and
// commercial terms.
type ListingSpec struct {
	BuyerID                string
	Name                   string
	Region                 string
	DepartmentCode         string
	BusinessUnit           string
	Currency               string
	Description            string
	StartDate              time.Time
	StartTime              string // "HH:mm"
	BidDecrementPercentage float64
	RequiresSupplierLogin  bool
	SupplierIDs            []string
	Lots                   []LotSpec
	Terms                  domain.TermsAndConditions
}

type LotSpec struct {
	LotPrice decimal.Decimal
	Duration string // "HH:MM"
	Items    []LotItemSpec
}

type LotItemSpec struct {
	ProductName        string
	ProductDescription string
	Qty                int
	UOM                string
}

// CreateListing atomically persists the listing graph, pre-selects the first
// lot and schedules both the start job and the first lot's transition job.
// The first lot's end must land strictly after now or the whole creation is
// rejected.
func (am *AuctionManager) CreateListing(ctx context.Context, spec *ListingSpec) (*domain.Listing, error) {
	now := time.Now().In(am.loc)

	slug := utils.Slugify(spec.Name)
	exists, err := am.listingRepo.SlugExists(ctx, slug)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrDuplicateListing
	}

	startAt, err := domain.CombineStartDateTime(spec.StartDate, spec.StartTime, am.loc)
	if err != nil {
		return nil, err
	}

	if len(spec.Lots) == 0 {
		return nil, errors.New("listing requires at least one lot")
	}
	firstLotDuration, err := domain.ParseLotDuration(spec.Lots[0].Duration)
	if err != nil {
		return nil, err
	}
	firstLotEnd := startAt.Add(firstLotDuration)
	if !firstLotEnd.After(now) {
		return nil, domain.ErrInvalidSchedule
	}

	graph, err := buildListingGraph(spec, slug, startAt, firstLotEnd, now)
	if err != nil {
		return nil, err
	}
	listing := graph.Listing

	if err := am.listingRepo.CreateGraph(ctx, graph); err != nil {
		return nil, err
	}

	// The graph is committed at this point. If a Schedule call below fails
	// the listing persists without timers until the restart recovery pass
	// re-derives them, so the orphaned state is logged loudly.
	startPayload := domain.JobPayload{ListingID: listing.ID, Action: domain.JobStartAuction}
	if err := am.scheduler.Schedule(ctx, domain.StartJobKey(listing.ID), startAt, startPayload); err != nil {
		am.log.Error("Listing persisted without timer jobs, recovery on restart will reschedule",
			"listing_id", listing.ID, "start_at", startAt, "error", err)
		return nil, err
	}

	firstLotID := listing.ActiveLotID
	transitionPayload := domain.JobPayload{
		ListingID: listing.ID,
		LotID:     firstLotID,
		Action:    domain.JobTransitionToNextLot,
	}
	if err := am.scheduler.Schedule(ctx, domain.TransitionJobKey(listing.ID, firstLotID), firstLotEnd, transitionPayload); err != nil {
		am.log.Error("Listing persisted without its transition job, recovery on restart will reschedule",
			"listing_id", listing.ID, "lot_id", firstLotID, "run_at", firstLotEnd, "error", err)
		return nil, err
	}

	am.sendInvites(ctx, listing)

	am.log.Info("Listing created", "listing_id", listing.ID, "slug", slug,
		"start_at", startAt, "first_lot_end", firstLotEnd, "status", listing.Status)
	return listing, nil
}

func buildListingGraph(spec *ListingSpec, slug string, startAt, firstLotEnd, now time.Time) (*domain.ListingGraph, error) {
	graph := &domain.ListingGraph{}

	lotIDs := make([]string, 0, len(spec.Lots))
	for _, lotSpec := range spec.Lots {
		if !domain.ValidLotDuration(lotSpec.Duration) {
			return nil, errors.New("lot duration must be HH:MM")
		}

		lot := &domain.Lot{
			ID:       utils.GenerateID("lot"),
			LotPrice: lotSpec.LotPrice,
			Duration: lotSpec.Duration,
			Status:   domain.LotPending,
		}
		for _, itemSpec := range lotSpec.Items {
			product := &domain.Product{
				ID:          utils.GenerateID("product"),
				Name:        itemSpec.ProductName,
				Description: itemSpec.ProductDescription,
			}
			item := &domain.LotItem{
				ID:        utils.GenerateID("lotitem"),
				LotID:     lot.ID,
				ProductID: product.ID,
				Qty:       itemSpec.Qty,
				UOM:       itemSpec.UOM,
			}
			lot.LotItemIDs = append(lot.LotItemIDs, item.ID)
			graph.Products = append(graph.Products, product)
			graph.LotItems = append(graph.LotItems, item)
		}
		graph.Lots = append(graph.Lots, lot)
		lotIDs = append(lotIDs, lot.ID)
	}

	// The first lot is pre-selected as active and gets its start time at
	// creation; later lots are activated by transitions.
	graph.Lots[0].StartTime = startAt

	status := domain.ListingUpcoming
	if now.After(startAt) {
		status = domain.ListingInProgress
		graph.Lots[0].Status = domain.LotInProgress
	}

	nextLotID := ""
	if len(lotIDs) > 1 {
		nextLotID = lotIDs[1]
	}

	graph.Listing = &domain.Listing{
		ID:                     utils.GenerateID("listing"),
		BuyerID:                spec.BuyerID,
		Name:                   spec.Name,
		Slug:                   slug,
		Region:                 spec.Region,
		DepartmentCode:         spec.DepartmentCode,
		BusinessUnit:           spec.BusinessUnit,
		Currency:               spec.Currency,
		Description:            spec.Description,
		StartDate:              spec.StartDate,
		StartTime:              spec.StartTime,
		BidDecrementPercentage: spec.BidDecrementPercentage,
		Status:                 status,
		RequiresSupplierLogin:  spec.RequiresSupplierLogin,
		SupplierIDs:            spec.SupplierIDs,
		LotIDs:                 lotIDs,
		ActiveLotID:            lotIDs[0],
		NextLotID:              nextLotID,
		ActiveLotEndTime:       firstLotEnd,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	terms := spec.Terms
	terms.ID = utils.GenerateID("terms")
	terms.ListingID = graph.Listing.ID
	graph.Terms = &terms

	return graph, nil
}

// sendInvites creates one-time invite tokens for every supplier on the
// listing and queues the invite mails. Mail failures are logged only.
func (am *AuctionManager) sendInvites(ctx context.Context, listing *domain.Listing) {
	for _, supplierID := range listing.SupplierIDs {
		supplier, err := am.supplierRepo.GetSupplier(ctx, supplierID)
		if err != nil {
			am.log.Warn("Skipping invite for unknown supplier", "supplier_id", supplierID, "error", err)
			continue
		}

		invite := &domain.ListingInvite{
			ID:          utils.GenerateID("invite"),
			ListingID:   listing.ID,
			SupplierID:  supplier.ID,
			Email:       supplier.Email,
			InviteToken: utils.GenerateToken(),
			// Listings without supplier login skip the acceptance step.
			Accepted: !listing.RequiresSupplierLogin,
		}
		if err := am.inviteRepo.CreateInvite(ctx, invite); err != nil {
			am.log.Error("Failed to create listing invite", "listing_id", listing.ID,
				"supplier_id", supplier.ID, "error", err)
			continue
		}
		if err := am.mailer.SendListingInvite(ctx, invite, listing.Name); err != nil {
			am.log.Error("Failed to send invite mail", "invite_id", invite.ID, "error", err)
		}
	}
}

// StartAuction flips an upcoming listing to In Progress. Safe to call on a
// listing that already started or closed.
func (am *AuctionManager) StartAuction(ctx context.Context, listingID string) error {
	listing, err := am.listingRepo.GetListing(ctx, listingID)
	if errors.Is(err, domain.ErrNotFound) {
		am.log.Warn("Cannot start auction, listing not found", "listing_id", listingID)
		return nil
	} else if err != nil {
		return err
	}

	// Serialize against bids on the first lot; re-read state once held.
	release := am.locks.Acquire(lotLockKey(listingID, listing.ActiveLotID))
	defer release()

	listing, err = am.listingRepo.GetListing(ctx, listingID)
	if err != nil {
		return err
	}

	if listing.Status != domain.ListingUpcoming {
		am.log.Info("Start skipped, auction already advanced",
			"listing_id", listingID, "status", listing.Status)
		return nil
	}

	if err := am.listingRepo.UpdateStatus(ctx, listingID, domain.ListingInProgress); err != nil {
		return err
	}
	if listing.ActiveLotID != "" {
		if err := am.lotRepo.UpdateStatus(ctx, listing.ActiveLotID, domain.LotInProgress); err != nil {
			return err
		}
	}

	am.emit(ctx, &domain.AuctionEvent{
		Name:      domain.EventAuctionStarted,
		ListingID: listingID,
		Payload:   map[string]interface{}{"listingId": listingID},
	})

	am.log.Info("Auction started", "listing_id", listingID)
	return nil
}

// TransitionToNextLot closes the expired active lot and opens its follower
// with no gap, or settles the auction when no lot remains. firedLotID is the
// lot the triggering job was scheduled for; a stale job whose lot is no
// longer active no-ops.
func (am *AuctionManager) TransitionToNextLot(ctx context.Context, listingID, firedLotID string) error {
	lockLotID := firedLotID
	if lockLotID == "" {
		// Recovery calls in without a lot; resolve the active one.
		listing, err := am.listingRepo.GetListing(ctx, listingID)
		if errors.Is(err, domain.ErrNotFound) {
			am.log.Warn("Cannot transition, listing not found", "listing_id", listingID)
			return nil
		} else if err != nil {
			return err
		}
		lockLotID = listing.ActiveLotID
	}

	release := am.locks.Acquire(lotLockKey(listingID, lockLotID))
	defer release()

	return am.transitionLocked(ctx, listingID, firedLotID)
}

// transitionLocked holds the active lot's lock, so an in-flight bid has
// either fully landed (including a deadline extension, which the guard below
// then honors) or has not started.
func (am *AuctionManager) transitionLocked(ctx context.Context, listingID, firedLotID string) error {
	listing, err := am.listingRepo.GetListing(ctx, listingID)
	if errors.Is(err, domain.ErrNotFound) {
		am.log.Warn("Cannot transition, listing not found", "listing_id", listingID)
		return nil
	} else if err != nil {
		return err
	}

	if listing.Status == domain.ListingClosed {
		return nil
	}
	if firedLotID != "" && firedLotID != listing.ActiveLotID {
		am.log.Info("Transition skipped, lot no longer active",
			"listing_id", listingID, "fired_lot", firedLotID, "active_lot", listing.ActiveLotID)
		return nil
	}

	now := time.Now().In(am.loc)
	// An extension moved the deadline after this job was enqueued; the
	// rescheduled job will fire at the right time.
	if now.Before(listing.ActiveLotEndTime) {
		am.log.Info("Transition skipped, active lot deadline moved",
			"listing_id", listingID, "end_time", listing.ActiveLotEndTime)
		return nil
	}

	if listing.Status != domain.ListingInProgress {
		if err := am.listingRepo.UpdateStatus(ctx, listingID, domain.ListingInProgress); err != nil {
			return err
		}
	}

	lots, err := am.lotRepo.GetLotsForListing(ctx, listingID)
	if err != nil {
		return err
	}
	currentIndex := -1
	for i, lot := range lots {
		if lot.ID == listing.ActiveLotID {
			currentIndex = i
			break
		}
	}
	if currentIndex >= 0 {
		if err := am.lotRepo.UpdateStatus(ctx, lots[currentIndex].ID, domain.LotClosed); err != nil {
			return err
		}
	}

	if currentIndex < 0 || currentIndex == len(lots)-1 {
		return am.endAuctionLocked(ctx, listingID)
	}

	// The next lot starts exactly where the previous one ended.
	nextLot := lots[currentIndex+1]
	nextStart := listing.ActiveLotEndTime
	nextDuration, err := domain.ParseLotDuration(nextLot.Duration)
	if err != nil {
		return err
	}
	nextEnd := nextStart.Add(nextDuration)

	if err := am.lotRepo.UpdateActivation(ctx, nextLot.ID, nextStart, domain.LotInProgress); err != nil {
		return err
	}

	newNextID := ""
	if currentIndex+2 < len(lots) {
		newNextID = lots[currentIndex+2].ID
	}
	if err := am.listingRepo.UpdateActiveLot(ctx, listingID, nextLot.ID, newNextID, nextEnd); err != nil {
		return err
	}

	payload := domain.JobPayload{
		ListingID: listingID,
		LotID:     nextLot.ID,
		Action:    domain.JobTransitionToNextLot,
	}
	if err := am.scheduler.Reschedule(ctx, domain.TransitionJobKey(listingID, nextLot.ID), nextEnd, payload); err != nil {
		return err
	}

	am.emit(ctx, &domain.AuctionEvent{
		Name:      domain.EventLotTransition,
		ListingID: listingID,
		Payload: map[string]interface{}{
			"nextLotId": nextLot.ID,
			"startTime": nextStart,
			"endTime":   nextEnd,
		},
	})

	am.log.Info("Transitioned to next lot", "listing_id", listingID,
		"lot_id", nextLot.ID, "start_time", nextStart, "end_time", nextEnd)
	return nil
}

// EndAuction settles every lot (lowest amount wins, earliest creation breaks
// ties), mails the summary and closes the listing. Repeat invocations after
// the listing is Closed are no-ops.
func (am *AuctionManager) EndAuction(ctx context.Context, listingID string) error {
	listing, err := am.listingRepo.GetListing(ctx, listingID)
	if errors.Is(err, domain.ErrNotFound) {
		am.log.Warn("Cannot end auction, listing not found", "listing_id", listingID)
		return nil
	} else if err != nil {
		return err
	}

	release := am.locks.Acquire(lotLockKey(listingID, listing.ActiveLotID))
	defer release()

	return am.endAuctionLocked(ctx, listingID)
}

func (am *AuctionManager) endAuctionLocked(ctx context.Context, listingID string) error {
	listing, err := am.listingRepo.GetListing(ctx, listingID)
	if errors.Is(err, domain.ErrNotFound) {
		am.log.Warn("Cannot end auction, listing not found", "listing_id", listingID)
		return nil
	} else if err != nil {
		return err
	}

	if listing.Status == domain.ListingClosed {
		am.log.Info("End skipped, auction already closed", "listing_id", listingID)
		return nil
	}

	lots, err := am.lotRepo.GetLotsForListing(ctx, listingID)
	if err != nil {
		return err
	}

	summary := &domain.AuctionSummary{ListingID: listingID, ListingName: listing.Name}
	for _, lot := range lots {
		lotSummary := domain.LotSummary{LotID: lot.ID}

		winner, err := am.bidRepo.LowestBid(ctx, lot.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if winner != nil {
			supplier, err := am.supplierRepo.GetSupplier(ctx, winner.SupplierID)
			if err == nil {
				lotSummary.WinningSupplier = supplier.FirstName + " " + supplier.LastName
			} else {
				am.log.Warn("Winning supplier lookup failed", "supplier_id", winner.SupplierID, "error", err)
			}
			amount := winner.Amount
			lotSummary.WinningAmount = &amount
		}

		items, err := am.lotRepo.GetItemSummaries(ctx, lot.ID)
		if err != nil {
			return err
		}
		lotSummary.Items = items
		summary.Lots = append(summary.Lots, lotSummary)

		if lot.Status != domain.LotClosed {
			if err := am.lotRepo.UpdateStatus(ctx, lot.ID, domain.LotClosed); err != nil {
				return err
			}
		}
	}

	// Closing first keeps a racing second invocation from re-sending the
	// settlement mails.
	if err := am.listingRepo.UpdateStatus(ctx, listingID, domain.ListingClosed); err != nil {
		return err
	}

	am.sendSettlementMails(ctx, listing, summary)

	closedPayload := map[string]interface{}{
		"listingId": listingID,
		"status":    string(domain.ListingClosed),
	}
	am.emit(ctx, &domain.AuctionEvent{
		Name:      domain.EventAuctionClosed,
		ListingID: listingID,
		Payload:   closedPayload,
	})
	am.emit(ctx, &domain.AuctionEvent{
		Name:      domain.EventAuctionClosed,
		ListingID: listingID,
		Broadcast: true,
		Payload:   closedPayload,
	})

	am.log.Info("Auction closed", "listing_id", listingID)
	return nil
}

func (am *AuctionManager) sendSettlementMails(ctx context.Context, listing *domain.Listing, summary *domain.AuctionSummary) {
	for _, supplierID := range listing.SupplierIDs {
		supplier, err := am.supplierRepo.GetSupplier(ctx, supplierID)
		if err != nil {
			am.log.Warn("Skipping auction-ended mail for unknown supplier",
				"supplier_id", supplierID, "error", err)
			continue
		}
		if err := am.mailer.SendAuctionEnded(ctx, supplier, listing.Name); err != nil {
			am.log.Error("Failed to send auction-ended mail",
				"supplier_id", supplierID, "error", err)
		}
	}

	buyer, err := am.buyerRepo.GetBuyer(ctx, listing.BuyerID)
	if err != nil {
		am.log.Warn("Skipping summary mail, buyer not found",
			"buyer_id", listing.BuyerID, "error", err)
		return
	}
	if err := am.mailer.SendAuctionSummary(ctx, buyer, summary); err != nil {
		am.log.Error("Failed to send auction summary", "buyer_id", buyer.ID, "error", err)
	}
}

// ReinitializeOnStart re-derives pending timers from durable state after a
// restart. Listings recover in parallel since they are independent; within
// one listing the steps run in order.
func (am *AuctionManager) ReinitializeOnStart(ctx context.Context) error {
	now := time.Now().In(am.loc)
	listings, err := am.listingRepo.GetRecoverable(ctx, now)
	if err != nil {
		return err
	}

	am.log.Info("Reinitializing in-flight auctions", "count", len(listings))

	var wg sync.WaitGroup
	for _, listing := range listings {
		wg.Add(1)
		go func(l *domain.Listing) {
			defer wg.Done()
			if err := am.recoverListing(ctx, l, now); err != nil {
				am.log.Error("Failed to recover listing", "listing_id", l.ID, "error", err)
			}
		}(listing)
	}
	wg.Wait()
	return nil
}

func (am *AuctionManager) recoverListing(ctx context.Context, listing *domain.Listing, now time.Time) error {
	if listing.ActiveLotID != "" && now.Before(listing.ActiveLotEndTime) {
		payload := domain.JobPayload{
			ListingID: listing.ID,
			LotID:     listing.ActiveLotID,
			Action:    domain.JobTransitionToNextLot,
		}
		key := domain.TransitionJobKey(listing.ID, listing.ActiveLotID)
		if err := am.scheduler.Reschedule(ctx, key, listing.ActiveLotEndTime, payload); err != nil {
			return err
		}
	} else if listing.NextLotID != "" {
		if err := am.TransitionToNextLot(ctx, listing.ID, ""); err != nil {
			return err
		}
	} else {
		if err := am.EndAuction(ctx, listing.ID); err != nil {
			return err
		}
	}

	if listing.Status == domain.ListingUpcoming {
		startAt, err := domain.CombineStartDateTime(listing.StartDate, listing.StartTime, am.loc)
		if err != nil {
			return err
		}
		// A past start instant is fine: the poller fires it immediately.
		payload := domain.JobPayload{ListingID: listing.ID, Action: domain.JobStartAuction}
		if err := am.scheduler.Reschedule(ctx, domain.StartJobKey(listing.ID), startAt, payload); err != nil {
			return err
		}
	}
	return nil
}

// emit is fire-and-forget: notifier failures never roll back state.
func (am *AuctionManager) emit(ctx context.Context, event *domain.AuctionEvent) {
	if err := am.notifier.Emit(ctx, event); err != nil {
		am.log.Error("Failed to emit event", "event", event.Name,
			"listing_id", event.ListingID, "error", err)
	}
}
