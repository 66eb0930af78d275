package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"reverse-auction/internal/domain"
	"reverse-auction/pkg/logger"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Fatal(string, ...interface{}) {}

var testLog logger.Logger = nopLogger{}

// memStore is an in-memory stand-in for every MySQL repository the engine
// talks to. All methods are safe for concurrent use.
type memStore struct {
	mu         sync.Mutex
	// onUpdateEndTime, when set, runs at the start of UpdateActiveLotEndTime
	// outside the store mutex so tests can stage interleavings.
	onUpdateEndTime func()
	listings        map[string]*domain.Listing
	lots       map[string]*domain.Lot
	lotOrder   map[string][]string
	lotListing map[string]string
	itemsByLot map[string][]domain.ItemSummary
	bids       map[string][]*domain.Bid
	invites    []*domain.ListingInvite
	suppliers  map[string]*domain.Supplier
	buyers     map[string]*domain.Buyer
	jobs       map[string]*domain.ScheduledJob
}

func newMemStore() *memStore {
	return &memStore{
		listings:   make(map[string]*domain.Listing),
		lots:       make(map[string]*domain.Lot),
		lotOrder:   make(map[string][]string),
		lotListing: make(map[string]string),
		itemsByLot: make(map[string][]domain.ItemSummary),
		bids:       make(map[string][]*domain.Bid),
		suppliers:  make(map[string]*domain.Supplier),
		buyers:     make(map[string]*domain.Buyer),
		jobs:       make(map[string]*domain.ScheduledJob),
	}
}

func (s *memStore) addListing(listing *domain.Listing, lots ...*domain.Lot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *listing
	s.listings[listing.ID] = &copied
	for _, lot := range lots {
		lotCopy := *lot
		s.lots[lot.ID] = &lotCopy
		s.lotOrder[listing.ID] = append(s.lotOrder[listing.ID], lot.ID)
		s.lotListing[lot.ID] = listing.ID
	}
}

func (s *memStore) addSupplier(supplier *domain.Supplier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliers[supplier.ID] = supplier
}

func (s *memStore) addBuyer(buyer *domain.Buyer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buyers[buyer.ID] = buyer
}

func (s *memStore) listing(id string) *domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.listings[id]
	return &copied
}

func (s *memStore) lot(id string) *domain.Lot {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.lots[id]
	return &copied
}

// ListingRepository

func (s *memStore) CreateGraph(ctx context.Context, graph *domain.ListingGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing := *graph.Listing
	s.listings[listing.ID] = &listing
	for _, lot := range graph.Lots {
		lotCopy := *lot
		s.lots[lot.ID] = &lotCopy
		s.lotListing[lot.ID] = listing.ID
	}
	s.lotOrder[listing.ID] = append([]string(nil), listing.LotIDs...)

	products := make(map[string]*domain.Product, len(graph.Products))
	for _, product := range graph.Products {
		products[product.ID] = product
	}
	for _, item := range graph.LotItems {
		summary := domain.ItemSummary{Qty: item.Qty, UOM: item.UOM}
		if product, ok := products[item.ProductID]; ok {
			summary.ProductName = product.Name
		}
		s.itemsByLot[item.LotID] = append(s.itemsByLot[item.LotID], summary)
	}
	return nil
}

func (s *memStore) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.listings[listingID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *listing
	return &copied, nil
}

func (s *memStore) FindByLot(ctx context.Context, lotID string) (*domain.Listing, error) {
	s.mu.Lock()
	listingID, ok := s.lotListing[lotID]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.GetListing(ctx, listingID)
}

func (s *memStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, listing := range s.listings {
		if listing.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) UpdateStatus(ctx context.Context, listingID string, status domain.ListingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if listing, ok := s.listings[listingID]; ok {
		listing.Status = status
		listing.UpdatedAt = time.Now()
	}
	return nil
}

func (s *memStore) UpdateActiveLot(ctx context.Context, listingID, activeLotID, nextLotID string, endTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if listing, ok := s.listings[listingID]; ok {
		listing.ActiveLotID = activeLotID
		listing.NextLotID = nextLotID
		listing.ActiveLotEndTime = endTime
		listing.UpdatedAt = time.Now()
	}
	return nil
}

func (s *memStore) UpdateActiveLotEndTime(ctx context.Context, listingID string, endTime time.Time) error {
	if s.onUpdateEndTime != nil {
		s.onUpdateEndTime()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if listing, ok := s.listings[listingID]; ok {
		listing.ActiveLotEndTime = endTime
		listing.UpdatedAt = time.Now()
	}
	return nil
}

func (s *memStore) GetRecoverable(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Listing
	for _, listing := range s.listings {
		if listing.Status == domain.ListingClosed {
			continue
		}
		if listing.StartDate.After(now) {
			continue
		}
		copied := *listing
		out = append(out, &copied)
	}
	return out, nil
}

// LotRepository

func (s *memStore) GetLot(ctx context.Context, lotID string) (*domain.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, ok := s.lots[lotID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *lot
	return &copied, nil
}

func (s *memStore) GetLotsForListing(ctx context.Context, listingID string) ([]*domain.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lots []*domain.Lot
	for _, lotID := range s.lotOrder[listingID] {
		copied := *s.lots[lotID]
		lots = append(lots, &copied)
	}
	return lots, nil
}

func (s *memStore) UpdateActivation(ctx context.Context, lotID string, startTime time.Time, status domain.LotStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lot, ok := s.lots[lotID]; ok {
		lot.StartTime = startTime
		lot.Status = status
	}
	return nil
}

func (s *memStore) UpdateStatusLot(ctx context.Context, lotID string, status domain.LotStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lot, ok := s.lots[lotID]; ok {
		lot.Status = status
	}
	return nil
}

func (s *memStore) GetItemSummaries(ctx context.Context, lotID string) ([]domain.ItemSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ItemSummary(nil), s.itemsByLot[lotID]...), nil
}

// BidRepository

func (s *memStore) CreateBid(ctx context.Context, bid *domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *bid
	s.bids[bid.LotID] = append(s.bids[bid.LotID], &copied)
	return nil
}

func (s *memStore) LowestBid(ctx context.Context, lotID string) (*domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bids := s.bids[lotID]
	if len(bids) == 0 {
		return nil, domain.ErrNotFound
	}
	sorted := append([]*domain.Bid(nil), bids...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Amount.Equal(sorted[j].Amount) {
			return sorted[i].Amount.LessThan(sorted[j].Amount)
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	copied := *sorted[0]
	return &copied, nil
}

func (s *memStore) LatestBidBySupplier(ctx context.Context, lotID, supplierID string) (*domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.Bid
	for _, bid := range s.bids[lotID] {
		if bid.SupplierID != supplierID {
			continue
		}
		if latest == nil || bid.CreatedAt.After(latest.CreatedAt) {
			latest = bid
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *memStore) GetBidsForLot(ctx context.Context, lotID string) ([]*domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Bid(nil), s.bids[lotID]...), nil
}

// InviteRepository

func (s *memStore) CreateInvite(ctx context.Context, invite *domain.ListingInvite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *invite
	s.invites = append(s.invites, &copied)
	return nil
}

func (s *memStore) HasAcceptedInvite(ctx context.Context, listingID, supplierID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, invite := range s.invites {
		if invite.ListingID == listingID && invite.SupplierID == supplierID && invite.Accepted {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) AcceptByToken(ctx context.Context, token string) (*domain.ListingInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, invite := range s.invites {
		if invite.InviteToken == token && !invite.Accepted {
			invite.Accepted = true
			copied := *invite
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) GetInvitesForListing(ctx context.Context, listingID string) ([]*domain.ListingInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ListingInvite
	for _, invite := range s.invites {
		if invite.ListingID == listingID {
			copied := *invite
			out = append(out, &copied)
		}
	}
	return out, nil
}

// Supplier and buyer repositories

func (s *memStore) GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	supplier, ok := s.suppliers[supplierID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return supplier, nil
}

func (s *memStore) GetBuyer(ctx context.Context, buyerID string) (*domain.Buyer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buyer, ok := s.buyers[buyerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return buyer, nil
}

// SchedulerRepository

func (s *memStore) UpsertJob(ctx context.Context, job *domain.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	copied.Status = domain.JobPending
	s.jobs[job.Key] = &copied
	return nil
}

func (s *memStore) CancelByKey(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[key]; ok && job.Status == domain.JobPending {
		job.Status = domain.JobCancelled
	}
	return nil
}

func (s *memStore) GetDueJobs(ctx context.Context, before time.Time) ([]*domain.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*domain.ScheduledJob
	for _, job := range s.jobs {
		if job.Status == domain.JobPending && !job.RunAt.After(before) {
			copied := *job
			due = append(due, &copied)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	return due, nil
}

func (s *memStore) MarkExecuted(ctx context.Context, key string, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[key]; ok && job.Status == domain.JobPending && job.RunAt.Equal(runAt) {
		job.Status = domain.JobExecuted
	}
	return nil
}

func (s *memStore) pendingJobs() []*domain.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ScheduledJob
	for _, job := range s.jobs {
		if job.Status == domain.JobPending {
			copied := *job
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *memStore) job(key string) *domain.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[key]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

// lotStatusAdapter exposes the lot-flavored UpdateStatus under the
// LotRepository method name without clashing with the listing one.
type lotStatusAdapter struct {
	*memStore
}

func (a lotStatusAdapter) UpdateStatus(ctx context.Context, lotID string, status domain.LotStatus) error {
	return a.memStore.UpdateStatusLot(ctx, lotID, status)
}

// fakeScheduler records schedule calls; jobs never fire on their own so
// tests drive transitions explicitly.
type fakeScheduler struct {
	mu          sync.Mutex
	calls       map[string]scheduledCall
	scheduleErr error
}

type scheduledCall struct {
	runAt   time.Time
	payload domain.JobPayload
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{calls: make(map[string]scheduledCall)}
}

func (f *fakeScheduler) Schedule(ctx context.Context, key string, runAt time.Time, payload domain.JobPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.calls[key] = scheduledCall{runAt: runAt, payload: payload}
	return nil
}

func (f *fakeScheduler) Reschedule(ctx context.Context, key string, runAt time.Time, payload domain.JobPayload) error {
	return f.Schedule(ctx, key, runAt, payload)
}

func (f *fakeScheduler) Cancel(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.calls, key)
	return nil
}

func (f *fakeScheduler) Start(ctx context.Context) error { return nil }
func (f *fakeScheduler) Stop() error                     { return nil }

func (f *fakeScheduler) call(key string) (scheduledCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call, ok := f.calls[key]
	return call, ok
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []*domain.AuctionEvent
}

func (f *fakeNotifier) Emit(ctx context.Context, event *domain.AuctionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeNotifier) named(name domain.EventName) []*domain.AuctionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.AuctionEvent
	for _, event := range f.events {
		if event.Name == name {
			out = append(out, event)
		}
	}
	return out
}

type fakeMailer struct {
	mu            sync.Mutex
	endedMails    []string
	summaryMails  []*domain.AuctionSummary
	inviteTokens  []string
	inviteTargets []string
}

func (f *fakeMailer) SendAuctionEnded(ctx context.Context, supplier *domain.Supplier, listingName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endedMails = append(f.endedMails, supplier.Email)
	return nil
}

func (f *fakeMailer) SendAuctionSummary(ctx context.Context, buyer *domain.Buyer, summary *domain.AuctionSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryMails = append(f.summaryMails, summary)
	return nil
}

func (f *fakeMailer) SendListingInvite(ctx context.Context, invite *domain.ListingInvite, listingName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inviteTokens = append(f.inviteTokens, invite.InviteToken)
	f.inviteTargets = append(f.inviteTargets, invite.Email)
	return nil
}

type fakeLeader struct {
	mu     sync.Mutex
	leader bool
}

func (f *fakeLeader) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leader, nil
}

func (f *fakeLeader) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leader, nil
}

func (f *fakeLeader) ReleaseLeadership(ctx context.Context, instanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leader = false
	return nil
}
