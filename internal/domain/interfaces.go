package domain

import (
	"context"
	"time"
)

// ListingGraph is everything persisted atomically when a listing is created.
// Either the whole graph lands or none of it does.
type ListingGraph struct {
	Listing  *Listing
	Lots     []*Lot
	LotItems []*LotItem
	Products []*Product
	Terms    *TermsAndConditions
}

// Repository interfaces
type ListingRepository interface {
	CreateGraph(ctx context.Context, graph *ListingGraph) error
	GetListing(ctx context.Context, listingID string) (*Listing, error)
	// FindByLot resolves the listing whose ordered lot sequence contains
	// the given lot.
	FindByLot(ctx context.Context, lotID string) (*Listing, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	UpdateStatus(ctx context.Context, listingID string, status ListingStatus) error
	UpdateActiveLot(ctx context.Context, listingID, activeLotID, nextLotID string, endTime time.Time) error
	UpdateActiveLotEndTime(ctx context.Context, listingID string, endTime time.Time) error
	// GetRecoverable returns listings still Upcoming or In Progress whose
	// start date has already passed, for restart recovery.
	GetRecoverable(ctx context.Context, now time.Time) ([]*Listing, error)
}

type LotRepository interface {
	GetLot(ctx context.Context, lotID string) (*Lot, error)
	GetLotsForListing(ctx context.Context, listingID string) ([]*Lot, error)
	UpdateActivation(ctx context.Context, lotID string, startTime time.Time, status LotStatus) error
	UpdateStatus(ctx context.Context, lotID string, status LotStatus) error
	GetItemSummaries(ctx context.Context, lotID string) ([]ItemSummary, error)
}

type BidRepository interface {
	CreateBid(ctx context.Context, bid *Bid) error
	// LowestBid returns the standing bid: minimum amount, earliest created
	// on ties. Returns ErrNotFound when the lot has no bids.
	LowestBid(ctx context.Context, lotID string) (*Bid, error)
	// LatestBidBySupplier returns the supplier's most recent bid on the
	// lot by creation time, or ErrNotFound.
	LatestBidBySupplier(ctx context.Context, lotID, supplierID string) (*Bid, error)
	GetBidsForLot(ctx context.Context, lotID string) ([]*Bid, error)
}

type InviteRepository interface {
	CreateInvite(ctx context.Context, invite *ListingInvite) error
	HasAcceptedInvite(ctx context.Context, listingID, supplierID string) (bool, error)
	AcceptByToken(ctx context.Context, token string) (*ListingInvite, error)
	GetInvitesForListing(ctx context.Context, listingID string) ([]*ListingInvite, error)
}

type SupplierRepository interface {
	GetSupplier(ctx context.Context, supplierID string) (*Supplier, error)
}

type BuyerRepository interface {
	GetBuyer(ctx context.Context, buyerID string) (*Buyer, error)
}

type SchedulerRepository interface {
	// UpsertJob inserts a pending job or, when a job with the same key
	// exists, atomically replaces its due time and payload.
	UpsertJob(ctx context.Context, job *ScheduledJob) error
	CancelByKey(ctx context.Context, key string) error
	GetDueJobs(ctx context.Context, before time.Time) ([]*ScheduledJob, error)
	// MarkExecuted completes the job only if it still has the due time
	// that fired, so a concurrent reschedule under the same key is not
	// swallowed.
	MarkExecuted(ctx context.Context, key string, runAt time.Time) error
}

// JobPayload identifies what a fired timer should do.
type JobPayload struct {
	ListingID string
	LotID     string
	Action    JobAction
}

// JobScheduler is the durable timer. Schedule and Reschedule are both
// replace-by-key; a stale job under the same key never survives alongside
// its replacement.
type JobScheduler interface {
	Schedule(ctx context.Context, key string, runAt time.Time, payload JobPayload) error
	Reschedule(ctx context.Context, key string, runAt time.Time, payload JobPayload) error
	Cancel(ctx context.Context, key string) error
	Start(ctx context.Context) error
	Stop() error
}

// Notifier fans engine events out to connected clients. Delivery is
// fire-and-forget: failures are logged by implementations and never affect
// auction state.
type Notifier interface {
	Emit(ctx context.Context, event *AuctionEvent) error
}

// Mailer is the outbound email/report collaborator.
type Mailer interface {
	SendAuctionEnded(ctx context.Context, supplier *Supplier, listingName string) error
	SendAuctionSummary(ctx context.Context, buyer *Buyer, summary *AuctionSummary) error
	SendListingInvite(ctx context.Context, invite *ListingInvite, listingName string) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Event interfaces
type EventPublisher interface {
	PublishAuctionEvent(ctx context.Context, event *AuctionEvent) error
}

type EventHandler func(event *AuctionEvent) error

type EventSubscriber interface {
	SubscribeToAuctionEvents(ctx context.Context, handler EventHandler) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	ListingID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, listingID string, conn WebSocketConnection) error
	UnregisterConnection(userID, listingID string) error
	BroadcastToRoom(listingID string, message interface{}) error
	BroadcastToAll(message interface{}) error
	CloseRoom(listingID string) error
}
