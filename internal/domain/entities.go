package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ListingStatus string

const (
	ListingUpcoming   ListingStatus = "Upcoming"
	ListingInProgress ListingStatus = "In Progress"
	ListingClosed     ListingStatus = "Closed"
)

type LotStatus string

const (
	LotPending    LotStatus = "Pending"
	LotInProgress LotStatus = "In Progress"
	LotClosed     LotStatus = "Closed"
)

// Listing is one reverse-auction event: an ordered sequence of lots offered
// by a buyer to invited suppliers. Lot order is fixed once the listing is
// created; ActiveLotID always points at the lot currently open for bidding.
type Listing struct {
	ID                     string
	BuyerID                string
	Name                   string
	Slug                   string
	Region                 string
	DepartmentCode         string
	BusinessUnit           string
	Currency               string
	Description            string
	StartDate              time.Time
	StartTime              string // "HH:mm" wall clock in the business timezone
	BidDecrementPercentage float64
	Status                 ListingStatus
	RequiresSupplierLogin  bool
	SupplierIDs            []string
	LotIDs                 []string
	ActiveLotID            string
	NextLotID              string
	ActiveLotEndTime       time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Lot is one biddable unit. LotPrice is the reserve: bids must stay strictly
// below it. StartTime is unset until the lot becomes active.
type Lot struct {
	ID         string
	LotItemIDs []string
	LotPrice   decimal.Decimal
	Duration   string // "HH:MM"
	StartTime  time.Time
	Status     LotStatus
}

type LotItem struct {
	ID        string
	LotID     string
	ProductID string
	Qty       int
	UOM       string
}

type Product struct {
	ID          string
	Name        string
	Description string
}

// Bid is immutable once created. CreatedAt is the authoritative ordering key
// for tie-breaks and "previous own bid" lookups.
type Bid struct {
	ID         string
	LotID      string
	SupplierID string
	Amount     decimal.Decimal
	CreatedAt  time.Time
}

type Supplier struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

type Buyer struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

type ListingInvite struct {
	ID          string
	ListingID   string
	SupplierID  string
	Email       string
	InviteToken string
	Accepted    bool
}

type TermsAndConditions struct {
	ID                 string
	ListingID          string
	PriceBasis         string
	TaxesAndDuties     string
	Delivery           string
	PaymentTerms       string
	WarrantyGuarantee  string
	InspectionRequired bool
	OtherTerms         string
	AwardingDecision   string
}

type JobAction string

const (
	JobStartAuction        JobAction = "startAuction"
	JobTransitionToNextLot JobAction = "transitionToNextLot"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)

// ScheduledJob is a durable delayed job. Key is unique among pending jobs:
// scheduling under an existing key replaces the old job instead of
// duplicating it, which is what keeps extensions from stacking timers.
type ScheduledJob struct {
	Key       string
	ListingID string
	LotID     string
	Action    JobAction
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

func StartJobKey(listingID string) string {
	return fmt.Sprintf("start:%s", listingID)
}

func TransitionJobKey(listingID, lotID string) string {
	return fmt.Sprintf("transition:%s:%s", listingID, lotID)
}

// AuctionSummary is handed to the mail collaborator when an auction settles.
type AuctionSummary struct {
	ListingID   string       `json:"listing_id"`
	ListingName string       `json:"listing_name"`
	Lots        []LotSummary `json:"lots"`
}

type LotSummary struct {
	LotID           string           `json:"lot_id"`
	WinningSupplier string           `json:"winning_supplier,omitempty"`
	WinningAmount   *decimal.Decimal `json:"winning_amount,omitempty"`
	Items           []ItemSummary    `json:"items"`
}

type ItemSummary struct {
	ProductName string `json:"product_name"`
	Qty         int    `json:"qty"`
	UOM         string `json:"uom"`
}
