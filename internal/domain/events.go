package domain

type EventName string

const (
	EventAuctionStarted  EventName = "auction-started"
	EventLotTransition   EventName = "lot-transition"
	EventAuctionExtended EventName = "auction-extended"
	EventNewBid          EventName = "new-bid"
	EventAuctionClosed   EventName = "auction-closed"
	EventBidError        EventName = "bid-error"
)

// AuctionEvent is what the engine hands to the Notifier. ListingID doubles
// as the room identifier; Broadcast additionally fans the event out to every
// connected client regardless of room.
type AuctionEvent struct {
	Name      EventName              `json:"name"`
	ListingID string                 `json:"listing_id"`
	Broadcast bool                   `json:"broadcast,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Bid rejection reason codes, in validation order.
const (
	ReasonLotNotFound             = "LOT_NOT_FOUND"
	ReasonListingNotFound         = "LISTING_NOT_FOUND"
	ReasonDuplicatePrebid         = "DUPLICATE_PREBID"
	ReasonAuctionNotActive        = "AUCTION_NOT_ACTIVE"
	ReasonLotNotActive            = "LOT_NOT_ACTIVE"
	ReasonInviteNotAccepted       = "INVITE_NOT_ACCEPTED"
	ReasonNonpositiveAmount       = "NONPOSITIVE_AMOUNT"
	ReasonAmountAboveReserve      = "AMOUNT_ABOVE_RESERVE"
	ReasonNotLowerThanStanding    = "NOT_LOWER_THAN_STANDING"
	ReasonNotLowerThanOwnPrevious = "NOT_LOWER_THAN_OWN_PREVIOUS"
	ReasonDecrementTooSmall       = "DECREMENT_TOO_SMALL"
)

// BidResult is the synchronous answer to a bid submission. Reasons is empty
// exactly when Accepted is true.
type BidResult struct {
	Accepted bool     `json:"accepted"`
	Reasons  []string `json:"reasons,omitempty"`
	Bid      *Bid     `json:"bid,omitempty"`
}
