package websocket

import (
	"context"
	"net/http"

	"reverse-auction/internal/domain"
	"reverse-auction/internal/services"
	"reverse-auction/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Handler upgrades supplier connections into a listing room and feeds bid
// messages into the bid service. Rejections go back only to the submitting
// connection; accepted bids reach the room through the event listener.
type Handler struct {
	bidService  *services.BidService
	listingRepo domain.ListingRepository
	inviteRepo  domain.InviteRepository
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewHandler(bidService *services.BidService, listingRepo domain.ListingRepository,
	inviteRepo domain.InviteRepository, connManager domain.ConnectionManager,
	log logger.Logger) *Handler {
	return &Handler{
		bidService:  bidService,
		listingRepo: listingRepo,
		inviteRepo:  inviteRepo,
		connManager: connManager,
		log:         log,
	}
}

func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request, listingID string) {
	ctx := r.Context()

	listing, err := h.listingRepo.GetListing(ctx, listingID)
	if err != nil {
		h.log.Error("Failed to find listing", "error", err, "listing_id", listingID)
		http.Error(w, "listing not found", http.StatusNotFound)
		return
	}

	if listing.Status == domain.ListingClosed {
		h.log.Info("Rejected connection, auction already closed", "listing_id", listingID)
		http.Error(w, "auction has already ended", http.StatusForbidden)
		return
	}

	supplierID := r.URL.Query().Get("supplier_id")
	if supplierID == "" {
		http.Error(w, "supplier_id required", http.StatusBadRequest)
		return
	}

	if listing.RequiresSupplierLogin {
		accepted, err := h.inviteRepo.HasAcceptedInvite(ctx, listingID, supplierID)
		if err != nil {
			h.log.Error("Failed to check invite", "error", err, "listing_id", listingID)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !accepted {
			http.Error(w, "supplier not invited to this auction", http.StatusForbidden)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewConnection(conn, supplierID, listingID)

	if err := h.connManager.RegisterConnection(supplierID, listingID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	go h.handleMessages(wsConn, supplierID, listingID)
}

func (h *Handler) handleMessages(conn *Connection, supplierID, listingID string) {
	defer func() {
		h.connManager.UnregisterConnection(supplierID, listingID)
		conn.Close()
	}()

	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		msgType, ok := msg["type"].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "place_bid":
			h.handleBidMessage(conn, supplierID, listingID, msg)
		case "ping":
			conn.Send(map[string]string{"type": "pong"})
		}
	}
}

func (h *Handler) handleBidMessage(conn domain.WebSocketConnection, supplierID, listingID string, msg map[string]interface{}) {
	lotID, ok := msg["lotId"].(string)
	if !ok {
		conn.Send(bidError(domain.ReasonLotNotFound))
		return
	}

	amountStr, ok := msg["amount"].(string)
	if !ok {
		conn.Send(bidError(domain.ReasonNonpositiveAmount))
		return
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		conn.Send(bidError(domain.ReasonNonpositiveAmount))
		return
	}

	result, err := h.bidService.SubmitBid(context.Background(), listingID, lotID, supplierID, amount)
	if err != nil {
		h.log.Error("Failed to submit bid", "error", err, "listing_id", listingID, "lot_id", lotID)
		conn.Send(map[string]interface{}{
			"type":    string(domain.EventBidError),
			"payload": map[string]interface{}{"reasons": []string{"INTERNAL_ERROR"}},
		})
		return
	}
	if !result.Accepted {
		conn.Send(bidError(result.Reasons...))
	}
}

func bidError(reasons ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":    string(domain.EventBidError),
		"payload": map[string]interface{}{"reasons": reasons},
	}
}
