package handlers

import (
	"errors"
	"net/http"

	"reverse-auction/internal/domain"
	"reverse-auction/pkg/logger"

	"github.com/labstack/echo/v4"
)

type InviteHandler struct {
	inviteRepo domain.InviteRepository
	log        logger.Logger
}

func NewInviteHandler(inviteRepo domain.InviteRepository, log logger.Logger) *InviteHandler {
	return &InviteHandler{inviteRepo: inviteRepo, log: log}
}

// AcceptInvite marks an invite accepted by its token. Accepting is
// idempotent at the API level only in the failure direction: an unknown or
// already used token is a 404.
func (h *InviteHandler) AcceptInvite(c echo.Context) error {
	token := c.Param("token")

	invite, err := h.inviteRepo.AcceptByToken(c.Request().Context(), token)
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "invite not found"})
	} else if err != nil {
		h.log.Error("Failed to accept invite", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to accept invite"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"listingId":  invite.ListingID,
		"supplierId": invite.SupplierID,
		"accepted":   true,
	})
}
