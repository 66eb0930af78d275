package websocket

import (
	"testing"

	"reverse-auction/internal/domain"

	"github.com/stretchr/testify/require"
)

func lastBidErrorReasons(t *testing.T, conn *stubConn) []string {
	t.Helper()
	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.NotEmpty(t, conn.sent)

	msg, ok := conn.sent[len(conn.sent)-1].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, string(domain.EventBidError), msg["type"])

	payload, ok := msg["payload"].(map[string]interface{})
	require.True(t, ok)
	reasons, ok := payload["reasons"].([]string)
	require.True(t, ok)
	return reasons
}

func TestHandleBidMessageRejectsMalformedPayload(t *testing.T) {
	h := &Handler{log: testLog}

	cases := []struct {
		name   string
		msg    map[string]interface{}
		reason string
	}{
		{"missing lot id", map[string]interface{}{"amount": "100"}, domain.ReasonLotNotFound},
		{"amount not a string", map[string]interface{}{"lotId": "lot-1", "amount": 100}, domain.ReasonNonpositiveAmount},
		{"amount not a number", map[string]interface{}{"lotId": "lot-1", "amount": "a lot"}, domain.ReasonNonpositiveAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := &stubConn{userID: "s1", listingID: "l1"}
			h.handleBidMessage(conn, "s1", "l1", tc.msg)
			require.Equal(t, []string{tc.reason}, lastBidErrorReasons(t, conn))
		})
	}
}
