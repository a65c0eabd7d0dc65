package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key_test", user)
		assert.Equal(t, "secret_test", pass)

		var req createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(64900), req.Amount, "amount must be in paise")
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, "order-123", req.Receipt)

		json.NewEncoder(w).Encode(createOrderResponse{
			ID:       "order_gw001",
			Amount:   req.Amount,
			Currency: req.Currency,
			Status:   "created",
		})
	}))
	defer srv.Close()

	c := NewClient("key_test", "secret_test", WithBaseURL(srv.URL))

	gw, err := c.CreateOrder(context.Background(), 649.0, "order-123")
	require.NoError(t, err)
	assert.Equal(t, "order_gw001", gw.ID)
	assert.Equal(t, int64(64900), gw.AmountMinor)
	assert.Equal(t, "INR", gw.Currency)
}

func TestCreateOrderGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"description":"Authentication failed"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("key_test", "wrong", WithBaseURL(srv.URL))

	_, err := c.CreateOrder(context.Background(), 100.0, "order-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestVerifySignature(t *testing.T) {
	c := NewClient("key_test", "secret_test")

	sign := func(orderID, paymentID string) string {
		mac := hmac.New(sha256.New, []byte("secret_test"))
		mac.Write([]byte(orderID + "|" + paymentID))
		return hex.EncodeToString(mac.Sum(nil))
	}

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{
			name:      "valid signature",
			orderID:   "order_gw001",
			paymentID: "pay_001",
			signature: sign("order_gw001", "pay_001"),
			want:      true,
		},
		{
			name:      "signature for a different payment",
			orderID:   "order_gw001",
			paymentID: "pay_001",
			signature: sign("order_gw001", "pay_002"),
			want:      false,
		},
		{
			name:      "tampered signature",
			orderID:   "order_gw001",
			paymentID: "pay_001",
			signature: "deadbeef",
			want:      false,
		},
		{
			name:      "empty signature",
			orderID:   "order_gw001",
			paymentID: "pay_001",
			signature: "",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.VerifySignature(tt.orderID, tt.paymentID, tt.signature))
		})
	}
}
