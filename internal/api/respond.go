package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Zuhair246/kitab4u-sub000/internal/auth"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/address"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/cart"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/catalog"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/coupon"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/order"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/pricing"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/user"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wallet"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps a domain error onto an HTTP status. Unknown
// errors become 500s with a generic body so internals don't leak.
func respondDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	respondJSONError(w, msg, status)
}

// respondPaymentError answers the checkout/payment AJAX calls, which
// expect a success flag instead of the plain error envelope. A gateway
// outage is a soft outcome: the client is redirected to retry.
func respondPaymentError(w http.ResponseWriter, err error) {
	if errors.Is(err, order.ErrGatewayUnavailable) {
		respondJSON(w, http.StatusOK, map[string]any{
			"success":  false,
			"message":  "Payment service is temporarily unavailable. Please try again.",
			"redirect": "/cart",
		})
		return
	}
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	respondJSON(w, status, map[string]any{"success": false, "message": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, order.ErrPaymentNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, catalog.ErrVariantNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, address.ErrNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, order.ErrNotReturnable),
		errors.Is(err, order.ErrReturnWindowClosed),
		errors.Is(err, order.ErrAlreadyProcessed),
		errors.Is(err, order.ErrOrderCancelled),
		errors.Is(err, order.ErrStockConflict),
		errors.Is(err, order.ErrCouponUnavailable),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, coupon.ErrAlreadyUsed),
		errors.Is(err, coupon.ErrCodeTaken),
		errors.Is(err, user.ErrEmailTaken):
		return http.StatusConflict

	case errors.Is(err, order.ErrInsufficientBalance):
		return http.StatusPaymentRequired

	case errors.Is(err, order.ErrNotOwner),
		errors.Is(err, user.ErrUserBlocked):
		return http.StatusForbidden

	case errors.Is(err, user.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized

	case errors.Is(err, order.ErrCartEmpty),
		errors.Is(err, order.ErrCartInvalid),
		errors.Is(err, order.ErrCODLimitExceeded),
		errors.Is(err, order.ErrInvalidMethod),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrQuantityCapped),
		errors.Is(err, catalog.ErrProductUnavailable),
		errors.Is(err, catalog.ErrOutOfStock),
		errors.Is(err, catalog.ErrInvalidName),
		errors.Is(err, catalog.ErrInvalidPrice),
		errors.Is(err, coupon.ErrBelowMinimum),
		errors.Is(err, coupon.ErrInvalidValue),
		errors.Is(err, pricing.ErrInvalidPercent),
		errors.Is(err, address.ErrMissingFields),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, user.ErrInvalidEmail),
		errors.Is(err, user.ErrInvalidName):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
