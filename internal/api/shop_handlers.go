package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Zuhair246/kitab4u-sub000/internal/api/middleware"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/address"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/cart"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/catalog"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/coupon"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/order"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/pricing"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wallet"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wishlist"
	"github.com/Zuhair246/kitab4u-sub000/internal/infrastructure/session"
)

// ShopHandlers serves the storefront: browsing, cart, wishlist, addresses,
// wallet, coupons and the order flow.
type ShopHandlers struct {
	catalog   *catalog.Service
	pricing   *pricing.Engine
	carts     *cart.Service
	wishlists *wishlist.Service
	addresses *address.Service
	wallets   *wallet.Service
	coupons   *coupon.Engine
	orders    *order.Service
	sessions  *session.Store
}

func NewShopHandlers(
	cat *catalog.Service,
	pr *pricing.Engine,
	carts *cart.Service,
	wl *wishlist.Service,
	addr *address.Service,
	wal *wallet.Service,
	cpn *coupon.Engine,
	ord *order.Service,
	sess *session.Store,
) *ShopHandlers {
	return &ShopHandlers{
		catalog: cat, pricing: pr, carts: carts, wishlists: wl,
		addresses: addr, wallets: wal, coupons: cpn, orders: ord, sessions: sess,
	}
}

// variantView is a catalog variant with its effective price resolved
// against active offers.
type variantView struct {
	catalog.Variant
	FinalPrice      float64 `json:"final_price"`
	DiscountPercent float64 `json:"discount_percent"`
}

type productView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	CategoryID  string        `json:"category_id"`
	Images      []string      `json:"images"`
	Variants    []variantView `json:"variants"`
}

func (h *ShopHandlers) productView(r *http.Request, p *catalog.Product) (productView, error) {
	view := productView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CategoryID:  p.CategoryID,
		Images:      p.Images,
		Variants:    make([]variantView, 0, len(p.Variants)),
	}
	for _, v := range p.Variants {
		q, err := h.pricing.Quote(r.Context(), v, p.CategoryID, p.ID)
		if err != nil {
			return productView{}, err
		}
		view.Variants = append(view.Variants, variantView{
			Variant:         v,
			FinalPrice:      q.FinalPrice,
			DiscountPercent: q.DiscountPercent,
		})
	}
	return view, nil
}

// ListProducts returns the storefront catalog with effective prices.
func (h *ShopHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Browse(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	views := make([]productView, 0, len(products))
	for i := range products {
		v, err := h.productView(r, &products[i])
		if err != nil {
			respondDomainError(w, err)
			return
		}
		views = append(views, v)
	}
	respondJSON(w, http.StatusOK, map[string]any{"products": views})
}

// GetProduct returns one product. Blocked products and products in
// unlisted categories are indistinguishable from missing ones.
func (h *ShopHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if p.Blocked {
		respondDomainError(w, catalog.ErrProductNotFound)
		return
	}
	cat, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	listed := false
	for _, c := range cat {
		if c.ID == p.CategoryID && c.Listed {
			listed = true
			break
		}
	}
	if !listed {
		respondDomainError(w, catalog.ErrProductNotFound)
		return
	}

	view, err := h.productView(r, p)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *ShopHandlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	listed := make([]catalog.Category, 0, len(categories))
	for _, c := range categories {
		if c.Listed {
			listed = append(listed, c)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": listed})
}

// --- Cart ---

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

func (h *ShopHandlers) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(c))
}

func (h *ShopHandlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	c, err := h.carts.AddItem(r.Context(), middleware.GetUserID(r.Context()), req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(c))
}

func (h *ShopHandlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	c, err := h.carts.UpdateQuantity(r.Context(), middleware.GetUserID(r.Context()), req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(c))
}

func (h *ShopHandlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	c, err := h.carts.RemoveItem(r.Context(), middleware.GetUserID(r.Context()), req.ProductID, req.VariantID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(c))
}

func cartResponse(c *cart.Cart) map[string]any {
	subtotal := c.Subtotal()
	shipping := 0.0
	if !c.Empty() && subtotal < order.FreeShippingThreshold {
		shipping = order.ShippingCharge
	}
	return map[string]any{
		"cart":     c,
		"subtotal": subtotal,
		"shipping": shipping,
		"total":    subtotal + shipping,
	}
}

// --- Wishlist ---

func (h *ShopHandlers) GetWishlist(w http.ResponseWriter, r *http.Request) {
	wl, err := h.wishlists.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wl)
}

func (h *ShopHandlers) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	wl, err := h.wishlists.Add(r.Context(), middleware.GetUserID(r.Context()), req.ProductID, req.VariantID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wl)
}

func (h *ShopHandlers) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	userID := middleware.GetUserID(r.Context())
	if err := h.wishlists.Remove(r.Context(), userID, req.ProductID, req.VariantID); err != nil {
		respondDomainError(w, err)
		return
	}
	wl, err := h.wishlists.Get(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wl)
}

// --- Addresses ---

func (h *ShopHandlers) ListAddresses(w http.ResponseWriter, r *http.Request) {
	entries, err := h.addresses.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"addresses": entries})
}

func (h *ShopHandlers) AddAddress(w http.ResponseWriter, r *http.Request) {
	var e address.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	saved, err := h.addresses.Add(r.Context(), middleware.GetUserID(r.Context()), e)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

func (h *ShopHandlers) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	var e address.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	e.ID = chi.URLParam(r, "id")
	if err := h.addresses.Update(r.Context(), middleware.GetUserID(r.Context()), e); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Address updated"})
}

func (h *ShopHandlers) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := h.addresses.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Address removed"})
}

func (h *ShopHandlers) SetDefaultAddress(w http.ResponseWriter, r *http.Request) {
	if err := h.addresses.SetDefault(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Default address set"})
}

// --- Wallet ---

func (h *ShopHandlers) GetWallet(w http.ResponseWriter, r *http.Request) {
	wal, err := h.wallets.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wal)
}

// --- Coupons ---

// ApplyCoupon validates the code against the current cart total and parks
// the resulting quote in the session. Nothing is consumed until checkout.
func (h *ShopHandlers) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserID(r.Context())
	c, err := h.carts.Get(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if c.Empty() {
		respondDomainError(w, order.ErrCartEmpty)
		return
	}
	subtotal := c.Subtotal()
	finalAmount := subtotal
	if subtotal < order.FreeShippingThreshold {
		finalAmount += order.ShippingCharge
	}

	quote, err := h.coupons.Apply(r.Context(), req.Code, finalAmount, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if err := h.sessions.SaveCouponQuote(r.Context(), quote); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

func (h *ShopHandlers) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.ClearCouponQuote(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Coupon removed"})
}

// --- Checkout and payments ---

type checkoutRequest struct {
	AddressID string `json:"address_id"`
	Method    string `json:"method"`
}

func (h *ShopHandlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	userID := middleware.GetUserID(r.Context())

	quote, err := h.sessions.GetCouponQuote(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	result, err := h.orders.Checkout(r.Context(), order.CheckoutInput{
		UserID:    userID,
		AddressID: req.AddressID,
		Method:    order.PaymentMethod(req.Method),
		Quote:     quote,
	})
	middleware.RecordCheckout(req.Method, err == nil)
	if err != nil {
		respondPaymentError(w, err)
		return
	}

	if quote != nil {
		_ = h.sessions.ClearCouponQuote(r.Context(), userID)
	}
	respondJSON(w, http.StatusCreated, checkoutResponse{Success: true, CheckoutResult: result})
}

// checkoutResponse adds the success flag the storefront's checkout flow
// keys on.
type checkoutResponse struct {
	Success bool `json:"success"`
	*order.CheckoutResult
}

// VerifyPayment handles the gateway's completion callback. A signature
// failure is a 200 with verified=false so the client can offer a retry.
func (h *ShopHandlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	var cb order.Callback
	if err := json.Unmarshal(raw, &cb); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cb.Raw = string(raw)

	result, err := h.orders.VerifyPayment(r.Context(), cb)
	if err != nil {
		respondPaymentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  result.Verified,
		"order_id": result.OrderID,
		"message":  result.Reason,
	})
}

func (h *ShopHandlers) RetryPayment(w http.ResponseWriter, r *http.Request) {
	result, err := h.orders.RetryPayment(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()))
	if err != nil {
		respondPaymentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse{Success: true, CheckoutResult: result})
}

// --- Orders ---

func (h *ShopHandlers) MyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *ShopHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func decodeReason(r *http.Request) string {
	var req reasonRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	return req.Reason
}

func (h *ShopHandlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.CancelOrder(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()), decodeReason(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *ShopHandlers) CancelOrderItem(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.CancelItem(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()), chi.URLParam(r, "itemID"), decodeReason(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *ShopHandlers) ReturnOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RequestReturn(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()), decodeReason(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *ShopHandlers) ReturnOrderItem(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RequestItemReturn(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()), chi.URLParam(r, "itemID"), decodeReason(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}
