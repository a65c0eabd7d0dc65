package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/catalog"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/coupon"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/order"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/pricing"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/user"
	"github.com/Zuhair246/kitab4u-sub000/internal/infrastructure/store"
)

// SalesReporter builds the aggregated sales report. Satisfied by the
// postgres store.
type SalesReporter interface {
	SalesSummary(ctx context.Context, from, to time.Time) (*store.SalesReport, error)
}

// AdminHandlers serves the management console: catalog, coupons, offers,
// users, orders and reporting.
type AdminHandlers struct {
	catalog *catalog.Service
	coupons *coupon.Engine
	pricing *pricing.Engine
	users   *user.Service
	orders  *order.Service
	sales   SalesReporter
}

func NewAdminHandlers(
	cat *catalog.Service,
	cpn *coupon.Engine,
	pr *pricing.Engine,
	users *user.Service,
	orders *order.Service,
	sales SalesReporter,
) *AdminHandlers {
	return &AdminHandlers{catalog: cat, coupons: cpn, pricing: pr, users: users, orders: orders, sales: sales}
}

// --- Categories ---

func (h *AdminHandlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (h *AdminHandlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	c, err := h.catalog.CreateCategory(r.Context(), req.Name)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *AdminHandlers) RenameCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.catalog.RenameCategory(r.Context(), chi.URLParam(r, "id"), req.Name); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Category updated"})
}

// SetCategoryListed lists or unlists a category on the storefront.
func (h *AdminHandlers) SetCategoryListed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Listed bool `json:"listed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.catalog.SetListed(r.Context(), chi.URLParam(r, "id"), req.Listed); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Category updated"})
}

// --- Products ---

type productRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	CategoryID  string            `json:"category_id"`
	Images      []string          `json:"images"`
	Variants    []catalog.Variant `json:"variants"`
}

func (h *AdminHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListAll(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *AdminHandlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	p, err := h.catalog.CreateProduct(r.Context(), req.Name, req.Description, req.CategoryID, req.Images, req.Variants)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *AdminHandlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	p, err := h.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description, req.CategoryID, req.Images)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// SetProductBlocked hides or restores a product on the storefront.
func (h *AdminHandlers) SetProductBlocked(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Blocked bool `json:"blocked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.catalog.SetBlocked(r.Context(), chi.URLParam(r, "id"), req.Blocked); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Product updated"})
}

func (h *AdminHandlers) AddVariant(w http.ResponseWriter, r *http.Request) {
	var v catalog.Variant
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	p, err := h.catalog.AddVariant(r.Context(), chi.URLParam(r, "id"), v)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *AdminHandlers) UpdateVariant(w http.ResponseWriter, r *http.Request) {
	var v catalog.Variant
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	v.ID = chi.URLParam(r, "variantID")
	if err := h.catalog.UpdateVariant(r.Context(), chi.URLParam(r, "id"), v); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Variant updated"})
}

// --- Coupons ---

type couponRequest struct {
	Code          string  `json:"code"`
	Percent       float64 `json:"percent"`
	MinOrderValue float64 `json:"min_order_value"`
	MaxDiscount   float64 `json:"max_discount"`
	ExpiresAt     string  `json:"expires_at"`
}

func (h *AdminHandlers) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"coupons": coupons})
}

func (h *AdminHandlers) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	expires, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		respondJSONError(w, "expires_at must be RFC3339", http.StatusBadRequest)
		return
	}
	c, err := h.coupons.Create(r.Context(), req.Code, req.Percent, req.MinOrderValue, req.MaxDiscount, expires)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *AdminHandlers) SetCouponActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.coupons.SetActive(r.Context(), chi.URLParam(r, "code"), req.Active); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Coupon updated"})
}

// --- Offers ---

type offerRequest struct {
	Kind      string  `json:"kind"`
	TargetID  string  `json:"target_id"`
	Percent   float64 `json:"percent"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
}

func (h *AdminHandlers) ListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.pricing.ListOffers(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"offers": offers})
}

func (h *AdminHandlers) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	kind := pricing.OfferKind(req.Kind)
	if kind != pricing.OfferProduct && kind != pricing.OfferCategory {
		respondJSONError(w, "kind must be product or category", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		respondJSONError(w, "start_date must be RFC3339", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		respondJSONError(w, "end_date must be RFC3339", http.StatusBadRequest)
		return
	}
	o, err := h.pricing.CreateOffer(r.Context(), kind, req.TargetID, req.Percent, start, end)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *AdminHandlers) SetOfferActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.pricing.SetOfferActive(r.Context(), chi.URLParam(r, "id"), req.Active); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Offer updated"})
}

// --- Users ---

func (h *AdminHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": out})
}

// SetUserActive blocks or unblocks a customer account.
func (h *AdminHandlers) SetUserActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.users.SetActive(r.Context(), chi.URLParam(r, "id"), req.Active); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "User updated"})
}

// --- Orders ---

func (h *AdminHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *AdminHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// UpdateOrderStatus moves an order along the fulfilment chain.
func (h *AdminHandlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), order.Status(req.Status))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

type decideRequest struct {
	Approve bool `json:"approve"`
}

func (h *AdminHandlers) DecideReturn(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	o, err := h.orders.DecideReturn(r.Context(), chi.URLParam(r, "id"), req.Approve)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *AdminHandlers) DecideItemReturn(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	o, err := h.orders.DecideItemReturn(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), req.Approve)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// --- Reporting ---

// SalesReport aggregates orders in [from, to]; both bounds are dates and
// default to the last 30 days.
func (h *AdminHandlers) SalesReport(w http.ResponseWriter, r *http.Request) {
	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondJSONError(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondJSONError(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		// Inclusive end date.
		to = t.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		respondJSONError(w, "from must be before to", http.StatusBadRequest)
		return
	}

	report, err := h.sales.SalesSummary(r.Context(), from, to)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
