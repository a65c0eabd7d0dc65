package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Zuhair246/kitab4u-sub000/internal/api/middleware"
	"github.com/Zuhair246/kitab4u-sub000/internal/auth"
)

// NewRouter wires every endpoint. Routes under /api require a valid
// access token; /api/admin additionally requires the admin role.
func NewRouter(
	authH *AuthHandlers,
	shop *ShopHandlers,
	admin *AdminHandlers,
	jwtService *auth.JWTService,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Metrics)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public storefront.
		r.Get("/products", shop.ListProducts)
		r.Get("/products/{id}", shop.GetProduct)
		r.Get("/categories", shop.ListCategories)

		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/logout", authH.Logout)
		r.Post("/auth/refresh", authH.Refresh)

		// Gateway callback carries its own signature, not a user token.
		r.Post("/payment/verify", shop.VerifyPayment)

		// Authenticated shopper routes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(jwtService))

			r.Get("/auth/me", authH.Me)
			r.Post("/auth/otp", authH.RequestOTP)
			r.Post("/auth/otp/verify", authH.VerifyOTP)

			r.Get("/cart", shop.GetCart)
			r.Post("/cart/items", shop.AddToCart)
			r.Put("/cart/items", shop.UpdateCartItem)
			r.Delete("/cart/items", shop.RemoveCartItem)

			r.Get("/wishlist", shop.GetWishlist)
			r.Post("/wishlist/items", shop.AddToWishlist)
			r.Delete("/wishlist/items", shop.RemoveFromWishlist)

			r.Get("/addresses", shop.ListAddresses)
			r.Post("/addresses", shop.AddAddress)
			r.Put("/addresses/{id}", shop.UpdateAddress)
			r.Delete("/addresses/{id}", shop.DeleteAddress)
			r.Post("/addresses/{id}/default", shop.SetDefaultAddress)

			r.Get("/wallet", shop.GetWallet)

			r.Post("/coupons/apply", shop.ApplyCoupon)
			r.Delete("/coupons/apply", shop.RemoveCoupon)

			r.Post("/checkout", shop.Checkout)
			r.Get("/orders", shop.MyOrders)
			r.Get("/orders/{id}", shop.GetOrder)
			r.Post("/orders/{id}/cancel", shop.CancelOrder)
			r.Post("/orders/{id}/items/{itemID}/cancel", shop.CancelOrderItem)
			r.Post("/orders/{id}/return", shop.ReturnOrder)
			r.Post("/orders/{id}/items/{itemID}/return", shop.ReturnOrderItem)
			r.Post("/orders/{id}/payment/retry", shop.RetryPayment)
		})

		// Management console.
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAuth(jwtService))
			r.Use(middleware.RequireRole("admin"))

			r.Get("/categories", admin.ListCategories)
			r.Post("/categories", admin.CreateCategory)
			r.Put("/categories/{id}", admin.RenameCategory)
			r.Put("/categories/{id}/listed", admin.SetCategoryListed)

			r.Get("/products", admin.ListProducts)
			r.Post("/products", admin.CreateProduct)
			r.Put("/products/{id}", admin.UpdateProduct)
			r.Put("/products/{id}/blocked", admin.SetProductBlocked)
			r.Post("/products/{id}/variants", admin.AddVariant)
			r.Put("/products/{id}/variants/{variantID}", admin.UpdateVariant)

			r.Get("/coupons", admin.ListCoupons)
			r.Post("/coupons", admin.CreateCoupon)
			r.Put("/coupons/{code}/active", admin.SetCouponActive)

			r.Get("/offers", admin.ListOffers)
			r.Post("/offers", admin.CreateOffer)
			r.Put("/offers/{id}/active", admin.SetOfferActive)

			r.Get("/users", admin.ListUsers)
			r.Put("/users/{id}/active", admin.SetUserActive)

			r.Get("/orders", admin.ListOrders)
			r.Get("/orders/{id}", admin.GetOrder)
			r.Put("/orders/{id}/status", admin.UpdateOrderStatus)
			r.Post("/orders/{id}/return/decide", admin.DecideReturn)
			r.Post("/orders/{id}/items/{itemID}/return/decide", admin.DecideItemReturn)

			r.Get("/reports/sales", admin.SalesReport)
		})
	})

	return r
}
