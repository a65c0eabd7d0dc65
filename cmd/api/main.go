package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zuhair246/kitab4u-sub000/internal/api"
	"github.com/Zuhair246/kitab4u-sub000/internal/auth"
	"github.com/Zuhair246/kitab4u-sub000/internal/config"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/address"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/cart"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/catalog"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/coupon"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/order"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/pricing"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/user"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wallet"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wishlist"
	"github.com/Zuhair246/kitab4u-sub000/internal/infrastructure/kafka"
	"github.com/Zuhair246/kitab4u-sub000/internal/infrastructure/session"
	"github.com/Zuhair246/kitab4u-sub000/internal/infrastructure/store"
	"github.com/Zuhair246/kitab4u-sub000/internal/payment"
)

func main() {
	cfg := config.Load()

	log.Println("[API] ========================================")
	log.Printf("[API] %s", cfg.ServiceName)
	log.Println("[API] ========================================")
	log.Printf("[API] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[API] Topic: %s", cfg.KafkaTopic)

	if cfg.JWTSecret == "dev-secret-change-me" {
		log.Println("[API] WARNING: using the default JWT secret; set JWT_SECRET")
	}

	db, err := store.Connect(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[API] Connected to PostgreSQL")

	pg := store.NewPostgres(db)
	if err := pg.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("[API] Failed to ensure schema: %v", err)
	}

	rdb := session.NewClient(cfg.RedisAddr)
	defer rdb.Close()
	sessions := session.NewStore(rdb)

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	gateway := payment.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)

	// Domain services, all backed by the one postgres store.
	catalogSvc := catalog.NewService(pg)
	pricingEngine := pricing.NewEngine(pg)
	wishlistSvc := wishlist.NewService(pg, catalogSvc, pricingEngine)
	cartSvc := cart.NewService(pg, catalogSvc, pricingEngine, wishlistSvc)
	addressSvc := address.NewService(pg)
	walletSvc := wallet.NewService(pg)
	couponEngine := coupon.NewEngine(pg)
	userSvc := user.NewService(pg)
	orderSvc := order.NewService(pg, pricingEngine, gateway, producer)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)

	authHandlers := api.NewAuthHandlers(userSvc, jwtService, sessions, producer)
	shopHandlers := api.NewShopHandlers(
		catalogSvc, pricingEngine, cartSvc, wishlistSvc,
		addressSvc, walletSvc, couponEngine, orderSvc, sessions,
	)
	adminHandlers := api.NewAdminHandlers(
		catalogSvc, couponEngine, pricingEngine, userSvc, orderSvc, pg,
	)

	router := api.NewRouter(authHandlers, shopHandlers, adminHandlers, jwtService)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Shutdown error: %v", err)
	}
}
