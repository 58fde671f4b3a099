package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/wishlistai/backend/docs"
	"github.com/wishlistai/backend/internal/audit"
	"github.com/wishlistai/backend/internal/config"
	"github.com/wishlistai/backend/internal/database"
	"github.com/wishlistai/backend/internal/handlers"
	mW "github.com/wishlistai/backend/internal/middleware"
	"github.com/wishlistai/backend/internal/realtime"
	"github.com/wishlistai/backend/internal/services"
)

// @title Wishlist API
// @version 1.0
// @description Shared wishlists with anonymous reservations, partial contributions and live totals
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("pushover.app_token", "PUSHOVER_APP_TOKEN")
	viper.BindEnv("app.public_url", "PUBLIC_URL")
	viper.BindEnv("app.image_dir", "ITEM_IMAGE_DIR")
	viper.BindEnv("app.port", "PORT")

	viper.SetDefault("app.public_url", "http://localhost:3000")
	viper.SetDefault("app.image_dir", "./static/item-images")
	viper.SetDefault("app.port", "8080")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	docs.SwaggerInfo.Title = "Wishlist API"
	docs.SwaggerInfo.Description = "Shared wishlists with anonymous reservations, partial contributions and live totals"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	rtConfig := config.LoadRealtimeConfig()

	startCtx, stopStart := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	db := database.InitDatabase(startCtx)
	defer db.Close()

	redisClient := database.InitRedis(startCtx)
	stopStart()
	if redisClient != nil {
		defer redisClient.Close()
	}

	hub := realtime.NewHub(realtime.Config{
		ReadTimeout:  3*rtConfig.PingInterval + 15*time.Second,
		WriteTimeout: rtConfig.WriteTimeout,
		SendBuffer:   rtConfig.SendBuffer,
	})

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()

	// With Redis every instance relays the shared channel to its own
	// sockets; without it the hub is the only fan-out.
	var publisher services.Publisher = hub
	if redisClient != nil {
		publisher = services.NewRedisPublisher(redisClient, rtConfig.EventChannelPrefix)
		go func() {
			if err := hub.RelayRedis(relayCtx, redisClient, rtConfig.EventChannelPrefix); err != nil && relayCtx.Err() == nil {
				log.Printf("[HUB] redis relay stopped: %v", err)
			}
		}()
	}

	auditLogger := audit.NewLogger()
	ledger := services.NewReservationLedger(db)
	notifier := services.NewPushoverNotifier(db, viper.GetString("pushover.app_token"))

	reservationService := services.NewReservationService(ledger, redisClient, publisher, notifier, auditLogger, services.ReservationConfig{
		RateLimit:  rtConfig.ReserveRateLimit,
		RateWindow: rtConfig.ReserveRateWindow,
	})
	publicService := services.NewPublicService(db)
	listService := services.NewListService(db, auditLogger)
	itemService := services.NewItemService(db, ledger, publisher, auditLogger)
	userService := services.NewUserService(db)
	shareHandler := handlers.NewShareHandler(services.NewShareService(db, redisClient, viper.GetString("app.public_url")))
	wsHandler := handlers.NewWSHandler(hub)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Item images
	r.Handle("/static/item-images/*", http.StripPrefix("/static/item-images/",
		mW.ItemImageServer(viper.GetString("app.image_dir"))))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Event channel, outside the request timeout
		r.Get("/ws/wishlist/{id}", wsHandler.Subscribe)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// Public endpoints (no auth required)
			r.Get("/public/wishlists/by-slug/{slug}", publicService.GetWishlistBySlug)
			r.Post("/wishlists/{id}/items/{itemId}/reservations", reservationService.CreateReservation)

			// Owner endpoints (auth required)
			r.Group(func(r chi.Router) {
				r.Use(mW.AuthMiddleware)

				r.Get("/users/me", userService.GetMe)
				r.Patch("/users/me", userService.UpdateMe)

				r.Get("/wishlists", listService.ListWishlists)
				r.Post("/wishlists", listService.CreateWishlist)
				r.Get("/wishlists/{id}", listService.GetWishlist)
				r.Patch("/wishlists/{id}", listService.UpdateWishlist)
				r.Delete("/wishlists/{id}", listService.DeleteWishlist)
				r.Get("/wishlists/{id}/share", shareHandler.GetShare)

				r.Post("/wishlists/{id}/items", itemService.CreateItem)
				r.Patch("/wishlists/{id}/items/reorder", itemService.ReorderItems)
				r.Patch("/wishlists/{id}/items/{itemId}", itemService.UpdateItem)
				r.Delete("/wishlists/{id}/items/{itemId}", itemService.DeleteItem)
			})
		})
	})

	port := viper.GetString("app.port")

	// Start server. No WriteTimeout: it would cut long-lived event channels.
	server := &http.Server{
		Addr:        ":" + port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopRelay()
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
