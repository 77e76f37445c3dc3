package main

import (
	"crypto/tls"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/username/isovault/backend/src/config"
	"github.com/username/isovault/backend/src/database"
	"github.com/username/isovault/backend/src/handlers"
	"github.com/username/isovault/backend/src/logger"
	"github.com/username/isovault/backend/src/model"
	"github.com/username/isovault/backend/src/parsers/iso8583"
	"github.com/username/isovault/backend/src/security"
	"github.com/username/isovault/backend/src/services"
	"golang.org/x/time/rate"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := make(map[string]bool, len(config.Cfg.AllowedOrigins))
		for _, o := range config.Cfg.AllowedOrigins {
			allowedOrigins[o] = true
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// seedBootstrapClient creates the first API client from config when the
// table is empty, so a fresh deployment can authenticate at all.
func seedBootstrapClient() {
	if config.Cfg.BootstrapClientID == "" || config.Cfg.BootstrapClientSecret == "" {
		return
	}

	total, err := model.CountAPIClients(database.DB)
	if err != nil {
		logger.L.Error("Failed to count API clients for bootstrap", "error", err)
		return
	}
	if total > 0 {
		return
	}

	client := model.APIClient{
		ClientID:     config.Cfg.BootstrapClientID,
		Name:         "bootstrap",
		CanRevealPAN: config.Cfg.BootstrapClientRevealPAN,
	}
	if err := client.HashSecret(config.Cfg.BootstrapClientSecret); err != nil {
		logger.L.Error("Failed to hash bootstrap client secret", "error", err)
		return
	}
	if err := client.Create(database.DB); err != nil {
		logger.L.Error("Failed to seed bootstrap API client", "error", err)
		return
	}
	logger.L.Info("Bootstrap API client seeded", "clientID", client.ClientID, "canRevealPAN", client.CanRevealPAN)
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("isovault backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	seedBootstrapClient()

	panCipher, err := security.NewPANCipher(config.Cfg.PANEncryptionKey)
	if err != nil {
		logger.L.Error("Failed to initialize PAN cipher", "error", err)
		os.Exit(1)
	}

	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AccessTokenExpiry)

	listCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)
	clientCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	txService := services.NewTransactionService(database.DB, iso8583.NewParser(), panCipher, listCache)

	authHandler := handlers.NewAuthHandler(authService, clientCache)
	txHandler := handlers.NewTransactionHandler(txService, config.Cfg.MaxUploadSizeBytes)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "isovault backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/token", authHandler.HandleIssueToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authHandler.AuthMiddleware)

			r.Post("/transactions", txHandler.HandleIngestMessage)
			r.Get("/transactions", txHandler.HandleListTransactions)
			r.Get("/transactions/{id}", txHandler.HandleGetTransaction)
			r.Delete("/transactions/{id}", txHandler.HandleDeleteTransaction)
		})
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
