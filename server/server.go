package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"acytel/config"
	"acytel/core/token"
	"acytel/db"
	"acytel/logger"
	"acytel/repository"
	"acytel/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server: the secure-link API and
// the range-aware delivery proxy.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogOutput,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	})

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // full-track streams outlive API timeouts
		IdleTimeout:  120 * time.Second,
	}

	store, err := storage.NewMinioStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize MinIO", logger.ErrorField(err))
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	keySource, closeKey, err := streamKeySource(cfg)
	if err != nil {
		logger.Fatal("Failed to load stream signing key", logger.ErrorField(err))
	}
	defer closeKey()

	issuer := token.NewIssuer(keySource, cfg.StreamTokenTTL)
	verifier := token.NewVerifier(keySource)

	trackRepo := repository.NewMySQLTrackRepository()
	apiHandler := NewAPIHandler(trackRepo, issuer, cfg)
	streamHandler := NewStreamHandler(verifier, store)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/api/tracks", apiHandler.AuthMiddleware(apiHandler.GetTracksHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}/secure-link", apiHandler.AuthMiddleware(apiHandler.SecureLinkHandler)).Methods(http.MethodGet)
	router.Handle("/stream", streamHandler).Methods(http.MethodGet)

	server.Handler = router

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting",
			logger.String("addr", cfg.ServerAddr),
			logger.Duration("streamTokenTTL", cfg.StreamTokenTTL))

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
}

// streamKeySource picks the signing key source: a watched key file when
// configured (rotation without restart), otherwise the static env secret.
func streamKeySource(cfg *config.Config) (token.KeySource, func(), error) {
	if cfg.StreamTokenSecretFile != "" {
		kf, err := token.WatchKeyFile(cfg.StreamTokenSecretFile)
		if err != nil {
			return nil, nil, err
		}
		return kf.Secret, func() { kf.Close() }, nil
	}
	return token.StaticKey(cfg.StreamTokenSecret), func() {}, nil
}

// corsMiddleware lets browser audio elements issue cross-origin range
// requests and read the range response headers.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
