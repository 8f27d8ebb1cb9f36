// Package api exposes the ingress HTTP surface: webhook intake, read-only
// product queries, and the status dashboard.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	tele "gopkg.in/telebot.v4"

	"github.com/driphype/shopbot/internal/config"
	"github.com/driphype/shopbot/internal/logger"
	"github.com/driphype/shopbot/internal/storage"
	"github.com/driphype/shopbot/internal/webhookmon"
)

// Supervisor is the webhook monitor surface the API needs.
type Supervisor interface {
	ForceSync(ctx context.Context) (webhookmon.Info, error)
	Status() webhookmon.Status
}

// UpdateSink accepts decoded Telegram updates for processing.
type UpdateSink interface {
	Push(upd tele.Update) bool
}

// Server is the ingress HTTP endpoint.
type Server struct {
	cfg        *config.Config
	store      storage.Store
	supervisor Supervisor
	updates    UpdateSink
	log        *slog.Logger
	router     chi.Router
}

// NewServer wires all routes.
func NewServer(cfg *config.Config, store storage.Store, supervisor Supervisor, updates UpdateSink) *Server {
	s := &Server{
		cfg:        cfg,
		store:      store,
		supervisor: supervisor,
		updates:    updates,
		log:        logger.Component("api"),
	}

	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Get("/", s.handleHome)
	r.Get("/health", s.handleHealth)
	r.Get("/api/products", s.handleListProducts)
	r.Get("/api/products/{id}", s.handleGetProduct)
	r.Get("/status", s.handleStatusPage)
	r.Get("/bot/update-webhook", s.handleUpdateWebhook)
	r.Post("/bot/update-webhook", s.handleUpdateWebhook)
	r.Post(config.WebhookPath, s.handleBotUpdate)

	s.router = r
	return s
}

// Handler returns the composed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down with a grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server started",
			slog.String("event", "start"),
			slog.String("addr", srv.Addr),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.log.Info("http server stopped", slog.String("event", "stop"))
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "online",
		"mode":    "webhook",
		"message": "Shop API is running",
		"endpoints": map[string]string{
			"/api/products":      "GET - list all products",
			"/api/products/{id}": "GET - get product by id",
			"/health":            "GET - liveness probe",
			"/status":            "GET - webhook status dashboard",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		logger.Error(r.Context(), "api", "products.list", slog.String("err", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to load products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusNotFound, "Product not found")
		return
	}
	product, err := s.store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		logger.Error(r.Context(), "api", "products.get",
			slog.Int64("product_id", id),
			slog.String("err", err.Error()),
		)
		respondError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	info, err := s.supervisor.ForceSync(r.Context())
	if err != nil {
		logger.Error(r.Context(), "api", "webhook.force_resync", slog.String("err", err.Error()))
		respondError(w, http.StatusBadGateway, "webhook re-registration failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"registration": info,
	})
}

// handleBotUpdate decodes a delivery callback and hands it to the bot. A
// full intake buffer still acknowledges: the remote side retries and the
// contract is at-least-once.
func (s *Server) handleBotUpdate(w http.ResponseWriter, r *http.Request) {
	var upd tele.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondError(w, http.StatusBadRequest, "malformed update")
		return
	}
	s.updates.Push(upd)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request handled",
			slog.String("event", "http.request"),
			slog.String("method", r.Method),
			slog.String("path", logger.SanitizeLimit(r.URL.Path, 128)),
			slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
