package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/maltedev/store-price-compare/internal/database"
	"github.com/maltedev/store-price-compare/internal/engine"
	"github.com/maltedev/store-price-compare/internal/export"
	"github.com/maltedev/store-price-compare/internal/models"
	"github.com/maltedev/store-price-compare/internal/scheduler"
)

// Comparer is the part of engine.Service the handlers use.
type Comparer interface {
	Compare(ctx context.Context, productQuery string, storeIDs []string) (models.ComparisonResult, error)
	History(ctx context.Context) ([]models.HistoryRecord, error)
}

type StoreLister interface {
	IDs() []string
}

type SchedulerController interface {
	Status(ctx context.Context) scheduler.Status
	State() scheduler.State
	RunCycle(ctx context.Context) bool
}

type OutboxStats interface {
	Stats(ctx context.Context) (database.RelayStats, error)
}

const (
	pendingWarnThreshold    = 1000
	deadLetterFailThreshold = 100
)

type Handlers struct {
	engine    Comparer
	stores    StoreLister
	scheduler SchedulerController
	outbox    OutboxStats
	logger    *slog.Logger
}

// NewHandlers wires the API. scheduler and outbox may be nil when the
// corresponding component is disabled.
func NewHandlers(engine Comparer, stores StoreLister, sched SchedulerController, outbox OutboxStats, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		engine:    engine,
		stores:    stores,
		scheduler: sched,
		outbox:    outbox,
		logger:    logger.With("component", "api"),
	}
}

// ScrapeRequest names the product and the stores to search. Urls is the
// legacy field name for Stores.
type ScrapeRequest struct {
	ProductName string   `json:"product_name"`
	Stores      []string `json:"stores"`
	Urls        []string `json:"urls"`
}

func (r ScrapeRequest) storeIDs() []string {
	if len(r.Stores) > 0 {
		return r.Stores
	}
	return r.Urls
}

func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.engine.Compare(r.Context(), req.ProductName, req.storeIDs())
	switch {
	case errors.Is(err, engine.ErrProductNameRequired):
		h.respondError(w, http.StatusBadRequest, "product_name is required")
		return
	case errors.Is(err, engine.ErrNoStoresRequested):
		h.respondError(w, http.StatusBadRequest, "At least one store name is required")
		return
	case err != nil:
		h.logger.Error("comparison failed", "product", req.ProductName, "error", err)
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if result.ValidOfferCount == 0 {
		h.respondError(w, http.StatusNotFound, engine.ErrNoOffersFound.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.engine.History(r.Context())
	if err != nil {
		h.logger.Error("failed to fetch history", "error", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to fetch history")
		return
	}
	if records == nil {
		records = []models.HistoryRecord{}
	}
	h.respondJSON(w, http.StatusOK, records)
}

func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	records, err := h.engine.History(r.Context())
	if err != nil {
		h.logger.Error("failed to export history", "error", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to export data")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, records); err != nil {
		h.logger.Error("failed to write csv", "error", err)
	}
}

func (h *Handlers) Stores(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string][]string{"stores": h.stores.IDs()})
}

func (h *Handlers) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		h.respondError(w, http.StatusNotFound, "scheduler disabled")
		return
	}
	h.respondJSON(w, http.StatusOK, h.scheduler.Status(r.Context()))
}

// RunScheduler starts an update cycle in the background.
func (h *Handlers) RunScheduler(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		h.respondError(w, http.StatusNotFound, "scheduler disabled")
		return
	}
	if h.scheduler.State() == scheduler.StateRunning {
		h.respondError(w, http.StatusConflict, "update cycle already running")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go h.scheduler.RunCycle(ctx)

	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{"status": "ok"}
	status := http.StatusOK

	if h.outbox != nil {
		stats, err := h.outbox.Stats(r.Context())
		if err != nil {
			h.logger.Error("failed to read outbox stats", "error", err)
			health["status"] = "error"
			health["message"] = "outbox unavailable"
			status = http.StatusServiceUnavailable
		} else {
			health["outbox"] = stats
			if stats.Pending > pendingWarnThreshold {
				health["status"] = "warning"
				health["message"] = "High number of pending outbox events"
			}
			if stats.DeadLetter > deadLetterFailThreshold {
				health["status"] = "error"
				health["message"] = "High number of dead letter events"
				status = http.StatusServiceUnavailable
			}
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
