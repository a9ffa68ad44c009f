package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ms-labeling/internal/logger"
	"ms-labeling/internal/order"
	printdb "ms-labeling/internal/printing/db"
)

type Handler struct {
	Orders *order.Service
	Jobs   *printdb.Store
	Syncer *order.Syncer
	Log    *logger.Logger
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/webhook/rkeeper", h.Webhook)

		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{orderId}", h.GetOrder)
		r.Post("/orders/{orderId}/print", h.PrintOrder)
		r.Get("/orders/{orderId}/jobs", h.OrderJobs)

		r.Post("/print/dish/{rkCode}", h.PrintDish)
		r.Post("/print/test", h.PrintTest)

		r.Get("/jobs", h.ListJobs)
		r.Post("/jobs/{jobId}/requeue", h.RequeueJob)

		r.Post("/sync", h.TriggerSync)
	})

	return r
}

// Webhook ingests one rKeeper notification. The response is always 200 so
// the POS never retries or blocks on our side; failures are logged and the
// body carries the outcome.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.Log.LogWebhook("READ_ERROR", "-", err.Error())
		h.respond(w, http.StatusOK, map[string]interface{}{"status": "error", "error": "unreadable body"})
		return
	}

	result, err := h.Orders.HandleWebhook(r.Context(), body)
	if err != nil {
		h.Log.LogWebhook("PROCESS_ERROR", "-", err.Error())
		h.respond(w, http.StatusOK, map[string]interface{}{"status": "error", "error": err.Error()})
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{"status": "ok", "result": result})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	status := r.URL.Query().Get("status")

	orders, err := h.Orders.ListOrders(r.Context(), status, limit)
	if err != nil {
		http.Error(w, "Could not list orders: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)
		return
	}
	ord, err := h.Orders.GetOrder(r.Context(), id)
	if err != nil {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}
	h.respond(w, http.StatusOK, ord)
}

func (h *Handler) PrintOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)
		return
	}
	count, err := h.Orders.PrintOrder(r.Context(), id)
	if err != nil {
		http.Error(w, "Could not print order: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusAccepted, map[string]interface{}{"status": "queued", "jobs": count})
}

func (h *Handler) OrderJobs(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)
		return
	}
	jobs, err := h.Jobs.ListJobsByOrder(r.Context(), id)
	if err != nil {
		http.Error(w, "Could not list jobs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusOK, jobs)
}

func (h *Handler) PrintDish(w http.ResponseWriter, r *http.Request) {
	rkCode := chi.URLParam(r, "rkCode")
	quantity, _ := strconv.Atoi(r.URL.Query().Get("quantity"))

	count, err := h.Orders.PrintDish(r.Context(), rkCode, quantity)
	if err != nil {
		http.Error(w, "Could not print dish: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusAccepted, map[string]interface{}{"status": "queued", "jobs": count})
}

func (h *Handler) PrintTest(w http.ResponseWriter, r *http.Request) {
	jobID, err := h.Orders.PrintTest(r.Context())
	if err != nil {
		http.Error(w, "Could not queue test label: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusAccepted, map[string]interface{}{"status": "queued", "jobId": jobID})
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	status := r.URL.Query().Get("status")

	jobs, err := h.Jobs.ListJobs(r.Context(), status, limit)
	if err != nil {
		http.Error(w, "Could not list jobs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusOK, jobs)
}

func (h *Handler) RequeueJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	requeued, err := h.Jobs.Requeue(r.Context(), jobID)
	if err != nil {
		http.Error(w, "Could not requeue job: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !requeued {
		http.Error(w, "Job is not in FAILED state", http.StatusConflict)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{"status": "requeued", "jobId": jobID})
}

func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.Syncer == nil {
		http.Error(w, "Order sync is disabled", http.StatusServiceUnavailable)
		return
	}
	if err := h.Syncer.SyncOnce(r.Context()); err != nil {
		http.Error(w, "Sync failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{"status": "synced"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, map[string]interface{}{"status": "ok", "service": "label-service"})
}

func (h *Handler) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
