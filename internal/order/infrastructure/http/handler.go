package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/storefront-fulfillment/internal/order/application"
	"github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
	paymentapp "github.com/dmehra2102/storefront-fulfillment/internal/payment/application"
	paymentdomain "github.com/dmehra2102/storefront-fulfillment/internal/payment/domain"
	salesapp "github.com/dmehra2102/storefront-fulfillment/internal/sales/application"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
)

const (
	HeaderUserID     = "X-User-ID"
	HeaderUserRole   = "X-User-Role"
	HeaderGuestEmail = "X-Guest-Email"

	roleAdmin    = "admin"
	maxBodyBytes = 1 << 20
)

type Handler struct {
	log      *slog.Logger
	orders   *application.Service
	gateway  *paymentapp.Gateway
	webhook  *paymentapp.WebhookHandler
	sales    *salesapp.Aggregator
	tracer   trace.Tracer
	checkout func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithCheckoutMiddleware wraps only POST /orders, e.g. with idempotency
// replay.
func WithCheckoutMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.checkout = mw }
}

func NewHandler(log *slog.Logger, orders *application.Service, gateway *paymentapp.Gateway, webhook *paymentapp.WebhookHandler, sales *salesapp.Aggregator, opts ...Option) *Handler {
	h := &Handler{
		log:      log,
		orders:   orders,
		gateway:  gateway,
		webhook:  webhook,
		sales:    sales,
		tracer:   otel.Tracer("order-http"),
		checkout: func(next http.Handler) http.Handler { return next },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.With(h.checkout).Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/payment", h.paymentRedirect)
	r.Post("/payments/notify", h.paymentNotify)

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Patch("/orders/{id}/status", h.updateStatus)
		r.Get("/sales/stats", h.salesStats)
	})
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := req.input(r.Header.Get(HeaderUserID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	o, err := h.orders.CreateOrder(ctx, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("order_id", o.ID))

	resp := toOrderResp(o)
	if o.PaymentMethod == domain.PaymentGateway {
		if u, err := h.gateway.RedirectURL(o); err == nil {
			resp.PaymentURL = u
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.GetOrder")
	defer span.End()

	o, err := h.orders.GetOrder(ctx, chi.URLParam(r, "id"), viewer(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) paymentRedirect(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.PaymentRedirect")
	defer span.End()

	o, err := h.orders.GetOrder(ctx, chi.URLParam(r, "id"), viewer(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.gateway.RedirectURL(o)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"order_id": o.ID, "payment_url": u})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.UpdateStatus")
	defer span.End()

	var req updateStatusReq
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.orders.UpdateStatus(ctx, chi.URLParam(r, "id"), req.Status, req.TrackingID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) salesStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.SalesStats")
	defer span.End()

	q := salesapp.Query{Window: r.URL.Query().Get("window")}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start", &q.Start}, {"end", &q.End}} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, r, apperr.Validation("%s must be an RFC 3339 timestamp", p.name).With("field", p.name))
			return
		}
		*p.dst = &t
	}

	st, err := h.sales.Stats(ctx, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResp(st))
}

// paymentNotify acknowledges with a bare OK or rejected. Business failures
// are final; infrastructure failures answer 500 so the gateway retries.
func (h *Handler) paymentNotify(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.PaymentNotify")
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.log.Warn("payment notification unreadable", "err", err)
		writeText(w, http.StatusBadRequest, "rejected")
		return
	}
	n := make(paymentdomain.Notification, len(r.PostForm))
	for k := range r.PostForm {
		n[k] = r.PostForm.Get(k)
	}

	if _, err := h.webhook.Handle(ctx, n); err != nil {
		span.RecordError(err)
		if apperr.KindOf(err) == apperr.KindInternal {
			h.log.Error("payment notification failed", "order_id", n.OrderID(), "err", err)
			writeText(w, http.StatusInternalServerError, "rejected")
			return
		}
		h.log.Warn("payment notification rejected", "order_id", n.OrderID(), "kind", apperr.KindOf(err))
		writeText(w, http.StatusBadRequest, "rejected")
		return
	}
	writeText(w, http.StatusOK, "OK")
}

func viewer(r *http.Request) application.Viewer {
	return application.Viewer{
		UserID:     r.Header.Get(HeaderUserID),
		Admin:      r.Header.Get(HeaderUserRole) == roleAdmin,
		GuestEmail: r.Header.Get(HeaderGuestEmail),
	}
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderUserID) == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]errorBody{"error": {Kind: apperr.KindUnauthorized, Message: "sign in required"}})
			return
		}
		if r.Header.Get(HeaderUserRole) != roleAdmin {
			writeJSON(w, http.StatusForbidden, map[string]errorBody{"error": {Kind: apperr.KindForbidden, Message: "admin role required"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusOf(kind)

	body := errorBody{Kind: kind, Message: "internal error"}
	var ae *apperr.Error
	if status < http.StatusInternalServerError && errors.As(err, &ae) {
		body.Message = ae.Message
		if len(ae.Fields) > 0 {
			body.Fields = ae.Fields
		}
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindAmountMismatch, apperr.KindCouponInvalid,
		apperr.KindCouponRequiresAuth, apperr.KindInvalidStatus, apperr.KindSignatureMismatch:
		return http.StatusBadRequest
	case apperr.KindInsufficientStock, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindOrderNotFound, apperr.KindProductNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s))
}
