package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"imrich/internal/certificate/catalog"
	"imrich/internal/certificate/models"
	"imrich/internal/certificate/service"
	"imrich/internal/platform/metrics"
	"imrich/internal/platform/middleware"
	dErrors "imrich/pkg/domain-errors"
	"imrich/pkg/platform/httputil"
	"imrich/pkg/requestcontext"
)

const maxBodyBytes = 64 << 10

// Service defines the certificate operations exposed over HTTP.
type Service interface {
	Issue(ctx context.Context, c models.Customization, owner models.Owner) (*models.Certificate, error)
	Verify(ctx context.Context, candidate string) models.VerificationResult
	ListByOwner(ctx context.Context, owner models.Owner) ([]*models.Certificate, error)
	UpdatePaymentStatus(ctx context.Context, serial, status string) (*models.Certificate, error)
	Health(ctx context.Context) (map[string]string, bool)
}

// Handler serves issuance, verification, listing, catalog, health and the
// payment webhook.
type Handler struct {
	logger         *slog.Logger
	svc            Service
	catalog        *catalog.Catalog
	urls           service.URLs
	metrics        *metrics.Metrics
	jwtValidator   middleware.JWTValidator
	verifyLimit    func(http.Handler) http.Handler
	trustedProxies middleware.TrustedProxies
	webhookSecret  []byte
	serviceName    string
	requestTimeout time.Duration
}

type Option func(*Handler)

// WithVerifyRateLimit guards the public verification route.
func WithVerifyRateLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.verifyLimit = mw
	}
}

// WithTrustedProxies names the peers allowed to set X-Forwarded-For.
func WithTrustedProxies(p middleware.TrustedProxies) Option {
	return func(h *Handler) {
		h.trustedProxies = p
	}
}

// WithWebhookSecret enables POST /api/payments/webhook.
func WithWebhookSecret(secret string) Option {
	return func(h *Handler) {
		h.webhookSecret = []byte(secret)
	}
}

func WithServiceName(name string) Option {
	return func(h *Handler) {
		h.serviceName = name
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.requestTimeout = d
		}
	}
}

func New(
	svc Service,
	cat *catalog.Catalog,
	urls service.URLs,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	opts ...Option,
) *Handler {
	h := &Handler{
		logger:         logger,
		svc:            svc,
		catalog:        cat,
		urls:           urls,
		metrics:        metrics,
		jwtValidator:   jwtValidator,
		serviceName:    "imrich",
		requestTimeout: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the certificate routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger, h.metrics))
	router.Use(middleware.RequestID)
	router.Use(middleware.ClientMetadata(h.trustedProxies))
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(h.requestTimeout))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(h.metrics))

	router.Get("/api/health", h.handleHealth)
	router.Get("/api/models", h.handleModels)
	router.Group(func(pub chi.Router) {
		if h.verifyLimit != nil {
			pub.Use(h.verifyLimit)
		}
		pub.Get("/api/verify/{serial}", h.handleVerify)
	})
	if len(h.webhookSecret) > 0 {
		router.Post("/api/payments/webhook", h.handlePaymentWebhook)
	}
	router.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		authed.Post("/api/generate-image", h.handleGenerateImage)
		authed.Get("/api/my-images", h.handleMyImages)
	})

	r.Mount("/", router)
}

func (h *Handler) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	owner, ok := ownerFrom(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "owner missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req models.GenerateImageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid generate image request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	cert, err := h.svc.Issue(ctx, req.ToCustomization(h.catalog.DefaultModel), owner)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to issue certificate", err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, h.urls.Response(cert))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	result := h.svc.Verify(r.Context(), chi.URLParam(r, "serial"))
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleMyImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := ownerFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	certs, err := h.svc.ListByOwner(ctx, owner)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list certificates", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.urls.Responses(certs))
}

func (h *Handler) handleModels(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, models.ModelsResponse{Models: h.catalog.List()})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks, healthy := h.svc.Health(r.Context())
	resp := models.HealthResponse{Status: "healthy", Service: h.serviceName, Checks: checks}
	status := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

// handlePaymentWebhook applies a signed payment status update.
func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if !ValidSignature(h.webhookSecret, body, r.Header.Get(SignatureHeader)) {
		h.logger.WarnContext(ctx, "payment webhook signature rejected",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid signature"))
		return
	}

	var update models.PaymentStatusUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if _, err := h.svc.UpdatePaymentStatus(ctx, update.Serial, update.Status); err != nil {
		h.writeServiceError(ctx, w, "failed to update payment status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError logs at warn for client-caused failures and at error
// otherwise, then writes the error envelope.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	code := dErrors.CodeOf(err)
	if dErrors.ToHTTPStatus(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"code", code,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"code", code,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func ownerFrom(ctx context.Context) (models.Owner, bool) {
	accountID := requestcontext.AccountID(ctx)
	if accountID.IsZero() {
		return models.Owner{}, false
	}
	return models.Owner{AccountID: accountID, Email: requestcontext.Email(ctx)}, true
}
