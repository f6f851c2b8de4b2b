package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"consentwindow/internal/consent/models"
	ratelimit "consentwindow/internal/ratelimit/middleware"
	ratelimitmodels "consentwindow/internal/ratelimit/models"
	id "consentwindow/pkg/domain"
	dErrors "consentwindow/pkg/domain-errors"
	"consentwindow/pkg/platform/audit"
	"consentwindow/pkg/platform/httputil"
	"consentwindow/pkg/platform/middleware/auth"
	"consentwindow/pkg/requestcontext"
)

// Service defines the consent operations exposed over HTTP.
type Service interface {
	GiveConsent(ctx context.Context, hash id.Fingerprint, startsAt time.Time, hoursToExpire int) (*models.ConsentGiven, error)
	GiveImmediateConsent(ctx context.Context, hash id.Fingerprint, hoursToExpire int) (*models.ConsentGiven, error)
	Extend(ctx context.Context, hash id.Fingerprint, hoursToExpire int) (*models.Window, error)
	EndConsentEarlier(ctx context.Context, hash id.Fingerprint) (*models.Window, error)
	EndConsent(ctx context.Context, hash id.Fingerprint) error
	ConsentIsValid(ctx context.Context, owner id.OwnerID, hash id.Fingerprint) (bool, error)
	MyConsentIsValid(ctx context.Context, hash id.Fingerprint) (bool, error)
	ConsentsAreValid(ctx context.Context, owners []id.OwnerID, hashes []id.Fingerprint) ([]bool, error)
	GetConsentTimestamps(ctx context.Context, owner id.OwnerID, hash id.Fingerprint, index int) (*models.Window, error)
	Summary(ctx context.Context, owner id.OwnerID, hash id.Fingerprint) (*models.Summary, error)
}

// AuditLister reads an owner's consent audit trail.
type AuditLister interface {
	List(ctx context.Context, owner id.OwnerID) ([]audit.Event, error)
}

// Handler wires consent endpoints to the consent service.
type Handler struct {
	service   Service
	audit     AuditLister
	validator auth.JWTValidator
	limiter   *ratelimit.Middleware
	logger    *slog.Logger
}

type Option func(*Handler)

// WithRateLimiter budgets mutations per owner and public reads per client IP.
func WithRateLimiter(limiter *ratelimit.Middleware) Option {
	return func(h *Handler) {
		h.limiter = limiter
	}
}

// New constructs a consent handler. audit may be nil, in which case the audit trail
// endpoint is not registered.
func New(service Service, auditLister AuditLister, validator auth.JWTValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:   service,
		audit:     auditLister,
		validator: validator,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts consent endpoints on the router. Mutations and caller-scoped reads
// require a bearer token; validity and history reads are public.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.validator, h.logger))
		if h.limiter != nil {
			r.Use(h.limiter.RateLimitAuthenticated(ratelimitmodels.ClassWrite))
		}
		r.Post("/consents", h.HandleGiveConsent)
		r.Post("/consents/{hash}/extend", h.HandleExtend)
		r.Post("/consents/{hash}/end-early", h.HandleEndEarly)
		r.Delete("/consents/{hash}", h.HandleEndConsent)
		r.Get("/consents/{hash}/valid", h.HandleMyConsentIsValid)
		if h.audit != nil {
			r.Get("/owners/{owner}/audit", h.HandleAuditTrail)
		}
	})

	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.RateLimit(ratelimitmodels.ClassRead))
		}
		r.Post("/consents/validity", h.HandleConsentsAreValid)
		r.Get("/owners/{owner}/consents/{hash}", h.HandleSummary)
		r.Get("/owners/{owner}/consents/{hash}/valid", h.HandleConsentIsValid)
		r.Get("/owners/{owner}/consents/{hash}/windows/{index}", h.HandleGetTimestamps)
	})
}

// HandleGiveConsent handles POST /consents.
func (h *Handler) HandleGiveConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.GiveConsentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	hash, _ := id.ParseFingerprint(req.Hash)

	var (
		given *models.ConsentGiven
		err   error
	)
	if req.StartsAt == nil {
		given, err = h.service.GiveImmediateConsent(ctx, hash, req.HoursToExpire)
	} else {
		given, err = h.service.GiveConsent(ctx, hash, models.UnixTime(*req.StartsAt), req.HoursToExpire)
	}
	if err != nil {
		h.fail(w, r, "give consent failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.NewConsentGivenResponse(given))
}

// HandleExtend handles POST /consents/{hash}/extend.
func (h *Handler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash, ok := h.hashParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ExtendConsentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if _, err := h.service.Extend(ctx, hash, req.HoursToExpire); err != nil {
		h.fail(w, r, "extend consent failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEndEarly handles POST /consents/{hash}/end-early.
func (h *Handler) HandleEndEarly(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.hashParam(w, r)
	if !ok {
		return
	}
	if _, err := h.service.EndConsentEarlier(r.Context(), hash); err != nil {
		h.fail(w, r, "end consent early failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEndConsent handles DELETE /consents/{hash}.
func (h *Handler) HandleEndConsent(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.hashParam(w, r)
	if !ok {
		return
	}
	if err := h.service.EndConsent(r.Context(), hash); err != nil {
		h.fail(w, r, "end consent failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMyConsentIsValid handles GET /consents/{hash}/valid.
func (h *Handler) HandleMyConsentIsValid(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.hashParam(w, r)
	if !ok {
		return
	}
	valid, err := h.service.MyConsentIsValid(r.Context(), hash)
	if err != nil {
		h.fail(w, r, "validity check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ValidityResponse{Valid: valid})
}

// HandleConsentIsValid handles GET /owners/{owner}/consents/{hash}/valid.
func (h *Handler) HandleConsentIsValid(w http.ResponseWriter, r *http.Request) {
	owner, hash, ok := h.ownerHashParams(w, r)
	if !ok {
		return
	}
	valid, err := h.service.ConsentIsValid(r.Context(), owner, hash)
	if err != nil {
		h.fail(w, r, "validity check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ValidityResponse{Valid: valid})
}

// HandleConsentsAreValid handles POST /consents/validity.
func (h *Handler) HandleConsentsAreValid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.ValidityBatchRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	owners, hashes, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	valid, err := h.service.ConsentsAreValid(ctx, owners, hashes)
	if err != nil {
		h.fail(w, r, "batch validity check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ValidityBatchResponse{Valid: valid})
}

// HandleGetTimestamps handles GET /owners/{owner}/consents/{hash}/windows/{index}.
func (h *Handler) HandleGetTimestamps(w http.ResponseWriter, r *http.Request) {
	owner, hash, ok := h.ownerHashParams(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "index must be an integer"))
		return
	}
	window, err := h.service.GetConsentTimestamps(r.Context(), owner, hash, index)
	if err != nil {
		h.fail(w, r, "get consent timestamps failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewWindowResponse(index, *window))
}

// HandleSummary handles GET /owners/{owner}/consents/{hash}.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	owner, hash, ok := h.ownerHashParams(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), owner, hash)
	if err != nil {
		h.fail(w, r, "consent summary failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewSummaryResponse(summary))
}

// HandleAuditTrail handles GET /owners/{owner}/audit. Owners may only read their own trail.
func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := id.ParseOwnerID(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if requestcontext.OwnerID(ctx) != owner {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "audit trail belongs to another owner"))
		return
	}
	events, err := h.audit.List(ctx, owner)
	if err != nil {
		h.fail(w, r, "list audit trail failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newAuditTrailResponse(events))
}

func (h *Handler) hashParam(w http.ResponseWriter, r *http.Request) (id.Fingerprint, bool) {
	hash, err := id.ParseFingerprint(chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.Fingerprint{}, false
	}
	return hash, true
}

func (h *Handler) ownerHashParams(w http.ResponseWriter, r *http.Request) (id.OwnerID, id.Fingerprint, bool) {
	owner, err := id.ParseOwnerID(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.OwnerID{}, id.Fingerprint{}, false
	}
	hash, ok := h.hashParam(w, r)
	return owner, hash, ok
}

// fail logs and writes err. Rule violations are expected traffic and log at warn.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"path", r.URL.Path,
		"error", err,
	}
	if httputil.StatusFor(dErrors.GetCode(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
