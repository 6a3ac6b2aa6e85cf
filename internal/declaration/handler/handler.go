// Package handler exposes the declaration wizard and the declaration review
// surface over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"verdant/internal/declaration/models"
	"verdant/internal/declaration/wizard"
	"verdant/internal/platform/middleware"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/platform/httputil"
	"verdant/pkg/requestcontext"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	requestTimeout   = 30 * time.Second
)

// Service is the wizard surface the handler drives.
type Service interface {
	Open(ctx context.Context, req wizard.OpenRequest) (*wizard.Session, error)
	Get(draftID id.DraftID) (*wizard.Session, error)
	Cancel(ctx context.Context, draftID id.DraftID) error
	Review(ctx context.Context, declarationID id.DeclarationID, req wizard.ReviewRequest) (*models.Declaration, error)
	FindDeclaration(ctx context.Context, declarationID id.DeclarationID) (*models.Declaration, error)
	ListDeclarations(ctx context.Context, filter models.Filter) ([]*models.Declaration, error)
}

// Handler serves the declaration routes.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

// New creates a declaration Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the declaration routes on r.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(chimw.Timeout(requestTimeout))

	router.Route("/declarations", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/drafts", h.handleOpen)
		r.Route("/drafts/{draftID}", func(r chi.Router) {
			r.Get("/", h.handleGetDraft)
			r.Patch("/", h.handleUpdateDraft)
			r.Delete("/", h.handleCancelDraft)
			r.Post("/advance", h.handleAdvance)
			r.Post("/retreat", h.handleRetreat)
			r.Post("/goto", h.handleGoTo)
			r.Post("/evidence", h.handleAttachEvidence)
			r.Post("/verification/retry", h.handleRetryVerification)
			r.Post("/submit", h.handleSubmit)
		})
		r.Get("/{declarationID}", h.handleGetDeclaration)
		r.Post("/{declarationID}/review", h.handleReview)
	})

	r.Mount("/", router)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[OpenDraftRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	session, err := h.svc.Open(ctx, req.toOpen())
	if err != nil {
		h.fail(ctx, w, "failed to open draft", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDraftResponse(session.Snapshot()))
}

func (h *Handler) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDraftResponse(session.Snapshot()))
}

func (h *Handler) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateDraftRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.fail(ctx, w, "invalid draft update", err)
		return
	}
	h.writeView(ctx, w, "failed to update draft", func() (wizard.View, error) {
		return session.UpdateDraft(ctx, patch)
	})
}

func (h *Handler) handleCancelDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID, ok := h.draftID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Cancel(ctx, draftID); err != nil {
		h.fail(ctx, w, "failed to cancel draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeView(ctx, w, "failed to advance draft", func() (wizard.View, error) {
		return session.Advance(ctx)
	})
}

func (h *Handler) handleRetreat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeView(ctx, w, "failed to retreat draft", session.Retreat)
}

func (h *Handler) handleGoTo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[GoToRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	step, err := models.ParseStep(req.Step)
	if err != nil {
		h.fail(ctx, w, "invalid step", err)
		return
	}
	h.writeView(ctx, w, "failed to navigate draft", func() (wizard.View, error) {
		return session.GoTo(step)
	})
}

func (h *Handler) handleAttachEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[EvidenceRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.writeView(ctx, w, "failed to attach evidence", func() (wizard.View, error) {
		return session.AttachEvidence(ctx, req.documents(), req.geoFile())
	})
}

func (h *Handler) handleRetryVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeView(ctx, w, "failed to retry verification", func() (wizard.View, error) {
		return session.RetryVerification(ctx)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	decl, err := session.Submit(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to submit declaration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, decl)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(ctx, w, "invalid list filter", err)
		return
	}
	decls, err := h.svc.ListDeclarations(ctx, filter)
	if err != nil {
		h.fail(ctx, w, "failed to list declarations", err)
		return
	}
	if decls == nil {
		decls = []*models.Declaration{}
	}
	httputil.WriteJSON(w, http.StatusOK, DeclarationListResponse{Declarations: decls, Count: len(decls)})
}

func (h *Handler) handleGetDeclaration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	declID, ok := h.declarationID(w, r)
	if !ok {
		return
	}
	decl, err := h.svc.FindDeclaration(ctx, declID)
	if err != nil {
		h.fail(ctx, w, "failed to load declaration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decl)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	declID, ok := h.declarationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReviewRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	decl, err := h.svc.Review(ctx, declID, wizard.ReviewRequest{
		Decision: wizard.ReviewDecision(req.Decision),
		Comments: req.Comments,
		ActorID:  req.ActorID,
	})
	if err != nil {
		h.fail(ctx, w, "failed to review declaration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decl)
}

func (h *Handler) writeView(ctx context.Context, w http.ResponseWriter, msg string, fn func() (wizard.View, error)) {
	view, err := fn()
	if err != nil {
		h.fail(ctx, w, msg, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDraftResponse(view))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	draftID, ok := h.draftID(w, r)
	if !ok {
		return nil, false
	}
	session, err := h.svc.Get(draftID)
	if err != nil {
		h.fail(r.Context(), w, "draft lookup failed", err)
		return nil, false
	}
	return session, true
}

func (h *Handler) draftID(w http.ResponseWriter, r *http.Request) (id.DraftID, bool) {
	draftID, err := id.ParseDraftID(chi.URLParam(r, "draftID"))
	if err != nil {
		h.fail(r.Context(), w, "invalid draft id", err)
		return id.DraftID{}, false
	}
	return draftID, true
}

func (h *Handler) declarationID(w http.ResponseWriter, r *http.Request) (id.DeclarationID, bool) {
	declID, err := id.ParseDeclarationID(chi.URLParam(r, "declarationID"))
	if err != nil {
		h.fail(r.Context(), w, "invalid declaration id", err)
		return id.DeclarationID{}, false
	}
	return declID, true
}

// fail logs at warn for caller mistakes and at error for everything else.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	code := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"error_code", string(code),
		"error", err,
	}
	if httputil.StatusFor(code) >= http.StatusInternalServerError && code != dErrors.CodeVerificationUnavailable {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func parseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	filter := models.Filter{Limit: defaultListLimit}
	if raw := q.Get("status"); raw != "" {
		st, err := models.ParseStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = &st
	}
	if raw := q.Get("type"); raw != "" {
		dir, err := models.ParseDirection(raw)
		if err != nil {
			return filter, err
		}
		filter.Type = &dir
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filter, dErrors.Newf(dErrors.CodeBadRequest, "invalid limit %q", raw)
		}
		filter.Limit = min(n, maxListLimit)
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, dErrors.Newf(dErrors.CodeBadRequest, "invalid offset %q", raw)
		}
		filter.Offset = n
	}
	return filter, nil
}
