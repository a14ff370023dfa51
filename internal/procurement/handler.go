package procurement

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/procureflow/internal/platform/httpx"
	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/internal/workflow"
)

const (
	createRateLimit  = 20
	createRateWindow = time.Minute
)

var kindPaths = []struct {
	path    string
	docType workflow.DocType
}{
	{"/memos", workflow.DocMemo},
	{"/purchase-orders", workflow.DocPurchaseOrder},
	{"/payment-requests", workflow.DocPaymentRequest},
	{"/check-requests", workflow.DocCheckRequest},
}

// IdempotencyGuard claims request keys so a retried create does not open a
// second document.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler manages procurement JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	keys      IdempotencyGuard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// WithIdempotency enables Idempotency-Key handling on create.
func (h *Handler) WithIdempotency(keys IdempotencyGuard) *Handler {
	h.keys = keys
	return h
}

// MountRoutes registers document routes for every document kind.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(createRateLimit, createRateWindow, httprate.WithKeyFuncs(actorKey))
	for _, kind := range kindPaths {
		docType := kind.docType
		r.Route(kind.path, func(r chi.Router) {
			r.Get("/", h.list(docType))
			r.With(limiter).Post("/", h.create(docType))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.get(docType))
				r.Put("/", h.update(docType))
				r.Delete("/", h.remove(docType))
				r.Post("/submit", h.submit(docType))
				r.Post("/assign", h.assign(docType))
				r.Post("/actions", h.act(docType))
				r.Post("/transitions", h.transition(docType))
			})
		})
	}
}

func actorKey(r *http.Request) (string, error) {
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(actor.ID, 10), nil
	}
	return httprate.KeyByIP(r)
}

func (h *Handler) list(docType workflow.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		filters := ListFilters{
			Type:    docType,
			Status:  workflow.Status(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
			Search:  q.Get("search"),
			SortBy:  q.Get("sort"),
			SortDir: q.Get("dir"),
			Limit:   limit,
			Offset:  offset,
		}
		result, err := h.service.List(r.Context(), actorFrom(r), filters)
		if err != nil {
			h.respondError(w, err)
			return
		}
		resp := listResponse{
			Items:      make([]documentResponse, 0, len(result.Documents)),
			Page:       result.Pagination.Page,
			PerPage:    result.Pagination.PerPage,
			Total:      result.Pagination.Total,
			TotalPages: result.Pagination.TotalPages,
			HasNext:    result.Pagination.HasNext(),
		}
		for _, doc := range result.Documents {
			resp.Items = append(resp.Items, toResponse(doc))
		}
		httpx.JSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) get(docType workflow.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.documentID(w, r)
		if !ok {
			return
		}
		doc, err := h.service.Get(r.Context(), actorFrom(r), id)
		if err != nil {
			h.respondError(w, err)
			return
		}
		if doc.Type != docType {
			h.respondError(w, ErrNotFound)
			return
		}
		httpx.JSON(w, http.StatusOK, toResponse(doc))
	}
}

func (h *Handler) create(docType workflow.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if !h.decode(w, r, &req) {
			return
		}
		input := CreateInput{
			Type:          docType,
			Title:         req.Title,
			RequestedByID: req.RequestedByID,
			ReviewerID:    req.ReviewerID,
			ApproverID:    req.ApproverID,
			Currency:      req.Currency,
			TaxAmount:     req.TaxAmount,
			Notes:         req.Notes,
			Submit:        req.Submit,
			Lines:         toLineInputs(req.Lines),
		}
		if req.ParentID != "" {
			parentID, err := uuid.Parse(req.ParentID)
			if err != nil {
				httpx.ValidationProblem(w, map[string]string{"parentId": "must be a uuid"})
				return
			}
			input.ParentID = &parentID
		}
		actor := actorFrom(r)
		key, claimed, ok := h.claimKey(w, r, actor, docType)
		if !ok {
			return
		}
		doc, err := h.service.Create(r.Context(), actor, input)
		if err != nil {
			if claimed {
				if derr := h.keys.Delete(r.Context(), key); derr != nil {
					h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
				}
			}
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, toResponse(doc))
	}
}

func (h *Handler) update(docType workflow.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.documentID(w, r)
		if !ok {
			return
		}
		var req updateRequest
		if !h.decode(w, r, &req) {
			return
		}
		if !h.ensureType(w, r, id, docType) {
			return
		}
		doc, err := h.service.Update(r.Context(), actorFrom(r), id, UpdateInput{
			Title:         req.Title,
			RequestedByID: req.RequestedByID,
			Currency:      req.Currency,
			TaxAmount:     req.TaxAmount,
			Notes:         req.Notes,
			Lines:         toLineInputs(req.Lines),
		})
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toResponse(doc))
	}
}

func (h *Handler) remove(docType workflow.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.documentID(w, r)
		if !ok || !h.ensureType(w, r, id, docType) {
			return
		}
		if err := h.service.Delete(r.Context(), actorFrom(r), id); err != nil {
			h.respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) submit(docType workflow.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.documentID(w, r)
		if !ok || !h.ensureType(w, r, id, docType) {
			return
		}
		doc, err := h.service.Submit(r.Context(), actorFrom(r), id)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toResponse(doc))
	}
}

func (h *Handler) assign(docType workflow.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.documentID(w, r)
		if !ok {
			return
		}
		var req assignRequest
		if !h.decode(w, r, &req) || !h.ensureType(w, r, id, docType) {
			return
		}
		doc, err := h.service.Assign(r.Context(), actorFrom(r), id, req.ReviewerID, req.ApproverID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toResponse(doc))
	}
}

func (h *Handler) act(docType workflow.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.documentID(w, r)
		if !ok {
			return
		}
		var req actionRequest
		if !h.decode(w, r, &req) || !h.ensureType(w, r, id, docType) {
			return
		}
		doc, err := h.service.Act(r.Context(), actorFrom(r), id, workflow.Action(req.Action))
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toResponse(doc))
	}
}

func (h *Handler) transition(docType workflow.DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.documentID(w, r)
		if !ok {
			return
		}
		var req transitionRequest
		if !h.decode(w, r, &req) || !h.ensureType(w, r, id, docType) {
			return
		}
		doc, err := h.service.Transition(r.Context(), actorFrom(r), id, workflow.Transition(req.Transition))
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toResponse(doc))
	}
}

// ensureType keeps /memos/{id} from acting on a purchase order.
func (h *Handler) ensureType(w http.ResponseWriter, r *http.Request, id uuid.UUID, docType workflow.DocType) bool {
	actual, err := h.service.DocumentType(r.Context(), actorFrom(r), id)
	if err != nil {
		h.respondError(w, err)
		return false
	}
	if actual != docType {
		h.respondError(w, ErrNotFound)
		return false
	}
	return true
}

func (h *Handler) documentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.ValidationProblem(w, map[string]string{"id": "must be a uuid"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fields[fieldErr.Field()] = fieldErr.Tag()
			}
		}
		httpx.ValidationProblem(w, fields)
		return false
	}
	return true
}

// claimKey reserves the request's Idempotency-Key, scoped to the actor.
// ok is false when a response has already been written.
func (h *Handler) claimKey(w http.ResponseWriter, r *http.Request, actor shared.Actor, docType workflow.DocType) (string, bool, bool) {
	key := shared.ScopedIdempotencyKey(actor.ID, r.Header.Get("Idempotency-Key"))
	if h.keys == nil || key == "" || !actor.Authenticated() {
		return "", false, true
	}
	err := h.keys.CheckAndInsert(r.Context(), key, "procurement.create."+string(docType))
	switch {
	case err == nil:
		return key, true, true
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", "request with this Idempotency-Key was already processed")
	default:
		httpx.RespondError(w, h.logger, err)
	}
	return "", false, false
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrValidation) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.RespondError(w, h.logger, err)
}

func actorFrom(r *http.Request) shared.Actor {
	actor, _ := shared.ActorFromContext(r.Context())
	return actor
}
