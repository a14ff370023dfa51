package audithttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/procureflow/internal/audit"
	"github.com/odyssey-erp/procureflow/internal/platform/httpx"
	"github.com/odyssey-erp/procureflow/internal/shared"
)

const maxDateRange = 90 * 24 * time.Hour

// TrailService defines the business contract for audit trail data.
type TrailService interface {
	Trail(ctx context.Context, filters audit.TrailFilters) (audit.Result, error)
}

// Handler menangani permintaan audit trail.
type Handler struct {
	logger  *slog.Logger
	service TrailService
}

// NewHandler membuat handler audit baru.
func NewHandler(logger *slog.Logger, service TrailService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

func (h *Handler) handleTrail(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, h.logger, httpx.ErrUnauthorized)
		return
	}
	if !actor.Has(shared.CapAuditView) {
		httpx.RespondError(w, h.logger, httpx.ErrForbidden)
		return
	}

	filters, err := parseFilters(r)
	if err != nil {
		var v validationError
		if errors.As(err, &v) {
			httpx.ValidationProblem(w, map[string]string{v.field: "invalid value"})
			return
		}
		httpx.RespondError(w, h.logger, err)
		return
	}

	result, err := h.service.Trail(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func parseFilters(r *http.Request) (audit.TrailFilters, error) {
	q := r.URL.Query()
	filters := audit.TrailFilters{
		Model:    strings.TrimSpace(q.Get("model")),
		RecordID: strings.TrimSpace(q.Get("record_id")),
	}
	if v := strings.TrimSpace(q.Get("action")); v != "" {
		action := audit.Action(strings.ToUpper(v))
		if !action.Valid() {
			return audit.TrailFilters{}, validationError{field: "action"}
		}
		filters.Action = action
	}
	if v := strings.TrimSpace(q.Get("user_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return audit.TrailFilters{}, validationError{field: "user_id"}
		}
		filters.UserID = id
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			return audit.TrailFilters{}, validationError{field: "from"}
		}
		filters.From = from
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			return audit.TrailFilters{}, validationError{field: "to"}
		}
		// inclusive end date
		filters.To = to.Add(24 * time.Hour)
	}
	if !filters.From.IsZero() && !filters.To.IsZero() {
		if !filters.From.Before(filters.To) || filters.To.Sub(filters.From) > maxDateRange {
			return audit.TrailFilters{}, validationError{field: "range"}
		}
	}
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page <= 0 {
			return audit.TrailFilters{}, validationError{field: "page"}
		}
		filters.Page = page
	}
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return audit.TrailFilters{}, validationError{field: "page_size"}
		}
		filters.PageSize = size
	}
	return filters, nil
}

type validationError struct {
	field string
}

func (validationError) Error() string {
	return "validation failed"
}
