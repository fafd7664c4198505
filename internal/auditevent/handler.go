package auditevent

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/auditline-platform/auditline/internal/api"
	"github.com/auditline-platform/auditline/internal/auth"
	"github.com/auditline-platform/auditline/internal/authz"
	"github.com/auditline-platform/auditline/internal/directory"
)

type Handler struct {
	svc  *Service
	gate *authz.Gate
}

func NewHandler(svc *Service, gate *authz.Gate) *Handler {
	return &Handler{svc: svc, gate: gate}
}

// ListDomainEvents serves GET /domains/{domainID}/auditEvents.
// Requires the caller to be an admin of the target domain.
func (h *Handler) ListDomainEvents(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.CallerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUserNotSpecified)
		return
	}

	domainID := chi.URLParam(r, "domainID")

	if err := h.gate.RequireDomainAdmin(r.Context(), callerID, domainID); err != nil {
		h.handleAuthzError(w, err)
		return
	}

	params, perr := parseListParams(r)
	if perr != nil {
		api.JSONValidationError(w, perr.Message, perr.Field, perr.Code)
		return
	}

	baseURI := fmt.Sprintf("/domains/%s/auditEvents", domainID)
	page, err := h.svc.ListByDomain(r.Context(), domainID, params, baseURI)
	if err != nil {
		h.handleListError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, page)
}

// ListUserEvents serves GET /users/{userID}/auditEvents.
// Self-access is always allowed; cross-user access needs same-domain admin.
func (h *Handler) ListUserEvents(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.CallerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUserNotSpecified)
		return
	}

	targetUserID := chi.URLParam(r, "userID")

	target, err := h.gate.AuthorizeUserAccess(r.Context(), callerID, targetUserID)
	if err != nil {
		h.handleAuthzError(w, err)
		return
	}

	params, perr := parseListParams(r)
	if perr != nil {
		api.JSONValidationError(w, perr.Message, perr.Field, perr.Code)
		return
	}

	baseURI := fmt.Sprintf("/users/%s/auditEvents", targetUserID)
	page, err := h.svc.ListByUser(r.Context(), target.DomainID, target.Login, params, baseURI)
	if err != nil {
		h.handleListError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, page)
}

// DeleteDomainEvents serves DELETE /domains/{domainID}/auditEvents.
// Administrative bulk delete of a domain's whole event stream.
func (h *Handler) DeleteDomainEvents(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.CallerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUserNotSpecified)
		return
	}

	domainID := chi.URLParam(r, "domainID")

	if err := h.gate.RequireDomainAdmin(r.Context(), callerID, domainID); err != nil {
		h.handleAuthzError(w, err)
		return
	}

	if err := h.svc.DeleteByDomain(r.Context(), domainID); err != nil {
		slog.Error("deleting audit events", "domain", domainID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAuthzError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrUserNotFound):
		api.HandleError(w, api.NewNotFoundError("user not found"))
	case errors.Is(err, directory.ErrDomainNotFound):
		api.HandleError(w, api.NewNotFoundError("domain not found"))
	case errors.Is(err, authz.ErrNotAuthorized):
		api.HandleError(w, api.NewUnauthorizedError("user is not authorized to access this resource"))
	case errors.Is(err, authz.ErrNotDomainAdmin):
		api.HandleError(w, api.NewForbiddenError("user is not an admin of the domain"))
	case errors.Is(err, authz.ErrAuditNotEnabled):
		api.HandleError(w, api.NewForbiddenError("audit log is not enabled for user"))
	default:
		slog.Error("authorization lookup failed", "error", err)
		api.HandleError(w, api.ErrInternalServer)
	}
}

func (h *Handler) handleListError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		api.JSONValidationError(w, verr.Message, verr.Field, verr.Code)
		return
	}
	slog.Error("listing audit events", "error", err)
	api.HandleError(w, api.ErrInternalServer)
}

// parseListParams reads paging and filter query parameters. Unparsable
// values are rejected here; semantic validation happens in the service.
func parseListParams(r *http.Request) (ListParams, *ValidationError) {
	var params ListParams

	// An absent limit gets the configured default downstream; an explicit
	// non-positive one is rejected here, before it can look absent.
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit <= 0 {
			return params, &ValidationError{
				Field:   "limit",
				Code:    CodeNotPositiveLimit,
				Message: "limit parameter must be a positive number",
			}
		}
		params.Limit = limit
	}

	params.Offset = r.URL.Query().Get("offset")
	params.Type = r.URL.Query().Get("type")

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return params, &ValidationError{
				Field:   "from",
				Code:    CodeInvalidTimeInterval,
				Message: `"from" is not a valid RFC 3339 timestamp`,
			}
		}
		params.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return params, &ValidationError{
				Field:   "to",
				Code:    CodeInvalidTimeInterval,
				Message: `"to" is not a valid RFC 3339 timestamp`,
			}
		}
		params.To = &t
	}

	return params, nil
}
