package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hackgods/availability-holds/internal/hold"
)

type holdHandlers struct {
	svc      HoldService
	validate *validator.Validate
}

func newHoldHandlers(svc HoldService) *holdHandlers {
	v := validator.New()
	// report json names in validation messages
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &holdHandlers{svc: svc, validate: v}
}

func (h *holdHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req CreateHoldRequest
	if !h.decode(w, r, &req) {
		return
	}

	// validated above, parse errors are impossible
	requesterID := uuid.MustParse(req.RequesterID)
	holdeeID := uuid.MustParse(req.HoldeeID)
	start, _ := hold.ParseDate(req.StartDate)
	end, _ := hold.ParseDate(req.EndDate)

	created, err := h.svc.CreateHold(r.Context(), hold.CreateHoldInput{
		RequesterID: requesterID,
		HoldeeID:    holdeeID,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toHoldResponse(*created))
}

func (h *holdHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := holdIDParam(w, r)
	if !ok {
		return
	}

	found, err := h.svc.GetHold(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toHoldResponse(*found))
}

func (h *holdHandlers) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f hold.ListFilter

	if v := q.Get("holdee_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_holdee_id", "holdee_id must be a valid UUID")
			return
		}
		f.HoldeeID = &id
	}
	if v := q.Get("requester_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_requester_id", "requester_id must be a valid UUID")
			return
		}
		f.RequesterID = &id
	}
	if v := q.Get("status"); v != "" {
		status, ok := hold.ParseStatus(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_status", fmt.Sprintf("unknown status %q", v))
			return
		}
		f.Status = &status
	}

	var err error
	if f.Limit, err = intQuery(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
		return
	}
	if f.Offset, err = intQuery(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be a non-negative integer")
		return
	}

	holds, err := h.svc.ListHolds(r.Context(), f)
	if err != nil {
		handleError(w, r, err)
		return
	}

	page := f.WithPageDefaults()
	resp := ListHoldsResponse{Holds: make([]HoldResponse, 0, len(holds)), Limit: page.Limit, Offset: page.Offset}
	for _, item := range holds {
		resp.Holds = append(resp.Holds, toHoldResponse(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *holdHandlers) respond(w http.ResponseWriter, r *http.Request) {
	id, ok := holdIDParam(w, r)
	if !ok {
		return
	}
	actorID, ok := actorFromHeader(w, r)
	if !ok {
		return
	}

	var req RespondRequest
	if !h.decode(w, r, &req) {
		return
	}
	action, err := hold.ParseResponseAction(req.Action)
	if err != nil {
		handleError(w, r, err)
		return
	}

	updated, err := h.svc.Respond(r.Context(), hold.RespondInput{
		HoldID:  id,
		ActorID: actorID,
		Action:  action,
		Message: req.Message,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toHoldResponse(*updated))
}

func (h *holdHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := holdIDParam(w, r)
	if !ok {
		return
	}
	actorID, ok := actorFromHeader(w, r)
	if !ok {
		return
	}

	cancelled, err := h.svc.Cancel(r.Context(), id, actorID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toHoldResponse(*cancelled))
}

func (h *holdHandlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "uuid":
			parts = append(parts, fmt.Sprintf("%s must be a valid UUID", fe.Field()))
		case "datetime":
			parts = append(parts, fmt.Sprintf("%s must be a YYYY-MM-DD date", fe.Field()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func holdIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_hold_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func actorFromHeader(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(actorHeader)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "missing_actor", actorHeader+" header is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_actor", actorHeader+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid")
	}
	return n, nil
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		resolved *hold.AlreadyResolvedError
		expired  *hold.ExpiredError
		conflict *hold.ConflictError
	)

	switch {
	case errors.As(err, &resolved):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:         "already_resolved",
			Details:       err.Error(),
			CurrentStatus: string(resolved.Current),
		})
	case errors.As(err, &expired):
		at := expired.ExpiresAt
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:         "hold_expired",
			Details:       err.Error(),
			CurrentStatus: string(hold.StatusExpired),
			ExpiresAt:     &at,
		})
	case errors.As(err, &conflict):
		resp := ErrorResponse{Error: "conflict", Details: err.Error()}
		if conflict.ConflictingHoldID != uuid.Nil {
			resp.Conflict = &ConflictDetail{
				HoldID:    conflict.ConflictingHoldID,
				StartDate: conflict.Start,
				EndDate:   conflict.End,
			}
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, hold.ErrNotFound):
		writeError(w, http.StatusNotFound, "hold_not_found", err.Error())
	case errors.Is(err, hold.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, hold.ErrInvalidRange):
		writeError(w, http.StatusUnprocessableEntity, "invalid_range", err.Error())
	case errors.Is(err, hold.ErrSelfHold):
		writeError(w, http.StatusUnprocessableEntity, "self_hold", err.Error())
	case errors.Is(err, hold.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "invalid_action", err.Error())
	case errors.Is(err, hold.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
	case errors.Is(err, hold.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
	case errors.Is(err, hold.ErrLockNotAcquired):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "lock_unavailable", "holdee calendar is busy, please retry shortly")
	default:
		log.Printf("request_id=%s internal error: %v", GetRequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
