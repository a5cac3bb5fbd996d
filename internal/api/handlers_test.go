package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-holds/internal/hold"
)

type stubHoldService struct {
	hold  hold.Hold
	holds []hold.Hold
	err   error

	lastCreate  hold.CreateHoldInput
	lastRespond hold.RespondInput
	lastFilter  hold.ListFilter
	lastActor   uuid.UUID
}

func (s *stubHoldService) CreateHold(_ context.Context, in hold.CreateHoldInput) (*hold.Hold, error) {
	s.lastCreate = in
	if s.err != nil {
		return nil, s.err
	}
	return &s.hold, nil
}

func (s *stubHoldService) GetHold(_ context.Context, _ uuid.UUID) (*hold.Hold, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &s.hold, nil
}

func (s *stubHoldService) ListHolds(_ context.Context, f hold.ListFilter) ([]hold.Hold, error) {
	s.lastFilter = f
	return s.holds, s.err
}

func (s *stubHoldService) Respond(_ context.Context, in hold.RespondInput) (*hold.Hold, error) {
	s.lastRespond = in
	if s.err != nil {
		return nil, s.err
	}
	return &s.hold, nil
}

func (s *stubHoldService) Cancel(_ context.Context, _, actorID uuid.UUID) (*hold.Hold, error) {
	s.lastActor = actorID
	if s.err != nil {
		return nil, s.err
	}
	return &s.hold, nil
}

func sampleHold() hold.Hold {
	return hold.Hold{
		ID:          uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		RequesterID: uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		HoldeeID:    uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		StartDate:   hold.MustDate("2025-06-01"),
		EndDate:     hold.MustDate("2025-06-05"),
		Status:      hold.StatusPending,
		ExpiresAt:   time.Date(2025, 5, 22, 10, 0, 0, 0, time.UTC),
		CreatedAt:   time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC),
	}
}

func serve(t *testing.T, svc HoldService, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	NewRouter(RouterConfig{Service: svc}).ServeHTTP(rec, req)
	return rec
}

func TestCreateHoldHandler(t *testing.T) {
	t.Parallel()

	valid := `{"requester_id":"22222222-2222-2222-2222-222222222222","holdee_id":"33333333-3333-3333-3333-333333333333","start_date":"2025-06-01","end_date":"2025-06-05"}`

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{"success", valid, nil, http.StatusCreated, `"status":"pending"`},
		{"invalid json", `{"requester_id":`, nil, http.StatusBadRequest, "invalid_request_body"},
		{"missing holdee", `{"requester_id":"22222222-2222-2222-2222-222222222222","start_date":"2025-06-01","end_date":"2025-06-05"}`, nil, http.StatusBadRequest, "holdee_id is required"},
		{"bad date", `{"requester_id":"22222222-2222-2222-2222-222222222222","holdee_id":"33333333-3333-3333-3333-333333333333","start_date":"06/01/2025","end_date":"2025-06-05"}`, nil, http.StatusBadRequest, "YYYY-MM-DD"},
		{"invalid range", valid, &hold.ValidationError{Err: hold.ErrInvalidRange, Reason: "start date 2025-06-05 is after end date 2025-06-01"}, http.StatusUnprocessableEntity, "invalid_range"},
		{"self hold", valid, hold.ErrSelfHold, http.StatusUnprocessableEntity, "self_hold"},
		{"occupied window", valid, &hold.ConflictError{ConflictingHoldID: uuid.MustParse("44444444-4444-4444-4444-444444444444"), Start: hold.MustDate("2025-06-03"), End: hold.MustDate("2025-06-04")}, http.StatusConflict, `"hold_id":"44444444-4444-4444-4444-444444444444"`},
		{"internal error", valid, errors.New("connection refused"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubHoldService{hold: sampleHold(), err: tt.serviceErr}
			rec := serve(t, svc, http.MethodPost, "/holds", tt.body, nil)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}

	t.Run("passes parsed input", func(t *testing.T) {
		t.Parallel()
		svc := &stubHoldService{hold: sampleHold()}
		serve(t, svc, http.MethodPost, "/holds", valid, nil)
		if svc.lastCreate.StartDate != hold.MustDate("2025-06-01") || svc.lastCreate.HoldeeID != sampleHold().HoldeeID {
			t.Fatalf("unexpected input %+v", svc.lastCreate)
		}
	})
}

func TestRespondHandler(t *testing.T) {
	t.Parallel()

	holdee := sampleHold().HoldeeID.String()
	path := "/holds/" + sampleHold().ID.String() + "/respond"
	expiresAt := time.Date(2025, 5, 22, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		path           string
		actor          string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{"accept", path, holdee, `{"action":"accept","message":"see you"}`, nil, http.StatusOK, `"id":"11111111-1111-1111-1111-111111111111"`},
		{"missing actor", path, "", `{"action":"accept"}`, nil, http.StatusUnauthorized, "missing_actor"},
		{"bad actor", path, "nope", `{"action":"accept"}`, nil, http.StatusBadRequest, "invalid_actor"},
		{"bad hold id", "/holds/nope/respond", holdee, `{"action":"accept"}`, nil, http.StatusBadRequest, "invalid_hold_id"},
		{"unknown action", path, holdee, `{"action":"approve"}`, nil, http.StatusBadRequest, "must be one of"},
		{"not found", path, holdee, `{"action":"accept"}`, hold.ErrNotFound, http.StatusNotFound, "hold_not_found"},
		{"forbidden", path, holdee, `{"action":"accept"}`, hold.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"already resolved", path, holdee, `{"action":"decline"}`, &hold.AlreadyResolvedError{Current: hold.StatusDeclined}, http.StatusConflict, `"current_status":"declined"`},
		{"expired", path, holdee, `{"action":"accept"}`, &hold.ExpiredError{ExpiresAt: expiresAt}, http.StatusConflict, `"expires_at":"2025-05-22T10:00:00Z"`},
		{"conflict", path, holdee, `{"action":"accept"}`, &hold.ConflictError{ConflictingHoldID: uuid.MustParse("44444444-4444-4444-4444-444444444444"), Start: hold.MustDate("2025-06-04"), End: hold.MustDate("2025-06-10")}, http.StatusConflict, `"start_date":"2025-06-04"`},
		{"lock busy", path, holdee, `{"action":"accept"}`, fmt.Errorf("%w: holdee x", hold.ErrLockNotAcquired), http.StatusServiceUnavailable, "lock_unavailable"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubHoldService{hold: sampleHold(), err: tt.serviceErr}
			headers := map[string]string{}
			if tt.actor != "" {
				headers[actorHeader] = tt.actor
			}
			rec := serve(t, svc, http.MethodPost, tt.path, tt.body, headers)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}

	t.Run("forwards message", func(t *testing.T) {
		t.Parallel()
		svc := &stubHoldService{hold: sampleHold()}
		serve(t, svc, http.MethodPost, path, `{"action":"decline","message":"away"}`, map[string]string{actorHeader: holdee})
		if svc.lastRespond.Action != hold.ActionDecline || svc.lastRespond.Message == nil || *svc.lastRespond.Message != "away" {
			t.Fatalf("unexpected respond input %+v", svc.lastRespond)
		}
	})
}

func TestCancelHandler(t *testing.T) {
	t.Parallel()

	requester := sampleHold().RequesterID
	cancelled := sampleHold()
	cancelled.Status = hold.StatusCancelled
	svc := &stubHoldService{hold: cancelled}

	rec := serve(t, svc, http.MethodPost, "/holds/"+cancelled.ID.String()+"/cancel", "", map[string]string{actorHeader: requester.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastActor != requester {
		t.Fatalf("expected actor %s, got %s", requester, svc.lastActor)
	}
	if !strings.Contains(rec.Body.String(), `"status":"cancelled"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestGetAndListHandlers(t *testing.T) {
	t.Parallel()

	t.Run("get", func(t *testing.T) {
		t.Parallel()
		svc := &stubHoldService{hold: sampleHold()}
		rec := serve(t, svc, http.MethodGet, "/holds/"+sampleHold().ID.String(), "", nil)
		var resp HoldResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rec.Code != http.StatusOK || resp.EndDate != hold.MustDate("2025-06-05") {
			t.Fatalf("unexpected response %d %+v", rec.Code, resp)
		}
	})

	t.Run("list parses filter", func(t *testing.T) {
		t.Parallel()
		svc := &stubHoldService{holds: []hold.Hold{sampleHold()}}
		target := "/holds?holdee_id=" + sampleHold().HoldeeID.String() + "&status=pending&limit=5&offset=10"
		rec := serve(t, svc, http.MethodGet, target, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		f := svc.lastFilter
		if f.HoldeeID == nil || *f.HoldeeID != sampleHold().HoldeeID || f.Status == nil || *f.Status != hold.StatusPending || f.Limit != 5 || f.Offset != 10 {
			t.Fatalf("unexpected filter %+v", f)
		}
		var resp ListHoldsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || len(resp.Holds) != 1 {
			t.Fatalf("unexpected list body %s", rec.Body.String())
		}
	})

	t.Run("list reports the page size used", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			query string
			want  int
		}{
			{query: "", want: 20},
			{query: "&limit=500", want: 100},
			{query: "&limit=7", want: 7},
		}
		for _, tt := range tests {
			svc := &stubHoldService{holds: []hold.Hold{sampleHold()}}
			rec := serve(t, svc, http.MethodGet, "/holds?holdee_id="+sampleHold().HoldeeID.String()+tt.query, "", nil)
			var resp ListHoldsResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Limit != tt.want {
				t.Fatalf("query %q: expected limit %d, got %d", tt.query, tt.want, resp.Limit)
			}
		}
	})

	t.Run("list rejects bad status", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, &stubHoldService{}, http.MethodGet, "/holds?holdee_id="+uuid.NewString()+"&status=maybe", "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("list without owner", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, &stubHoldService{err: hold.ErrInvalidFilter}, http.MethodGet, "/holds", "", nil)
		if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid_filter") {
			t.Fatalf("expected invalid_filter, got %d %s", rec.Code, rec.Body.String())
		}
	})
}
