package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/reservation"
)

// --- モック定義 ---

type mockReservationService struct {
	createFn            func(ctx context.Context, requester model.Requester, in reservation.Input) (*model.Reservation, error)
	updateFn            func(ctx context.Context, requester model.Requester, id string, in reservation.Input) (*model.Reservation, error)
	deleteFn            func(ctx context.Context, requester model.Requester, id string) error
	getByIDFn           func(ctx context.Context, id string) (*model.ReservationWithOwner, error)
	listWeekFn          func(ctx context.Context, anyDate time.Time) ([]model.ReservationWithOwner, error)
	listForUserFn       func(ctx context.Context, userID string) ([]model.ReservationWithOwner, error)
	checkAvailabilityFn func(ctx context.Context, start, end, excludeID string) (bool, error)
	loc                 *time.Location
}

func (m *mockReservationService) Create(ctx context.Context, requester model.Requester, in reservation.Input) (*model.Reservation, error) {
	if m.createFn != nil {
		return m.createFn(ctx, requester, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockReservationService) Update(ctx context.Context, requester model.Requester, id string, in reservation.Input) (*model.Reservation, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, requester, id, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockReservationService) Delete(ctx context.Context, requester model.Requester, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, requester, id)
	}
	return nil
}

func (m *mockReservationService) GetByID(ctx context.Context, id string) (*model.ReservationWithOwner, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.NewReservationNotFoundError(id)
}

func (m *mockReservationService) ListWeek(ctx context.Context, anyDate time.Time) ([]model.ReservationWithOwner, error) {
	if m.listWeekFn != nil {
		return m.listWeekFn(ctx, anyDate)
	}
	return []model.ReservationWithOwner{}, nil
}

func (m *mockReservationService) ListForUser(ctx context.Context, userID string) ([]model.ReservationWithOwner, error) {
	if m.listForUserFn != nil {
		return m.listForUserFn(ctx, userID)
	}
	return []model.ReservationWithOwner{}, nil
}

func (m *mockReservationService) CheckAvailability(ctx context.Context, start, end, excludeID string) (bool, error) {
	if m.checkAvailabilityFn != nil {
		return m.checkAvailabilityFn(ctx, start, end, excludeID)
	}
	return true, nil
}

func (m *mockReservationService) Location() *time.Location {
	if m.loc != nil {
		return m.loc
	}
	return time.UTC
}

// --- ヘルパー ---

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

const (
	reservationID = "22222222-2222-2222-2222-222222222222"
	ownerID       = "11111111-1111-1111-1111-111111111111"
	otherUserID   = "33333333-3333-3333-3333-333333333333"
)

func sampleReservation() *model.Reservation {
	return &model.Reservation{
		ID:        reservationID,
		Title:     "Sprint review",
		StartTime: time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 6, 4, 11, 0, 0, 0, time.UTC),
		UserID:    ownerID,
	}
}

func sampleWithOwner(status model.AccountStatus) model.ReservationWithOwner {
	return model.ReservationWithOwner{
		Reservation:   *sampleReservation(),
		OwnerName:     "Alice",
		OwnerLastName: "Martin",
		OwnerStatus:   status,
	}
}

// --- GET /api/reservations ---

func TestReservationHandler_ListWeek_WithDate(t *testing.T) {
	var gotDate time.Time
	svc := &mockReservationService{
		listWeekFn: func(ctx context.Context, anyDate time.Time) ([]model.ReservationWithOwner, error) {
			gotDate = anyDate
			return []model.ReservationWithOwner{sampleWithOwner(model.AccountStatusActive)}, nil
		},
	}
	h := NewReservationHandler(svc)

	w := httptest.NewRecorder()
	h.ListWeek(w, withRequester(httptest.NewRequest(http.MethodGet, "/api/reservations?date=2024-06-06", nil), ownerID))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !gotDate.Equal(time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("anyDate = %v", gotDate)
	}

	var resp struct {
		WeekStart    string                `json:"week_start"`
		Reservations []reservationResponse `json:"reservations"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.WeekStart != "2024-06-03" {
		t.Errorf("week_start = %q, want %q", resp.WeekStart, "2024-06-03")
	}
	if len(resp.Reservations) != 1 || resp.Reservations[0].OwnerName != "Alice Martin" {
		t.Errorf("reservations = %+v", resp.Reservations)
	}
}

func TestReservationHandler_ListWeek_DefaultsToToday(t *testing.T) {
	var gotDate time.Time
	svc := &mockReservationService{
		listWeekFn: func(ctx context.Context, anyDate time.Time) ([]model.ReservationWithOwner, error) {
			gotDate = anyDate
			return nil, nil
		},
	}
	h := NewReservationHandler(svc)
	h.now = func() time.Time { return time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC) }

	w := httptest.NewRecorder()
	h.ListWeek(w, httptest.NewRequest(http.MethodGet, "/api/reservations", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotDate.Day() != 5 {
		t.Errorf("anyDate = %v, want 2024-06-05", gotDate)
	}
	if !strings.Contains(w.Body.String(), `"reservations":[]`) {
		t.Errorf("body = %s, want empty list", w.Body.String())
	}
}

func TestReservationHandler_ListWeek_InvalidDate(t *testing.T) {
	h := NewReservationHandler(&mockReservationService{})

	w := httptest.NewRecorder()
	h.ListWeek(w, httptest.NewRequest(http.MethodGet, "/api/reservations?date=06/06/2024", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestReservationHandler_ListWeek_AnonymizedOwner(t *testing.T) {
	svc := &mockReservationService{
		listWeekFn: func(ctx context.Context, anyDate time.Time) ([]model.ReservationWithOwner, error) {
			return []model.ReservationWithOwner{sampleWithOwner(model.AccountStatusAnonymized)}, nil
		},
	}
	h := NewReservationHandler(svc)

	w := httptest.NewRecorder()
	h.ListWeek(w, httptest.NewRequest(http.MethodGet, "/api/reservations?date=2024-06-03", nil))

	body := w.Body.String()
	if !strings.Contains(body, `"owner_anonymized":true`) || !strings.Contains(body, `"owner_name":"Anonyme"`) {
		t.Errorf("body = %s", body)
	}
}

// --- GET /api/reservations/user/{userId} ---

func TestReservationHandler_ListForUser(t *testing.T) {
	svc := &mockReservationService{
		listForUserFn: func(ctx context.Context, userID string) ([]model.ReservationWithOwner, error) {
			if userID != ownerID {
				t.Errorf("userID = %q, want %q", userID, ownerID)
			}
			return []model.ReservationWithOwner{sampleWithOwner(model.AccountStatusActive)}, nil
		},
	}
	h := NewReservationHandler(svc)

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/reservations/user/"+ownerID, nil), "userId", ownerID)
	w := httptest.NewRecorder()
	h.ListForUser(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// --- GET /api/reservations/availability ---

func TestReservationHandler_Availability(t *testing.T) {
	svc := &mockReservationService{
		checkAvailabilityFn: func(ctx context.Context, start, end, excludeID string) (bool, error) {
			if start != "2024-06-04T10:00" || end != "2024-06-04T11:00" || excludeID != reservationID {
				t.Errorf("args = %q %q %q", start, end, excludeID)
			}
			return false, nil
		},
	}
	h := NewReservationHandler(svc)

	w := httptest.NewRecorder()
	h.Availability(w, httptest.NewRequest(http.MethodGet,
		"/api/reservations/availability?start=2024-06-04T10:00&end=2024-06-04T11:00&exclude="+reservationID, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if strings.TrimSpace(w.Body.String()) != `{"available":false}` {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestReservationHandler_Availability_InvalidInput(t *testing.T) {
	svc := &mockReservationService{
		checkAvailabilityFn: func(ctx context.Context, start, end, excludeID string) (bool, error) {
			return false, model.NewInvalidInputError("bad")
		},
	}
	h := NewReservationHandler(svc)

	w := httptest.NewRecorder()
	h.Availability(w, httptest.NewRequest(http.MethodGet, "/api/reservations/availability", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- GET /api/reservations/{id} ---

func TestReservationHandler_Get(t *testing.T) {
	svc := &mockReservationService{
		getByIDFn: func(ctx context.Context, id string) (*model.ReservationWithOwner, error) {
			if id != reservationID {
				return nil, model.NewReservationNotFoundError(id)
			}
			r := sampleWithOwner(model.AccountStatusActive)
			return &r, nil
		},
	}
	h := NewReservationHandler(svc)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Get(w, withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", reservationID))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if !strings.Contains(w.Body.String(), `"title":"Sprint review"`) {
			t.Errorf("body = %s", w.Body.String())
		}
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Get(w, withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "nope"))
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// --- POST /api/reservations ---

func TestReservationHandler_Create_Success(t *testing.T) {
	svc := &mockReservationService{
		createFn: func(ctx context.Context, requester model.Requester, in reservation.Input) (*model.Reservation, error) {
			if requester.ID != ownerID {
				t.Errorf("requester = %+v", requester)
			}
			if in.Title != "Sprint review" || in.Start != "2024-06-04T10:00" || in.End != "2024-06-04T11:00" {
				t.Errorf("input = %+v", in)
			}
			return sampleReservation(), nil
		},
	}
	h := NewReservationHandler(svc)

	body := `{"title":"Sprint review","start_date":"2024-06-04T10:00","end_date":"2024-06-04T11:00"}`
	req := withRequester(httptest.NewRequest(http.MethodPost, "/api/reservations", strings.NewReader(body)), ownerID)
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var resp struct {
		Reservation reservationResponse `json:"reservation"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reservation.ID != reservationID || resp.Reservation.UserID != ownerID {
		t.Errorf("reservation = %+v", resp.Reservation)
	}
}

func TestReservationHandler_Create_ErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantStatus     int
		wantCode       string
		wantRetryAfter bool
	}{
		{"past date", model.NewPastDateError(), http.StatusBadRequest, model.ErrCodePastDate, false},
		{"too short", model.NewTooShortError(), http.StatusBadRequest, model.ErrCodeTooShort, false},
		{"outside hours", model.NewOutsideBusinessHoursError(), http.StatusBadRequest, model.ErrCodeOutsideBusinessHours, false},
		{"weekend", model.NewWeekendError(), http.StatusBadRequest, model.ErrCodeWeekend, false},
		{"conflict", model.NewConflictError(), http.StatusConflict, model.ErrCodeConflict, false},
		{"account deleted", model.NewAccountDeletedError(), http.StatusUnauthorized, model.ErrCodeAccountDeleted, false},
		{"storage", model.NewStorageError(errors.New("timeout")), http.StatusServiceUnavailable, model.ErrCodeStorage, true},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, model.ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockReservationService{
				createFn: func(ctx context.Context, requester model.Requester, in reservation.Input) (*model.Reservation, error) {
					return nil, tt.err
				},
			}
			h := NewReservationHandler(svc)

			body := `{"title":"x","start_date":"2024-06-04T10:00","end_date":"2024-06-04T11:00"}`
			w := httptest.NewRecorder()
			h.Create(w, withRequester(httptest.NewRequest(http.MethodPost, "/api/reservations", strings.NewReader(body)), ownerID))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Retry-After") != ""; got != tt.wantRetryAfter {
				t.Errorf("Retry-After present = %v, want %v", got, tt.wantRetryAfter)
			}
			if body := decodeError(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestReservationHandler_Create_MalformedBody(t *testing.T) {
	h := NewReservationHandler(&mockReservationService{})

	w := httptest.NewRecorder()
	h.Create(w, withRequester(httptest.NewRequest(http.MethodPost, "/api/reservations", strings.NewReader("{")), ownerID))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestReservationHandler_Create_NoRequester(t *testing.T) {
	h := NewReservationHandler(&mockReservationService{})

	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/reservations", strings.NewReader("{}")))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// --- PUT /api/reservations/{id} ---

func TestReservationHandler_Update(t *testing.T) {
	svc := &mockReservationService{
		updateFn: func(ctx context.Context, requester model.Requester, id string, in reservation.Input) (*model.Reservation, error) {
			if requester.ID != ownerID {
				return nil, model.NewForbiddenError("update")
			}
			res := sampleReservation()
			res.Title = in.Title
			return res, nil
		},
	}
	h := NewReservationHandler(svc)
	body := `{"title":"Renamed","start_date":"2024-06-04T10:00","end_date":"2024-06-04T11:00"}`

	t.Run("owner", func(t *testing.T) {
		req := withChiURLParam(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body)), "id", reservationID)
		w := httptest.NewRecorder()
		h.Update(w, withRequester(req, ownerID))

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if !strings.Contains(w.Body.String(), `"title":"Renamed"`) {
			t.Errorf("body = %s", w.Body.String())
		}
	})

	t.Run("other user", func(t *testing.T) {
		req := withChiURLParam(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body)), "id", reservationID)
		w := httptest.NewRecorder()
		h.Update(w, withRequester(req, otherUserID))

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

func TestReservationHandler_Update_EmptyFieldsReachService(t *testing.T) {
	called := false
	svc := &mockReservationService{
		updateFn: func(ctx context.Context, requester model.Requester, id string, in reservation.Input) (*model.Reservation, error) {
			called = true
			return nil, model.NewReservationNotFoundError(id)
		},
	}
	h := NewReservationHandler(svc)

	req := withChiURLParam(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{}`)), "id", reservationID)
	w := httptest.NewRecorder()
	h.Update(w, withRequester(req, ownerID))

	if !called {
		t.Error("service should decide the error order")
	}
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// --- DELETE /api/reservations/{id} ---

func TestReservationHandler_Delete(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"deleted", nil, http.StatusNoContent},
		{"forbidden", model.NewForbiddenError("delete"), http.StatusForbidden},
		{"not found", model.NewReservationNotFoundError(reservationID), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockReservationService{
				deleteFn: func(ctx context.Context, requester model.Requester, id string) error {
					if id != reservationID {
						t.Errorf("id = %q, want %q", id, reservationID)
					}
					return tt.err
				},
			}
			h := NewReservationHandler(svc)

			req := withChiURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "id", reservationID)
			w := httptest.NewRecorder()
			h.Delete(w, withRequester(req, ownerID))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
