package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/reservation"
)

// dateLayout は週表示の基準日の形式。
const dateLayout = "2006-01-02"

// ReservationServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
// 要求者は常に引数で明示的に渡す。
type ReservationServiceInterface interface {
	Create(ctx context.Context, requester model.Requester, in reservation.Input) (*model.Reservation, error)
	Update(ctx context.Context, requester model.Requester, id string, in reservation.Input) (*model.Reservation, error)
	Delete(ctx context.Context, requester model.Requester, id string) error
	GetByID(ctx context.Context, id string) (*model.ReservationWithOwner, error)
	ListWeek(ctx context.Context, anyDate time.Time) ([]model.ReservationWithOwner, error)
	ListForUser(ctx context.Context, userID string) ([]model.ReservationWithOwner, error)
	CheckAvailability(ctx context.Context, start, end, excludeID string) (bool, error)
	Location() *time.Location
}

// ReservationHandler は予約管理のHTTPハンドラー。
type ReservationHandler struct {
	service ReservationServiceInterface
	now     func() time.Time
}

// NewReservationHandler はReservationHandlerを生成する。
func NewReservationHandler(service ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		now:     time.Now,
	}
}

// reservationRequest は予約の作成・更新リクエストのボディ。
// 日時はタイムゾーンなしの形式（業務ロケーションで解釈）かRFC 3339で受け付ける。
// 必須項目の検証は存在確認と所有者確認の後にサービス層で行う。
type reservationRequest struct {
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// reservationResponse は予約情報のAPIレスポンス。
type reservationResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	UserID          string    `json:"user_id"`
	OwnerName       string    `json:"owner_name,omitempty"`
	OwnerAnonymized bool      `json:"owner_anonymized"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toReservationResponse(r *model.Reservation) reservationResponse {
	return reservationResponse{
		ID:        r.ID,
		Title:     r.Title,
		StartDate: r.StartTime,
		EndDate:   r.EndTime,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toReservationWithOwnerResponse(r *model.ReservationWithOwner) reservationResponse {
	resp := toReservationResponse(&r.Reservation)
	resp.OwnerName = r.OwnerDisplayName()
	resp.OwnerAnonymized = r.OwnerAnonymized()
	return resp
}

func toReservationList(list []model.ReservationWithOwner) []reservationResponse {
	out := make([]reservationResponse, 0, len(list))
	for i := range list {
		out = append(out, toReservationWithOwnerResponse(&list[i]))
	}
	return out
}

// ListWeek は指定日を含む週（月〜金）の予約一覧を返す。
// GET /api/reservations?date=YYYY-MM-DD（省略時は今日）
func (h *ReservationHandler) ListWeek(w http.ResponseWriter, r *http.Request) {
	loc := h.service.Location()
	anyDate := h.now().In(loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := reservation.ParseDate(raw, loc)
		if err != nil {
			middleware.WriteError(w, model.NewInvalidInputError("dateはYYYY-MM-DD形式で指定してください"))
			return
		}
		anyDate = d
	}

	list, err := h.service.ListWeek(r.Context(), anyDate)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"week_start":   reservation.WeekMonday(anyDate, loc).Format(dateLayout),
		"reservations": toReservationList(list),
	})
}

// ListForUser は指定ユーザーの予約一覧を返す。
// GET /api/reservations/user/{userId}
func (h *ReservationHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListForUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": toReservationList(list)})
}

// Availability は時間枠が空いているかを返す。作成時の判定を保証するものではない。
// GET /api/reservations/availability?start=...&end=...[&exclude=id]
func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	available, err := h.service.CheckAvailability(r.Context(), q.Get("start"), q.Get("end"), q.Get("exclude"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

// Get は予約詳細を返す。
// GET /api/reservations/{id}
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservation": toReservationWithOwnerResponse(res)})
}

// Create は要求者を所有者とする予約を作成する。
// POST /api/reservations
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireRequester(w, r)
	if !ok {
		return
	}

	var req reservationRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	res, err := h.service.Create(r.Context(), requester, toInput(req))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"reservation": toReservationResponse(res)})
}

// Update は自分の予約を変更する。
// PUT /api/reservations/{id}
func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireRequester(w, r)
	if !ok {
		return
	}

	var req reservationRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	res, err := h.service.Update(r.Context(), requester, chi.URLParam(r, "id"), toInput(req))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservation": toReservationResponse(res)})
}

// Delete は予約を削除する。
// DELETE /api/reservations/{id}
func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requester, ok := requireRequester(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), requester, chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toInput(req reservationRequest) reservation.Input {
	return reservation.Input{
		Title: req.Title,
		Start: req.StartDate,
		End:   req.EndDate,
	}
}
