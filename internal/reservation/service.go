package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
	"github.com/hitoshi/roombook/internal/security"
)

// DefaultStorageTimeout はストレージ呼び出し1回あたりのデフォルトのタイムアウト。
const DefaultStorageTimeout = 5 * time.Second

// Input は予約の作成・更新の入力。日時は解析前の文字列で受け取る。
type Input struct {
	Title string
	Start string
	End   string
}

// Service は予約管理のサービス層。
// 検証、所有者ポリシー、トランザクション内の重複判定を順に適用する。
// 要求者は常に引数で明示的に受け取る。
type Service struct {
	repo      repository.ReservationRepository
	validator *Validator
	sanitizer security.TextSanitizer
	clock     Clock
	metrics   metrics.ReservationMetrics
	timeout   time.Duration
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithClock は現在時刻の取得元を差し替える。
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m metrics.ReservationMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithStorageTimeout はストレージ呼び出しのタイムアウトを設定する。0以下は無視する。
func WithStorageTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.ReservationRepository,
	validator *Validator,
	sanitizer security.TextSanitizer,
	opts ...Option,
) *Service {
	s := &Service{
		repo:      repo,
		validator: validator,
		sanitizer: sanitizer,
		clock:     RealClock{},
		metrics:   metrics.Noop{},
		timeout:   DefaultStorageTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location は業務ルールの判定に使うロケーションを返す。
func (s *Service) Location() *time.Location {
	return s.validator.Location()
}

// Create は要求者を所有者とする予約を作成する。
// 検証エラーは重複判定より先に返る。
func (s *Service) Create(ctx context.Context, requester model.Requester, in Input) (*model.Reservation, error) {
	if apiErr := checkRequester(requester); apiErr != nil {
		return nil, apiErr
	}

	title := s.sanitizer.Sanitize(in.Title)
	now := s.clock.Now()
	start, end, apiErr := s.validator.Validate(title, in.Start, in.End, now)
	if apiErr != nil {
		return nil, s.reject(apiErr)
	}

	res := &model.Reservation{
		ID:        uuid.NewString(),
		Title:     title,
		StartTime: start,
		EndTime:   end,
		UserID:    requester.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.storage(ctx, "create", func(ctx context.Context) error {
		return s.repo.Create(ctx, res)
	})
	if err != nil {
		return nil, s.reject(s.mapStorageError(err, res.ID))
	}

	s.metrics.RecordReservationCreated()
	slog.Info("予約を作成しました",
		slog.String("reservation_id", res.ID),
		slog.String("user_id", requester.ID),
		slog.Time("start", res.StartTime),
		slog.Time("end", res.EndTime),
	)

	s.localize(res)
	return res, nil
}

// Update は予約のタイトルと時間枠を変更する。
// 所有者以外はForbidden。変更後の時間枠は作成時と同じ検証を通し、
// 自身を除外して重複判定する。
func (s *Service) Update(ctx context.Context, requester model.Requester, id string, in Input) (*model.Reservation, error) {
	if apiErr := checkRequester(requester); apiErr != nil {
		return nil, apiErr
	}

	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if apiErr := CanUpdate(existing, requester); apiErr != nil {
		return nil, s.reject(apiErr)
	}

	title := s.sanitizer.Sanitize(in.Title)
	now := s.clock.Now()
	start, end, apiErr := s.validator.Validate(title, in.Start, in.End, now)
	if apiErr != nil {
		return nil, s.reject(apiErr)
	}

	res := existing.Reservation
	res.Title = title
	res.StartTime = start
	res.EndTime = end
	res.UpdatedAt = now

	err = s.storage(ctx, "update", func(ctx context.Context) error {
		return s.repo.Update(ctx, &res)
	})
	if err != nil {
		return nil, s.reject(s.mapStorageError(err, res.ID))
	}

	s.metrics.RecordReservationUpdated()
	slog.Info("予約を更新しました",
		slog.String("reservation_id", res.ID),
		slog.String("user_id", requester.ID),
		slog.Time("start", res.StartTime),
		slog.Time("end", res.EndTime),
	)

	s.localize(&res)
	return &res, nil
}

// Delete は予約を削除する。
// 所有者、または所有者が匿名化済みの予約であれば任意の認証済みユーザーが削除できる。
func (s *Service) Delete(ctx context.Context, requester model.Requester, id string) error {
	if apiErr := checkRequester(requester); apiErr != nil {
		return apiErr
	}

	existing, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if apiErr := CanDelete(existing, requester); apiErr != nil {
		return s.reject(apiErr)
	}

	err = s.storage(ctx, "delete", func(ctx context.Context) error {
		return s.repo.Delete(ctx, existing.ID)
	})
	if err != nil {
		return s.mapStorageError(err, existing.ID)
	}

	s.metrics.RecordReservationDeleted()
	slog.Info("予約を削除しました",
		slog.String("reservation_id", existing.ID),
		slog.String("user_id", requester.ID),
		slog.String("owner_id", existing.UserID),
		slog.Bool("owner_anonymized", existing.OwnerAnonymized()),
	)
	return nil
}

// GetByID は指定IDの予約を所有者情報付きで返す。
func (s *Service) GetByID(ctx context.Context, id string) (*model.ReservationWithOwner, error) {
	res, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	s.localize(&res.Reservation)
	return res, nil
}

// ListWeek はanyDateを含む週（月〜金）に開始する予約を開始日時の昇順で返す。
// 営業時間外の予約も除外しない。
func (s *Service) ListWeek(ctx context.Context, anyDate time.Time) ([]model.ReservationWithOwner, error) {
	monday := WeekMonday(anyDate, s.Location())

	var list []model.ReservationWithOwner
	err := s.storage(ctx, "find_by_week", func(ctx context.Context) error {
		var err error
		list, err = s.repo.FindByWeek(ctx, monday)
		return err
	})
	if err != nil {
		return nil, s.mapStorageError(err, "")
	}
	return s.localizeAll(list), nil
}

// ListForUser はユーザーの予約を開始日時の昇順で返す。
// 存在しないユーザーの場合は空の一覧を返す。
func (s *Service) ListForUser(ctx context.Context, userID string) ([]model.ReservationWithOwner, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []model.ReservationWithOwner{}, nil
	}

	var list []model.ReservationWithOwner
	err := s.storage(ctx, "find_by_user", func(ctx context.Context) error {
		var err error
		list, err = s.repo.FindByUserID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, s.mapStorageError(err, "")
	}
	return s.localizeAll(list), nil
}

// CheckAvailability は [start, end) が既存の予約と重ならないかを返す。
// 参考情報であり、作成・更新時にはトランザクション内で改めて判定される。
// excludeIDを指定するとその予約を判定から除外する。
func (s *Service) CheckAvailability(ctx context.Context, start, end, excludeID string) (bool, error) {
	st, en, apiErr := s.validator.Parse(start, end)
	if apiErr != nil {
		return false, apiErr
	}
	if !st.Before(en) {
		return false, model.NewInvalidInputError("終了日時は開始日時より後にしてください")
	}
	if excludeID != "" {
		if _, err := uuid.Parse(excludeID); err != nil {
			excludeID = ""
		}
	}

	var conflict bool
	err := s.storage(ctx, "has_conflict", func(ctx context.Context) error {
		var err error
		conflict, err = s.repo.HasConflict(ctx, st, en, excludeID)
		return err
	})
	if err != nil {
		return false, s.mapStorageError(err, "")
	}
	return !conflict, nil
}

// find はIDの形式を確認してから予約を取得する。存在しない場合はNotFoundを返す。
func (s *Service) find(ctx context.Context, id string) (*model.ReservationWithOwner, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewReservationNotFoundError(id)
	}

	var res *model.ReservationWithOwner
	err := s.storage(ctx, "find_by_id", func(ctx context.Context) error {
		var err error
		res, err = s.repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.mapStorageError(err, id)
	}
	if res == nil {
		return nil, model.NewReservationNotFoundError(id)
	}
	return res, nil
}

// storage はタイムアウト付きのコンテキストでfnを実行し、レイテンシを記録する。
func (s *Service) storage(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	s.metrics.RecordStorageLatency(operation, time.Since(start))
	return err
}

// mapStorageError はリポジトリのエラーをAPIErrorに変換する。
// 再試行可能なエラーはStorageError、それ以外の想定外のエラーはラップして返す。
func (s *Service) mapStorageError(err error, id string) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return model.NewConflictError()
	case errors.Is(err, repository.ErrNotFound):
		return model.NewReservationNotFoundError(id)
	case repository.IsRetriable(err):
		slog.Warn("ストレージへのアクセスに失敗しました",
			slog.String("reservation_id", id),
			slog.String("error", err.Error()),
		)
		return model.NewStorageError(err)
	default:
		return fmt.Errorf("予約の永続化に失敗しました: %w", err)
	}
}

// reject は業務ルールによる拒否をメトリクスに記録する。
func (s *Service) reject(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if model.IsValidationCode(apiErr.Code) ||
			apiErr.Code == model.ErrCodeConflict ||
			apiErr.Code == model.ErrCodeForbidden {
			s.metrics.RecordReservationRejected(apiErr.Code)
		}
	}
	return err
}

// localize は時刻を業務ロケーションに揃える。
func (s *Service) localize(r *model.Reservation) {
	loc := s.Location()
	r.StartTime = r.StartTime.In(loc)
	r.EndTime = r.EndTime.In(loc)
}

func (s *Service) localizeAll(list []model.ReservationWithOwner) []model.ReservationWithOwner {
	if list == nil {
		return []model.ReservationWithOwner{}
	}
	for i := range list {
		s.localize(&list[i].Reservation)
	}
	return list
}

// checkRequester は要求者が予約操作を行えるアカウントかを確認する。
func checkRequester(requester model.Requester) *model.APIError {
	if requester.ID == "" {
		return model.NewUnauthorizedError()
	}
	if requester.Anonymized {
		return model.NewAccountDeletedError()
	}
	return nil
}
