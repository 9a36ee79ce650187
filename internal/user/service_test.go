package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/roombook/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn  func(ctx context.Context, id string) (*model.User, error)
	anonymizeFn func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	return nil
}

func (m *mockUserRepo) Anonymize(ctx context.Context, user *model.User) error {
	if m.anonymizeFn != nil {
		return m.anonymizeFn(ctx, user)
	}
	return nil
}

type mockSessionRepo struct {
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

// --- テスト ---

func TestAnonymize_ScrubsPersonalFields(t *testing.T) {
	const id = "11111111-1111-1111-1111-111111111111"
	var saved *model.User
	var sessionsDeletedFor string

	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.User, error) {
			return &model.User{
				ID:           id,
				Email:        "alice@example.com",
				PasswordHash: "old-hash",
				Name:         "Alice",
				LastName:     "Martin",
				Status:       model.AccountStatusActive,
			}, nil
		},
		anonymizeFn: func(_ context.Context, u *model.User) error {
			saved = u
			return nil
		},
	}
	sessions := &mockSessionRepo{
		deleteByUserIDFn: func(_ context.Context, userID string) error {
			sessionsDeletedFor = userID
			return nil
		},
	}
	svc := NewService(users, sessions, bcrypt.MinCost)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	got, err := svc.Anonymize(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved == nil {
		t.Fatal("Anonymize should persist the user")
	}

	if got.Name != "Anonyme-"+id {
		t.Errorf("Name = %q", got.Name)
	}
	if got.LastName != AnonymizedLastName {
		t.Errorf("LastName = %q, want %q", got.LastName, AnonymizedLastName)
	}
	if got.Email != "anonyme-"+id+"@anonymized.local" {
		t.Errorf("Email = %q", got.Email)
	}
	if !model.IsAnonymizedEmail(got.Email) {
		t.Error("email should match the anonymized pattern")
	}
	if got.Status != model.AccountStatusAnonymized {
		t.Errorf("Status = %q, want anonymized", got.Status)
	}
	if got.AnonymizedAt == nil || !got.AnonymizedAt.Equal(fixed) {
		t.Errorf("AnonymizedAt = %v, want %v", got.AnonymizedAt, fixed)
	}
	if got.PasswordHash == "old-hash" {
		t.Error("password hash should be replaced")
	}
	if _, err := bcrypt.Cost([]byte(got.PasswordHash)); err != nil {
		t.Errorf("replacement password should be a bcrypt hash: %v", err)
	}
	if sessionsDeletedFor != id {
		t.Errorf("sessions deleted for %q, want %q", sessionsDeletedFor, id)
	}
}

func TestAnonymize_AlreadyAnonymizedIsIdempotent(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Status: model.AccountStatusAnonymized}, nil
		},
		anonymizeFn: func(context.Context, *model.User) error {
			t.Error("already anonymized user should not be rewritten")
			return nil
		},
	}
	svc := NewService(users, &mockSessionRepo{}, bcrypt.MinCost)

	if _, err := svc.Anonymize(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAnonymize_UserNotFound(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSessionRepo{}, bcrypt.MinCost)

	_, err := svc.Anonymize(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Fatalf("expected USER_NOT_FOUND, got %v", err)
	}
}

func TestAnonymize_RepositoryErrorStopsBeforeSessions(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Status: model.AccountStatusActive}, nil
		},
		anonymizeFn: func(context.Context, *model.User) error {
			return errors.New("db error")
		},
	}
	sessions := &mockSessionRepo{
		deleteByUserIDFn: func(context.Context, string) error {
			t.Error("sessions should not be deleted when anonymization fails")
			return nil
		},
	}
	svc := NewService(users, sessions, bcrypt.MinCost)

	if _, err := svc.Anonymize(context.Background(), "u1"); err == nil {
		t.Fatal("expected error")
	}
}
