package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jjudge-oj/palette/types"
	"github.com/lib/pq"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestUserRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+users\s*\(id,\s*email,\s*password_hash,\s*created_at\)`).
		WithArgs(sqlmock.AnyArg(), "user@example.com", "hash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), types.User{Email: "user@example.com", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID == uuid.Nil {
		t.Fatalf("expected generated id")
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`INSERT\s+INTO\s+users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	_, err := repo.Create(context.Background(), types.User{Email: "dup@example.com", PasswordHash: "hash"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUserRepository_Create_OtherError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), types.User{Email: "a@example.com"})
	if err == nil || errors.Is(err, ErrConflict) {
		t.Fatalf("expected plain db error, got %v", err)
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	id := uuid.New()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
		AddRow(id.String(), "user@example.com", "hash", created)
	mock.ExpectQuery(`(?s)SELECT\s+id,\s*email,\s*password_hash,\s*created_at\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1`).
		WithArgs("user@example.com").
		WillReturnRows(rows)

	got, err := repo.GetByEmail(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.ID != id || got.Email != "user@example.com" || got.PasswordHash != "hash" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	id := uuid.New()
	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPaletteRepository_ListByOwner(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaletteRepository(db)

	owner := uuid.New()
	first, second := uuid.New(), uuid.New()
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "image_url", "width", "height", "owner_id", "created_at"}).
		AddRow(first.String(), "swatch", "/uploads/a.png", 10, 10, owner.String(), now).
		AddRow(second.String(), "other", "/uploads/b.jpg", 20, 30, owner.String(), now.Add(time.Second))
	mock.ExpectQuery(`(?s)FROM\s+palette_items\s+WHERE\s+owner_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at,\s*id`).
		WithArgs(owner).
		WillReturnRows(rows)

	items, err := repo.ListByOwner(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListByOwner error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != first || items[1].ID != second {
		t.Fatalf("unexpected order: %+v", items)
	}
	if items[1].Width != 20 || items[1].Height != 30 || items[1].OwnerID != owner {
		t.Fatalf("unexpected item: %+v", items[1])
	}
}

func TestPaletteRepository_ListByOwner_Empty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaletteRepository(db)

	owner := uuid.New()
	mock.ExpectQuery(`FROM\s+palette_items`).
		WithArgs(owner).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "image_url", "width", "height", "owner_id", "created_at"}))

	items, err := repo.ListByOwner(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListByOwner error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", items)
	}
}

func TestPaletteRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaletteRepository(db)

	owner := uuid.New()
	itemID := uuid.New()
	mock.ExpectExec(`(?s)INSERT\s+INTO\s+palette_items\s*\(id,\s*name,\s*image_url,\s*width,\s*height,\s*owner_id,\s*created_at\)`).
		WithArgs(itemID, "swatch", "/uploads/x.png", 10, 12, owner, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), types.PaletteItem{
		ID:       itemID,
		Name:     "swatch",
		ImageURL: "/uploads/x.png",
		Width:    10,
		Height:   12,
		OwnerID:  owner,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != itemID || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected item: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
