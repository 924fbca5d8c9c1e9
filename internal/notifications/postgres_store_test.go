package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

var notificationRowColumns = []string{"id", "type", "title", "description", "date", "read", "archived", "user_id", "health_care_center_id"}

func TestPostgresStoreInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithDB(mock)
	center := uuid.New()
	n := &Notification{ID: uuid.New(), Type: TypeInvitation, Title: "Join us", Date: time.Now().UTC(), UserID: uuid.New(), HealthCareCenterID: &center}

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(n.ID, "INVITATION", "Join us", "", n.Date, false, false, n.UserID, &center).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.Insert(context.Background(), n); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreArchiveScopedToUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithDB(mock)
	id, user := uuid.New(), uuid.New()
	now := time.Now().UTC()

	rows := pgxmock.NewRows(notificationRowColumns).
		AddRow(id, "REVIEW", "New review", "5 stars", now, true, true, user, (*uuid.UUID)(nil))
	mock.ExpectQuery("UPDATE notifications SET read = true, archived = true").WithArgs(id, user).WillReturnRows(rows)
	mock.ExpectQuery("UPDATE notifications SET read = true").WithArgs(id, uuid.Nil).WillReturnError(pgx.ErrNoRows)

	n, err := store.Archive(context.Background(), user, id)
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if !n.Read || !n.Archived || n.Type != TypeReview || n.HealthCareCenterID != nil {
		t.Fatalf("unexpected notification: %#v", n)
	}
	if _, err := store.MarkRead(context.Background(), uuid.Nil, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreListForUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithDB(mock)
	user := uuid.New()
	now := time.Now().UTC()
	rows := pgxmock.NewRows(notificationRowColumns).
		AddRow(uuid.New(), "NEW_APPOINTMENT", "b", "", now, false, false, user, (*uuid.UUID)(nil)).
		AddRow(uuid.New(), "REVIEW", "a", "", now.Add(-time.Hour), true, false, user, (*uuid.UUID)(nil))
	mock.ExpectQuery("FROM notifications").WithArgs(user).WillReturnRows(rows)

	list, err := store.ListForUser(context.Background(), user)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].Title != "b" || list[1].Type != TypeReview {
		t.Fatalf("unexpected list: %#v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
