package auditlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entryAt(id, account string, offset time.Duration) Entry {
	return Entry{
		ID:        id,
		Action:    ActionLoginFailed,
		AccountID: account,
		Outcome:   OutcomeFailure,
		Reason:    "invalid_credentials",
		Metadata:  map[string]string{"k": "v"},
		Timestamp: base.Add(offset),
	}
}

func TestMemoryStoreFindFiltersAndOrders(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Append(ctx, entryAt("e1", "a1", 0))
	_ = s.Append(ctx, entryAt("e2", "a2", time.Minute))
	_ = s.Append(ctx, entryAt("e3", "a1", 2*time.Minute))
	_ = s.Append(ctx, entryAt("e4", "a1", 3*time.Minute))

	got, err := s.Find(ctx, Query{AccountID: "a1"})
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if len(got) != 3 || got[0].ID != "e4" || got[2].ID != "e1" {
		t.Fatalf("unexpected entries %+v", got)
	}

	got, _ = s.Find(ctx, Query{From: base.Add(time.Minute), To: base.Add(2 * time.Minute)})
	if len(got) != 2 || got[0].ID != "e3" || got[1].ID != "e2" {
		t.Fatalf("unexpected range result %+v", got)
	}

	got, _ = s.Find(ctx, Query{Limit: 1})
	if len(got) != 1 || got[0].ID != "e4" {
		t.Fatalf("unexpected limited result %+v", got)
	}
}

func TestMemoryStoreEntriesAreImmutable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e := entryAt("e1", "a1", 0)
	_ = s.Append(ctx, e)
	e.Metadata["k"] = "tampered"

	got, _ := s.Find(ctx, Query{})
	got[0].Metadata["k"] = "tampered-again"

	again, _ := s.Find(ctx, Query{})
	if again[0].Metadata["k"] != "v" {
		t.Fatalf("stored entry was mutated: %+v", again[0])
	}
}

func TestQueryNormalize(t *testing.T) {
	if q := (Query{}).Normalize(); q.Limit != DefaultLimit {
		t.Fatalf("expected default limit, got %d", q.Limit)
	}
	if q := (Query{Limit: 5000}).Normalize(); q.Limit != MaxLimit {
		t.Fatalf("expected max limit, got %d", q.Limit)
	}
}

func TestPostgresAppend(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+audit_log\s*\(id,.*occurred_at\)\s*VALUES\s*\(\$1,.*\$10\)$`).
		WithArgs("e1", "login_failed", "a1", "", "", "", "failure", "invalid_credentials",
			[]byte(`{"k":"v"}`), base).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewPostgresStore(db).Append(context.Background(), entryAt("e1", "a1", 0)); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresAppendBackendError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+audit_log`).WillReturnError(errors.New("db down"))

	err = NewPostgresStore(db).Append(context.Background(), entryAt("e1", "a1", 0))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPostgresFindBuildsFilters(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	from := base
	to := base.Add(time.Hour)
	rows := sqlmock.NewRows([]string{"id", "action", "account_id", "email", "ip", "user_agent", "outcome", "reason", "metadata", "occurred_at"}).
		AddRow("e2", "logout", "a1", "guest@example.com", "10.0.0.1", "curl", "success", "", []byte(`{}`), to).
		AddRow("e1", "login_failed", "a1", "guest@example.com", "10.0.0.1", "curl", "failure", "invalid_credentials", []byte(`{"k":"v"}`), from)

	mock.ExpectQuery(`FROM\s+audit_log\s+WHERE\s+account_id\s*=\s*\$1\s+AND\s+occurred_at\s*>=\s*\$2\s+AND\s+occurred_at\s*<=\s*\$3\s+ORDER\s+BY\s+occurred_at\s+DESC\s+LIMIT\s+\$4$`).
		WithArgs("a1", from, to, 10).
		WillReturnRows(rows)

	got, err := NewPostgresStore(db).Find(context.Background(), Query{AccountID: "a1", From: from, To: to, Limit: 10})
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if len(got) != 2 || got[0].Action != ActionLogout || got[1].Metadata["k"] != "v" {
		t.Fatalf("unexpected entries %+v", got)
	}
	if got[0].Metadata != nil {
		t.Fatalf("empty metadata should decode to nil, got %v", got[0].Metadata)
	}
}
