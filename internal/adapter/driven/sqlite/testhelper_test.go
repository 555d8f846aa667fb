package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crossbowhq/crossbow/internal/domain/model"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via cache=shared.
// A unique name derived from t.Name() ensures isolation between parallel tests.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so it's a safe SQLite URI filename component
	// and cannot be misinterpreted as query parameters in the "file:%s?..." DSN.
	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_time_format=sqlite&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		safeName,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("create test db writer: %v", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(context.Background()); err != nil {
		_ = writer.Close()
		t.Fatalf("ping test db writer: %v", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("create test db reader: %v", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(context.Background()); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		t.Fatalf("ping test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// addTestRepo upserts a repository and returns its row ID, for foreign key
// constraints in dependent-entity tests.
func addTestRepo(t *testing.T, db *DB, githubID int64, fullName string) int64 {
	t.Helper()

	owner, name := fullName, ""
	for i, c := range fullName {
		if c == '/' {
			owner, name = fullName[:i], fullName[i+1:]
			break
		}
	}

	id, err := NewRepoRepo(db).Upsert(context.Background(), model.Repository{
		GitHubID: githubID,
		Name:     name,
		FullName: fullName,
		Owner:    owner,
		URL:      "https://github.com/" + fullName,
	})
	require.NoError(t, err)

	return id
}

// addTestEvent inserts a webhook event and returns its row ID, for foreign
// key constraints in dependent-entity tests.
func addTestEvent(t *testing.T, db *DB, deliveryID string, repositoryID int64) int64 {
	t.Helper()

	event := model.WebhookEvent{
		EventType:  "push",
		DeliveryID: deliveryID,
		Payload:    json.RawMessage(`{}`),
		Signature:  "sha256=test",
		ReceivedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if repositoryID != 0 {
		event.RepositoryID = &repositoryID
	}

	id, err := NewEventRepo(db).Insert(context.Background(), event)
	require.NoError(t, err)

	return id
}
