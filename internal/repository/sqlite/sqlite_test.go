package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sakif/userbase/internal/apperror"
	"github.com/sakif/userbase/internal/model"
)

// newTestDB opens a fresh database file in a per-test temp directory and
// applies the schema. A file (rather than ":memory:") is used because every
// pooled connection to ":memory:" would see its own empty database.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return db
}

// createTestAccount creates an account and fails the test if it errors.
func createTestAccount(t *testing.T, db *DB, username string) *model.Account {
	t.Helper()
	a, err := db.Accounts().Create(context.Background(), username, "$2a$04$not-a-real-hash")
	if err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return a
}

func countRows(t *testing.T, db *DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.conn.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	return n
}

// =========================================================================
// SCHEMA TESTS
// =========================================================================

func TestEnsureSchema_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	ctx := context.Background()

	db, err := New(ctx, path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("first EnsureSchema() error = %v", err)
	}
	if _, err := db.Accounts().Create(ctx, "survivor", "hash"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	db.Close()

	// Reopen and run the migrations again, as a process restart would.
	db, err = New(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("second EnsureSchema() error = %v", err)
	}

	if _, err := db.Accounts().FindByUsername(ctx, "survivor"); err != nil {
		t.Errorf("account lost after second EnsureSchema(): %v", err)
	}
}

func TestEnsureSchema_AdoptsExistingTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	ctx := context.Background()

	db, err := New(ctx, path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	// Tables created by hand, without goose's version table.
	if _, err := db.conn.Exec(`
		CREATE TABLE accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		INSERT INTO accounts (username, password_hash) VALUES ('legacy', 'hash');
	`); err != nil {
		t.Fatalf("creating legacy table: %v", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() on legacy database error = %v", err)
	}
	if n := countRows(t, db, `SELECT COUNT(*) FROM accounts WHERE username = 'legacy'`); n != 1 {
		t.Errorf("legacy rows = %d, want 1", n)
	}
}

func TestNew_UnreachablePath(t *testing.T) {
	// A regular file where a parent directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("writing blocker file: %v", err)
	}

	_, err := New(context.Background(), filepath.Join(blocker, "sub", "users.db"), nil)
	if err == nil {
		t.Fatal("New() should fail when the database directory cannot be created")
	}
	if !errors.Is(err, apperror.ErrUnavailable) {
		t.Errorf("New() error = %v, want ErrUnavailable", err)
	}
}

// =========================================================================
// ACCOUNT TESTS
// =========================================================================

func TestDSN_EscapesPathElements(t *testing.T) {
	got := dsn("/var/lib/we?ird #dir%/users.db")

	path, query, ok := strings.Cut(got, "?")
	if !ok {
		t.Fatalf("dsn() = %q, want a query part", got)
	}
	if path != "file:/var/lib/we%3Fird%20%23dir%25/users.db" {
		t.Errorf("dsn() path = %q", path)
	}
	if strings.Count(query, "_pragma=") != len(pragmas) {
		t.Errorf("dsn() query = %q, want %d pragmas", query, len(pragmas))
	}

	if got := dsn("data/users.db"); !strings.HasPrefix(got, "file:data/users.db?") {
		t.Errorf("dsn(relative) = %q", got)
	}
}

func TestNew_PathWithURISpecialCharacters(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "we?ird #dir%")
	path := filepath.Join(dir, "users.db")

	db, err := New(ctx, path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	// The file lands at the literal path, not a truncated one.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not at %q: %v", path, err)
	}

	// The pragmas still reach the connection.
	var mode string
	if err := db.conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("reading journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	err = db.Profiles().Save(ctx, &model.Profile{AccountID: 999, FullName: "Nobody"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Save() for unknown account error = %v, want ErrNotFound (foreign keys on)", err)
	}
}

func TestAccountCreate(t *testing.T) {
	db := newTestDB(t)

	a, err := db.Accounts().Create(context.Background(), "alice", "hash-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if a.ID == 0 {
		t.Error("Create() did not assign an ID")
	}
	if a.Username != "alice" {
		t.Errorf("Username = %q, want %q", a.Username, "alice")
	}
	if a.PasswordHash != "hash-1" {
		t.Errorf("PasswordHash = %q, want %q", a.PasswordHash, "hash-1")
	}
	if a.CreatedAt.IsZero() {
		t.Error("Create() did not read back created_at")
	}
}

func TestAccountCreate_IDsIncrease(t *testing.T) {
	db := newTestDB(t)

	first := createTestAccount(t, db, "first")
	second := createTestAccount(t, db, "second")

	if second.ID <= first.ID {
		t.Errorf("second ID %d should be greater than first ID %d", second.ID, first.ID)
	}
}

func TestAccountCreate_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	createTestAccount(t, db, "alice")

	_, err := db.Accounts().Create(context.Background(), "alice", "other-hash")
	if err == nil {
		t.Fatal("Create() should have returned an error for a duplicate username")
	}
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() error = %v, want ErrConflict", err)
	}

	if n := countRows(t, db, `SELECT COUNT(*) FROM accounts WHERE username = ?`, "alice"); n != 1 {
		t.Errorf("accounts named alice = %d, want exactly 1", n)
	}
}

func TestAccountCreate_UsernameIsCaseSensitive(t *testing.T) {
	db := newTestDB(t)
	createTestAccount(t, db, "alice")

	if _, err := db.Accounts().Create(context.Background(), "Alice", "hash"); err != nil {
		t.Fatalf("Create(\"Alice\") error = %v, usernames differing in case are distinct", err)
	}
}

func TestAccountCreate_ConcurrentSameUsername(t *testing.T) {
	db := newTestDB(t)
	accounts := db.Accounts()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := accounts.Create(context.Background(), "racer", "hash")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperror.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if conflicts != attempts-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, attempts-1)
	}
}

func TestAccountFindByUsername(t *testing.T) {
	db := newTestDB(t)
	created := createTestAccount(t, db, "bob")

	found, err := db.Accounts().FindByUsername(context.Background(), "bob")
	if err != nil {
		t.Fatalf("FindByUsername() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %d, want %d", found.ID, created.ID)
	}
	if !found.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", found.CreatedAt, created.CreatedAt)
	}
}

func TestAccountFindByUsername_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Accounts().FindByUsername(context.Background(), "ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindByUsername() error = %v, want ErrNotFound", err)
	}
}

func TestAccountFindByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Accounts().FindByID(context.Background(), 4242)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindByID() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// PROFILE TESTS
// =========================================================================

func TestProfileSaveAndFind(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestAccount(t, db, "carol")

	p := &model.Profile{AccountID: a.ID, FullName: "Carol Danvers", Bio: "Pilot."}
	if err := db.Profiles().Save(ctx, p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if p.ID == 0 {
		t.Fatal("Save() did not assign an ID on insert")
	}

	found, err := db.Profiles().FindByAccountID(ctx, a.ID)
	if err != nil {
		t.Fatalf("FindByAccountID() error = %v", err)
	}
	if found.FullName != "Carol Danvers" || found.Bio != "Pilot." {
		t.Errorf("profile = %+v, want FullName/Bio round-tripped", found)
	}
}

func TestProfileSave_NullColumns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestAccount(t, db, "dave")

	if err := db.Profiles().Save(ctx, &model.Profile{AccountID: a.ID}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if n := countRows(t, db, `SELECT COUNT(*) FROM profiles WHERE full_name IS NULL AND bio IS NULL`); n != 1 {
		t.Errorf("profiles with NULL columns = %d, want 1", n)
	}

	found, err := db.Profiles().FindByAccountID(ctx, a.ID)
	if err != nil {
		t.Fatalf("FindByAccountID() error = %v", err)
	}
	if !found.IsEmpty() {
		t.Errorf("profile = %+v, want empty", found)
	}
}

func TestProfileSave_Update(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestAccount(t, db, "erin")

	p := &model.Profile{AccountID: a.ID, FullName: "Erin"}
	if err := db.Profiles().Save(ctx, p); err != nil {
		t.Fatalf("insert error = %v", err)
	}
	p.Bio = "Now with a bio."
	if err := db.Profiles().Save(ctx, p); err != nil {
		t.Fatalf("update error = %v", err)
	}

	found, _ := db.Profiles().FindByAccountID(ctx, a.ID)
	if found.Bio != "Now with a bio." {
		t.Errorf("Bio = %q, want updated value", found.Bio)
	}
	if n := countRows(t, db, `SELECT COUNT(*) FROM profiles`); n != 1 {
		t.Errorf("profiles = %d, want 1 (update must not insert)", n)
	}
}

func TestProfileSave_UpdateMissing(t *testing.T) {
	db := newTestDB(t)

	err := db.Profiles().Save(context.Background(), &model.Profile{ID: 999, AccountID: 1})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Save() error = %v, want ErrNotFound", err)
	}
}

func TestProfileSave_UnknownAccount(t *testing.T) {
	db := newTestDB(t)

	err := db.Profiles().Save(context.Background(), &model.Profile{AccountID: 12345, FullName: "Nobody"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Save() error = %v, want ErrNotFound (foreign key)", err)
	}
}

func TestProfileFindByAccountID_FirstMatchWins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestAccount(t, db, "frank")

	first := &model.Profile{AccountID: a.ID, FullName: "First"}
	second := &model.Profile{AccountID: a.ID, FullName: "Second"}
	for _, p := range []*model.Profile{first, second} {
		if err := db.Profiles().Save(ctx, p); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	found, err := db.Profiles().FindByAccountID(ctx, a.ID)
	if err != nil {
		t.Fatalf("FindByAccountID() error = %v", err)
	}
	if found.ID != first.ID {
		t.Errorf("found profile %d, want the first one (%d)", found.ID, first.ID)
	}
}

func TestProfileFindByAccountID_NotFound(t *testing.T) {
	db := newTestDB(t)
	a := createTestAccount(t, db, "grace")

	_, err := db.Profiles().FindByAccountID(context.Background(), a.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindByAccountID() error = %v, want ErrNotFound", err)
	}
}

func TestProfilesCascadeWithAccount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestAccount(t, db, "heidi")

	if err := db.Profiles().Save(ctx, &model.Profile{AccountID: a.ID, Bio: "temp"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := db.conn.Exec(`DELETE FROM accounts WHERE id = ?`, a.ID); err != nil {
		t.Fatalf("deleting account: %v", err)
	}

	if n := countRows(t, db, `SELECT COUNT(*) FROM profiles WHERE account_id = ?`, a.ID); n != 0 {
		t.Errorf("profiles after account delete = %d, want 0 (ON DELETE CASCADE)", n)
	}
}
