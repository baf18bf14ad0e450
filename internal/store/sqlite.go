package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperengineering/pocportal/internal/types"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	_ "modernc.org/sqlite"
)

// SQLiteStore represents the SQLite-backed POC database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection keeps per-connection pragmas in force and serializes
	// writers, which SQLite does anyway.
	db.SetMaxOpenConns(1)

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// newPOCUID returns a public POC identifier: "POC-" and 12 upper-case hex
// characters taken from a random UUID.
func newPOCUID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "POC-" + strings.ToUpper(hex[:12])
}

// titleFromCode derives a catalog title from the last path segment of a
// use case code: "machine-identity/dashboard-setup" -> "Dashboard Setup".
func titleFromCode(code string) string {
	seg := code
	if i := strings.LastIndex(code, "/"); i >= 0 {
		seg = code[i+1:]
	}
	seg = strings.ReplaceAll(seg, "-", " ")
	return cases.Title(language.English).String(seg)
}

// displayNameFromEmail turns "jane.doe@example.com" into "Jane Doe".
func displayNameFromEmail(email string) string {
	local := email
	if i := strings.Index(email, "@"); i >= 0 {
		local = email[:i]
	}
	local = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(local)
	return cases.Title(language.English).String(strings.TrimSpace(local))
}

func formatTime(t time.Time) string {
	return types.FormatTimestamp(t)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	return types.ParseDatePtr(ns.String)
}

func parseTime(s string) time.Time {
	t, _ := types.ParseDate(s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// lookupPOC resolves a poc_uid to its row ID and owning user ID.
func lookupPOC(ctx context.Context, q querier, uid string) (id, seID string, err error) {
	err = q.QueryRowContext(ctx, `SELECT id, se_id FROM pocs WHERE poc_uid = ?`, uid).Scan(&id, &seID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("lookup poc: %w", err)
	}
	return id, seID, nil
}

// getOrCreateUser finds a user by email (case-insensitive) or creates an SE.
func getOrCreateUser(ctx context.Context, q querier, email, displayName string, at time.Time) (id string, created bool, err error) {
	err = q.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ? COLLATE NOCASE`, email).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("lookup user: %w", err)
	}

	if strings.TrimSpace(displayName) == "" {
		displayName = displayNameFromEmail(email)
	}
	id = ulid.Make().String()
	_, err = q.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, role, region, created_at)
		VALUES (?, ?, ?, ?, '', ?)
	`, id, strings.ToLower(email), displayName, string(types.RoleSE), formatTime(at))
	if err != nil {
		return "", false, fmt.Errorf("insert user: %w", err)
	}
	return id, true, nil
}
