package server

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/opd-ai/peerlink/address"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const seedMigration = "migrations/0.0.0-seed.sql"

type migration struct {
	name     string
	version  *semver.Version
	content  []byte
	checksum [sha256.Size]byte
}

// SQLiteRegistry is a Registry persisted in an SQLite database.
type SQLiteRegistry struct {
	db *sql.DB
}

// OpenSQLiteRegistry opens or creates the database at file and applies any
// pending schema migrations.
func OpenSQLiteRegistry(file string) (*SQLiteRegistry, error) {
	file, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, fmt.Errorf("unable to create database directory: %w", err)
	}
	return openSQLite(file)
}

// OpenMemorySQLiteRegistry opens a registry backed by an in-memory database.
func OpenMemorySQLiteRegistry() (*SQLiteRegistry, error) {
	return openSQLite(":memory:")
}

func openSQLite(dsn string) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	// One connection: an in-memory database exists per connection, and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to initialize database: %w", err)
	}
	return &SQLiteRegistry{db: db}, nil
}

func (r *SQLiteRegistry) Put(info address.NetworkInfo) error {
	var public sql.NullString
	if ep, ok := info.PublicEndpoint(); ok {
		public = sql.NullString{String: ep.String(), Valid: true}
	}
	_, err := r.db.Exec(`insert into t_users(user_id, private_endpoint, public_endpoint, updated_at)
		values ($1, $2, $3, $4)
		on conflict(user_id) do update set
			private_endpoint = excluded.private_endpoint,
			public_endpoint = excluded.public_endpoint,
			updated_at = excluded.updated_at`,
		info.UserID, info.Private.String(), public, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("unable to store %q: %w", info.UserID, err)
	}
	return nil
}

func (r *SQLiteRegistry) Delete(userID string) error {
	if _, err := r.db.Exec("delete from t_users where user_id = $1", userID); err != nil {
		return fmt.Errorf("unable to delete %q: %w", userID, err)
	}
	return nil
}

func (r *SQLiteRegistry) Get(userID string) (address.NetworkInfo, bool, error) {
	var private string
	var public sql.NullString
	err := r.db.QueryRow("select private_endpoint, public_endpoint from t_users where user_id = $1", userID).
		Scan(&private, &public)
	if errors.Is(err, sql.ErrNoRows) {
		return address.NetworkInfo{}, false, nil
	}
	if err != nil {
		return address.NetworkInfo{}, false, fmt.Errorf("unable to load %q: %w", userID, err)
	}

	info := address.OfflineInfo(userID)
	if info.Private, err = parseStoredEndpoint(private); err != nil {
		return address.NetworkInfo{}, false, err
	}
	if public.Valid {
		ep, err := parseStoredEndpoint(public.String)
		if err != nil {
			return address.NetworkInfo{}, false, err
		}
		info = address.NewNetworkInfo(userID, info.Private, ep)
	}
	return info, true, nil
}

func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

// parseStoredEndpoint accepts the "<invalid>" marker written for a zero
// endpoint.
func parseStoredEndpoint(s string) (address.Endpoint, error) {
	if s == (address.Endpoint{}).String() {
		return address.Endpoint{}, nil
	}
	return address.ParseEndpoint(s)
}

func migrate(db *sql.DB) error {
	seed, err := fs.ReadFile(migrationFS, seedMigration)
	if err != nil {
		return err
	}
	if _, err := db.Exec(string(seed)); err != nil {
		return fmt.Errorf("unable to seed migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	last := semver.New(0, 0, 0, "", "")
	var major, minor, patch uint64
	err = db.QueryRow("select ver_major, ver_minor, ver_patch from t_migrations order by 1 desc, 2 desc, 3 desc limit 1").
		Scan(&major, &minor, &patch)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		last = semver.New(major, minor, patch, "", "")
	}

	for _, m := range migrations {
		if !m.version.GreaterThan(last) {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("unable to apply migration %v: %w", m.name, err)
		}
		logrus.WithFields(logrus.Fields{
			"function":  "migrate",
			"migration": m.name,
		}).Debug("Applied registry migration")
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.BeginTx(context.Background(), &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(m.content)); err != nil {
		return err
	}
	_, err = tx.Exec("insert into t_migrations(ver_major, ver_minor, ver_patch, filename, checksum, applied_at) values ($1, $2, $3, $4, $5, $6)",
		m.version.Major(), m.version.Minor(), m.version.Patch(), m.name, m.checksum[:], time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return tx.Commit()
}

func loadMigrations() ([]migration, error) {
	files, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}
	var ret []migration
	for _, f := range files {
		m := migration{name: path.Base(f.Name())}
		m.version, err = semver.StrictNewVersion(strings.SplitN(m.name, "-", 2)[0])
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", m.name, err)
		}
		if m.version.Equal(semver.New(0, 0, 0, "", "")) {
			continue
		}
		m.content, err = fs.ReadFile(migrationFS, path.Join("migrations", f.Name()))
		if err != nil {
			return nil, err
		}
		m.checksum = sha256.Sum256(m.content)
		ret = append(ret, m)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].version.LessThan(ret[j].version)
	})
	return ret, nil
}
