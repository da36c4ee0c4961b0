package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat sorts lexically, which Latest relies on.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Snapshot is one stored category payload of one host.
type Snapshot struct {
	ID           int64
	ClientID     string
	HostID       string
	Hostname     string
	CategoryID   string
	Payload      []byte
	CollectError string
	CollectedAt  time.Time
	StoredAt     time.Time
}

// Host summarises what is stored for one hostname.
type Host struct {
	Hostname        string    `json:"hostname"`
	HostID          string    `json:"host_id"`
	LastCollectedAt time.Time `json:"last_collected_at"`
	Snapshots       int       `json:"snapshots"`
}

// Store persists snapshots in SQLite.
type Store struct {
	db *sql.DB
}

// New opens the SQLite database at path and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores snap and fills in its ID and StoredAt.
func (s *Store) Insert(ctx context.Context, snap *Snapshot) error {
	return s.InsertAll(ctx, []*Snapshot{snap})
}

// InsertAll stores every snapshot of one submission in a single
// transaction and fills in their IDs and StoredAt.
func (s *Store) InsertAll(ctx context.Context, snaps []*Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	storedAt := time.Now().UTC()
	for _, snap := range snaps {
		payload := snap.Payload
		if payload == nil {
			payload = []byte{}
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (client_id, host_id, hostname, category_id, payload, collect_error, collected_at, stored_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ClientID,
			snap.HostID,
			snap.Hostname,
			snap.CategoryID,
			payload,
			snap.CollectError,
			snap.CollectedAt.UTC().Format(timeFormat),
			storedAt.Format(timeFormat),
		)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("get last insert id: %w", err)
		}
		snap.ID = id
		snap.StoredAt = storedAt
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshots: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, client_id, host_id, hostname, category_id, payload, collect_error, collected_at, stored_at FROM snapshots`

// Get retrieves a snapshot by ID.
func (s *Store) Get(ctx context.Context, id int64) (*Snapshot, error) {
	return scanSnapshot(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
}

// LatestCategory retrieves the newest snapshot of one category for a host.
func (s *Store) LatestCategory(ctx context.Context, hostname, categoryID string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` WHERE hostname = ? AND category_id = ? ORDER BY collected_at DESC, id DESC LIMIT 1`,
		hostname, categoryID)
	return scanSnapshot(row)
}

// Latest returns the newest snapshot of every category stored for hostname,
// ordered by category ID. A host without snapshots yields sql.ErrNoRows.
func (s *Store) Latest(ctx context.Context, hostname string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, host_id, hostname, category_id, payload, collect_error, collected_at, stored_at
		 FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY category_id ORDER BY collected_at DESC, id DESC) AS rn
			FROM snapshots WHERE hostname = ?
		 ) WHERE rn = 1 ORDER BY category_id`, hostname)
	if err != nil {
		return nil, fmt.Errorf("query latest snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, sql.ErrNoRows
	}
	return out, nil
}

// Hosts lists every hostname with stored snapshots, newest collection first.
func (s *Store) Hosts(ctx context.Context) ([]Host, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hostname, MAX(host_id), MAX(collected_at), COUNT(*)
		 FROM snapshots GROUP BY hostname ORDER BY MAX(collected_at) DESC, hostname`)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	defer rows.Close()

	hosts := []Host{}
	for rows.Next() {
		var h Host
		var last string
		if err := rows.Scan(&h.Hostname, &h.HostID, &last, &h.Snapshots); err != nil {
			return nil, err
		}
		h.LastCollectedAt, _ = time.Parse(timeFormat, last)
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

// Delete removes a snapshot by ID.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Purge deletes snapshots collected before now minus olderThan.
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(timeFormat)
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE collected_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge snapshots: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var snap Snapshot
	var collectedAt, storedAt string
	err := row.Scan(&snap.ID, &snap.ClientID, &snap.HostID, &snap.Hostname, &snap.CategoryID,
		&snap.Payload, &snap.CollectError, &collectedAt, &storedAt)
	if err != nil {
		return nil, err
	}
	if snap.Payload == nil {
		snap.Payload = []byte{}
	}

	snap.CollectedAt, _ = time.Parse(timeFormat, collectedAt)
	snap.StoredAt, _ = time.Parse(timeFormat, storedAt)

	return &snap, nil
}
