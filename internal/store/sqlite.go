package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"reizoko/internal/models"
)

// SQLite persists room documents in a single sqlite file and fans changes out
// to in-process subscribers.
type SQLite struct {
	conn *sql.DB
	hub  *hub
}

func NewSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLite{conn: conn, hub: newHub()}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *SQLite) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			last_active INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			room TEXT NOT NULL,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (room, collection, id)
		)`,
	}

	for _, q := range queries {
		if _, err := s.conn.Exec(q); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) CreateRoom(roomID string) error {
	now := time.Now().UnixMilli()
	_, err := s.conn.Exec(`INSERT OR IGNORE INTO rooms (id, created_at, last_active) VALUES (?, ?, ?)`,
		roomID, now, now)
	return err
}

func (s *SQLite) Exists(roomID string) (bool, error) {
	var one int
	err := s.conn.QueryRow(`SELECT 1 FROM rooms WHERE id = ?`, roomID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLite) GetAll(roomID, collection string) ([]Record, error) {
	rows, err := s.conn.Query(
		`SELECT data FROM documents WHERE room = ? AND collection = ? ORDER BY created_at`,
		roomID, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			// A corrupt row must not take the whole collection down.
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLite) Subscribe(roomID, collection string, onChange func([]Record), onError func(error)) func() {
	key := collectionKey(roomID, collection)
	unsub := s.hub.subscribe(key, subscriber{onChange: onChange, onError: onError})

	// Initial delivery so a fresh subscriber sees the current snapshot
	// without a separate fetch.
	go s.broadcast(roomID, collection)

	return unsub
}

func (s *SQLite) SetByID(roomID, collection, id string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if err := s.CreateRoom(roomID); err != nil {
		return err
	}

	_, err = s.conn.Exec(
		`INSERT OR REPLACE INTO documents (room, collection, id, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		roomID, collection, id, string(data), models.Millis(rec["createdAt"]))
	if err != nil {
		return err
	}

	s.touch(roomID)
	s.broadcast(roomID, collection)
	return nil
}

func (s *SQLite) UpdateFields(roomID, collection, id string, fields Record) error {
	var data string
	err := s.conn.QueryRow(
		`SELECT data FROM documents WHERE room = ? AND collection = ? AND id = ?`,
		roomID, collection, id).Scan(&data)
	if err == sql.ErrNoRows {
		// Updating a record another client already deleted is not an error.
		return nil
	}
	if err != nil {
		return err
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return err
	}
	for k, v := range fields {
		rec[k] = v
	}

	merged, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(
		`UPDATE documents SET data = ? WHERE room = ? AND collection = ? AND id = ?`,
		string(merged), roomID, collection, id)
	if err != nil {
		return err
	}

	s.touch(roomID)
	s.broadcast(roomID, collection)
	return nil
}

func (s *SQLite) DeleteByID(roomID, collection, id string) error {
	_, err := s.conn.Exec(
		`DELETE FROM documents WHERE room = ? AND collection = ? AND id = ?`,
		roomID, collection, id)
	if err != nil {
		return err
	}

	s.touch(roomID)
	s.broadcast(roomID, collection)
	return nil
}

// PruneIdleRooms removes rooms (and their documents) whose last write is older
// than idleFor. Returns the number of rooms removed.
func (s *SQLite) PruneIdleRooms(idleFor time.Duration) (int, error) {
	cutoff := time.Now().Add(-idleFor).UnixMilli()

	rows, err := s.conn.Query(`SELECT id FROM rooms WHERE last_active < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		stale = append(stale, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range stale {
		if _, err := s.conn.Exec(`DELETE FROM documents WHERE room = ?`, id); err != nil {
			return 0, err
		}
		if _, err := s.conn.Exec(`DELETE FROM rooms WHERE id = ?`, id); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

func (s *SQLite) touch(roomID string) {
	s.conn.Exec(`UPDATE rooms SET last_active = ? WHERE id = ?`, time.Now().UnixMilli(), roomID)
}

func (s *SQLite) broadcast(roomID, collection string) {
	key := collectionKey(roomID, collection)
	snapshot, err := s.GetAll(roomID, collection)
	if err != nil {
		s.hub.fail(key, err)
		return
	}
	s.hub.notify(key, snapshot)
}
