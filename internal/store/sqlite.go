package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"balloon-duel/internal/game"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the single-node backend. Writes take the database write
// lock up front (_txlock=immediate), so read-modify-write on a room cannot
// interleave with another writer.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path, migrationsDir string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	s := &SQLiteStore{db: db}
	if err := applyMigrations(ctx, migrationsDir, ".sql", func(ctx context.Context, q string) error {
		_, err := db.ExecContext(ctx, q)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, roomID string) (*game.Room, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM duel_rooms WHERE room_id = ?`, roomID).Scan(&raw)
	if err != nil {
		return nil, mapSQLNotFound(err)
	}
	return decodeRoom(raw)
}

func (s *SQLiteStore) Create(ctx context.Context, room *game.Room) (*game.Room, error) {
	raw, err := encodeRoom(room)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO duel_rooms (room_id, status, settlement_status, state, version, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		room.RoomID, string(room.Status), settlementStatus(room), raw, room.Version,
		room.CreatedAt.UnixNano(), room.UpdatedAt.UnixNano(), room.ExpiresAt.UnixNano())
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrConflict
	}
	return room.Clone(), nil
}

func (s *SQLiteStore) Update(ctx context.Context, roomID string, fn Mutator) (*game.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	if err := tx.QueryRowContext(ctx, `SELECT state FROM duel_rooms WHERE room_id = ?`, roomID).Scan(&raw); err != nil {
		return nil, mapSQLNotFound(err)
	}
	current, err := decodeRoom(raw)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, ErrNoChange) {
			return current, nil
		}
		return nil, err
	}
	next.RoomID = current.RoomID
	next.Version = current.Version + 1
	out, err := encodeRoom(next)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE duel_rooms
		SET status = ?, settlement_status = ?, state = ?, version = ?, updated_at = ?, expires_at = ?
		WHERE room_id = ?`,
		string(next.Status), settlementStatus(next), out, next.Version,
		next.UpdatedAt.UnixNano(), next.ExpiresAt.UnixNano(), roomID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit room %s: %w", roomID, err)
	}
	return next, nil
}

func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]*game.Room, error) {
	var (
		where []string
		args  []any
	)
	if statuses := statusStrings(f.Statuses); len(statuses) > 0 {
		where = append(where, "status IN (?"+strings.Repeat(",?", len(statuses)-1)+")")
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	if f.SettlementPending {
		where = append(where, "settlement_status = 'pending'")
	}
	if f.ExcludeSettlementPending {
		where = append(where, "(settlement_status IS NULL OR settlement_status <> 'pending')")
	}
	if !f.ExpiresBefore.IsZero() {
		where = append(where, "expires_at < ?")
		args = append(args, f.ExpiresBefore.UnixNano())
	}
	q := "SELECT state FROM duel_rooms"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, room_id DESC LIMIT ? OFFSET ?"
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*game.Room{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		r, err := decodeRoom(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, roomID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM duel_rooms WHERE room_id = ?`, roomID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetSettlement(ctx context.Context, key string) (*SettlementRecord, error) {
	var (
		rec     SettlementRecord
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT settlement_key, room_id, kind, tx_ref, created_at
		FROM duel_settlements WHERE settlement_key = ?`, key).
		Scan(&rec.Key, &rec.RoomID, &rec.Kind, &rec.TxRef, &created)
	if err != nil {
		return nil, mapSQLNotFound(err)
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return &rec, nil
}

func (s *SQLiteStore) PutSettlement(ctx context.Context, rec SettlementRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO duel_settlements (settlement_key, room_id, kind, tx_ref, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Key, rec.RoomID, rec.Kind, rec.TxRef, rec.CreatedAt.UnixNano())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func mapSQLNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
