package store

import (
	"context"
	"errors"
	"fmt"

	"balloon-duel/internal/game"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps each room as a JSONB document plus the columns the
// lobby and janitor filter on. Updates lock the row with SELECT ... FOR UPDATE.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{Pool: pool}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.Pool.Close()
}

func (s *PostgresStore) Get(ctx context.Context, roomID string) (*game.Room, error) {
	var raw []byte
	err := s.Pool.QueryRow(ctx, `SELECT state FROM duel_rooms WHERE room_id = $1`, roomID).Scan(&raw)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return decodeRoom(raw)
}

func (s *PostgresStore) Create(ctx context.Context, room *game.Room) (*game.Room, error) {
	raw, err := encodeRoom(room)
	if err != nil {
		return nil, err
	}
	tag, err := s.Pool.Exec(ctx, `
		INSERT INTO duel_rooms (room_id, status, settlement_status, state, version, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (room_id) DO NOTHING`,
		room.RoomID, string(room.Status), textParam(settlementStatus(room)), raw, room.Version,
		timestamptzParam(room.CreatedAt), timestamptzParam(room.UpdatedAt), timestamptzParam(room.ExpiresAt))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrConflict
	}
	return room.Clone(), nil
}

func (s *PostgresStore) Update(ctx context.Context, roomID string, fn Mutator) (*game.Room, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var raw []byte
	if err := tx.QueryRow(ctx, `SELECT state FROM duel_rooms WHERE room_id = $1 FOR UPDATE`, roomID).Scan(&raw); err != nil {
		return nil, mapNotFound(err)
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
	if _, err := tx.Exec(ctx, `
		UPDATE duel_rooms
		SET status = $2, settlement_status = $3, state = $4, version = $5, updated_at = $6, expires_at = $7
		WHERE room_id = $1`,
		roomID, string(next.Status), textParam(settlementStatus(next)), out, next.Version,
		timestamptzParam(next.UpdatedAt), timestamptzParam(next.ExpiresAt)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit room %s: %w", roomID, err)
	}
	return next, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*game.Room, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT state FROM duel_rooms
		WHERE ($1::text[] IS NULL OR status = ANY($1))
		  AND ($2::boolean = false OR settlement_status = 'pending')
		  AND ($3::boolean = false OR settlement_status IS DISTINCT FROM 'pending')
		  AND ($4::timestamptz IS NULL OR expires_at < $4)
		ORDER BY created_at DESC, room_id DESC
		LIMIT $5 OFFSET $6`,
		statusStrings(f.Statuses), f.SettlementPending, f.ExcludeSettlementPending,
		optionalTimeParam(f.ExpiresBefore), limitParam(f.Limit), max(f.Offset, 0))
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

func (s *PostgresStore) Delete(ctx context.Context, roomID string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM duel_rooms WHERE room_id = $1`, roomID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetSettlement(ctx context.Context, key string) (*SettlementRecord, error) {
	var rec SettlementRecord
	err := s.Pool.QueryRow(ctx, `
		SELECT settlement_key, room_id, kind, tx_ref, created_at
		FROM duel_settlements WHERE settlement_key = $1`, key).
		Scan(&rec.Key, &rec.RoomID, &rec.Kind, &rec.TxRef, &rec.CreatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &rec, nil
}

func (s *PostgresStore) PutSettlement(ctx context.Context, rec SettlementRecord) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		INSERT INTO duel_settlements (settlement_key, room_id, kind, tx_ref, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (settlement_key) DO NOTHING`,
		rec.Key, rec.RoomID, rec.Kind, rec.TxRef, timestamptzParam(rec.CreatedAt))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
