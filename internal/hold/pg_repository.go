package hold

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const holdColumns = `id, requester_id, holdee_id, start_date, end_date, status, expires_at,
	response_message, responded_at, created_at, updated_at`

// Postgres error codes the repository translates.
const (
	pgExclusionViolation = "23P01"
	pgInvalidText        = "22P02"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanHold(row pgx.Row) (*Hold, error) {
	var (
		h          Hold
		start, end time.Time
		status     string
	)

	err := row.Scan(
		&h.ID,
		&h.RequesterID,
		&h.HoldeeID,
		&start,
		&end,
		&status,
		&h.ExpiresAt,
		&h.ResponseMessage,
		&h.RespondedAt,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	h.StartDate = DateOf(start)
	h.EndDate = DateOf(end)
	h.Status = Status(status)
	return &h, nil
}

func collectHolds(rows pgx.Rows) ([]Hold, error) {
	defer rows.Close()

	var result []Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Interface methods

func (r *PgRepository) CreateHold(ctx context.Context, h Hold) (*Hold, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_holds (id, requester_id, holdee_id, start_date, end_date, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+holdColumns,
		h.ID, h.RequesterID, h.HoldeeID, h.StartDate.Time(), h.EndDate.Time(),
		string(h.Status), h.ExpiresAt, h.CreatedAt, h.UpdatedAt,
	)

	created, err := scanHold(row)
	if err != nil {
		return nil, fmt.Errorf("insert hold: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetHoldByID(ctx context.Context, id uuid.UUID) (*Hold, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+holdColumns+`
		FROM availability_holds
		WHERE id = $1
	`, id)
	return scanHold(row)
}

func (r *PgRepository) ListAcceptedOverlapping(ctx context.Context, holdeeID uuid.UUID, start, end Date) ([]Hold, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+holdColumns+`
		FROM availability_holds
		WHERE holdee_id = $1
		  AND status = 'accepted'
		  AND start_date <= $3
		  AND $2 <= end_date
		ORDER BY start_date
	`, holdeeID, start.Time(), end.Time())
	if err != nil {
		return nil, err
	}
	return collectHolds(rows)
}

func (r *PgRepository) ListHolds(ctx context.Context, f ListFilter) ([]Hold, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.HoldeeID != nil {
		add("holdee_id = $%d", *f.HoldeeID)
	}
	if f.RequesterID != nil {
		add("requester_id = $%d", *f.RequesterID)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if len(where) == 0 {
		return nil, ErrInvalidFilter
	}

	args = append(args, f.Limit, f.Offset)
	query := `SELECT ` + holdColumns + `
		FROM availability_holds
		WHERE ` + strings.Join(where, " AND ") + fmt.Sprintf(`
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectHolds(rows)
}

func (r *PgRepository) TransitionStatus(ctx context.Context, u StatusUpdate) (*Hold, error) {
	query := `
		UPDATE availability_holds
		SET status = $2,
		    updated_at = $4,
		    responded_at = $4,
		    response_message = $5
		WHERE id = $1
		  AND status = $3`
	switch u.Guard {
	case GuardUnexpired:
		query += ` AND expires_at > $4`
	case GuardExpired:
		query += ` AND expires_at <= $4`
	}
	query += `
		RETURNING ` + holdColumns

	row := r.pool.QueryRow(ctx, query, u.ID, string(u.To), string(u.From), u.At, u.Message)
	updated, err := scanHold(row)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrStatusChanged
		case pgCode(err) == pgExclusionViolation:
			return nil, ErrConflict
		case pgCode(err) == pgInvalidText:
			return nil, ErrInvalidID
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]Hold, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+holdColumns+`
		FROM availability_holds
		WHERE status = 'pending'
		  AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return collectHolds(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO hold_events (event_type, hold_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, string(ev.EventType), ev.HoldID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert hold event: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
