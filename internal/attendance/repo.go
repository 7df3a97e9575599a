package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"staffattendance/internal/clock"
)

const uniqueViolation = "23505"

// recordColumns selects a record joined with its owner's name. Queries alias
// attendance_logs as a and users as u.
const recordColumns = `a.id, a.user_id, COALESCE(u.full_name, ''), a.date, a.check_in, a.check_out, a.status,
	a.ip_address, a.check_in_lat, a.check_in_lng, a.check_out_lat, a.check_out_lng,
	a.distance_from_school_meters, a.location_accuracy, a.created_at`

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec  Record
		date time.Time
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.FullName, &date, &rec.CheckIn, &rec.CheckOut, &rec.Status,
		&rec.IPAddress, &rec.CheckInLat, &rec.CheckInLng, &rec.CheckOutLat, &rec.CheckOutLng,
		&rec.DistanceMeters, &rec.LocationAccuracy, &rec.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	rec.Date = clock.Date(date)
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	res := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func parseDate(date string) (time.Time, error) {
	t, err := time.Parse(clock.DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// FindByUserAndDate returns the user's record for date, or nil.
func (r *Repository) FindByUserAndDate(ctx context.Context, userID, date string) (*Record, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_logs a LEFT JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $1 AND a.date = $2
	`, userID, day)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &rec, nil
}

// Insert writes a new check-in record.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	day, err := parseDate(rec.Date)
	if err != nil {
		return Record{}, err
	}
	row := r.db.QueryRowContext(ctx, `
		WITH a AS (
			INSERT INTO attendance_logs (id, user_id, date, check_in, status, ip_address,
				check_in_lat, check_in_lng, distance_from_school_meters, location_accuracy)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING *
		)
		SELECT `+recordColumns+` FROM a LEFT JOIN users u ON u.id = a.user_id
	`, rec.ID, rec.UserID, day, rec.CheckIn, string(rec.Status), rec.IPAddress,
		rec.CheckInLat, rec.CheckInLng, rec.DistanceMeters, rec.LocationAccuracy)
	created, err := scanRecord(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Record{}, ErrDuplicate
		}
		return Record{}, fmt.Errorf("insert attendance: %w", err)
	}
	return created, nil
}

// MarkCheckOut sets the check-out fields of a record that is still open.
func (r *Repository) MarkCheckOut(ctx context.Context, id string, at time.Time, lat, lng float64) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		WITH a AS (
			UPDATE attendance_logs
			SET check_out = $2, check_out_lat = $3, check_out_lng = $4
			WHERE id = $1 AND check_in IS NOT NULL AND check_out IS NULL
			RETURNING *
		)
		SELECT `+recordColumns+` FROM a LEFT JOIN users u ON u.id = a.user_id
	`, id, at, lat, lng)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotOpen
	}
	if err != nil {
		return Record{}, fmt.Errorf("check out attendance: %w", err)
	}
	return rec, nil
}

// Get returns a single record by id.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_logs a LEFT JOIN users u ON u.id = a.user_id
		WHERE a.id = $1
	`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get attendance: %w", err)
	}
	return rec, nil
}

// Update applies the non-nil fields of u.
func (r *Repository) Update(ctx context.Context, id string, u RecordUpdate) (Record, error) {
	var status *string
	if u.Status != nil {
		s := string(*u.Status)
		status = &s
	}
	row := r.db.QueryRowContext(ctx, `
		WITH a AS (
			UPDATE attendance_logs
			SET check_in = COALESCE($2, check_in),
				check_out = COALESCE($3, check_out),
				status = COALESCE($4, status)
			WHERE id = $1
			RETURNING *
		)
		SELECT `+recordColumns+` FROM a LEFT JOIN users u ON u.id = a.user_id
	`, id, u.CheckIn, u.CheckOut, status)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("update attendance: %w", err)
	}
	return rec, nil
}

// ListByUser returns one page of a user's records, newest first, and the
// user's total record count.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Record, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance_logs WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_logs a LEFT JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $1
		ORDER BY a.date DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	res, err := scanRecords(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	return res, total, nil
}

// ListByDate returns every record of date ordered by check-in time.
func (r *Repository) ListByDate(ctx context.Context, date string) ([]Record, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_logs a LEFT JOIN users u ON u.id = a.user_id
		WHERE a.date = $1
		ORDER BY a.check_in ASC NULLS LAST
	`, day)
	if err != nil {
		return nil, fmt.Errorf("list attendance by date: %w", err)
	}
	res, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("list attendance by date: %w", err)
	}
	return res, nil
}

// ListRange returns records dated within [from, to], optionally for one user.
func (r *Repository) ListRange(ctx context.Context, from, to, userID string) ([]Record, error) {
	start, err := parseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(to)
	if err != nil {
		return nil, err
	}

	args := []any{start, end}
	clauses := []string{"a.date >= $1", "a.date <= $2"}
	if userID != "" {
		args = append(args, userID)
		clauses = append(clauses, "a.user_id = $"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + recordColumns + `
		FROM attendance_logs a LEFT JOIN users u ON u.id = a.user_id
		WHERE ` + strings.Join(clauses, " AND ") + `
		ORDER BY a.date ASC, a.check_in ASC NULLS LAST`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance range: %w", err)
	}
	res, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("list attendance range: %w", err)
	}
	return res, nil
}

// InsertEvent writes an audit event. Redelivered events are ignored.
func (r *Repository) InsertEvent(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_events (id, record_id, user_id, type, occurred_at, payload)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO NOTHING
	`, evt.ID, evt.RecordID, evt.UserID, string(evt.Type), evt.OccurredAt, []byte(evt.Payload))
	if err != nil {
		return fmt.Errorf("insert attendance event: %w", err)
	}
	return nil
}

// ListEvents returns audit events, newest first, optionally for one user.
func (r *Repository) ListEvents(ctx context.Context, userID string, limit, offset int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, record_id, user_id, type, occurred_at, payload, created_at FROM attendance_events`
	args := []any{}
	if userID != "" {
		args = append(args, userID)
		query += " WHERE user_id = $1"
	}
	query += " ORDER BY occurred_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance events: %w", err)
	}
	defer rows.Close()
	res := []Event{}
	for rows.Next() {
		var (
			evt     Event
			kind    string
			payload []byte
		)
		if err := rows.Scan(&evt.ID, &evt.RecordID, &evt.UserID, &kind, &evt.OccurredAt, &payload, &evt.CreatedAt); err != nil {
			return nil, fmt.Errorf("list attendance events: %w", err)
		}
		evt.Type = EventType(kind)
		evt.Payload = payload
		res = append(res, evt)
	}
	return res, rows.Err()
}
