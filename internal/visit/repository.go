package visit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// timeLayout is the ISO-8601 form stored in indate/outdate.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrNotFound is returned when a place has no visits.
var ErrNotFound = errors.New("place not found")

const selectColumns = "SELECT id, placename, indate, outdate FROM places"

// Repository provides check-in bookkeeping over the places table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a visit repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecordScan toggles the state of a place. When the place has no visits, or
// its latest visit is closed, a new visit is opened at now. Otherwise the
// latest visit is closed at now. Only that visit's row is updated.
func (r *Repository) RecordScan(ctx context.Context, place string, now time.Time) (res *ScanResult, err error) {
	place = normalizePlace(place)
	if place == "" {
		return nil, fmt.Errorf("place name is required")
	}
	now = now.Truncate(time.Millisecond)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (also failed to roll back: %v)", err, rbErr)
			}
		}
	}()

	latest, err := scanVisit(tx.QueryRowContext(ctx,
		selectColumns+" WHERE placename = ? ORDER BY id DESC LIMIT 1", place,
	))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading latest visit: %w", err)
	}

	if latest == nil || !latest.IsOpen() {
		v, err := insertOpen(ctx, tx, place, now)
		if err != nil {
			return nil, err
		}
		res = &ScanResult{Action: CheckIn, Visit: v}
	} else {
		out := now
		if out.Before(latest.CheckIn) {
			out = latest.CheckIn
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE places SET outdate = ? WHERE id = ?",
			formatTime(out), latest.ID,
		); err != nil {
			return nil, fmt.Errorf("closing visit %d: %w", latest.ID, err)
		}
		latest.CheckOut = &out
		res = &ScanResult{Action: CheckOut, Visit: latest}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing scan: %w", err)
	}
	return res, nil
}

func insertOpen(ctx context.Context, tx *sql.Tx, place string, now time.Time) (*Visit, error) {
	result, err := tx.ExecContext(ctx,
		"INSERT INTO places (placename, indate) VALUES (?, ?)",
		place, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting visit: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	return &Visit{ID: id, Place: place, CheckIn: now}, nil
}

// Latest returns the most recent visit of a place, or ErrNotFound.
func (r *Repository) Latest(ctx context.Context, place string) (*Visit, error) {
	v, err := scanVisit(r.db.QueryRowContext(ctx,
		selectColumns+" WHERE placename = ? ORDER BY id DESC LIMIT 1", normalizePlace(place),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest visit: %w", err)
	}
	return v, nil
}

// IsOpen reports whether the place has an open visit.
func (r *Repository) IsOpen(ctx context.Context, place string) (bool, error) {
	v, err := r.Latest(ctx, place)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v.IsOpen(), nil
}

// OpenDurationMinutes returns the whole minutes between the check-in of the
// place's open visit and now, or 0 if the place has no open visit.
func (r *Repository) OpenDurationMinutes(ctx context.Context, place string, now time.Time) (int64, error) {
	v, err := r.Latest(ctx, place)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !v.IsOpen() {
		return 0, nil
	}
	return v.Minutes(now), nil
}

// ListByPlace returns all visits of a place, newest first.
func (r *Repository) ListByPlace(ctx context.Context, place string) ([]*Visit, error) {
	return r.query(ctx, selectColumns+" WHERE placename = ? ORDER BY id DESC", normalizePlace(place))
}

// OpenVisits returns the open visit of every place that has one, oldest
// check-in first.
func (r *Repository) OpenVisits(ctx context.Context) ([]*Visit, error) {
	return r.query(ctx,
		selectColumns+` WHERE (outdate IS NULL OR outdate = '')
		 AND id IN (SELECT MAX(id) FROM places GROUP BY placename)
		 ORDER BY id`,
	)
}

// PlaceCounts returns the number of visits per place.
func (r *Repository) PlaceCounts(ctx context.Context) (result map[string]int64, err error) {
	rows, err := r.db.QueryContext(ctx, "SELECT placename, COUNT(*) FROM places GROUP BY placename")
	if err != nil {
		return nil, fmt.Errorf("counting visits: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	result = make(map[string]int64)
	for rows.Next() {
		var place string
		var n int64
		if err := rows.Scan(&place, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		result[place] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counts: %w", err)
	}

	return result, nil
}

// PlaceNames returns the distinct place names, sorted.
func (r *Repository) PlaceNames(ctx context.Context) ([]string, error) {
	counts, err := r.PlaceCounts(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// VisitCount returns the number of visits to a place.
func (r *Repository) VisitCount(ctx context.Context, place string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM places WHERE placename = ?", normalizePlace(place),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting visits: %w", err)
	}
	return n, nil
}

// IsEmpty reports whether no visit has ever been recorded.
func (r *Repository) IsEmpty(ctx context.Context) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM places)").Scan(&exists); err != nil {
		return false, fmt.Errorf("checking for visits: %w", err)
	}
	return !exists, nil
}

// Summaries aggregates every place, sorted by name. Open visits count
// towards Visits but not towards TotalMinutes.
func (r *Repository) Summaries(ctx context.Context) ([]*Summary, error) {
	names, err := r.PlaceNames(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*Summary, 0, len(names))
	for _, name := range names {
		s, err := r.Summary(ctx, name)
		if errors.Is(err, ErrNotFound) {
			// Deleted since the names were read.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("summarizing %q: %w", name, err)
		}
		result = append(result, s)
	}
	return result, nil
}

// Summary aggregates the visits of one place, or returns ErrNotFound.
func (r *Repository) Summary(ctx context.Context, place string) (*Summary, error) {
	visits, err := r.ListByPlace(ctx, place)
	if err != nil {
		return nil, err
	}
	if len(visits) == 0 {
		return nil, ErrNotFound
	}

	s := &Summary{
		Place:       visits[0].Place,
		Visits:      int64(len(visits)),
		Open:        visits[0].IsOpen(),
		LastCheckIn: visits[0].CheckIn,
	}
	for _, v := range visits {
		if !v.IsOpen() {
			s.TotalMinutes += v.Minutes(time.Time{})
		}
	}
	return s, nil
}

// DeletePlace removes every visit of a place and returns how many were removed.
func (r *Repository) DeletePlace(ctx context.Context, place string) (int64, error) {
	place = normalizePlace(place)
	result, err := r.db.ExecContext(ctx, "DELETE FROM places WHERE placename = ?", place)
	if err != nil {
		return 0, fmt.Errorf("deleting place: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, place)
	}

	return rows, nil
}

func (r *Repository) query(ctx context.Context, q string, args ...interface{}) (visits []*Visit, err error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing visits: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visits: %w", err)
	}

	return visits, nil
}

// scanVisit scans a visit from a database row.
func scanVisit(row interface{ Scan(...interface{}) error }) (*Visit, error) {
	var v Visit
	var indate string
	var outdate sql.NullString

	if err := row.Scan(&v.ID, &v.Place, &indate, &outdate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning visit: %w", err)
	}

	in, err := parseTime(indate)
	if err != nil {
		return nil, fmt.Errorf("visit %d check-in: %w", v.ID, err)
	}
	v.CheckIn = in

	if outdate.Valid && outdate.String != "" {
		out, err := parseTime(outdate.String)
		if err != nil {
			return nil, fmt.Errorf("visit %d check-out: %w", v.ID, err)
		}
		v.CheckOut = &out
	}

	return &v, nil
}

// normalizePlace is applied to every place name on its way in, so a name
// matches whatever spacing the tag or request carried.
func normalizePlace(place string) string {
	return strings.TrimSpace(place)
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

// parseTime accepts the stored layout and any RFC 3339 timestamp.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
