package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-kart/internal/geoloc"
)

const trackSchema = `CREATE TABLE IF NOT EXISTS positions (
	session  VARCHAR NOT NULL,
	seq      BIGINT NOT NULL,
	lon      DOUBLE NOT NULL,
	lat      DOUBLE NOT NULL,
	accuracy DOUBLE,
	ts       TIMESTAMP NOT NULL
)`

// TrackService records user positions per session in DuckDB.
type TrackService struct {
	db *sql.DB

	mu  sync.Mutex
	seq map[string]int64
}

// NewTrackService creates the positions table if needed.
func NewTrackService(ctx context.Context, db *sql.DB) (*TrackService, error) {
	if _, err := db.ExecContext(ctx, trackSchema); err != nil {
		return nil, fmt.Errorf("creating positions table: %w", err)
	}
	return &TrackService{db: db, seq: make(map[string]int64)}, nil
}

// Record appends a position to the session's track.
func (s *TrackService) Record(ctx context.Context, session string, p geoloc.Position) error {
	s.mu.Lock()
	s.seq[session]++
	seq := s.seq[session]
	s.mu.Unlock()

	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO positions (session, seq, lon, lat, accuracy, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		session, seq, p.Lon, p.Lat, p.Accuracy, ts.UTC())
	if err != nil {
		return fmt.Errorf("recording position: %w", err)
	}
	return nil
}

// Points returns up to limit of the session's most recent positions, oldest
// first. A limit of zero or less returns the whole track.
func (s *TrackService) Points(ctx context.Context, session string, limit int) ([]TrackPoint, error) {
	q := `SELECT session, seq, lon, lat, accuracy, ts FROM positions WHERE session = ? ORDER BY seq DESC`
	args := []any{session}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("reading track: %w", err)
	}
	defer rows.Close()

	points := []TrackPoint{}
	for rows.Next() {
		var (
			tp  TrackPoint
			acc sql.NullFloat64
			ts  time.Time
		)
		if err := rows.Scan(&tp.Session, &tp.Seq, &tp.Lon, &tp.Lat, &acc, &ts); err != nil {
			return nil, fmt.Errorf("reading track: %w", err)
		}
		tp.Accuracy = acc.Float64
		tp.Time = ts.UTC().Format(time.RFC3339)
		points = append(points, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading track: %w", err)
	}

	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// LineString returns the session's track as a line.
func (s *TrackService) LineString(ctx context.Context, session string, limit int) (orb.LineString, error) {
	points, err := s.Points(ctx, session, limit)
	if err != nil {
		return nil, err
	}
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = orb.Point{p.Lon, p.Lat}
	}
	return ls, nil
}

// Forget drops the in-memory sequence counter for a closed session. The
// recorded rows stay queryable.
func (s *TrackService) Forget(session string) {
	s.mu.Lock()
	delete(s.seq, session)
	s.mu.Unlock()
}
