package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Frame is a stored frame.
type Frame struct {
	Seq       int64
	Number    int64
	Time      time.Duration
	Delta     time.Duration
	Elapsed   time.Duration
	Throttled int
}

// Run is a stored job run.
type Run struct {
	FrameSeq    int64
	FrameNumber int64
	Ordinal     int
	Root        string
	Job         string
	Phase       string
	Position    int
	Duration    time.Duration
	Error       string // empty when the job succeeded
}

// ReadFrames returns every frame ordered by seq.
// Returns an empty slice (not nil) if none were recorded.
func (s *Store) ReadFrames(ctx context.Context) ([]Frame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, number, time_ns, delta_ns, elapsed_ns, throttled
		FROM frames
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	frames := []Frame{}
	for rows.Next() {
		var f Frame
		var t, d, e int64
		if err := rows.Scan(&f.Seq, &f.Number, &t, &d, &e, &f.Throttled); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		f.Time, f.Delta, f.Elapsed = time.Duration(t), time.Duration(d), time.Duration(e)
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}
	return frames, nil
}

// ReadRuns returns job runs ordered by frame seq then ordinal. A positive
// frame limits the result to frames with that number; a timing reset can
// make more than one frame match.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadRuns(ctx context.Context, frame int64) ([]Run, error) {
	query := `
		SELECT r.frame_seq, f.number, r.ordinal, r.root, r.job, r.phase, r.position, r.duration_ns, r.error
		FROM job_runs r
		JOIN frames f ON f.seq = r.frame_seq
	`
	var args []any
	if frame > 0 {
		query += ` WHERE f.number = ?`
		args = append(args, frame)
	}
	query += ` ORDER BY r.frame_seq ASC, r.ordinal ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query job runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// CountRuns returns how many times a job ran, across all roots.
func (s *Store) CountRuns(ctx context.Context, job string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_runs WHERE job = ?`, job).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count runs of %s: %w", job, err)
	}
	return n, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	runs := []Run{}
	for rows.Next() {
		var r Run
		var dur int64
		var errText sql.NullString
		if err := rows.Scan(&r.FrameSeq, &r.FrameNumber, &r.Ordinal, &r.Root, &r.Job, &r.Phase, &r.Position, &dur, &errText); err != nil {
			return nil, fmt.Errorf("scan job run: %w", err)
		}
		r.Duration = time.Duration(dur)
		r.Error = errText.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job runs: %w", err)
	}
	return runs, nil
}
