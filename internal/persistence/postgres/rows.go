package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ActivityRow is the typed read projection of one stored activity. Nullable
// columns surface as pointers; a merge may not have populated them yet.
type ActivityRow struct {
	ActivityID string
	Name       *string
	Sport      *string
	SubSport   *string
	StartTime  *time.Time
	StopTime   *time.Time
	Distance   *float64
	Calories   *int64
	AvgHR      *int64
	MaxHR      *int64
}

// GetActivity returns the activity with the given ID, or nil when absent.
func (s *Store) GetActivity(ctx context.Context, activityID string) (*ActivityRow, error) {
	const query = `SELECT activity_id, name, sport, sub_sport, start_time, stop_time, distance, calories, avg_hr, max_hr
        FROM activities WHERE activity_id = $1`

	var row ActivityRow
	err := s.pool.QueryRow(ctx, query, activityID).Scan(
		&row.ActivityID, &row.Name, &row.Sport, &row.SubSport,
		&row.StartTime, &row.StopTime, &row.Distance, &row.Calories,
		&row.AvgHR, &row.MaxHR,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// CountActivityRows returns how many laps and records an activity has, for
// drivers that report an ingest summary.
func (s *Store) CountActivityRows(ctx context.Context, activityID string) (laps, records int64, err error) {
	for _, q := range []struct {
		table string
		dst   *int64
	}{
		{"activity_laps", &laps},
		{"activity_records", &records},
	} {
		query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE activity_id = $1`, q.table)
		if err = s.pool.QueryRow(ctx, query, activityID).Scan(q.dst); err != nil {
			return 0, 0, err
		}
	}
	return laps, records, nil
}
