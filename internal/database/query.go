package database

import (
	"database/sql"
	"time"
)

const sweepColumns = `
	SELECT id, timestamp, action, path, options,
	       directories, files, bytes, duration_ms,
	       error_kind, error_message
	FROM sweeps
`

// GetRecentSweeps returns the N most recent sweeps
func (d *SweepDB) GetRecentSweeps(limit int) ([]SweepRecord, error) {
	return d.querySweeps(sweepColumns+`
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetSweepsByDateRange returns sweeps within a time range
func (d *SweepDB) GetSweepsByDateRange(start, end time.Time) ([]SweepRecord, error) {
	return d.querySweeps(sweepColumns+`
	WHERE timestamp BETWEEN ? AND ?
	ORDER BY timestamp DESC, id DESC
	`, start.UTC(), end.UTC())
}

// GetSweepsByPath returns sweeps whose path matches a LIKE pattern
func (d *SweepDB) GetSweepsByPath(pathPattern string) ([]SweepRecord, error) {
	return d.querySweeps(sweepColumns+`
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	`, pathPattern)
}

// GetSweepsByAction returns sweeps filtered by action
func (d *SweepDB) GetSweepsByAction(action string) ([]SweepRecord, error) {
	return d.querySweeps(sweepColumns+`
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	`, action)
}

// GetLargestSweeps returns the N successful sweeps that freed the most bytes
func (d *SweepDB) GetLargestSweeps(limit int) ([]SweepRecord, error) {
	return d.querySweeps(sweepColumns+`
	WHERE action = 'DELETE'
	ORDER BY bytes DESC, id DESC
	LIMIT ?
	`, limit)
}

// SweepStats holds aggregated statistics for a period
type SweepStats struct {
	TotalDeletes       int            `json:"total_deletes"`
	TotalSkipped       int            `json:"total_skipped"`
	TotalErrors        int            `json:"total_errors"`
	DirectoriesDeleted int64          `json:"directories_deleted"`
	FilesDeleted       int64          `json:"files_deleted"`
	BytesDeleted       int64          `json:"bytes_deleted"`
	ByErrorKind        map[string]int `json:"by_error_kind"`
	ByPath             map[string]int `json:"by_path"`
	StartDate          time.Time      `json:"start_date"`
	EndDate            time.Time      `json:"end_date"`
}

// GetSweepStats returns statistics for the last days days
func (d *SweepDB) GetSweepStats(days int) (*SweepStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &SweepStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'DELETE' THEN 1 END),
			COUNT(CASE WHEN action = 'SKIP' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END),
			COALESCE(SUM(CASE WHEN action = 'DELETE' THEN directories END), 0),
			COALESCE(SUM(CASE WHEN action = 'DELETE' THEN files END), 0),
			COALESCE(SUM(CASE WHEN action = 'DELETE' THEN bytes END), 0)
		FROM sweeps
		WHERE timestamp >= ?
	`, since.UTC()).Scan(
		&stats.TotalDeletes, &stats.TotalSkipped, &stats.TotalErrors,
		&stats.DirectoriesDeleted, &stats.FilesDeleted, &stats.BytesDeleted,
	)
	if err != nil {
		return nil, err
	}

	stats.ByErrorKind, err = d.countBy(`
		SELECT error_kind, COUNT(*)
		FROM sweeps
		WHERE action = 'ERROR' AND error_kind IS NOT NULL AND timestamp >= ?
		GROUP BY error_kind
	`, since.UTC())
	if err != nil {
		return nil, err
	}

	stats.ByPath, err = d.countBy(`
		SELECT path, COUNT(*)
		FROM sweeps
		WHERE action = 'DELETE' AND timestamp >= ?
		GROUP BY path
	`, since.UTC())
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// GetCountByAction returns the number of sweeps grouped by action
func (d *SweepDB) GetCountByAction() (map[string]int, error) {
	return d.countBy(`SELECT action, COUNT(*) FROM sweeps GROUP BY action`)
}

// DeleteOldRecords removes records older than olderThanDays
func (d *SweepDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`DELETE FROM sweeps WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (d *SweepDB) countBy(query string, args ...interface{}) (map[string]int, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}

	return counts, rows.Err()
}

func (d *SweepDB) querySweeps(query string, args ...interface{}) ([]SweepRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SweepRecord
	for rows.Next() {
		var r SweepRecord
		var durationMs int64
		var errKind, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.Action, &r.Path, &r.Options,
			&r.Counters.Directories, &r.Counters.Files, &r.Counters.Bytes, &durationMs,
			&errKind, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.ErrorKind = errKind.String
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}

	return records, rows.Err()
}
