package sensors

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS radiation_data (
	file_id           INTEGER,
	sensor_id         INTEGER,
	timestamp         TEXT,
	latitude          TEXT,
	longitude         TEXT,
	sensor_type       TEXT,
	manufacturer      TEXT,
	counts            REAL,
	counts_per_minute REAL,
	hv_pulses         REAL,
	sample_time_ms    REAL,
	UNIQUE (sensor_id, timestamp)
);`

// Store keeps the rolling measurement window in SQLite. Timestamps
// are stored as the API's "YYYY-MM-DD HH:MM:SS" strings, which
// compare chronologically and match sqlite's datetime() output.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the database at path and ensures the
// measurement table exists.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores measurements, silently skipping rows whose
// (sensor_id, timestamp) pair is already present. It returns the
// number of rows actually added.
func (s *Store) Insert(ms []Measurement) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO radiation_data
		(file_id, sensor_id, timestamp, latitude, longitude, sensor_type, manufacturer,
		 counts, counts_per_minute, hv_pulses, sample_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	var inserted int64
	for _, m := range ms {
		res, err := stmt.Exec(m.FileID, m.SensorID, m.Timestamp, m.Latitude, m.Longitude,
			m.SensorType, m.Manufacturer, m.Counts, m.CountsPerMinute, m.HVPulses, m.SampleTimeMS)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert measurement: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Retention drops rows older than the given number of days and
// reclaims the space.
func (s *Store) Retention(days int) (int64, error) {
	res, err := s.db.Exec(
		"DELETE FROM radiation_data WHERE timestamp < datetime('now', ?)",
		fmt.Sprintf("-%d days", days))
	if err != nil {
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return deleted, fmt.Errorf("vacuum: %w", err)
	}
	return deleted, nil
}

// Dedupe removes duplicate (sensor_id, timestamp) rows, keeping the
// earliest inserted one. The unique index prevents new duplicates;
// this cleans up rows that predate it, and NULL-timestamp strays.
func (s *Store) Dedupe() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM radiation_data WHERE rowid NOT IN
		(SELECT MIN(rowid) FROM radiation_data GROUP BY sensor_id, timestamp)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LatestRow is the newest stored reading of one sensor.
type LatestRow struct {
	SensorID        int64
	SensorType      string
	CountsPerMinute *float64
	Latitude        string
	Longitude       string
	Timestamp       string
}

// Latest returns the most recent reading per sensor.
func (s *Store) Latest() ([]LatestRow, error) {
	rows, err := s.db.Query(`
		SELECT rd.sensor_id, COALESCE(rd.sensor_type, ''), rd.counts_per_minute,
		       COALESCE(rd.latitude, ''), COALESCE(rd.longitude, ''), COALESCE(rd.timestamp, '')
		FROM radiation_data rd
		JOIN (
			SELECT sensor_id, MAX(timestamp) AS max_ts
			FROM radiation_data
			GROUP BY sensor_id
		) AS latest
		ON rd.sensor_id = latest.sensor_id AND rd.timestamp = latest.max_ts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LatestRow
	for rows.Next() {
		var r LatestRow
		if err := rows.Scan(&r.SensorID, &r.SensorType, &r.CountsPerMinute,
			&r.Latitude, &r.Longitude, &r.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DistinctSensors counts the sensors currently represented.
func (s *Store) DistinctSensors() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(DISTINCT sensor_id) FROM radiation_data").Scan(&n)
	return n, err
}

// SensorIDs lists every sensor with stored rows.
func (s *Store) SensorIDs() ([]int64, error) {
	rows, err := s.db.Query("SELECT DISTINCT sensor_id FROM radiation_data ORDER BY sensor_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Sample is one raw (timestamp, counts_per_minute) pair of a sensor.
type Sample struct {
	Timestamp       string
	CountsPerMinute *float64
}

// CountSeries returns all stored samples of one sensor in
// chronological order.
func (s *Store) CountSeries(sensorID int64) ([]Sample, error) {
	rows, err := s.db.Query(`SELECT COALESCE(timestamp, ''), counts_per_minute
		FROM radiation_data WHERE sensor_id = ? ORDER BY timestamp`, sensorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var sm Sample
		if err := rows.Scan(&sm.Timestamp, &sm.CountsPerMinute); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}
