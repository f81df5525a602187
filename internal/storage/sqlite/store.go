package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nawedy/vigil/internal/chaos"
	"github.com/nawedy/vigil/internal/cost"
	"github.com/nawedy/vigil/internal/metrics"
	"github.com/nawedy/vigil/internal/reactor"
	"github.com/nawedy/vigil/internal/storage"
	"github.com/nawedy/vigil/internal/synthetic"
)

// Store implements storage.Store using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite storage with the given database path
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// StoreHealthSnapshot persists every reading from a classification batch
func (s *Store) StoreHealthSnapshot(batch []metrics.ServiceHealth) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO performance_metrics (service, metric_name, value, timestamp, tags_json)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, health := range batch {
		for _, reading := range health.Metrics {
			tagsJSON, err := json.Marshal(reading.Tags)
			if err != nil {
				return fmt.Errorf("failed to marshal tags: %w", err)
			}

			if _, err := stmt.Exec(health.Service, reading.Name, reading.Value, reading.Timestamp, string(tagsJSON)); err != nil {
				return fmt.Errorf("failed to store metric %s/%s: %w", health.Service, reading.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metrics: %w", err)
	}

	return nil
}

// MetricRows retrieves metric history with optional filtering
func (s *Store) MetricRows(filter storage.MetricFilter) ([]storage.MetricRow, error) {
	query := `
		SELECT id, service, metric_name, value, timestamp, tags_json, created_at
		FROM performance_metrics
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Service != "" {
		query += " AND service = ?"
		args = append(args, filter.Service)
	}

	if filter.Metric != "" {
		query += " AND metric_name = ?"
		args = append(args, filter.Metric)
	}

	if filter.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartTime)
	}

	if filter.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100" // Default limit
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var records []storage.MetricRow
	for rows.Next() {
		var record storage.MetricRow
		var tagsJSON string

		err := rows.Scan(
			&record.ID,
			&record.Service,
			&record.Metric,
			&record.Value,
			&record.Timestamp,
			&tagsJSON,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(tagsJSON), &record.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// StoreCostEntries appends a batch of cost ledger entries
func (s *Store) StoreCostEntries(entries []cost.Breakdown) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO cost_tracking (service, amount, unit, start_date, end_date, tags_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		tagsJSON, err := json.Marshal(entry.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}

		if _, err := stmt.Exec(entry.Service, entry.Amount, entry.Unit, entry.StartDate, entry.EndDate, string(tagsJSON)); err != nil {
			return fmt.Errorf("failed to store cost entry for %s: %w", entry.Service, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cost entries: %w", err)
	}

	return nil
}

// CostEntriesBetween returns one service's entries with start_date in
// [start, end), oldest first. The half-open bound keeps an entry out of
// its own trailing baseline.
func (s *Store) CostEntriesBetween(service string, start, end time.Time) ([]cost.Breakdown, error) {
	query := `
		SELECT service, amount, unit, start_date, end_date, tags_json
		FROM cost_tracking
		WHERE service = ? AND start_date >= ? AND start_date < ?
		ORDER BY start_date ASC
	`

	rows, err := s.db.Query(query, service, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost entries: %w", err)
	}
	defer rows.Close()

	return scanCostEntries(rows)
}

// AllCostEntriesBetween returns every service's entries with start_date
// in [start, end], oldest first
func (s *Store) AllCostEntriesBetween(start, end time.Time) ([]cost.Breakdown, error) {
	query := `
		SELECT service, amount, unit, start_date, end_date, tags_json
		FROM cost_tracking
		WHERE start_date >= ? AND start_date <= ?
		ORDER BY start_date ASC
	`

	rows, err := s.db.Query(query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost entries: %w", err)
	}
	defer rows.Close()

	return scanCostEntries(rows)
}

func scanCostEntries(rows *sql.Rows) ([]cost.Breakdown, error) {
	var entries []cost.Breakdown
	for rows.Next() {
		var entry cost.Breakdown
		var tagsJSON string

		err := rows.Scan(
			&entry.Service,
			&entry.Amount,
			&entry.Unit,
			&entry.StartDate,
			&entry.EndDate,
			&tagsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(tagsJSON), &entry.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// StoreCostAlert persists a cost anomaly alert
func (s *Store) StoreCostAlert(alert cost.Alert) error {
	query := `
		INSERT INTO cost_alerts (service, threshold, current_amount, percentage_increase, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		alert.Service,
		alert.Threshold,
		alert.CurrentAmount,
		alert.PercentageIncrease,
		alert.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to store cost alert: %w", err)
	}

	return nil
}

// CostAlertsSince retrieves cost alerts newer than the given time
func (s *Store) CostAlertsSince(since time.Time) ([]cost.Alert, error) {
	query := `
		SELECT service, threshold, current_amount, percentage_increase, timestamp
		FROM cost_alerts
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := s.db.Query(query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost alerts: %w", err)
	}
	defer rows.Close()

	var alerts []cost.Alert
	for rows.Next() {
		var alert cost.Alert
		err := rows.Scan(
			&alert.Service,
			&alert.Threshold,
			&alert.CurrentAmount,
			&alert.PercentageIncrease,
			&alert.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return alerts, nil
}

// StoreCheckResult persists a synthetic check result
func (s *Store) StoreCheckResult(result synthetic.Result) error {
	query := `
		INSERT INTO synthetic_checks (name, success, duration_ns, error, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		result.Name,
		result.Success,
		int64(result.Duration),
		result.Error,
		result.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to store check result: %w", err)
	}

	return nil
}

// CheckResultsSince retrieves one check's results newer than the given time
func (s *Store) CheckResultsSince(name string, since time.Time) ([]synthetic.Result, error) {
	query := `
		SELECT name, success, duration_ns, error, timestamp
		FROM synthetic_checks
		WHERE name = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := s.db.Query(query, name, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query check results: %w", err)
	}
	defer rows.Close()

	var results []synthetic.Result
	for rows.Next() {
		var result synthetic.Result
		var durationNS int64

		err := rows.Scan(
			&result.Name,
			&result.Success,
			&durationNS,
			&result.Error,
			&result.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		result.Duration = time.Duration(durationNS)
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return results, nil
}

// StoreIncident persists an incident record
func (s *Store) StoreIncident(incident reactor.Incident) error {
	issuesJSON, err := json.Marshal(incident.Issues)
	if err != nil {
		return fmt.Errorf("failed to marshal issues: %w", err)
	}

	recommendationsJSON, err := json.Marshal(incident.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	query := `
		INSERT INTO incidents (id, service, status, issues_json, recommendations_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		incident.ID,
		incident.Service,
		string(incident.Status),
		string(issuesJSON),
		string(recommendationsJSON),
		incident.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store incident: %w", err)
	}

	return nil
}

// IncidentsSince retrieves incidents newer than the given time
func (s *Store) IncidentsSince(since time.Time) ([]reactor.Incident, error) {
	query := `
		SELECT id, service, status, issues_json, recommendations_json, created_at
		FROM incidents
		WHERE created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []reactor.Incident
	for rows.Next() {
		var incident reactor.Incident
		var status, issuesJSON, recommendationsJSON string

		err := rows.Scan(
			&incident.ID,
			&incident.Service,
			&status,
			&issuesJSON,
			&recommendationsJSON,
			&incident.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		incident.Status = metrics.Status(status)

		if err := json.Unmarshal([]byte(issuesJSON), &incident.Issues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal issues: %w", err)
		}

		if err := json.Unmarshal([]byte(recommendationsJSON), &incident.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recommendations: %w", err)
		}

		incidents = append(incidents, incident)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return incidents, nil
}

// StoreChaosEvent persists a chaos experiment state transition
func (s *Store) StoreChaosEvent(event chaos.Event) error {
	query := `
		INSERT INTO chaos_events (experiment_id, type, target, state, timestamp, duration_ns, impact, recovery)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		event.ExperimentID,
		string(event.Type),
		event.Target,
		string(event.State),
		event.Timestamp,
		int64(event.Duration),
		event.Impact,
		event.Recovery,
	)
	if err != nil {
		return fmt.Errorf("failed to store chaos event: %w", err)
	}

	return nil
}

// ChaosEventsSince retrieves chaos events newer than the given time
func (s *Store) ChaosEventsSince(since time.Time) ([]chaos.Event, error) {
	query := `
		SELECT experiment_id, type, target, state, timestamp, duration_ns, impact, recovery
		FROM chaos_events
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := s.db.Query(query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query chaos events: %w", err)
	}
	defer rows.Close()

	var events []chaos.Event
	for rows.Next() {
		var event chaos.Event
		var eventType, state string
		var durationNS int64

		err := rows.Scan(
			&event.ExperimentID,
			&eventType,
			&event.Target,
			&state,
			&event.Timestamp,
			&durationNS,
			&event.Impact,
			&event.Recovery,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		event.Type = chaos.Category(eventType)
		event.State = chaos.State(state)
		event.Duration = time.Duration(durationNS)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
