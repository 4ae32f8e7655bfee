package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/conductor-ai/conductor/internal/events"
	"github.com/conductor-ai/conductor/internal/orchestrator"
)

// EventLog is the SQLite-backed durable event record. It feeds late
// subscribers and post-hoc inspection; live delivery goes through the
// broadcaster and never waits on it.
type EventLog struct {
	db *DB
}

// Compile-time verification that EventLog implements the orchestrator's
// log contract.
var _ orchestrator.EventLog = (*EventLog)(nil)

// NewEventLog creates an event log over an open database.
func NewEventLog(db *DB) *EventLog {
	return &EventLog{db: db}
}

// Append records one event.
func (l *EventLog) Append(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = l.db.Exec(`
		INSERT INTO events (event_type, task_id, agent_id, timestamp, payload)
		VALUES (?, ?, ?, ?, ?)
	`, string(ev.Type), ev.TaskID, ev.AgentID, formatTime(ev.Timestamp), string(payload))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Recent returns up to limit of the task's most recent events in publish
// order, oldest first. Payloads come back as raw JSON.
func (l *EventLog) Recent(ctx context.Context, taskID string, limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.Query(`
		SELECT event_type, task_id, agent_id, timestamp, payload FROM (
			SELECT seq, event_type, task_id, agent_id, timestamp, payload
			FROM events WHERE task_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var ev events.Event
		var evType, timestamp, payload string
		var agentID sql.NullString
		if err := rows.Scan(&evType, &ev.TaskID, &agentID, &timestamp, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = events.Type(evType)
		ev.AgentID = agentID.String
		ts, err := parseTime(timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp: %w", err)
		}
		ev.Timestamp = ts
		ev.Payload = json.RawMessage(payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountByTask returns how many events the task has logged.
func (l *EventLog) CountByTask(ctx context.Context, taskID string) (int, error) {
	var count int
	row := l.db.QueryRow(`SELECT COUNT(*) FROM events WHERE task_id = ?`, taskID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}
