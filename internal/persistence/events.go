package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/engine"
)

type eventRow struct {
	ID               string `db:"id"`
	Type             string `db:"type"`
	Title            string `db:"title"`
	Description      string `db:"description"`
	EffectJSON       string `db:"effect_json"`
	RequiresResponse bool   `db:"requires_response"`
	ChoicesJSON      string `db:"choices_json"`
	StartsAt         int64  `db:"starts_at"`
	EndsAt           int64  `db:"ends_at"`
}

func (r *eventRow) toEvent() (*engine.Event, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("event id %q: %w", r.ID, err)
	}

	ev := &engine.Event{
		ID:               id,
		Type:             r.Type,
		Title:            r.Title,
		Description:      r.Description,
		RequiresResponse: r.RequiresResponse,
		StartsAt:         fromMillis(r.StartsAt),
		EndsAt:           fromMillis(r.EndsAt),
	}
	if err := json.Unmarshal([]byte(r.EffectJSON), &ev.Effect); err != nil {
		return nil, fmt.Errorf("event %s effect: %w", id, err)
	}
	if err := json.Unmarshal([]byte(r.ChoicesJSON), &ev.Choices); err != nil {
		return nil, fmt.Errorf("event %s choices: %w", id, err)
	}
	return ev, nil
}

// InsertEvent persists a spawned event.
func (db *DB) InsertEvent(ev *engine.Event) error {
	effect, err := json.Marshal(ev.Effect)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	choices, err := json.Marshal(ev.Choices)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	_, err = db.conn.Exec(`INSERT INTO events
		(id, type, title, description, effect_json, requires_response, choices_json, starts_at, ends_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.Type, ev.Title, ev.Description,
		string(effect), ev.RequiresResponse, string(choices),
		millis(ev.StartsAt), millis(ev.EndsAt))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent loads one event by id.
func (db *DB) GetEvent(id uuid.UUID) (*engine.Event, error) {
	var row eventRow
	err := db.conn.Get(&row, "SELECT * FROM events WHERE id = ?", id.String())
	if isNoRows(err) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return row.toEvent()
}

// ActiveEvents lists events whose window covers now, oldest first.
func (db *DB) ActiveEvents(now time.Time) ([]*engine.Event, error) {
	var rows []eventRow
	ms := millis(now)
	err := db.conn.Select(&rows,
		"SELECT * FROM events WHERE starts_at <= ? AND ends_at > ? ORDER BY starts_at, id",
		ms, ms)
	if err != nil {
		return nil, fmt.Errorf("active events: %w", err)
	}

	out := make([]*engine.Event, 0, len(rows))
	for i := range rows {
		ev, err := rows[i].toEvent()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// LatestEventStart returns the most recent event start time. Zero
// time when no event has ever spawned.
func (db *DB) LatestEventStart() (time.Time, error) {
	var ms sql.NullInt64
	err := db.conn.Get(&ms, "SELECT MAX(starts_at) FROM events")
	if err != nil {
		return time.Time{}, fmt.Errorf("latest event start: %w", err)
	}
	if !ms.Valid {
		return time.Time{}, nil
	}
	return fromMillis(ms.Int64), nil
}

// InsertEventResponse records an agent's choice on an event. At most
// one response per agent per event; a second attempt returns
// ErrDuplicate.
func (db *DB) InsertEventResponse(eventID, agentID uuid.UUID, choice string, now time.Time) error {
	_, err := db.conn.Exec(`INSERT INTO event_responses
		(event_id, agent_id, choice, created_at) VALUES (?, ?, ?, ?)`,
		eventID.String(), agentID.String(), choice, millis(now))
	if isUniqueViolation(err) {
		return fmt.Errorf("event %s response by agent %s: %w", eventID, agentID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert event response: %w", err)
	}
	return nil
}
