package model

import "time"

// EntryType is the kind of record held by a JournalEntry.
type EntryType string

const (
	EntryTrade  EntryType = "trade"
	EntrySignal EntryType = "signal"
	EntryEvent  EntryType = "event"
)

// Event is a free-form operational record (critique reports, parameter changes, lifecycle).
type Event struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// JournalEntry is one append-only journal record. Exactly one payload is set,
// matching Type.
type JournalEntry struct {
	ID        string    `json:"id"`
	BotID     string    `json:"bot_id"`
	Type      EntryType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Trade  *Trade  `json:"trade,omitempty"`
	Signal *Signal `json:"signal,omitempty"`
	Event  *Event  `json:"event,omitempty"`
}

// Data returns the payload of the entry.
func (e *JournalEntry) Data() any {
	switch e.Type {
	case EntryTrade:
		return e.Trade
	case EntrySignal:
		return e.Signal
	case EntryEvent:
		return e.Event
	}
	return nil
}

// EntryID derives the journal id of an entity from its type and own id.
func EntryID(t EntryType, entityID string) string {
	return string(t) + ":" + entityID
}

// Clone returns a copy of the entry and its payload.
func (e JournalEntry) Clone() JournalEntry {
	out := e
	if e.Trade != nil {
		t := e.Trade.Clone()
		out.Trade = &t
	}
	if e.Signal != nil {
		s := e.Signal.Clone()
		out.Signal = &s
	}
	if e.Event != nil {
		ev := *e.Event
		if e.Event.Fields != nil {
			ev.Fields = make(map[string]any, len(e.Event.Fields))
			for k, v := range e.Event.Fields {
				ev.Fields[k] = v
			}
		}
		out.Event = &ev
	}
	return out
}
