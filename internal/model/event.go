package model

import (
	"encoding/json"
	"time"
)

// Table names the domain a change event belongs to.
type Table string

const (
	TableMessages      Table = "messages"
	TableConversations Table = "conversations"
	TablePosts         Table = "posts"
	TableComments      Table = "comments"
	TableLikes         Table = "likes"
	TableProfiles      Table = "profiles"
	TableFollows       Table = "follows"
	TableNotifications Table = "notifications"
	TableJobs          Table = "jobs"
	TableJobLikes      Table = "job_likes"
)

// EventType is the kind of row change.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"

	// EventAny matches every event type in filters and routes.
	EventAny EventType = "*"
)

// ChangeEvent is a pushed notification of a committed row change.
type ChangeEvent struct {
	ID    string          `json:"id"`
	Table Table           `json:"table"`
	Type  EventType       `json:"type"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`

	// Keys carries the filterable columns of the row (conversation_id,
	// receiver_id, post_id, ...).
	Keys     map[string]string `json:"keys,omitempty"`
	CommitAt time.Time         `json:"commit_at"`
}

// DecodeNew unmarshals the new row snapshot into v.
func (e *ChangeEvent) DecodeNew(v any) error {
	return json.Unmarshal(e.New, v)
}

// DecodeOld unmarshals the old row snapshot into v.
func (e *ChangeEvent) DecodeOld(v any) error {
	return json.Unmarshal(e.Old, v)
}

// Filter selects the events a subscription receives: one table, an optional
// event type and an optional column equality.
type Filter struct {
	Table  Table     `json:"table"`
	Event  EventType `json:"event,omitempty"`
	Column string    `json:"column,omitempty"`
	Value  string    `json:"value,omitempty"`
}

// Matches reports whether ev passes the filter.
func (f Filter) Matches(ev *ChangeEvent) bool {
	if ev.Table != f.Table {
		return false
	}
	if f.Event != "" && f.Event != EventAny && f.Event != ev.Type {
		return false
	}
	if f.Column == "" {
		return true
	}
	return ev.Keys[f.Column] == f.Value
}

// NewChangeEvent builds an event from row snapshots. Either row may be nil.
func NewChangeEvent(id string, table Table, typ EventType, newRow, oldRow any, keys map[string]string) (ChangeEvent, error) {
	ev := ChangeEvent{
		ID:       id,
		Table:    table,
		Type:     typ,
		Keys:     keys,
		CommitAt: time.Now().UTC(),
	}
	if newRow != nil {
		data, err := json.Marshal(newRow)
		if err != nil {
			return ChangeEvent{}, err
		}
		ev.New = data
	}
	if oldRow != nil {
		data, err := json.Marshal(oldRow)
		if err != nil {
			return ChangeEvent{}, err
		}
		ev.Old = data
	}
	return ev, nil
}
