// Package realtime delivers row-level change notifications for the campus tables.
//
// Every successful write emits a Change. Consumers open one Subscription per
// (table, filter) pair and must Close it when the owning view goes away.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Change is one row-level event. New holds the row after the write (INSERT,
// UPDATE), Old the row before it (UPDATE, DELETE).
type Change struct {
	Table      string          `json:"table"`
	Type       EventType       `json:"type"`
	ID         string          `json:"id"`
	New        json.RawMessage `json:"new,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
	CommitTime time.Time       `json:"commit_time"`
	// Truncated is set when the row snapshots were dropped to fit the transport.
	Truncated bool `json:"truncated,omitempty"`
}

func NewChange(table string, typ EventType, id string, newRow, oldRow any) (Change, error) {
	c := Change{
		Table:      table,
		Type:       typ,
		ID:         id,
		CommitTime: time.Now().UTC(),
	}
	if newRow != nil {
		b, err := json.Marshal(newRow)
		if err != nil {
			return Change{}, fmt.Errorf("encode new row: %w", err)
		}
		c.New = b
	}
	if oldRow != nil {
		b, err := json.Marshal(oldRow)
		if err != nil {
			return Change{}, fmt.Errorf("encode old row: %w", err)
		}
		c.Old = b
	}
	return c, nil
}

// Publisher receives changes from the write path.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Discard drops every change. Used where no realtime consumer exists.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Change) error { return nil }

var ErrInvalidFilter = errors.New("invalid filter")

// Filter is an equality row filter written as "column=eq.value".
type Filter struct {
	Column string
	Value  string
}

func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(s, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("%w: %q", ErrInvalidFilter, s)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return Filter{}, fmt.Errorf("%w: only eq is supported: %q", ErrInvalidFilter, s)
	}
	return Filter{Column: column, Value: value}, nil
}

func (f Filter) IsZero() bool {
	return f.Column == ""
}

func (f Filter) String() string {
	if f.IsZero() {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Match reports whether the change concerns a row selected by the filter.
// The new snapshot is checked first, then the old one, so a DELETE still
// reaches subscribers filtered on the deleted row's columns.
func (f Filter) Match(c Change) bool {
	if f.IsZero() {
		return true
	}
	if f.Column == "id" && c.ID != "" {
		return c.ID == f.Value
	}
	if c.Truncated {
		// no snapshot to test; let the consumer reload
		return true
	}
	for _, raw := range []json.RawMessage{c.New, c.Old} {
		if len(raw) == 0 {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		v, ok := row[f.Column]
		if !ok || v == nil {
			continue
		}
		if fmt.Sprint(v) == f.Value {
			return true
		}
	}
	return false
}
