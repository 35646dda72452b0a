// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType classifies an enforcement ledger entry.
type EventType string

// Ledger event types.
const (
	EventTypeBanAdded           EventType = "ban.added"
	EventTypeBanRemoved         EventType = "ban.removed"
	EventTypeBanExpired         EventType = "ban.expired"
	EventTypeViolationRecorded  EventType = "violation.recorded"
	EventTypeViolationsCleared  EventType = "violations.cleared"
	EventTypeSessionInvalidated EventType = "session.invalidated"
	EventTypePipelineStarted    EventType = "pipeline.started"
	EventTypePipelineStopped    EventType = "pipeline.stopped"
)

// Severity indicates the operational weight of a ledger entry.
type Severity string

// Severity levels.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Outcome indicates whether the recorded action succeeded.
type Outcome string

// Outcome values.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one enforcement ledger entry.
type Event struct {
	// ID uniquely identifies the entry.
	ID string `json:"id"`

	// Timestamp is when the action occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type classifies the entry.
	Type EventType `json:"type"`

	// Severity is the operational weight.
	Severity Severity `json:"severity"`

	// Outcome is whether the action succeeded.
	Outcome Outcome `json:"outcome"`

	// Actor is who performed the action.
	Actor Actor `json:"actor"`

	// Target is what the action was performed on, if anything.
	Target *Target `json:"target,omitempty"`

	// Source is where the action came from.
	Source Source `json:"source,omitempty"`

	// Action is the verb (ban, unban, expire, record, clear, ...).
	Action string `json:"action"`

	// Description is a human-readable summary.
	Description string `json:"description"`

	// Metadata holds action-specific details.
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// RequestID correlates the entry with an API request.
	RequestID string `json:"request_id,omitempty"`
}

// Actor identifies who performed an action: an authenticated API caller or
// the system itself.
type Actor struct {
	ID    string   `json:"id"`
	Type  string   `json:"type"` // "user" or "system"
	Roles []string `json:"roles,omitempty"`
}

// Target identifies what an action was performed on.
type Target struct {
	ID   string `json:"id"`
	Type string `json:"type"` // "actor" or "session"
}

// Source captures where an API request came from.
type Source struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Store persists ledger entries.
type Store interface {
	// Save persists one entry.
	Save(ctx context.Context, event *Event) error

	// Query returns entries matching the filter, most recent first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Count returns the number of entries matching the filter.
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// Delete removes entries older than the given time and returns how
	// many were removed.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)

	// Close releases store resources.
	Close() error
}

// QueryFilter narrows a ledger query. Zero values match everything.
type QueryFilter struct {
	Types      []EventType `json:"types,omitempty"`
	Severities []Severity  `json:"severities,omitempty"`
	Outcomes   []Outcome   `json:"outcomes,omitempty"`
	ActorID    string      `json:"actor_id,omitempty"`
	TargetID   string      `json:"target_id,omitempty"`
	StartTime  *time.Time  `json:"start_time,omitempty"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Offset     int         `json:"offset,omitempty"`
}

// DefaultQueryFilter returns a filter with sensible defaults.
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{Limit: 100}
}

// matchesFilter reports whether the event matches every criterion set on the
// filter. Shared by the memory and badger stores.
func matchesFilter(event *Event, filter *QueryFilter) bool {
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(filter.Severities) > 0 {
		found := false
		for _, sev := range filter.Severities {
			if event.Severity == sev {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(filter.Outcomes) > 0 {
		found := false
		for _, o := range filter.Outcomes {
			if event.Outcome == o {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.ActorID != "" && event.Actor.ID != filter.ActorID {
		return false
	}

	if filter.TargetID != "" {
		if event.Target == nil || event.Target.ID != filter.TargetID {
			return false
		}
	}

	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}

	return true
}
