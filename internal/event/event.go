// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package event defines the value types exchanged across the pipeline:
// security events, inline check inputs, and policy decisions.
//
// SecurityEvent instances are constructed once by the ingestion path and
// never mutated afterwards. Consumers receive shared batches and must treat
// them as read-only.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies how serious an event is. Severities are totally
// ordered: LOW < MEDIUM < HIGH < CRITICAL.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank returns the position of the severity in the total order.
// Unknown severities rank below LOW.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether s is equal to or more severe than other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Valid reports whether s is one of the known severity levels.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Event types emitted by the pipeline itself. The taxonomy is open:
// collaborators may emit any string type, these are the ones Vigil
// produces or assigns special meaning to.
const (
	TypeViolationRecorded = "VIOLATION_RECORDED"
	TypePatternAlert      = "PATTERN_ALERT"
	TypeAnomalyDetected   = "ANOMALY_DETECTED"
	TypeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// SecurityEvent is an immutable behavioral fact attributed to an actor.
type SecurityEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	ActorID   string            `json:"actor_id"`
	Type      string            `json:"type"`
	Severity  Severity          `json:"severity"`
	Data      map[string]string `json:"data,omitempty"`
	SourceIP  string            `json:"source_ip,omitempty"`
	Endpoint  string            `json:"endpoint,omitempty"`
}

// NewSecurityEvent creates an event with a unique ID and UTC timestamp.
// SourceIP and Endpoint may be set by the caller before the event is
// published; once published the event must not be mutated.
func NewSecurityEvent(actorID, eventType string, severity Severity, data map[string]string) *SecurityEvent {
	return &SecurityEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		ActorID:   actorID,
		Type:      eventType,
		Severity:  severity,
		Data:      data,
	}
}

// Validate checks required fields and returns an error if validation fails.
func (e *SecurityEvent) Validate() error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Message: "required"}
	}
	if e.ActorID == "" {
		return &ValidationError{Field: "actor_id", Message: "required"}
	}
	if e.Type == "" {
		return &ValidationError{Field: "type", Message: "required"}
	}
	if !e.Severity.Valid() {
		return &ValidationError{Field: "severity", Message: "unknown level"}
	}
	return nil
}

// Clone returns a deep copy of the event, including its data map.
func (e *SecurityEvent) Clone() *SecurityEvent {
	clone := *e
	if e.Data != nil {
		clone.Data = make(map[string]string, len(e.Data))
		for k, v := range e.Data {
			clone.Data[k] = v
		}
	}
	return &clone
}

// RequestContext is the input to an inline allow/deny check. It is
// constructed per inbound request by the collaborator and consumed once.
type RequestContext struct {
	ActorID   string    `json:"actor_id"`
	Endpoint  string    `json:"endpoint"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MitigationKind identifies a structured follow-up instruction attached to
// a policy decision.
type MitigationKind string

const (
	MitigationLog       MitigationKind = "LOG"
	MitigationRateLimit MitigationKind = "RATE_LIMIT"
	MitigationTempBan   MitigationKind = "TEMP_BAN"
	MitigationAlert     MitigationKind = "ALERT"
)

// MitigationAction is one instruction carried by a PolicyDecision.
type MitigationAction struct {
	Kind     MitigationKind `json:"kind"`
	Duration time.Duration  `json:"duration,omitempty"`
	Detail   string         `json:"detail,omitempty"`
}

// PolicyDecision is the result of an inline check. Decisions are computed
// fresh per call and never cached.
type PolicyDecision struct {
	Allow   bool               `json:"allow"`
	Reason  string             `json:"reason,omitempty"`
	Actions []MitigationAction `json:"actions,omitempty"`
}

// Allowed returns a decision that permits the request.
func Allowed() PolicyDecision {
	return PolicyDecision{Allow: true}
}

// Denied returns a decision that blocks the request with the given reason
// and optional mitigation actions.
func Denied(reason string, actions ...MitigationAction) PolicyDecision {
	return PolicyDecision{Allow: false, Reason: reason, Actions: actions}
}

// ValidationError describes a malformed field at the ingestion boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid event: " + e.Field + ": " + e.Message
}
