// Package audit defines the append-only event contract the auth subsystem
// writes to. Sinks are fire-and-forget from the caller's perspective: a sink
// failure must never block or fail the operation being audited.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"bridgelayer.app/internal/obs"
)

// Event statuses. Login-shaped flows move PENDING -> SUCCESS/FAILED; single
// actions log only the terminal status.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Event is one audit record.
type Event struct {
	Action     string            `json:"action"`
	ActorID    string            `json:"actor_id,omitempty"`
	TargetType string            `json:"target_type,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	Status     string            `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty"`
}

// Sink accepts audit events.
type Sink interface {
	Log(ctx context.Context, ev Event)
}

// LogSink writes one JSON line per event through the shared service logger.
// It stands in for the platform's append-only audit table, which is owned by
// the back-office service.
type LogSink struct{}

// NewLogSink returns a sink that emits audit events as structured log lines.
func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Log(ctx context.Context, ev Event) {
	entry := map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"type":   "audit",
		"action": ev.Action,
		"status": ev.Status,
	}
	if ev.ActorID != "" {
		entry["actor_id"] = ev.ActorID
	}
	if ev.TargetType != "" {
		entry["target_type"] = ev.TargetType
	}
	if ev.TargetID != "" {
		entry["target_id"] = ev.TargetID
	}
	if ev.Reason != "" {
		entry["reason"] = ev.Reason
	}
	if ev.IPAddress != "" {
		entry["ip_address"] = ev.IPAddress
	}
	if len(ev.Details) > 0 {
		entry["details"] = ev.Details
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}

	data, err := json.Marshal(entry)
	if err != nil {
		obs.Logger().Printf(`{"level":"error","msg":"audit marshal failed","action":%q}`, ev.Action)
		return
	}
	obs.Logger().Println(string(data))
}

// NopSink discards events. Useful in tests that do not assert on auditing.
type NopSink struct{}

func (NopSink) Log(context.Context, Event) {}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier used to correlate audit
// entries with request logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
