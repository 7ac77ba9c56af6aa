package logging

import (
	"time"

	"go.uber.org/zap"
)

// AuditEventType names a structured audit event.
type AuditEventType string

const (
	// Model calls
	AuditModelRequest  AuditEventType = "model_request"
	AuditModelResponse AuditEventType = "model_response"
	AuditModelError    AuditEventType = "model_error"

	// Tool dispatch
	AuditToolInvoke   AuditEventType = "tool_invoke"
	AuditToolComplete AuditEventType = "tool_complete"
	AuditToolError    AuditEventType = "tool_error"

	// Retrieval
	AuditRetrievalHit      AuditEventType = "retrieval_cache_hit"
	AuditRetrievalFallback AuditEventType = "retrieval_fallback"

	// Exchanges
	AuditTurnEnd  AuditEventType = "turn_end"
	AuditGraded   AuditEventType = "graded"
	AuditTurnsCap AuditEventType = "turn_cap_reached"
)

// AuditLogger emits audit events scoped to one session.
type AuditLogger struct {
	sessionID string
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithSession creates an audit logger scoped to a session
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// Event writes one audit record. Audit records bypass category filtering
// but respect the global level.
func (a *AuditLogger) Event(event AuditEventType, target string, success bool, dur time.Duration, err error, fields ...zap.Field) {
	base := Base()
	all := make([]zap.Field, 0, len(fields)+6)
	all = append(all,
		zap.String("cat", "audit"),
		zap.String("event", string(event)),
		zap.String("target", target),
		zap.Bool("success", success),
		zap.Int64("dur_ms", dur.Milliseconds()),
	)
	if a.sessionID != "" {
		all = append(all, zap.String("session", a.sessionID))
	}
	if err != nil {
		all = append(all, zap.Error(err))
	}
	all = append(all, fields...)
	base.Info("audit", all...)
}

// ToolInvoke records the start of a tool dispatch.
func (a *AuditLogger) ToolInvoke(name, callID string) {
	a.Event(AuditToolInvoke, name, true, 0, nil, zap.String("call_id", callID))
}

// ToolComplete records the end of a tool dispatch.
func (a *AuditLogger) ToolComplete(name, callID string, dur time.Duration, err error) {
	if err != nil {
		a.Event(AuditToolError, name, false, dur, err, zap.String("call_id", callID))
		return
	}
	a.Event(AuditToolComplete, name, true, dur, nil, zap.String("call_id", callID))
}

// ModelCall records one model round trip.
func (a *AuditLogger) ModelCall(model string, turn int, toolCalls int, dur time.Duration, err error) {
	if err != nil {
		a.Event(AuditModelError, model, false, dur, err, zap.Int("turn", turn))
		return
	}
	a.Event(AuditModelResponse, model, true, dur, nil, zap.Int("turn", turn), zap.Int("tool_calls", toolCalls))
}
