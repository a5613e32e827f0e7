// Package eventhandler contains subscribers for domain events.
package eventhandler

import (
	"log/slog"

	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT LOG HANDLER
// Attendance is a record of record: who was marked present, when, and by what
// path (scan or manual override). This handler turns every domain event into
// a structured log line so the trail survives even without a metrics stack.
// ══════════════════════════════════════════════════════════════════════════════

// AuditLogHandler writes every domain event to the structured log.
type AuditLogHandler struct {
	logger *slog.Logger
	config AuditLogConfig
}

// AuditLogConfig contains the handler configuration.
type AuditLogConfig struct {
	// SkipTypes lists event types to drop. Token issuance is high-volume
	// and usually excluded.
	SkipTypes []shared.EventType

	// VerbosePayload controls whether the full event payload is logged.
	// When false only the type and aggregate are recorded.
	VerbosePayload bool
}

// DefaultAuditLogConfig returns the default configuration.
func DefaultAuditLogConfig() AuditLogConfig {
	return AuditLogConfig{
		SkipTypes:      []shared.EventType{shared.EventTokenIssued},
		VerbosePayload: true,
	}
}

// NewAuditLogHandler creates a new AuditLogHandler.
func NewAuditLogHandler(logger *slog.Logger, config AuditLogConfig) *AuditLogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogHandler{
		logger: logger.With("handler", "audit_log"),
		config: config,
	}
}

// Handle implements shared.EventHandler. It never returns an error: a failed
// audit line must not trip the dispatcher's retry machinery.
func (h *AuditLogHandler) Handle(event shared.Event) error {
	for _, skip := range h.config.SkipTypes {
		if event.EventType() == skip {
			return nil
		}
	}

	attrs := []any{
		"event_type", string(event.EventType()),
		"aggregate_id", event.AggregateID(),
		"occurred_at", event.OccurredAt(),
	}
	if h.config.VerbosePayload {
		attrs = append(attrs, "payload", event.Payload())
	}

	h.logger.Info("domain event", attrs...)
	return nil
}
