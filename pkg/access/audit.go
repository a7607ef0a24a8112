package access

import (
	"context"
	"log/slog"
)

// AuditEvent is logged for every policy decision, mirroring the original's
// AuditEvent::AccessGranted/AccessDenied variants.
type AuditEvent struct {
	Granted   bool
	Principal string
	Operation string
	Resource  string
	Reason    string
	Metadata  map[string]string
}

// AuditSink records AuditEvents. The default implementation logs through
// pkg/logger's structured logger; a host may substitute a durable sink
// (database, message queue) behind the same interface.
type AuditSink interface {
	Log(ctx context.Context, event AuditEvent)
}

// SlogAuditSink is the default AuditSink, logging through the process's
// configured slog logger at Info (granted) or Warn (denied).
type SlogAuditSink struct {
	logger *slog.Logger
}

func NewSlogAuditSink(logger *slog.Logger) *SlogAuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditSink{logger: logger}
}

func (s *SlogAuditSink) Log(ctx context.Context, event AuditEvent) {
	attrs := []any{
		slog.String("principal", event.Principal),
		slog.String("operation", event.Operation),
		slog.String("resource", event.Resource),
	}
	if event.Granted {
		s.logger.Info("access granted", attrs...)
		return
	}
	attrs = append(attrs, slog.String("reason", event.Reason))
	s.logger.Warn("access denied", attrs...)
}
