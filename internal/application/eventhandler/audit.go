// Package eventhandler contains subscribers for gamification events.
package eventhandler

import (
	"sort"

	"github.com/puzpuzpuz/xsync"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// AUDIT HANDLER
// Writes every gamification event to the structured log and keeps per-type
// counts for the worker's shutdown summary.
// ═══════════════════════════════════════════════════════════════════════════

// AuditHandler logs events.
type AuditHandler struct {
	log    *logger.Logger
	counts *xsync.MapOf[string, *xsync.Counter]
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(log *logger.Logger) *AuditHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditHandler{
		log:    log.With(logger.Component("audit")),
		counts: xsync.NewMapOf[*xsync.Counter](),
	}
}

// Register subscribes the handler to every event on bus.
func (h *AuditHandler) Register(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(h.Handle)
}

// Handle is a shared.EventHandler.
func (h *AuditHandler) Handle(event shared.Event) error {
	typ := string(event.EventType())
	c, _ := h.counts.LoadOrStore(typ, new(xsync.Counter))
	c.Inc()

	fields := []logger.Field{
		logger.String("event_type", typ),
		logger.String("aggregate_id", event.AggregateID()),
		logger.Time("occurred_at", event.OccurredAt()),
	}
	payload := event.Payload()
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, logger.Any(k, payload[k]))
	}

	switch event.EventType() {
	case shared.EventStreakBroken, shared.EventMaintenanceCompleted:
		h.log.Info("gamification event", fields...)
	default:
		h.log.Debug("gamification event", fields...)
	}
	return nil
}

// Counts returns how many events of each type were seen.
func (h *AuditHandler) Counts() map[string]int64 {
	out := make(map[string]int64)
	h.counts.Range(func(k string, c *xsync.Counter) bool {
		out[k] = c.Value()
		return true
	})
	return out
}
