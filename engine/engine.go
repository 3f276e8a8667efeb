// Package engine implements the cadence activity scheduling and execution
// core: deciding which step is due next for every enrolled lead, executing a
// step exactly once, advancing or completing the enrollment, and deferring a
// due step. Storage access goes through GORM; message delivery, queue caching
// and client notification are consumed as capabilities so the engine stays
// testable without live providers.
package engine

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EmailMessage is the payload handed to the email send capability.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
}

// WhatsAppMessage is the payload handed to the WhatsApp send capability.
type WhatsAppMessage struct {
	To   string
	Body string
}

// EmailSender delivers an email on behalf of an organization. The returned
// string is the provider message id; correlationID ties the delivery back to
// the interaction row for threading and reply correlation.
type EmailSender interface {
	Send(ctx context.Context, orgID uint, msg EmailMessage, correlationID string) (string, error)
}

// WhatsAppSender delivers a WhatsApp message on behalf of an organization.
type WhatsAppSender interface {
	Send(ctx context.Context, orgID uint, msg WhatsAppMessage) (string, error)
}

// QueueCache invalidates any cached pending-activity view for an
// organization. Purely a cache-coherency signal; failures are not surfaced.
type QueueCache interface {
	Invalidate(ctx context.Context, orgID uint)
}

// Notifier pushes a queue-refresh hint to connected clients.
type Notifier interface {
	QueueUpdated(orgID uint)
}

// Engine wires the scheduling core to its collaborators.
type Engine struct {
	db       *gorm.DB
	clock    Clock
	email    EmailSender
	whatsapp WhatsAppSender
	cache    QueueCache
	notifier Notifier
	logger   *logrus.Entry
}

// NewEngine constructs an Engine. cache and notifier may be nil when the
// caller has no cache layer or websocket hub (workers, tests).
func NewEngine(db *gorm.DB, clock Clock, email EmailSender, whatsapp WhatsAppSender, cache QueueCache, notifier Notifier, logger *logrus.Entry) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		db:       db,
		clock:    clock,
		email:    email,
		whatsapp: whatsapp,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
	}
}

// signalQueueChanged tells the presentation layer that the activity queue for
// an organization is stale.
func (e *Engine) signalQueueChanged(ctx context.Context, orgID uint) {
	if e.cache != nil {
		e.cache.Invalidate(ctx, orgID)
	}
	if e.notifier != nil {
		e.notifier.QueueUpdated(orgID)
	}
}
