// Package audit keeps the append-only trail of pipeline state changes.
// Recording never fails the caller: errors are logged and counted.
package audit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cabinetworks/contractor-backend/internal/events"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"github.com/cabinetworks/contractor-backend/pkg/metrics"
	"gorm.io/gorm"
)

const (
	ActionProposalAccepted = "proposal.accepted"
	ActionProposalSent     = "proposal.sent"

	TargetProposal = "proposal"
)

var errNoDatabase = errors.New("audit database not configured")

// Entry is one audit record before sanitization.
type Entry struct {
	Actor      events.Actor
	Action     string
	TargetType string
	TargetID   string
	Diff       any
}

// Recorder writes audit entries.
type Recorder struct {
	db      *gorm.DB
	metrics *metrics.Pipeline
	logg    *logger.Logger
	now     func() time.Time
}

// NewRecorder binds the recorder to db.
func NewRecorder(db *gorm.DB, m *metrics.Pipeline, logg *logger.Logger) *Recorder {
	return &Recorder{db: db, metrics: m, logg: logg, now: time.Now}
}

// Record persists entry. It reports whether the write succeeded.
func (r *Recorder) Record(ctx context.Context, entry Entry) bool {
	diff, err := Sanitize(entry.Diff)
	if err != nil {
		r.fail(ctx, entry, err)
		return false
	}
	actorType := entry.Actor.Type
	if !actorType.IsValid() {
		actorType = enums.ActorTypeSystem
	}
	row := models.AuditLog{
		ActorType:   actorType,
		ActorUserID: entry.Actor.UserID,
		ActorRef:    entry.Actor.Ref,
		Action:      entry.Action,
		TargetType:  entry.TargetType,
		TargetID:    entry.TargetID,
		Diff:        diff,
		IP:          entry.Actor.IP,
		CreatedAt:   r.now().UTC(),
	}
	if r.db == nil {
		r.fail(ctx, entry, errNoDatabase)
		return false
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.fail(ctx, entry, err)
		return false
	}
	return true
}

// Subscribers returns the audit handlers for every pipeline event.
func (r *Recorder) Subscribers() []events.Subscriber {
	return []events.Subscriber{
		events.OnProposalAccepted("audit-accepted", func(ctx context.Context, ev events.ProposalAccepted) error {
			r.Record(ctx, Entry{
				Actor:      ev.Actor,
				Action:     ActionProposalAccepted,
				TargetType: TargetProposal,
				TargetID:   strconv.FormatInt(ev.ProposalID, 10),
				Diff: map[string]any{
					"status":            map[string]any{"after": enums.ProposalStatusAccepted},
					"order_id":          ev.OrderID,
					"order_number":      ev.OrderNumber,
					"payment_id":        ev.PaymentID,
					"grand_total_cents": ev.GrandTotalCents,
					"currency":          ev.Currency,
					"divergent":         ev.Divergent,
				},
			})
			return nil
		}),
		events.OnProposalSent("audit-sent", func(ctx context.Context, ev events.ProposalSent) error {
			r.Record(ctx, Entry{
				Actor:      ev.Actor,
				Action:     ActionProposalSent,
				TargetType: TargetProposal,
				TargetID:   strconv.FormatInt(ev.ProposalID, 10),
				Diff: map[string]any{
					"status":     map[string]any{"before": ev.From, "after": ev.To},
					"session_id": ev.SessionID.String(),
					"sent_at":    ev.SentAt,
				},
			})
			return nil
		}),
	}
}

func (r *Recorder) fail(ctx context.Context, entry Entry, err error) {
	r.metrics.IncAuditFailure()
	if r.logg == nil {
		return
	}
	r.logg.Error(r.logg.WithFields(ctx, map[string]any{
		"action":    entry.Action,
		"target_id": entry.TargetID,
	}), "audit.write.failed", err)
}
