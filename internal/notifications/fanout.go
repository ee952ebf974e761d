package notifications

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cabinetworks/contractor-backend/internal/events"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/dedupe"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
)

const SubscriberName = "notifications"

type userLister interface {
	ListActiveAdmins(ctx context.Context) ([]models.User, error)
	ListActiveGroupMembers(ctx context.Context, groupID int64) ([]models.User, error)
}

type groupFinder interface {
	FindGroup(ctx context.Context, id int64) (*models.Group, error)
}

// Recipient is a resolved notification target.
type Recipient struct {
	UserID   int64
	Priority enums.NotificationPriority
}

// Fanout writes one in-app notification per recipient of an accepted proposal.
type Fanout struct {
	repo    Repository
	users   userLister
	groups  groupFinder
	deduper dedupe.Deduper
	logg    *logger.Logger
	now     func() time.Time
}

// NewFanout wires the notification fan-out.
func NewFanout(repo Repository, users userLister, groups groupFinder, deduper dedupe.Deduper, logg *logger.Logger) (*Fanout, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if groups == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "group lookup required")
	}
	if deduper == nil {
		deduper = dedupe.NewMemory(0, nil)
	}
	return &Fanout{repo: repo, users: users, groups: groups, deduper: deduper, logg: logg, now: time.Now}, nil
}

// Subscriber binds the fan-out to ProposalAccepted.
func (f *Fanout) Subscriber() events.Subscriber {
	return events.OnProposalAccepted(SubscriberName, func(ctx context.Context, ev events.ProposalAccepted) error {
		_, err := f.Notify(ctx, ev)
		return err
	})
}

// DedupeKey is the claim taken for a proposal's fan-out.
func DedupeKey(proposalID int64) string {
	return "proposal:" + strconv.FormatInt(proposalID, 10)
}

// Notify resolves recipients and writes their notifications. A repeated call
// for the same proposal is suppressed and returns 0.
func (f *Fanout) Notify(ctx context.Context, ev events.ProposalAccepted) (int, error) {
	ctx = f.withProposal(ctx, ev.ProposalID)
	key := DedupeKey(ev.ProposalID)
	claimed, err := f.deduper.Claim(ctx, key)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim notification dedupe key")
	}
	if !claimed {
		if f.logg != nil {
			f.logg.Info(ctx, "notifications.fanout.duplicate_suppressed")
		}
		return 0, nil
	}

	written, err := f.write(ctx, ev)
	if err != nil {
		if releaseErr := f.deduper.Release(ctx, key); releaseErr != nil && f.logg != nil {
			f.logg.Error(ctx, "notifications.fanout.release_failed", releaseErr)
		}
		return 0, err
	}
	if f.logg != nil {
		f.logg.Info(f.logg.WithField(ctx, "recipients", written), "notifications.fanout.written")
	}
	return written, nil
}

// Recipients returns active admins with high priority followed by active
// members of the owning group, without duplicates. Group members are omitted
// when the group has order notifications turned off.
func (f *Fanout) Recipients(ctx context.Context, groupID int64) ([]Recipient, error) {
	admins, err := f.users.ListActiveAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	seen := make(map[int64]struct{}, len(admins))
	out := make([]Recipient, 0, len(admins))
	for _, admin := range admins {
		if _, ok := seen[admin.ID]; ok {
			continue
		}
		seen[admin.ID] = struct{}{}
		out = append(out, Recipient{UserID: admin.ID, Priority: enums.NotificationPriorityHigh})
	}

	group, err := f.groups.FindGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group %d: %w", groupID, err)
	}
	if !group.Features.OrderNotifications {
		return out, nil
	}

	members, err := f.users.ListActiveGroupMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	for _, member := range members {
		if _, ok := seen[member.ID]; ok {
			continue
		}
		seen[member.ID] = struct{}{}
		out = append(out, Recipient{UserID: member.ID, Priority: enums.NotificationPriorityMedium})
	}
	return out, nil
}

func (f *Fanout) write(ctx context.Context, ev events.ProposalAccepted) (int, error) {
	recipients, err := f.Recipients(ctx, ev.GroupID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve notification recipients")
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	now := f.now().UTC()
	payload := map[string]any{
		"proposal_id":       ev.ProposalID,
		"order_id":          ev.OrderID,
		"order_number":      ev.OrderNumber,
		"group_id":          ev.GroupID,
		"grand_total_cents": ev.GrandTotalCents,
		"currency":          ev.Currency,
	}
	rows := make([]models.Notification, 0, len(recipients))
	for _, r := range recipients {
		rows = append(rows, models.Notification{
			RecipientUserID: r.UserID,
			Type:            enums.NotificationTypeProposalAccepted,
			Priority:        r.Priority,
			Title:           "Proposal accepted",
			Message:         fmt.Sprintf("Proposal #%d was accepted as order %s.", ev.ProposalID, ev.OrderNumber),
			Payload:         payload,
			CreatedAt:       now,
		})
	}
	if err := f.repo.CreateBatch(ctx, rows); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write notifications")
	}
	return len(rows), nil
}

func (f *Fanout) withProposal(ctx context.Context, proposalID int64) context.Context {
	if f.logg == nil {
		return ctx
	}
	return f.logg.WithProposalID(ctx, proposalID)
}
