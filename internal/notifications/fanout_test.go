package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/cabinetworks/contractor-backend/internal/events"
	"github.com/cabinetworks/contractor-backend/internal/proposals"
	"github.com/cabinetworks/contractor-backend/internal/users"
	"github.com/cabinetworks/contractor-backend/pkg/db/dbtest"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/dedupe"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	"github.com/cabinetworks/contractor-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func acceptedFor(s *dbtest.Scenario) events.ProposalAccepted {
	return events.ProposalAccepted{
		ProposalID:      s.Proposal.ID,
		OrderID:         1,
		OrderNumber:     "ORD-0001-101526",
		GroupID:         s.Group.ID,
		GrandTotalCents: dbtest.ExpectedGrandTotal,
		Currency:        "USD",
	}
}

func newFanout(t *testing.T, conn *gorm.DB, repo Repository) *Fanout {
	t.Helper()
	if repo == nil {
		repo = NewRepository(conn)
	}
	f, err := NewFanout(repo, users.NewRepository(conn), proposals.NewRepository(conn), dedupe.NewMemory(0, nil), nil)
	require.NoError(t, err)
	return f
}

func TestNotifyWritesOneRecordPerRecipient(t *testing.T) {
	conn := dbtest.Open(t)
	s := dbtest.Seed(t, conn)
	f := newFanout(t, conn, nil)

	written, err := f.Notify(context.Background(), acceptedFor(s))
	require.NoError(t, err)
	assert.Equal(t, 4, written)

	var rows []models.Notification
	require.NoError(t, conn.Order("recipient_user_id").Find(&rows).Error)
	require.Len(t, rows, 4)

	priorities := map[int64]enums.NotificationPriority{}
	for _, row := range rows {
		assert.NotEqual(t, uuid.Nil, row.ID)
		assert.Equal(t, enums.NotificationTypeProposalAccepted, row.Type)
		assert.Equal(t, "ORD-0001-101526", row.Payload["order_number"])
		priorities[row.RecipientUserID] = row.Priority
	}
	assert.Equal(t, enums.NotificationPriorityHigh, priorities[s.Admins[0].ID])
	assert.Equal(t, enums.NotificationPriorityHigh, priorities[s.Admins[1].ID], "admin in the group keeps admin priority")
	assert.Equal(t, enums.NotificationPriorityMedium, priorities[s.Members[0].ID])
	assert.Equal(t, enums.NotificationPriorityMedium, priorities[s.Members[1].ID])
	assert.NotContains(t, priorities, s.InactiveMember.ID)
	assert.NotContains(t, priorities, s.Outsider.ID)
}

func TestNotifySuppressesSecondFanout(t *testing.T) {
	conn := dbtest.Open(t)
	s := dbtest.Seed(t, conn)
	f := newFanout(t, conn, nil)
	ctx := context.Background()

	_, err := f.Notify(ctx, acceptedFor(s))
	require.NoError(t, err)
	written, err := f.Notify(ctx, acceptedFor(s))
	require.NoError(t, err)
	assert.Zero(t, written)

	var count int64
	require.NoError(t, conn.Model(&models.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(4), count)
}

func TestNotifySkipsMembersWhenGroupOptsOut(t *testing.T) {
	conn := dbtest.Open(t)
	s := dbtest.Seed(t, conn)
	features := types.DefaultGroupFeatures()
	features.OrderNotifications = false
	require.NoError(t, conn.Model(&models.Group{}).Where("id = ?", s.Group.ID).Update("features", features).Error)
	f := newFanout(t, conn, nil)

	written, err := f.Notify(context.Background(), acceptedFor(s))
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	listed, err := NewRepository(conn).ListForRecipient(context.Background(), s.Members[0].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

type flakyRepo struct {
	Repository
	fail  bool
	calls int
}

func (r *flakyRepo) CreateBatch(ctx context.Context, rows []models.Notification) error {
	r.calls++
	if r.fail {
		return errors.New("connection reset")
	}
	return r.Repository.CreateBatch(ctx, rows)
}

func TestNotifyReleasesClaimWhenWriteFails(t *testing.T) {
	conn := dbtest.Open(t)
	s := dbtest.Seed(t, conn)
	repo := &flakyRepo{Repository: NewRepository(conn), fail: true}
	f := newFanout(t, conn, repo)
	ctx := context.Background()

	_, err := f.Notify(ctx, acceptedFor(s))
	require.Error(t, err)

	repo.fail = false
	written, err := f.Notify(ctx, acceptedFor(s))
	require.NoError(t, err)
	assert.Equal(t, 4, written)
	assert.Equal(t, 2, repo.calls)
}

func TestSubscriberIsBoundToProposalAccepted(t *testing.T) {
	conn := dbtest.Open(t)
	s := dbtest.Seed(t, conn)
	f := newFanout(t, conn, nil)

	bus := events.NewBus(0, nil, nil)
	bus.Subscribe(f.Subscriber())
	require.NoError(t, bus.Publish(context.Background(), events.ProposalSent{ProposalID: s.Proposal.ID}))
	require.NoError(t, bus.Publish(context.Background(), acceptedFor(s)))

	var count int64
	require.NoError(t, conn.Model(&models.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(4), count)
}

func TestDedupeKey(t *testing.T) {
	assert.Equal(t, "proposal:42", DedupeKey(42))
}
