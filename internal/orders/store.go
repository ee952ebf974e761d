package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cabinetworks/contractor-backend/internal/proposals"
	"github.com/cabinetworks/contractor-backend/pkg/config"
	"github.com/cabinetworks/contractor-backend/pkg/db"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"github.com/cabinetworks/contractor-backend/pkg/types"
	"gorm.io/gorm"
)

const (
	proposalUniqueConstraint = "orders_proposal_id_key"
	defaultPrefix            = "ORD"
	defaultDigits            = 4
	dayLayout                = "2006-01-02"
)

const nextSequenceSQL = `INSERT INTO order_number_sequences (day, last_value, updated_at)
VALUES (?, 1, ?)
ON CONFLICT (day) DO UPDATE SET last_value = order_number_sequences.last_value + 1, updated_at = excluded.updated_at
RETURNING last_value`

// CreateInput describes the order to materialize for an accepted proposal.
type CreateInput struct {
	Proposal         models.Proposal
	Snapshot         types.OrderSnapshot
	AcceptedVia      enums.ActorType
	AcceptedByUserID *int64
	Now              time.Time
	// WithinTx runs after the order is inserted and the proposal marked
	// accepted, inside the same transaction. An error rolls both back.
	WithinTx func(tx *gorm.DB, order *models.Order) error
}

// CreateResult reports the order for the proposal and whether this call created it.
type CreateResult struct {
	Order   *models.Order
	Created bool
}

// Store persists orders. At most one order exists per proposal; concurrent
// creators converge on the row that won the unique constraint.
type Store struct {
	db        *gorm.DB
	proposals *proposals.Repository
	healer    *db.SchemaHealer
	logg      *logger.Logger
	prefix    string
	digits    int
	loc       *time.Location
}

// NewStore wires the order store.
func NewStore(conn *gorm.DB, proposalRepo *proposals.Repository, cfg config.OrdersConfig, healer *db.SchemaHealer, logg *logger.Logger) (*Store, error) {
	if conn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database required")
	}
	if proposalRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "proposal repository required")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSpace(cfg.NumberPrefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	digits := cfg.SequenceDigits
	if digits <= 0 {
		digits = defaultDigits
	}
	return &Store{
		db:        conn,
		proposals: proposalRepo,
		healer:    healer,
		logg:      logg,
		prefix:    prefix,
		digits:    digits,
		loc:       loc,
	}, nil
}

// FormatNumber renders PREFIX-SEQ-MMDDYY with SEQ zero-padded to digits.
func FormatNumber(prefix string, digits int, seq int64, day time.Time) string {
	return fmt.Sprintf("%s-%0*d-%s", prefix, digits, seq, day.Format("010206"))
}

// Create inserts the order, assigns its number, marks the proposal accepted
// and runs in.WithinTx in one transaction. If an order already exists for
// the proposal it is returned with Created=false.
func (s *Store) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	local := now.In(s.loc)

	var result CreateResult
	err := s.healer.Run(ctx, func() error {
		result = CreateResult{}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			existing, err := findByProposal(tx, in.Proposal.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				result.Order = existing
				return nil
			}

			seq, err := nextSequence(tx, local.Format(dayLayout), now.UTC())
			if err != nil {
				return fmt.Errorf("next order sequence: %w", err)
			}

			order := buildOrder(in, FormatNumber(s.prefix, s.digits, seq, local), now.UTC())
			if err := tx.Create(order).Error; err != nil {
				return err
			}

			ok, err := s.proposals.WithTx(tx).MarkAccepted(ctx, in.Proposal.ID, now.UTC(), in.AcceptedVia, in.AcceptedByUserID)
			if err != nil {
				return fmt.Errorf("mark proposal accepted: %w", err)
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "proposal can no longer be accepted")
			}
			if in.WithinTx != nil {
				if err := in.WithinTx(tx, order); err != nil {
					return err
				}
			}

			result.Order = order
			result.Created = true
			return nil
		})
	})
	if err == nil {
		return &result, nil
	}

	if db.IsUniqueViolation(err, proposalUniqueConstraint) {
		winner, findErr := s.FindByProposal(ctx, in.Proposal.ID)
		if findErr == nil && winner != nil {
			if s.logg != nil {
				s.logg.Info(s.logg.WithProposalID(ctx, in.Proposal.ID), "orders.create.race_resolved")
			}
			return &CreateResult{Order: winner}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order number collision")
	}
	if pkgerrors.As(err) != nil {
		return nil, err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
}

// FindByProposal returns the order for the proposal, or nil when none exists.
func (s *Store) FindByProposal(ctx context.Context, proposalID int64) (*models.Order, error) {
	var order *models.Order
	err := s.healer.Run(ctx, func() error {
		found, err := findByProposal(s.db.WithContext(ctx), proposalID)
		order = found
		return err
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// FindByID loads an order or returns CodeNotFound.
func (s *Store) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

func findByProposal(tx *gorm.DB, proposalID int64) (*models.Order, error) {
	var order models.Order
	err := tx.Where("proposal_id = ?", proposalID).Limit(1).Find(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func nextSequence(tx *gorm.DB, day string, now time.Time) (int64, error) {
	var seq int64
	if err := tx.Raw(nextSequenceSQL, day, now).Scan(&seq).Error; err != nil {
		return 0, err
	}
	if seq <= 0 {
		return 0, fmt.Errorf("sequence for %s returned %d", day, seq)
	}
	return seq, nil
}

func buildOrder(in CreateInput, number string, now time.Time) *models.Order {
	totals := in.Snapshot.Totals
	return &models.Order{
		ProposalID:       in.Proposal.ID,
		OrderNumber:      number,
		OwnerGroupID:     in.Proposal.OwnerGroupID,
		CustomerID:       in.Proposal.CustomerID,
		ManufacturerID:   in.Proposal.ManufacturerID,
		Status:           enums.OrderStatusNew,
		PartsCents:       totals.PartsCents,
		AssemblyCents:    totals.AssemblyCents,
		ModsCents:        totals.ModsCents,
		SubtotalCents:    totals.SubtotalCents,
		DiscountCents:    totals.DiscountCents,
		TaxCents:         totals.TaxCents,
		DeliveryCents:    totals.DeliveryCents,
		GrandTotalCents:  totals.GrandTotalCents,
		Currency:         in.Snapshot.Currency,
		AcceptedVia:      in.AcceptedVia,
		AcceptedByUserID: in.AcceptedByUserID,
		Snapshot:         in.Snapshot,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
