package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cabinetworks/contractor-backend/pkg/db"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"gorm.io/gorm"
)

const paymentOrderUniqueConstraint = "payments_order_id_key"

// Deriver guarantees exactly one receivable per committed order.
type Deriver struct {
	repo            Repository
	healer          *db.SchemaHealer
	logg            *logger.Logger
	defaultCurrency string
	now             func() time.Time
}

// NewDeriver wires a payment deriver. defaultCurrency backs orders that carry none.
func NewDeriver(repo Repository, healer *db.SchemaHealer, defaultCurrency string, logg *logger.Logger) (*Deriver, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	currency := strings.ToUpper(strings.TrimSpace(defaultCurrency))
	if currency == "" {
		currency = "USD"
	}
	return &Deriver{
		repo:            repo,
		healer:          healer,
		logg:            logg,
		defaultCurrency: currency,
		now:             time.Now,
	}, nil
}

// Ensure returns the payment for the order, inserting a pending one for the
// order grand total when none exists. created reports whether this call inserted it.
func (d *Deriver) Ensure(ctx context.Context, order *models.Order) (payment *models.Payment, created bool, err error) {
	if order == nil || order.ID == 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}

	err = d.healer.Run(ctx, func() error {
		var runErr error
		payment, created, runErr = d.ensure(ctx, d.repo, order)
		return runErr
	})
	if err == nil {
		return payment, created, nil
	}

	if db.IsUniqueViolation(err, paymentOrderUniqueConstraint) {
		existing, findErr := d.repo.FindByOrderID(ctx, order.ID)
		if findErr == nil && existing != nil {
			return existing, false, nil
		}
	}
	if pkgerrors.As(err) != nil {
		return nil, false, err
	}
	if d.logg != nil {
		d.logg.Error(d.logg.WithField(ctx, "order_id", order.ID), "payments.ensure.failed", err)
	}
	return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "derive payment")
}

// EnsureTx derives the payment inside tx, so it commits or rolls back together
// with the order that tx inserted. Errors are returned unwrapped for the
// caller's transaction and schema healing to classify.
func (d *Deriver) EnsureTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Payment, bool, error) {
	if order == nil || order.ID == 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	payment, created, err := d.ensure(ctx, d.repo.WithTx(tx), order)
	if err != nil {
		return nil, false, fmt.Errorf("derive payment: %w", err)
	}
	return payment, created, nil
}

func (d *Deriver) ensure(ctx context.Context, repo Repository, order *models.Order) (*models.Payment, bool, error) {
	existing, err := repo.FindByOrderID(ctx, order.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	currency := strings.TrimSpace(order.Currency)
	if currency == "" {
		currency = d.defaultCurrency
	}
	now := d.now().UTC()
	payment := &models.Payment{
		OrderID:     order.ID,
		AmountCents: order.GrandTotalCents,
		Currency:    currency,
		Status:      enums.PaymentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Create(ctx, payment); err != nil {
		return nil, false, err
	}
	return payment, true, nil
}
