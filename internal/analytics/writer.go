// Package analytics streams accepted orders into BigQuery for reporting.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/cabinetworks/contractor-backend/internal/events"
	pkgbigquery "github.com/cabinetworks/contractor-backend/pkg/bigquery"
	"github.com/cabinetworks/contractor-backend/pkg/dedupe"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	SubscriberName = "analytics"

	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// RetryPolicy controls how many times a streaming insert is retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = defaultMaxAttempts
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = defaultInitialBackoff
	}
	if r.MaximumBackoff <= 0 {
		r.MaximumBackoff = defaultMaximumBackoff
	}
	if r.MaximumBackoff < r.InitialBackoff {
		r.MaximumBackoff = r.InitialBackoff
	}
	return r
}

// AcceptedOrderRow is one row of the accepted orders table.
type AcceptedOrderRow struct {
	OrderID         int64              `bigquery:"order_id"`
	OrderNumber     string             `bigquery:"order_number"`
	ProposalID      int64              `bigquery:"proposal_id"`
	GroupID         int64              `bigquery:"group_id"`
	CustomerID      int64              `bigquery:"customer_id"`
	ManufacturerID  int64              `bigquery:"manufacturer_id"`
	GrandTotalCents int64              `bigquery:"grand_total_cents"`
	Currency        string             `bigquery:"currency"`
	AcceptedVia     string             `bigquery:"accepted_via"`
	Divergent       bool               `bigquery:"divergent"`
	AcceptedAt      time.Time          `bigquery:"accepted_at"`
	Payload         cbigquery.NullJSON `bigquery:"payload"`
}

// Save implements bigquery.ValueSaver. The insert id lets BigQuery drop a
// duplicate streaming insert of the same order.
func (r *AcceptedOrderRow) Save() (map[string]cbigquery.Value, string, error) {
	return map[string]cbigquery.Value{
		"order_id":          r.OrderID,
		"order_number":      r.OrderNumber,
		"proposal_id":       r.ProposalID,
		"group_id":          r.GroupID,
		"customer_id":       r.CustomerID,
		"manufacturer_id":   r.ManufacturerID,
		"grand_total_cents": r.GrandTotalCents,
		"currency":          r.Currency,
		"accepted_via":      r.AcceptedVia,
		"divergent":         r.Divergent,
		"accepted_at":       r.AcceptedAt,
		"payload":           r.Payload,
	}, InsertID(r.OrderID), nil
}

// InsertID is the BigQuery best-effort dedupe id for an order row.
func InsertID(orderID int64) string {
	return "order-" + strconv.FormatInt(orderID, 10)
}

// Writer streams one row per accepted order.
type Writer struct {
	inserter pkgbigquery.Inserter
	deduper  dedupe.Deduper
	retry    RetryPolicy
	logg     *logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewWriter wires the writer. A nil deduper keeps claims in memory.
func NewWriter(inserter pkgbigquery.Inserter, deduper dedupe.Deduper, retry RetryPolicy, logg *logger.Logger) (*Writer, error) {
	if inserter == nil {
		return nil, errors.New("bigquery inserter required")
	}
	if deduper == nil {
		deduper = dedupe.NewMemory(0, nil)
	}
	return &Writer{
		inserter: inserter,
		deduper:  deduper,
		retry:    retry.withDefaults(),
		logg:     logg,
		sleep:    sleepCtx,
	}, nil
}

func (w *Writer) Subscriber() events.Subscriber {
	return events.OnProposalAccepted(SubscriberName, w.Write)
}

// Write inserts the row for ev once. A failed insert releases the claim so a
// later replay can retry it.
func (w *Writer) Write(ctx context.Context, ev events.ProposalAccepted) error {
	key := "analytics:" + InsertID(ev.OrderID)
	claimed, err := w.deduper.Claim(ctx, key)
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		return nil
	}

	row, err := BuildRow(ev)
	if err != nil {
		_ = w.deduper.Release(ctx, key)
		return err
	}
	if err := w.insertWithRetry(ctx, []*AcceptedOrderRow{row}); err != nil {
		_ = w.deduper.Release(ctx, key)
		return err
	}
	if w.logg != nil {
		w.logg.Info(w.logg.WithOrder(ctx, ev.OrderID, ev.OrderNumber), "analytics.order.streamed")
	}
	return nil
}

// BuildRow maps the event onto a table row; the payload column keeps the full
// event for ad-hoc queries.
func BuildRow(ev events.ProposalAccepted) (*AcceptedOrderRow, error) {
	payload, err := EncodeJSON(ev)
	if err != nil {
		return nil, err
	}
	return &AcceptedOrderRow{
		OrderID:         ev.OrderID,
		OrderNumber:     ev.OrderNumber,
		ProposalID:      ev.ProposalID,
		GroupID:         ev.GroupID,
		CustomerID:      ev.CustomerID,
		ManufacturerID:  ev.ManufacturerID,
		GrandTotalCents: ev.GrandTotalCents,
		Currency:        ev.Currency,
		AcceptedVia:     string(ev.Actor.Type),
		Divergent:       ev.Divergent,
		AcceptedAt:      ev.AcceptedAt.UTC(),
		Payload:         payload,
	}, nil
}

func (w *Writer) insertWithRetry(ctx context.Context, rows []*AcceptedOrderRow) error {
	backoff := w.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.inserter.Put(ctx, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !isRetryable(err) {
			return fmt.Errorf("insert accepted order rows: %w", err)
		}
		if err := w.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = min(backoff*2, w.retry.MaximumBackoff)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pme cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if len(pme) == 0 {
			return false
		}
		for _, rowErr := range pme {
			if !isRetryable(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, inner := range multi {
			if !isRetryable(inner) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return isRetryableHTTPCode(apiErr.Code)
	}

	if st, ok := status.FromError(err); ok {
		return isRetryableGRPCCode(st.Code())
	}
	return false
}

func isRetryableHTTPCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func isRetryableGRPCCode(code codes.Code) bool {
	switch code {
	case codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable:
		return true
	default:
		return false
	}
}

// EncodeJSON serializes payload for a BigQuery JSON column.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	if payload == nil {
		return cbigquery.NullJSON{}, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		if len(raw) == 0 {
			return cbigquery.NullJSON{}, nil
		}
		return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
	}
	marshaled, err := json.Marshal(payload)
	if err != nil {
		return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(marshaled)}, nil
}
