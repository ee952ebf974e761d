package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline records acceptance and post-acceptance subscriber activity. A nil
// *Pipeline is valid and records nothing.
type Pipeline struct {
	acceptances        *prometheus.CounterVec
	subscriberFailures *prometheus.CounterVec
	subscriberDuration *prometheus.HistogramVec
	auditFailures      prometheus.Counter
	renderDuration     *prometheus.HistogramVec
	manufacturerEmails *prometheus.CounterVec
	rateLimited        *prometheus.CounterVec
}

// NewPipeline registers the pipeline metrics on the provided registerer.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	if reg == nil {
		return &Pipeline{}
	}
	acceptances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proposal_acceptances_total",
		Help: "Proposal acceptance attempts by result.",
	}, []string{"result"})
	subscriberFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_subscriber_failures_total",
		Help: "Subscriber invocations that returned an error, panicked or timed out.",
	}, []string{"subscriber"})
	subscriberDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "event_subscriber_duration_seconds",
		Help:    "Duration of event subscriber invocations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"subscriber"})
	auditFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Audit log writes that failed and were swallowed.",
	})
	renderDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "document_render_duration_seconds",
		Help:    "Duration of manufacturer document rendering in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"format"})
	manufacturerEmails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manufacturer_emails_total",
		Help: "Manufacturer order email outcomes.",
	}, []string{"outcome"})
	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Requests rejected by a rate limiter.",
	}, []string{"policy"})
	reg.MustRegister(acceptances, subscriberFailures, subscriberDuration, auditFailures, renderDuration, manufacturerEmails, rateLimited)
	return &Pipeline{
		acceptances:        acceptances,
		subscriberFailures: subscriberFailures,
		subscriberDuration: subscriberDuration,
		auditFailures:      auditFailures,
		renderDuration:     renderDuration,
		manufacturerEmails: manufacturerEmails,
		rateLimited:        rateLimited,
	}
}

// IncAcceptance counts an acceptance attempt; result is created, existing or an error code.
func (p *Pipeline) IncAcceptance(result string) {
	if p == nil || p.acceptances == nil {
		return
	}
	p.acceptances.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveSubscriber records a subscriber run and counts it as failed when ok is false.
func (p *Pipeline) ObserveSubscriber(name string, duration time.Duration, ok bool) {
	if p == nil {
		return
	}
	name = normalizeLabel(name)
	if p.subscriberDuration != nil {
		p.subscriberDuration.WithLabelValues(name).Observe(duration.Seconds())
	}
	if !ok && p.subscriberFailures != nil {
		p.subscriberFailures.WithLabelValues(name).Inc()
	}
}

func (p *Pipeline) IncAuditFailure() {
	if p == nil || p.auditFailures == nil {
		return
	}
	p.auditFailures.Inc()
}

func (p *Pipeline) ObserveRender(format string, duration time.Duration) {
	if p == nil || p.renderDuration == nil {
		return
	}
	p.renderDuration.WithLabelValues(normalizeLabel(format)).Observe(duration.Seconds())
}

// IncManufacturerEmail counts an email outcome: sent, skipped, disabled, dry_run or failed.
func (p *Pipeline) IncManufacturerEmail(outcome string) {
	if p == nil || p.manufacturerEmails == nil {
		return
	}
	p.manufacturerEmails.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (p *Pipeline) IncRateLimited(policy string) {
	if p == nil || p.rateLimited == nil {
		return
	}
	p.rateLimited.WithLabelValues(normalizeLabel(policy)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
