package enums

import "fmt"

// ProposalStatus tracks where a proposal sits in the sales lifecycle.
// Transitions only move forward: draft -> sent -> accepted.
type ProposalStatus string

const (
	ProposalStatusDraft    ProposalStatus = "draft"
	ProposalStatusSent     ProposalStatus = "sent"
	ProposalStatusAccepted ProposalStatus = "accepted"
	ProposalStatusRejected ProposalStatus = "rejected"
	ProposalStatusExpired  ProposalStatus = "expired"
)

var validProposalStatuses = []ProposalStatus{
	ProposalStatusDraft,
	ProposalStatusSent,
	ProposalStatusAccepted,
	ProposalStatusRejected,
	ProposalStatusExpired,
}

// String implements fmt.Stringer.
func (p ProposalStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProposalStatus.
func (p ProposalStatus) IsValid() bool {
	for _, candidate := range validProposalStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// Acceptable reports whether a proposal in this status may be turned into an order.
// Accepted is included so a proposal whose order row went missing can be re-materialized.
func (p ProposalStatus) Acceptable() bool {
	switch p {
	case ProposalStatusDraft, ProposalStatusSent, ProposalStatusAccepted:
		return true
	}
	return false
}

// AcceptableStatuses lists the statuses Acceptable returns true for.
func AcceptableStatuses() []ProposalStatus {
	return []ProposalStatus{ProposalStatusDraft, ProposalStatusSent, ProposalStatusAccepted}
}

// ParseProposalStatus converts raw input into a ProposalStatus.
func ParseProposalStatus(value string) (ProposalStatus, error) {
	for _, candidate := range validProposalStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid proposal status %q", value)
}
