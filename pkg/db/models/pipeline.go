package models

// PipelineTables lists the tables the acceptance pipeline owns and may heal
// additively when the schema drifts.
func PipelineTables() []any {
	return []any{
		&Order{},
		&OrderNumberSequence{},
		&Payment{},
		&ProposalSession{},
		&Notification{},
		&AuditLog{},
	}
}
