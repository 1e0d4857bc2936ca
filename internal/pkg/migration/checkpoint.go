package migration

// ClientCheckpoint marks per-organization saga progress. Forward checkpoints
// advance monotonically; reversal checkpoints are only written by the manual
// reversal flow and reset the entity for a later re-migration.
type ClientCheckpoint string

const (
	ClientStarted                ClientCheckpoint = "started"
	ClientMigrationRecordCreated ClientCheckpoint = "migration_record_created"
	ClientSubscriptionEnded      ClientCheckpoint = "subscription_ended"
	ClientCompleted              ClientCheckpoint = "completed"

	ClientReversed              ClientCheckpoint = "reversed"
	ClientRecreatedSubscription ClientCheckpoint = "recreated_subscription"
	ClientResetOrganization     ClientCheckpoint = "reset_organization"
)

var clientForwardRank = map[ClientCheckpoint]int{
	ClientStarted:                1,
	ClientMigrationRecordCreated: 2,
	ClientSubscriptionEnded:      3,
	ClientCompleted:              4,
}

// ForwardRank is the position in the forward saga; reversal checkpoints rank 0.
func (c ClientCheckpoint) ForwardRank() int {
	return clientForwardRank[c]
}

// IsReversal reports whether the checkpoint belongs to the reversal flow.
func (c ClientCheckpoint) IsReversal() bool {
	switch c {
	case ClientReversed, ClientRecreatedSubscription, ClientResetOrganization:
		return true
	default:
		return false
	}
}

// ProviderCheckpoint marks provider-level saga progress. NoClients is a
// terminal short-circuit reached when eligibility finds no client to migrate.
type ProviderCheckpoint string

const (
	ProviderStarted                  ProviderCheckpoint = "started"
	ProviderNoClients                ProviderCheckpoint = "no_clients"
	ProviderClientsMigrated          ProviderCheckpoint = "clients_migrated"
	ProviderTeamsPlanConfigured      ProviderCheckpoint = "teams_plan_configured"
	ProviderEnterprisePlanConfigured ProviderCheckpoint = "enterprise_plan_configured"
	ProviderCustomerSetup            ProviderCheckpoint = "customer_setup"
	ProviderSubscriptionSetup        ProviderCheckpoint = "subscription_setup"
	ProviderCreditApplied            ProviderCheckpoint = "credit_applied"
	ProviderCompleted                ProviderCheckpoint = "completed"
)

var providerRank = map[ProviderCheckpoint]int{
	ProviderStarted:                  1,
	ProviderNoClients:                2,
	ProviderClientsMigrated:          3,
	ProviderTeamsPlanConfigured:      4,
	ProviderEnterprisePlanConfigured: 5,
	ProviderCustomerSetup:            6,
	ProviderSubscriptionSetup:        7,
	ProviderCreditApplied:            8,
	ProviderCompleted:                9,
}

// Rank is the position in the provider saga.
func (c ProviderCheckpoint) Rank() int {
	return providerRank[c]
}
