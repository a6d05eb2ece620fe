package audithook

// Action constants for audit events.
const (
	// Payment actions
	ActionPaymentCreated   = "payment.created"
	ActionPaymentCompleted = "payment.completed"
	ActionPaymentCancelled = "payment.cancelled"
	ActionPaymentRefunded  = "payment.refunded"

	// Treasury actions
	ActionTreasuryDeposited = "treasury.deposited"
	ActionTreasuryWithdrawn = "treasury.withdrawn"
	ActionTreasurySwept     = "treasury.swept"

	// Role actions
	ActionRoleInitialised    = "role.initialised"
	ActionRoleGranted        = "role.granted"
	ActionRoleRevoked        = "role.revoked"
	ActionIntegrationAdded   = "integration.added"
	ActionIntegrationRemoved = "integration.removed"

	// Failure actions
	ActionTransitionFailed = "transition.failed"
)

// Resource constants for audit events.
const (
	ResourcePayment     = "payment"
	ResourceTreasury    = "treasury"
	ResourceRole        = "role"
	ResourceIntegration = "integration"
	ResourceOperation   = "operation"
)

// Category constants for audit events.
const (
	CategoryPayment  = "payment"
	CategoryTreasury = "treasury"
	CategoryAccess   = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
