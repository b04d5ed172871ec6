package constants

// HTTP surface constants shared between handlers and middleware
const (
	HeaderAuthorization = "Authorization"

	ContextKeyUser = "user"

	ResponseError = "error"
	FieldMessage  = "message"
)

// DecisionPublishBatchSize is the number of applications whose step states
// are recomputed concurrently after a bulk decision publish. Each batch runs
// its applications in parallel; batches run sequentially, which caps peak
// concurrent DB work.
const DecisionPublishBatchSize = 25

// DefaultUnlockSweepCron is the cadence of the date-based unlock sweep when
// UNLOCK_SWEEP_CRON is not set (standard 5-field cron, every minute).
const DefaultUnlockSweepCron = "* * * * *"
