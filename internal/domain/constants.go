package domain

// Campaign roles
const (
	RoleTesting = "testing"
	RoleScaling = "scaling"
)

// Campaign / ad-set statuses
const (
	StatusActive = "active"
	StatusPaused = "paused"
)

// Creative types
const (
	CreativeImage = "image"
	CreativeVideo = "video"
)

// Creative statuses
const (
	CreativeReady    = "ready"
	CreativeArchived = "archived"
)

// Run types
const (
	RunScheduled = "scheduled"
	RunManual    = "manual"
	RunDryRun    = "dry_run"
)

// Run statuses
const (
	RunStatusRunning             = "running"
	RunStatusCompleted           = "completed"
	RunStatusCompletedWithErrors = "completed_with_errors"
	RunStatusFailed              = "failed"
)

// Action types
const (
	ActionCreateTestingCampaign = "create_testing_campaign"
	ActionPromoteWinner         = "promote_winner"
	ActionScaleBudget           = "scale_budget"
	ActionPauseAdSet            = "pause_adset"
	ActionRotateCreatives       = "rotate_creatives"
	ActionSkip                  = "skip"
	ActionError                 = "error"
)

// Action statuses
const (
	ActionSuccess = "success"
	ActionFailed  = "failed"
	ActionSkipped = "skipped"
)

// Skip / block reasons
const (
	ReasonTestingDisabled  = "testing_disabled"
	ReasonMissingCreatives = "missing_creatives"
	ReasonNoCredential     = "no_credential"
	ReasonCooldown         = "cooldown"
	ReasonAtCap            = "at_cap"
)

// Operating modes
const (
	ModePulse    = "pulse"
	ModeMomentum = "momentum"
)

// Log levels
const (
	LogLevelInfo  = "INFO"
	LogLevelWarn  = "WARN"
	LogLevelError = "ERROR"
)
