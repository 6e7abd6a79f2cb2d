package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "10m", "90s").
// Secrets (proposal.password, telegram.token) are never logged.
type Config struct {
	Survey   SurveyConfig   `json:"survey"`
	Proposal ProposalConfig `json:"proposal"`
	Gateway  GatewayConfig  `json:"gateway"`

	// Instruments overrides or extends the built-in instrument table,
	// keyed by instrument name as written in the target list (case-insensitive).
	Instruments map[string]InstrumentConfig `json:"instruments,omitempty"`

	Logging  LoggingConfig   `json:"logging"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Daemon   DaemonConfig    `json:"daemon"`
}

// SurveyConfig holds the survey-wide knobs.
//
// Defaults (when fields are omitted/zero):
//   - group_prefix: "RBNS"
//   - ttl_days: 1.0
//   - request_window_hours: 1.0
//   - submit_grace: "10m"
//   - max_airmass: 2.0
//   - lock_name: "survey.lock"
//   - clashing_locks: ["obscontrol.lock", "survey.lock"]
//   - ledger_prefix: "ObsRecord_1m_", ledger_suffix: "_sba.log"
//   - active_snapshot: "ObsRecord_1m_active_sba.log"
//   - site_tag: "sba"
type SurveyConfig struct {
	LogDir     string `json:"log_dir"`
	TargetList string `json:"target_list"`

	// TTLDays and RequestWindowHours are pointers so an explicit 0 is kept
	// (and validated) instead of defaulted.
	GroupPrefix        string   `json:"group_prefix,omitempty"`
	TTLDays            *float64 `json:"ttl_days,omitempty"`
	RequestWindowHours *float64 `json:"request_window_hours,omitempty"`
	SubmitGrace        string   `json:"submit_grace,omitempty"`
	MaxAirmass         float64  `json:"max_airmass,omitempty"`

	LockName      string   `json:"lock_name,omitempty"`
	ClashingLocks []string `json:"clashing_locks,omitempty"`

	LedgerPrefix   string `json:"ledger_prefix,omitempty"`
	LedgerSuffix   string `json:"ledger_suffix,omitempty"`
	ActiveSnapshot string `json:"active_snapshot,omitempty"`
	SiteTag        string `json:"site_tag,omitempty"`
}

type ProposalConfig struct {
	ProposalID string `json:"proposal_id"`
	UserID     string `json:"user_id"`
	Password   string `json:"password"`
}

// GatewayConfig controls request submission.
//
// Simulate skips the network entirely and records SIM_OK.
type GatewayConfig struct {
	URL        string  `json:"url,omitempty"` // default: https://lcogt.net/observe/service/request/submit
	Simulate   bool    `json:"simulate"`
	Timeout    string  `json:"timeout,omitempty"` // "0s" disables the client timeout
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

// InstrumentConfig describes one camera. Times are seconds.
type InstrumentConfig struct {
	Class       string  `json:"class"`
	Name        string  `json:"name,omitempty"`
	Readout     float64 `json:"readout"`
	PerExposure float64 `json:"per_exposure,omitempty"`
	Setup       float64 `json:"setup"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

// LoggingFile enables the day-stamped log <dir>/<root_name>_<YYYY-MM-DD>.log.
// Dir defaults to survey.log_dir.
type LoggingFile struct {
	Enabled  bool   `json:"enabled"`
	Dir      string `json:"dir,omitempty"`
	RootName string `json:"root_name,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TelegramConfig configures the operator channel used for run summaries and
// the Telegram log sink.
type TelegramConfig struct {
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
	NotifyRuns bool   `json:"notify_runs"`
}

// StorageConfig controls the optional submission history store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./state/submissions.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// DaemonConfig controls `skysurvey daemon`.
//
// Schedule accepts "HH:MM" (daily), a cron expression, or a Go duration.
type DaemonConfig struct {
	Schedule   string `json:"schedule,omitempty"` // default: "00:10"
	Timezone   string `json:"timezone,omitempty"` // default: "UTC"
	RunOnStart bool   `json:"run_on_start,omitempty"`
}
