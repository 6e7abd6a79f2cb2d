package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultGroupPrefix    = "RBNS"
	DefaultLockName       = "survey.lock"
	DefaultLedgerPrefix   = "ObsRecord_1m_"
	DefaultLedgerSuffix   = "_sba.log"
	DefaultActiveSnapshot = "ObsRecord_1m_active_sba.log"
	DefaultSiteTag        = "sba"
	DefaultGatewayURL     = "https://lcogt.net/observe/service/request/submit"
	DefaultSchedule       = "00:10"
)

// DefaultClashingLocks are the lock names shared with cooperating tools.
var DefaultClashingLocks = []string{"obscontrol.lock", "survey.lock"}

// ApplyDefaults fills omitted fields in place.
func (c *Config) ApplyDefaults() {
	s := &c.Survey
	if strings.TrimSpace(s.GroupPrefix) == "" {
		s.GroupPrefix = DefaultGroupPrefix
	}
	if s.TTLDays == nil {
		s.TTLDays = floatPtr(1.0)
	}
	if s.RequestWindowHours == nil {
		s.RequestWindowHours = floatPtr(1.0)
	}
	if strings.TrimSpace(s.SubmitGrace) == "" {
		s.SubmitGrace = "10m"
	}
	if s.MaxAirmass == 0 {
		s.MaxAirmass = 2.0
	}
	if strings.TrimSpace(s.LockName) == "" {
		s.LockName = DefaultLockName
	}
	if len(s.ClashingLocks) == 0 {
		s.ClashingLocks = append([]string(nil), DefaultClashingLocks...)
	}
	if s.LedgerPrefix == "" {
		s.LedgerPrefix = DefaultLedgerPrefix
	}
	if s.LedgerSuffix == "" {
		s.LedgerSuffix = DefaultLedgerSuffix
	}
	if strings.TrimSpace(s.ActiveSnapshot) == "" {
		s.ActiveSnapshot = DefaultActiveSnapshot
	}
	if strings.TrimSpace(s.SiteTag) == "" {
		s.SiteTag = DefaultSiteTag
	}

	if strings.TrimSpace(c.Gateway.URL) == "" {
		c.Gateway.URL = DefaultGatewayURL
	}
	if c.Gateway.RatePerSec == 0 {
		c.Gateway.RatePerSec = 1
	}
	if strings.TrimSpace(c.Gateway.Timeout) == "" {
		c.Gateway.Timeout = "2m"
	}

	if strings.TrimSpace(c.Logging.File.Dir) == "" {
		c.Logging.File.Dir = s.LogDir
	}
	if strings.TrimSpace(c.Logging.File.RootName) == "" {
		c.Logging.File.RootName = "sinistro_survey_obs"
	}

	if strings.TrimSpace(c.Daemon.Schedule) == "" {
		c.Daemon.Schedule = DefaultSchedule
	}
	if strings.TrimSpace(c.Daemon.Timezone) == "" {
		c.Daemon.Timezone = "UTC"
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	s := c.Survey
	if strings.TrimSpace(s.LogDir) == "" {
		errs = append(errs, errors.New("survey.log_dir is required"))
	}
	if strings.TrimSpace(s.TargetList) == "" {
		errs = append(errs, errors.New("survey.target_list is required"))
	}
	if ttl := s.TTL(); !(ttl > 0) || math.IsInf(ttl, 1) {
		errs = append(errs, fmt.Errorf("survey.ttl_days must be > 0 (got %v)", ttl))
	}
	if w := s.RequestWindow(); w < 0 || math.IsNaN(s.windowHours()) {
		errs = append(errs, fmt.Errorf("survey.request_window_hours must be >= 0 (got %v)", s.windowHours()))
	}
	if _, err := ParseDurationField("survey.submit_grace", s.SubmitGrace); err != nil {
		errs = append(errs, err)
	}
	if strings.ContainsAny(s.GroupPrefix, " \t") {
		errs = append(errs, errors.New("survey.group_prefix must not contain whitespace"))
	}
	if strings.ContainsAny(s.LockName, `/\`) {
		errs = append(errs, errors.New("survey.lock_name must be a bare file name"))
	}

	if !c.Gateway.Simulate {
		if strings.TrimSpace(c.Proposal.ProposalID) == "" {
			errs = append(errs, errors.New("proposal.proposal_id is required unless gateway.simulate"))
		}
		if strings.TrimSpace(c.Proposal.UserID) == "" {
			errs = append(errs, errors.New("proposal.user_id is required unless gateway.simulate"))
		}
	}
	if c.Gateway.RatePerSec < 0 {
		errs = append(errs, errors.New("gateway.rate_per_sec must be >= 0"))
	}
	if _, err := ParseDurationField("gateway.timeout", c.Gateway.Timeout); err != nil {
		errs = append(errs, err)
	}

	for name, ic := range c.Instruments {
		if strings.TrimSpace(ic.Class) == "" {
			errs = append(errs, fmt.Errorf("instruments.%s.class is required", name))
		}
		if ic.Readout < 0 || ic.Setup < 0 || ic.PerExposure < 0 {
			errs = append(errs, fmt.Errorf("instruments.%s: overheads must be >= 0", name))
		}
	}

	if t := c.Telegram; t != nil {
		if _, err := ParseDurationField("telegram.timeout", t.Timeout); err != nil {
			errs = append(errs, err)
		}
		if (t.NotifyRuns || c.Logging.Telegram.Enabled) && t.ChatID == 0 {
			errs = append(errs, errors.New("telegram.chat_id is required when telegram output is enabled"))
		}
	}
	if st := c.Storage; st != nil {
		d := strings.ToLower(strings.TrimSpace(st.Driver))
		switch d {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			errs = append(errs, fmt.Errorf("unknown storage.driver: %s", st.Driver))
		}
		if d != "" && d != "none" && strings.TrimSpace(st.Path) == "" {
			errs = append(errs, errors.New("storage.path is required when storage.driver is set"))
		}
		if _, err := ParseDurationField("storage.busy_timeout", st.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := time.LoadLocation(strings.TrimSpace(c.Daemon.Timezone)); err != nil {
		errs = append(errs, fmt.Errorf("daemon.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// Path resolves name relative to survey.log_dir; absolute names are kept.
func (s SurveyConfig) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.LogDir, name)
}

// TTL returns survey.ttl_days (1 when unset).
func (s SurveyConfig) TTL() float64 {
	if s.TTLDays == nil {
		return 1.0
	}
	return *s.TTLDays
}

func (s SurveyConfig) windowHours() float64 {
	if s.RequestWindowHours == nil {
		return 1.0
	}
	return *s.RequestWindowHours
}

// RequestWindow returns the padding added to every sub-request window.
// An explicit 0 disables it; unset means one hour.
func (s SurveyConfig) RequestWindow() time.Duration {
	return time.Duration(s.windowHours() * float64(time.Hour))
}

func floatPtr(v float64) *float64 { return &v }

// SubmitGraceDuration returns the parsed submit grace (10m if unset).
func (s SurveyConfig) SubmitGraceDuration() time.Duration {
	d, err := ParseDurationOrDefault("survey.submit_grace", s.SubmitGrace, 10*time.Minute)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}
