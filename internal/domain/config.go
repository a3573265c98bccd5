package domain

import "time"

// HotReloadConfig is the live configuration of the profile directory watcher.
type HotReloadConfig struct {
	Enabled        bool   `json:"enabled"`
	DebounceMs     int    `json:"debounceMs"`
	WatchDirectory string `json:"watchDirectory"`
	BackupCount    int    `json:"backupCount"`
	MaxFileSize    int64  `json:"maxFileSize"`
}

// Debounce returns DebounceMs as a duration.
func (c HotReloadConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// HotReloadUpdate is a partial HotReloadConfig; nil fields are left untouched.
type HotReloadUpdate struct {
	Enabled        *bool   `json:"enabled"`
	DebounceMs     *int    `json:"debounceMs"`
	WatchDirectory *string `json:"watchDirectory"`
	BackupCount    *int    `json:"backupCount"`
	MaxFileSize    *int64  `json:"maxFileSize"`
}

// Apply merges u into c.
func (u HotReloadUpdate) Apply(c *HotReloadConfig) {
	if u.Enabled != nil {
		c.Enabled = *u.Enabled
	}
	if u.DebounceMs != nil {
		c.DebounceMs = *u.DebounceMs
	}
	if u.WatchDirectory != nil {
		c.WatchDirectory = *u.WatchDirectory
	}
	if u.BackupCount != nil {
		c.BackupCount = *u.BackupCount
	}
	if u.MaxFileSize != nil {
		c.MaxFileSize = *u.MaxFileSize
	}
}

// BackupInfo is returned for every backup request.
type BackupInfo struct {
	ProfileID   string    `json:"profileId,omitempty"`
	BackupCount int       `json:"backupCount"`
	Timestamp   time.Time `json:"timestamp"`
	Location    string    `json:"location,omitempty"`
	Pruned      int       `json:"pruned,omitempty"`
}

// HealthReport is the coarse configuration health.
type HealthReport struct {
	Status HealthStatus `json:"status"`
	Issues []string     `json:"issues"`
}

// ProfileDetails pairs a profile with its structural validation.
type ProfileDetails struct {
	Profile       *BankProfile     `json:"profile"`
	Validation    ValidationResult `json:"validation"`
	ColumnCount   int              `json:"columnCount"`
	RequiredCount int              `json:"requiredColumnCount"`
}

// Diagnostics summarises the manager state, optionally for one profile.
type Diagnostics struct {
	ProfileCount    int             `json:"profileCount"`
	ActiveProfileID string          `json:"activeProfileId,omitempty"`
	Backups         int             `json:"backups"`
	LastBackupAt    *time.Time      `json:"lastBackupAt,omitempty"`
	HotReload       bool            `json:"hotReload"`
	Profile         *ProfileDetails `json:"profile,omitempty"`
}
