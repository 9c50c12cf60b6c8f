package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unitrack.toml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWithMinimalEnv(t *testing.T) {
	t.Setenv("ERP_BASE_URL", "https://erp.university.edu")

	cfg, err := Load()

	assert.NoError(t, err)
	assert.Equal(t, "credential", cfg.ERP.Strategy)
	assert.Equal(t, "/login.htm", cfg.ERP.LoginPath)
	assert.Equal(t, "j_username", cfg.ERP.UsernameField)
	assert.Equal(t, 75.0, cfg.Sync.DefaultThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Sync.Staleness)
	assert.Equal(t, "127.0.0.1", cfg.HTTP.Host)
}

func TestLoad_FailsWithoutBaseURL(t *testing.T) {
	t.Setenv("ERP_BASE_URL", "")
	t.Setenv("UNITRACK_PROFILE", "")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_ProfileFileConfiguresERPAndRules(t *testing.T) {
	profile := writeProfile(t, `
[erp]
base_url = "https://portal.college.ac.in"
strategy = "script"
attendance_path = "/api/attendance.json"
login_wait = "45s"

[erp.field_overrides]
present = "hadir"
subject = "mataKuliah"

[sync]
default_threshold = 80.0
safe_buffer = 5.0
staleness = "12h"

[[sync.rule]]
keyword = "LAB"
percent = 90.0

[[sync.rule]]
keyword = "SEMINAR"
percent = 60.0
`)
	t.Setenv("UNITRACK_PROFILE", profile)

	cfg, err := Load()

	assert.NoError(t, err)
	assert.Equal(t, "https://portal.college.ac.in", cfg.ERP.BaseURL)
	assert.Equal(t, "script", cfg.ERP.Strategy)
	assert.Equal(t, "/api/attendance.json", cfg.ERP.AttendancePath)
	assert.Equal(t, 45*time.Second, cfg.ERP.LoginWait)
	assert.Equal(t, "hadir", cfg.ERP.FieldOverrides["present"])

	assert.Equal(t, 80.0, cfg.Sync.DefaultThreshold)
	assert.Equal(t, 12*time.Hour, cfg.Sync.Staleness)

	// Rule order survives decoding; earlier rules win at resolution time.
	assert.Len(t, cfg.Sync.Rules, 2)
	assert.Equal(t, "LAB", cfg.Sync.Rules[0].Keyword)
	assert.Equal(t, 90.0, cfg.Sync.Rules[0].Percent)
	assert.Equal(t, "SEMINAR", cfg.Sync.Rules[1].Keyword)
}

func TestLoad_EnvOverridesProfileFields(t *testing.T) {
	profile := writeProfile(t, `
[erp]
base_url = "https://portal.college.ac.in"
strategy = "cookie"
`)
	t.Setenv("UNITRACK_PROFILE", profile)
	t.Setenv("ERP_BASE_URL", "https://staging.college.ac.in")

	cfg, err := Load()

	assert.NoError(t, err)
	assert.Equal(t, "https://staging.college.ac.in", cfg.ERP.BaseURL)
	assert.Equal(t, "cookie", cfg.ERP.Strategy)
}

func TestLoad_RejectsBadProfileValues(t *testing.T) {
	profile := writeProfile(t, `
[erp]
base_url = "https://portal.college.ac.in"
strategy = "telepathy"

[sync]
default_threshold = 140.0
`)
	t.Setenv("UNITRACK_PROFILE", profile)

	_, err := Load()

	assert.Error(t, err)
}

func TestDatabaseConfig_EnabledOnlyWithURL(t *testing.T) {
	assert.False(t, DatabaseConfig{}.Enabled())
	assert.True(t, DatabaseConfig{URL: "postgres://localhost/attendance"}.Enabled())
}
