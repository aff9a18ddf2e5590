package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
)

func TestGodotenvQuotedCookie(t *testing.T) {
	content := `CRM_COOKIE='session="abc"; route=1'`
	tmpfile, err := os.CreateTemp("", ".env.test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	env, err := godotenv.Read(tmpfile.Name())
	if err != nil {
		t.Fatalf("Error reading env: %v", err)
	}

	expected := `session="abc"; route=1`
	if env["CRM_COOKIE"] != expected {
		t.Errorf("Expected %s, got %s", expected, env["CRM_COOKIE"])
	}
}

func TestLoad(t *testing.T) {
	dataPath := t.TempDir()
	t.Setenv("DATA_PATH", dataPath)
	t.Setenv("SCHEDULE_DB", "")
	t.Setenv("CRM_URL", "https://crm.example.com")
	t.Setenv("CRM_REQUEST_DELAY_MS", "250")
	t.Setenv("CRM_CHUNK_DAYS", "not-a-number")
	t.Setenv("MIN_SHIFT_MINUTES", "20")
	t.Setenv("MIN_SAMPLES_HOURLY", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CRM.BaseURL != "https://crm.example.com" {
		t.Errorf("CRM.BaseURL = %s", cfg.CRM.BaseURL)
	}
	if cfg.CRM.RequestDelay != 250*time.Millisecond {
		t.Errorf("CRM.RequestDelay = %v, want 250ms", cfg.CRM.RequestDelay)
	}
	if cfg.CRM.ChunkDays != 14 {
		t.Errorf("CRM.ChunkDays = %d, want fallback 14", cfg.CRM.ChunkDays)
	}
	if cfg.ScheduleDB != filepath.Join(dataPath, "delivery_schedule.db") {
		t.Errorf("ScheduleDB = %s", cfg.ScheduleDB)
	}
	if _, err := os.Stat(cfg.CacheDir); err != nil {
		t.Errorf("Expected cache dir to exist: %v", err)
	}

	rc := cfg.Recommend()
	if rc.MinShift != 20 {
		t.Errorf("Recommend().MinShift = %v, want 20", rc.MinShift)
	}
	if rc.HourBucket.MinSamples != 8 || rc.Schedule.MinSamples != 3 {
		t.Errorf("Recommend() samples = %d/%d, want 3/8", rc.Schedule.MinSamples, rc.HourBucket.MinSamples)
	}
}
