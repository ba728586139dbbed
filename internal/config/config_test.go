package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.AppPort != "5001" {
		t.Errorf("AppPort = %q", cfg.AppPort)
	}
	if cfg.BindAddr != "127.0.0.1" {
		t.Errorf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.ContactsBackend != "file" {
		t.Errorf("ContactsBackend = %q", cfg.ContactsBackend)
	}
	if cfg.UploadGuard != 10*time.Second {
		t.Errorf("UploadGuard = %v", cfg.UploadGuard)
	}
	if cfg.ImportGuard != 15*time.Second {
		t.Errorf("ImportGuard = %v", cfg.ImportGuard)
	}
	if cfg.SendTimeout != 30*time.Second {
		t.Errorf("SendTimeout = %v", cfg.SendTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("CONTACTS_BACKEND", "postgres")
	t.Setenv("UPLOAD_GUARD", "2s")
	t.Setenv("MAX_UPLOAD_SIZE", "1048576")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example ,")

	cfg := LoadConfig()
	if cfg.AppPort != "8080" {
		t.Errorf("AppPort = %q", cfg.AppPort)
	}
	if cfg.ContactsBackend != "postgres" {
		t.Errorf("ContactsBackend = %q", cfg.ContactsBackend)
	}
	if cfg.UploadGuard != 2*time.Second {
		t.Errorf("UploadGuard = %v", cfg.UploadGuard)
	}
	if cfg.MaxUploadSize != 1048576 {
		t.Errorf("MaxUploadSize = %d", cfg.MaxUploadSize)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("UPLOAD_GUARD", "not-a-duration")
	t.Setenv("MAX_UPLOAD_SIZE", "not-a-number")

	cfg := LoadConfig()
	if cfg.UploadGuard != 10*time.Second {
		t.Errorf("UploadGuard = %v, want default", cfg.UploadGuard)
	}
	if cfg.MaxUploadSize != 10*1024*1024 {
		t.Errorf("MaxUploadSize = %d, want default", cfg.MaxUploadSize)
	}
}
