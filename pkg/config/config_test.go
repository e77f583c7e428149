package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigSuccess(t *testing.T) {
	original := AppConfig
	t.Cleanup(func() {
		AppConfig = original
	})

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	content := `{
		"database": {
			"type": "sqlite",
			"path": "test.db"
		},
		"wechat": {
			"appid": "wx-test-appid",
			"appsecret": "wx-test-secret",
			"template_id": "tpl-123"
		},
		"server": {
			"addr": ":9000",
			"jwt_secret": "test-secret"
		}
	}`

	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}

	if err := LoadConfig(configPath); err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if AppConfig.Database.Type != "sqlite" {
		t.Errorf("expected database type sqlite, got %q", AppConfig.Database.Type)
	}
	if AppConfig.WeChat.AppID != "wx-test-appid" {
		t.Errorf("expected appid wx-test-appid, got %q", AppConfig.WeChat.AppID)
	}
	if AppConfig.Server.Addr != ":9000" {
		t.Errorf("expected addr :9000, got %q", AppConfig.Server.Addr)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	original := AppConfig
	t.Cleanup(func() {
		AppConfig = original
	})

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{}`), 0o600); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}

	if err := LoadConfig(configPath); err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if AppConfig.Push.Channel != "wechat" {
		t.Errorf("expected default channel wechat, got %q", AppConfig.Push.Channel)
	}
	if AppConfig.Push.SendTimeoutSec != 10 {
		t.Errorf("expected default send timeout 10s, got %d", AppConfig.Push.SendTimeoutSec)
	}
	if AppConfig.Scheduler.GraceSec != 60 {
		t.Errorf("expected default grace 60s, got %d", AppConfig.Scheduler.GraceSec)
	}
	if AppConfig.Server.Addr != ":5001" {
		t.Errorf("expected default addr :5001, got %q", AppConfig.Server.Addr)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	original := AppConfig
	t.Cleanup(func() {
		AppConfig = original
	})

	if err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected an error when loading a missing config file")
	}
}
