package config

import (
	"encoding/json"
	"os"

	"github.com/smith3v/wx-reminder/pkg/logger"
)

type Config struct {
	Database  DatabaseConfig  `json:"database"`
	WeChat    WeChatConfig    `json:"wechat"`
	Telegram  TelegramConfig  `json:"telegram"`
	Push      PushConfig      `json:"push"`
	Server    ServerConfig    `json:"server"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Logging   LoggingConfig   `json:"logging"`
}

type DatabaseConfig struct {
	Type     string `json:"type"` // "postgres" or "sqlite"
	Host     string `json:"host"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	Port     int    `json:"port"`
	SSLMode  string `json:"sslmode"`
	Path     string `json:"path"` // sqlite only
}

type WeChatConfig struct {
	AppID      string `json:"appid"`
	AppSecret  string `json:"appsecret"`
	TemplateID string `json:"template_id"`
	Page       string `json:"page"`
	APIBase    string `json:"api_base"` // empty for api.weixin.qq.com; set for the backup domain
}

type TelegramConfig struct {
	Token string `json:"token"`
}

type PushConfig struct {
	Channel        string `json:"channel"` // "wechat" or "telegram"
	SendTimeoutSec int    `json:"send_timeout_sec"`
}

type ServerConfig struct {
	Addr            string `json:"addr"`
	JWTSecret       string `json:"jwt_secret"`
	SessionTTLHours int    `json:"session_ttl_hours"`
}

type SchedulerConfig struct {
	GraceSec         int `json:"grace_sec"`
	LogRetentionDays int `json:"log_retention_days"`
}

type LoggingConfig struct {
	Level     string `json:"level"`
	File      string `json:"file"`
	GormLevel string `json:"gorm_level"`
}

var AppConfig Config

func LoadConfig(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		logger.Error("failed to open config file", "error", err)
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&AppConfig); err != nil {
		logger.Error("failed to decode config file", "error", err)
		return err
	}

	applyDefaults(&AppConfig)
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "wx-reminder.db"
	}
	if cfg.Push.Channel == "" {
		cfg.Push.Channel = "wechat"
	}
	if cfg.Push.SendTimeoutSec <= 0 {
		cfg.Push.SendTimeoutSec = 10
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":5001"
	}
	if cfg.Server.SessionTTLHours <= 0 {
		cfg.Server.SessionTTLHours = 24 * 7
	}
	if cfg.Scheduler.GraceSec <= 0 {
		cfg.Scheduler.GraceSec = 60
	}
	if cfg.Scheduler.LogRetentionDays <= 0 {
		cfg.Scheduler.LogRetentionDays = 30
	}
	if cfg.WeChat.Page == "" {
		cfg.WeChat.Page = "pages/index/index"
	}
}
