// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// SetDefaults registers default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("imap.host", "imap.gmail.com")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.insecure_skip_verify", false)
	v.SetDefault("imap.inbox", "INBOX")
	v.SetDefault("imap.timeout", "30s")

	v.SetDefault("folders.high", "AI_HIGH_PRIORITY")
	v.SetDefault("folders.medium", "AI_MEDIUM_PRIORITY")
	v.SetDefault("folders.low", "AI_LOW_PRIORITY_RECOVERY")

	v.SetDefault("database.path", "$HOME/.local/share/mailtriage/mailtriage.db")
	v.SetDefault("classifier.model_path", "$HOME/.local/share/mailtriage/priority_model.gob")
	v.SetDefault("classifier.vectorizer_path", "$HOME/.local/share/mailtriage/vectorizer.gob")

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// BindEnv wires the environment variables the original deployment used in
// addition to the MAILTRIAGE_* prefix.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("MAILTRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("imap.host", "IMAP_SERVER")
	_ = v.BindEnv("imap.username", "EMAIL_USER")
	_ = v.BindEnv("imap.password", "EMAIL_PASS")
	_ = v.BindEnv("folders.high", "FOLDER_HIGH")
	_ = v.BindEnv("folders.medium", "FOLDER_MEDIUM")
	_ = v.BindEnv("folders.low", "FOLDER_LOW")
	_ = v.BindEnv("classifier.model_path", "MODEL_FILE")
	_ = v.BindEnv("classifier.vectorizer_path", "VECTORIZER_FILE")
	_ = v.BindEnv("server.port", "PORT")
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
