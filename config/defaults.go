package config

import (
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"addr":     ":8080",
		"db_path":  "./remind.db",
		"timezone": "Local",
		"auth": map[string]interface{}{
			"secret":          "",
			"token_ttl_hours": 168,
		},
		"alarm": map[string]interface{}{
			"exact_enabled": true,
		},
		"backup": map[string]interface{}{
			"enabled":   false,
			"repo_path": "./backup",
		},
		"log": map[string]interface{}{
			"level": "info",
		},
	}
}

func NewDefaultProvider() koanf.Provider {
	return confmap.Provider(DefaultConfig(), ".")
}
