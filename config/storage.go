package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StorageMode selects where the durable credential slot lives.
type StorageMode string

const (
	// StorageModeFile keeps the slot in a JSON file under the user's config dir.
	StorageModeFile StorageMode = "file"
	// StorageModeRedis keeps the slot in Redis, shared between hosts.
	StorageModeRedis StorageMode = "redis"
	// StorageModeMemory keeps the slot in process memory (tests, one-shot runs).
	StorageModeMemory StorageMode = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for StorageMode.
func (m *StorageMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "file", "redis", "memory":
		*m = StorageMode(v)
		return nil
	default:
		return fmt.Errorf("invalid StorageMode: %q (valid options: file, redis, memory)", v)
	}
}

// StorageConfig controls the durable credential slot.
type StorageConfig struct {
	Mode StorageMode `env:"MODE" envDefault:"file"`

	// FilePath is the slot file used when Mode=file. Empty resolves to
	// <user config dir>/skip-session/session.json.
	FilePath string `env:"FILE_PATH"`

	// CredentialKey names the entry holding the bearer credential.
	CredentialKey string `env:"CREDENTIAL_KEY" envDefault:"access_token"`

	// RedisPrefix namespaces slot keys when Mode=redis.
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"skip-session:"`

	// RedisTTL expires the slot when Mode=redis; zero keeps it until logout.
	RedisTTL time.Duration `env:"REDIS_TTL" envDefault:"0s"`

	// Watch reconciles the session when another process changes the slot.
	Watch bool `env:"WATCH" envDefault:"true"`
}

// Sanitize fills derived defaults.
func (c *StorageConfig) Sanitize() {
	if c.Mode == "" {
		c.Mode = StorageModeFile
	}
	if c.CredentialKey = strings.TrimSpace(c.CredentialKey); c.CredentialKey == "" {
		c.CredentialKey = "access_token"
	}
	if c.RedisTTL < 0 {
		c.RedisTTL = 0
	}
	c.FilePath = strings.TrimSpace(c.FilePath)
	if c.Mode == StorageModeFile && c.FilePath == "" {
		c.FilePath = defaultSlotPath()
	}
	if c.Mode != StorageModeFile {
		c.Watch = false
	}
}

func defaultSlotPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "skip-session", "session.json")
}
