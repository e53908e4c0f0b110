package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:":8000"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"/app/data/ide.db"`
	LogPath      string `envconfig:"LOG_PATH" default:""`

	// Sandbox provider settings
	DockerHost     string `envconfig:"DOCKER_HOST" default:""`
	SandboxImage   string `envconfig:"SANDBOX_IMAGE" default:"node:24-bookworm"`
	SandboxWorkdir string `envconfig:"SANDBOX_WORKDIR" default:"/workspace"`

	// Session lifecycle settings
	SandboxTimeout     time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"30m"`
	SessionMaxLifetime time.Duration `envconfig:"SESSION_MAX_LIFETIME" default:"2h"`
	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"25m"`
	MaxActivePerUser   int           `envconfig:"MAX_ACTIVE_PER_USER" default:"2"`
	CleanupInterval    time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1m"`
	CleanupSecret      string        `envconfig:"CLEANUP_SECRET" default:""`
	SessionStore       string        `envconfig:"SESSION_STORE" default:"memory"`

	// Terminal settings
	MaxCommandLength int           `envconfig:"TERMINAL_MAX_COMMAND_LENGTH" default:"4000"`
	EventRingSize    int           `envconfig:"TERMINAL_EVENT_RING_SIZE" default:"1500"`
	RateLimitWindow  time.Duration `envconfig:"TERMINAL_RATE_WINDOW" default:"10s"`
	RateLimitMax     int           `envconfig:"TERMINAL_RATE_LIMIT" default:"20"`
	PolicyPath       string        `envconfig:"TERMINAL_POLICY_PATH" default:""`

	// Event stream settings
	StreamMaxDuration  time.Duration `envconfig:"STREAM_MAX_DURATION" default:"55s"`
	StreamPollInterval time.Duration `envconfig:"STREAM_POLL_INTERVAL" default:"1s"`

	// Preview settings
	PreviewPort int `envconfig:"PREVIEW_PORT" default:"3000"`
}

// SandboxPorts are exposed on every sandbox at creation. The first entry is
// the default preview port.
var SandboxPorts = []int{3000, 3001, 4173, 5173}

var Cfg Settings

func Load() {
	if err := envconfig.Process("IDE", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}
