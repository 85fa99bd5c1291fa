package zapgate

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config for the gateway. Defaults can be loaded via envdecode.
type Config struct {
	// WebhookURL is the publicly reachable URL the payment provider calls
	// when a link is paid. ENV: ZAPGATE_WEBHOOK_URL
	WebhookURL string `env:"ZAPGATE_WEBHOOK_URL,required"`

	// Payment-link policy, applied to every provisioned link.
	MinSendableSats int64  `env:"ZAPGATE_LINK_MIN_SATS,default=1"`
	MaxSendableSats int64  `env:"ZAPGATE_LINK_MAX_SATS,default=100000"`
	LinkDescription string `env:"ZAPGATE_LINK_DESCRIPTION,default=zap this note"`

	// Relays embedded as hints in zap requests (and used by the default
	// event source). Semicolon-separated in the environment.
	// ENV: ZAPGATE_RELAYS
	Relays []string `env:"ZAPGATE_RELAYS,default=wss://relay.damus.io;wss://nos.lol"`

	// Session lifecycle.
	SweepInterval time.Duration `env:"ZAPGATE_SWEEP_INTERVAL,default=5m"`
	SessionTTL    time.Duration `env:"ZAPGATE_SESSION_TTL,default=1h"`
}

// LoadConfig populates a Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("zapgate config: %w", err)
	}
	return cfg, nil
}
