package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// BRIDGE_ADDR points at a running service; the suite is skipped when unset
	BridgeAddr string `envconfig:"BRIDGE_ADDR"`
	// E2E_DEBUG_JSON allows dumping full request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_ADMIN_PASSWORD obtains a bearer token when the API is protected
	AdminPassword string `envconfig:"E2E_ADMIN_PASSWORD"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
