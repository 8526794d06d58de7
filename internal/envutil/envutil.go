package envutil

import (
	"os"
	"strings"
)

// EnvVar selects the runtime environment.
const EnvVar = "MCP_BOILERPLATE_ENV"

// IsDev reports whether MCP_BOILERPLATE_ENV is development, where fosite's
// parameter entropy checks are relaxed for local MCP clients.
func IsDev() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvVar))) {
	case "development", "dev":
		return true
	}
	return false
}

// Getenv returns the value of key, or fallback when it is unset or empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
