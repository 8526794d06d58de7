package envutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDev(t *testing.T) {
	for _, tt := range []struct {
		value string
		want  bool
	}{
		{"development", true},
		{"DEV", true},
		{"production", false},
		{"", false},
	} {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(EnvVar, tt.value)
			assert.Equal(t, tt.want, IsDev())
		})
	}
}

func TestGetenv(t *testing.T) {
	t.Setenv("MCP_BOILERPLATE_TEST_VAR", "")
	assert.Equal(t, "fallback", Getenv("MCP_BOILERPLATE_TEST_VAR", "fallback"))

	t.Setenv("MCP_BOILERPLATE_TEST_VAR", "set")
	assert.Equal(t, "set", Getenv("MCP_BOILERPLATE_TEST_VAR", "fallback"))
}
