package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jipraks/kasirgratisan/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", ManagerPIN: "123456"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "739154"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidatePINStrength(t *testing.T) {
	for _, pin := range []string{"123456", "987654", "444444", "112233", "73915a"} {
		assert.Error(t, validatePINStrength(pin), pin)
	}
	for _, pin := range []string{"739154", "482915", "20261015"} {
		assert.NoError(t, validatePINStrength(pin), pin)
	}
}

func TestServeRefusesWithoutSecurityConfig(t *testing.T) {
	cmd := NewRootCommand(config.Config{Backend: config.BackendMemory})
	cmd.SetArgs([]string{"serve", "--backend", "memory"})

	err := cmd.Execute()
	if err == nil {
		t.Fatalf("expected serve to refuse without AUTH_SECRET and MANAGER_PIN")
	}
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
