package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name          string
		password      string
		shouldFail    bool
		errorContains string
	}{
		{name: "valid strong password", password: "SecureP@ss123"},
		{name: "valid with symbols", password: "MyP@ssw0rd!"},
		{name: "too short", password: "Pass@1", shouldFail: true, errorContains: "at least 8"},
		{name: "missing uppercase", password: "securepass@123", shouldFail: true, errorContains: "uppercase"},
		{name: "missing lowercase", password: "SECUREPASS@123", shouldFail: true, errorContains: "lowercase"},
		{name: "missing digit", password: "SecurePass@xyz", shouldFail: true, errorContains: "digit"},
		{name: "missing special character", password: "SecurePass123", shouldFail: true, errorContains: "special"},
		{name: "common password rejected", password: "Password123!", shouldFail: true, errorContains: "too common"},
		{name: "too long", password: "Aa1@" + strings.Repeat("x", 80), shouldFail: true, errorContains: "at most 72"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if !tt.shouldFail {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var pve *PasswordValidationError
			require.ErrorAs(t, err, &pve)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestHashAndComparePassword(t *testing.T) {
	password := "SecureP@ss123"

	hash, err := HashPasswordWithCost(password, bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)

	assert.NoError(t, ComparePassword(hash, password))
	assert.Error(t, ComparePassword(hash, "WrongPassword123!"))
}

func TestHashPassword_RejectsEmpty(t *testing.T) {
	_, err := HashPasswordWithCost("", bcrypt.MinCost)
	assert.Error(t, err)
}
