package idp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowsUnverified(t *testing.T) {
	policy := DefaultIdentityVerificationPolicy()

	assert.True(t, policy.AllowsUnverified("demo@financialhub.com"))
	assert.False(t, policy.AllowsUnverified("jane@example.org"))
	assert.False(t, policy.AllowsUnverified(""))
}

func TestAllowsUnverifiedCustomDomains(t *testing.T) {
	policy := IdentityVerificationPolicy{DemoDomains: []string{"corp.test"}}

	assert.True(t, policy.AllowsUnverified("user@corp.test"))
	assert.False(t, policy.AllowsUnverified("demo@financialhub.com"))

	empty := IdentityVerificationPolicy{}
	assert.False(t, empty.AllowsUnverified("user@corp.test"))
}
