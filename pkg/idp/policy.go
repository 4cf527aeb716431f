package idp

import "strings"

// IdentityVerificationPolicy decides whether an unverifiable identity may be
// optimistically accepted when the provider's management API is unreachable
// or denies access. The demo-domain rule lives here and nowhere else.
type IdentityVerificationPolicy struct {
	// DemoDomains lists email domains that are accepted without directory
	// confirmation in restricted deployments.
	DemoDomains []string
}

// DefaultIdentityVerificationPolicy returns the policy used by the demo
// deployment.
func DefaultIdentityVerificationPolicy() IdentityVerificationPolicy {
	return IdentityVerificationPolicy{
		DemoDomains: []string{"financialhub.com"},
	}
}

// AllowsUnverified reports whether the username may be accepted without a
// confirmed directory record.
func (p IdentityVerificationPolicy) AllowsUnverified(username string) bool {
	for _, domain := range p.DemoDomains {
		if domain != "" && strings.Contains(username, domain) {
			return true
		}
	}
	return false
}
