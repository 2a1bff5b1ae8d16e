package tool

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Policy is the merged constraint set for one tool alias within one scope,
// matching lir.GrantPolicy's Constraints shape (spec.md §4.4 "Grants");
// Dispatch reads it flattened to a single map rather than importing
// internal/lir, keeping this package usable without the compiler present
// (e.g. a host embedding only the VM and a pre-compiled module).
type Policy map[string]string

// TimeoutMs reads the "timeout_ms" constraint, defaulting to defaultMs
// when absent or unparsable.
func (p Policy) TimeoutMs(defaultMs int64) int64 {
	if s, ok := p["timeout_ms"]; ok {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultMs
}

// MaxTokens reads the "max_tokens" constraint, 0 meaning unset.
func (p Policy) MaxTokens() int64 {
	if s, ok := p["max_tokens"]; ok {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// Validate rejects calls the policy's constraints disallow outright
// (spec.md §4.10 step 2: "reject on timeout misconfiguration, domain
// mismatch, etc."). domain is the caller-supplied target domain for the
// call, empty if the provider has none to check.
func (p Policy) Validate(domain string) *ToolError {
	if s, ok := p["timeout_ms"]; ok {
		if n, err := strconv.ParseInt(s, 10, 64); err != nil || n <= 0 {
			return InvalidArgs(fmt.Sprintf("grant constraint timeout_ms=%q is not a positive integer", s))
		}
	}
	if allowed, ok := p["domain"]; ok && domain != "" {
		if !domainMatches(allowed, domain) {
			return InvalidArgs(fmt.Sprintf("domain %q is not permitted by grant (allowed: %q)", domain, allowed))
		}
	}
	if tokenStr, ok := p["authtoken"]; ok {
		if err := p.validateAuthToken(tokenStr); err != nil {
			return AuthError(err.Error())
		}
	}
	return nil
}

// domainMatches supports an exact match or a leading "*." wildcard, the
// common grant shape for "any subdomain of example.com".
func domainMatches(allowed, domain string) bool {
	if allowed == domain {
		return true
	}
	if strings.HasPrefix(allowed, "*.") {
		return strings.HasSuffix(domain, allowed[1:])
	}
	return false
}

// validateAuthToken verifies the "authtoken" grant constraint as a signed
// JWT capability token using the constraint's own "authtoken_secret" as the
// HMAC key, rejecting expired or malformed tokens before a provider is ever
// invoked (SPEC_FULL.md's golang-jwt/jwt/v5 wiring: "agents that grant a
// tool scoped by a signed capability token verify it before dispatch").
func (p Policy) validateAuthToken(tokenStr string) error {
	secret, ok := p["authtoken_secret"]
	if !ok {
		return fmt.Errorf("grant specifies authtoken but no authtoken_secret to verify it against")
	}
	_, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return fmt.Errorf("capability token invalid: %w", err)
	}
	return nil
}
