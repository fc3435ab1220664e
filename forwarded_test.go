package aeris

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardedPolicyIgnoresHeadersFromUntrustedPeer(t *testing.T) {
	policy, err := NewForwardedPolicy(nil, []string{"10.0.0.1"}, 1)
	require.NoError(t, err)

	header := Header{}
	header.Set("X-Forwarded-Host", "evil.example.com")

	resolved, err := policy.Resolve(header, "203.0.113.5:1234", "http", "api.example.com")
	require.NoError(t, err)
	assert.Equal(t, "api.example.com", resolved.Host)
}

func TestForwardedPolicyAppliesFromTrustedProxy(t *testing.T) {
	policy, err := NewForwardedPolicy([]string{"api.example.com"}, []string{"10.0.0.1"}, 2)
	require.NoError(t, err)

	header := Header{}
	header.Set("X-Forwarded-Host", "api.example.com")
	header.Set("X-Forwarded-Proto", "https")
	header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")

	resolved, err := policy.Resolve(header, "10.0.0.1:5000", "http", "internal")
	require.NoError(t, err)
	assert.Equal(t, "api.example.com", resolved.Host)
	assert.Equal(t, "https", resolved.Scheme)
	assert.Equal(t, "198.51.100.1", resolved.ClientIP)
}

func TestForwardedPolicyRejectsUnknownHost(t *testing.T) {
	policy, err := NewForwardedPolicy([]string{"api.example.com"}, []string{"10.0.0.1"}, 1)
	require.NoError(t, err)

	header := Header{}
	header.Set("X-Forwarded-Host", "evil.example.com")

	_, err = policy.Resolve(header, "10.0.0.1:5000", "http", "internal")
	assert.Error(t, err)
}

func TestForwardedPolicyRejectsTooManyHops(t *testing.T) {
	policy, err := NewForwardedPolicy(nil, []string{"10.0.0.1"}, 1)
	require.NoError(t, err)

	header := Header{}
	header.Set("X-Forwarded-For", "198.51.100.1, 198.51.100.2, 10.0.0.1")

	_, err = policy.Resolve(header, "10.0.0.1:5000", "http", "internal")
	assert.Error(t, err)
}

func TestForwardedPolicyRejectsDuplicateHostHeader(t *testing.T) {
	policy, err := NewForwardedPolicy(nil, []string{"10.0.0.1"}, 1)
	require.NoError(t, err)

	header := Header{}
	header.Add("X-Forwarded-Host", "a.example.com")
	header.Add("X-Forwarded-Host", "b.example.com")

	_, err = policy.Resolve(header, "10.0.0.1:5000", "http", "internal")
	assert.Error(t, err)
}

func TestForwardedPolicyRejectsCommaSeparatedProto(t *testing.T) {
	policy, err := NewForwardedPolicy(nil, []string{"10.0.0.1"}, 1)
	require.NoError(t, err)

	header := Header{}
	header.Set("X-Forwarded-Proto", "https,http")

	_, err = policy.Resolve(header, "10.0.0.1:5000", "http", "internal")
	assert.Error(t, err)
}

func TestForwardedPolicyAcceptsCIDRProxy(t *testing.T) {
	policy, err := NewForwardedPolicy(nil, []string{"10.0.0.0/8"}, 1)
	require.NoError(t, err)

	header := Header{}
	header.Set("X-Forwarded-Proto", "https")

	resolved, err := policy.Resolve(header, "10.4.5.6:5000", "http", "internal")
	require.NoError(t, err)
	assert.Equal(t, "https", resolved.Scheme)
}
