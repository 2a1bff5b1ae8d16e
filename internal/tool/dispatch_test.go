package tool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/trace"
)

// fakeProvider scripts a sequence of responses for Call.
type fakeProvider struct {
	name     string
	calls    atomic.Int64
	respond  func(attempt int64, input string) (string, *ToolError)
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) Schema() Schema {
	return Schema{Input: "{}", Output: "{}", Effect: "Test"}
}
func (p *fakeProvider) Call(_ context.Context, input string) (string, *ToolError) {
	n := p.calls.Add(1)
	return p.respond(n, input)
}

func newTestDispatcher(p Provider, policy Policy) (*Dispatcher, *trace.Sink) {
	reg := NewRegistry().Register(p)
	sink := trace.NewSink(0)
	grants := func(alias string) (Policy, bool) {
		if policy == nil {
			return nil, false
		}
		return policy, true
	}
	bindings := func(alias string) (string, bool) { return p.Name(), true }
	d := NewDispatcher(reg, grants, bindings, sink, nil)
	d.Retry.BaseDelay = time.Millisecond
	return d, sink
}

func TestDispatch_SuccessRecordsTrace(t *testing.T) {
	p := &fakeProvider{name: "echo", respond: func(_ int64, in string) (string, *ToolError) {
		return in, nil
	}}
	d, sink := newTestDispatcher(p, Policy{})

	out, err := d.Call(context.Background(), "echo", "", `{"x":1}`)
	require.Nil(t, err)
	assert.Equal(t, `{"x":1}`, out)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "echo", events[0].Tool)
	assert.Equal(t, "echo", events[0].Provider)
	assert.Empty(t, events[0].Err)
}

func TestDispatch_NoGrantIsNotFound(t *testing.T) {
	p := &fakeProvider{name: "echo", respond: func(_ int64, in string) (string, *ToolError) {
		return in, nil
	}}
	d, _ := newTestDispatcher(p, nil)

	_, err := d.Call(context.Background(), "echo", "", "{}")
	require.NotNil(t, err)
	assert.Equal(t, ErrNotFound, err.Kind)
	assert.Zero(t, p.calls.Load(), "an ungranted call must never reach the provider")
}

func TestDispatch_RetriesTransientRateLimit(t *testing.T) {
	p := &fakeProvider{name: "flaky", respond: func(attempt int64, _ string) (string, *ToolError) {
		if attempt < 3 {
			return "", RateLimit(1)
		}
		return `"ok"`, nil
	}}
	d, sink := newTestDispatcher(p, Policy{})

	out, err := d.Call(context.Background(), "flaky", "", "{}")
	require.Nil(t, err)
	assert.Equal(t, `"ok"`, out)
	assert.Equal(t, int64(3), p.calls.Load())
	assert.Len(t, sink.Events(), 3, "every attempt records a trace event")
}

func TestDispatch_DoesNotRetryInvalidArgs(t *testing.T) {
	p := &fakeProvider{name: "strict", respond: func(_ int64, _ string) (string, *ToolError) {
		return "", InvalidArgs("bad input")
	}}
	d, _ := newTestDispatcher(p, Policy{})

	_, err := d.Call(context.Background(), "strict", "", "{}")
	require.NotNil(t, err)
	assert.Equal(t, ErrInvalidArgs, err.Kind)
	assert.Equal(t, int64(1), p.calls.Load())
}

func TestPolicy_TimeoutMisconfigurationRejected(t *testing.T) {
	p := Policy{"timeout_ms": "-5"}
	err := p.Validate("")
	require.NotNil(t, err)
	assert.Equal(t, ErrInvalidArgs, err.Kind)
}

func TestPolicy_DomainMatching(t *testing.T) {
	p := Policy{"domain": "*.example.com"}
	assert.Nil(t, p.Validate("api.example.com"))
	mismatch := p.Validate("evil.org")
	require.NotNil(t, mismatch)

	exact := Policy{"domain": "example.com"}
	assert.Nil(t, exact.Validate("example.com"))
	assert.NotNil(t, exact.Validate("sub.example.com"))
}

func TestPolicy_AuthTokenVerification(t *testing.T) {
	secret := "s3cret"
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "agent",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	ok := Policy{"authtoken": signed, "authtoken_secret": secret}
	assert.Nil(t, ok.Validate(""))

	wrongKey := Policy{"authtoken": signed, "authtoken_secret": "other"}
	verr := wrongKey.Validate("")
	require.NotNil(t, verr)
	assert.Equal(t, ErrAuthError, verr.Kind)

	missingSecret := Policy{"authtoken": signed}
	assert.NotNil(t, missingSecret.Validate(""))
}

func TestRetryPolicy_Backoff(t *testing.T) {
	exp := RetryPolicy{Kind: BackoffExponential, MaxRetries: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	assert.Equal(t, 100*time.Millisecond, exp.Delay(1))
	assert.Equal(t, 200*time.Millisecond, exp.Delay(2))
	assert.Equal(t, 400*time.Millisecond, exp.Delay(3))
	assert.Equal(t, time.Second, exp.Delay(10), "delays cap at MaxDelay")

	fib := RetryPolicy{Kind: BackoffFibonacci, MaxRetries: 5, BaseDelay: 10 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, fib.Delay(1))
	assert.Equal(t, 10*time.Millisecond, fib.Delay(2))
	assert.Equal(t, 20*time.Millisecond, fib.Delay(3))
	assert.Equal(t, 30*time.Millisecond, fib.Delay(4))
}

func TestRetryPolicy_HonorsRateLimitHint(t *testing.T) {
	p := DefaultRetryPolicy()
	d := p.RetryAfter(RateLimit(250), 1)
	assert.Equal(t, 250*time.Millisecond, d)
}

func TestToolError_Transient(t *testing.T) {
	assert.True(t, RateLimit(0).Transient())
	assert.True(t, ProviderUnavailable("down").Transient())
	assert.False(t, InvalidArgs("x").Transient())
	assert.True(t, Timeout(100, 1000).Transient())
	assert.False(t, Timeout(5000, 1000).Transient(), "a hung provider is not transient")
}
