package tool

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-lang/lumen/internal/trace"
)

// GrantLookup resolves the merged grant policy for a tool alias visible at
// a call site's scope (spec.md §4.4's scope-inheriting merge, performed by
// the resolver at compile time and carried into the LIR's Policies table;
// the VM hands Dispatch a closure over that table keyed by the call's
// static scope so this package never needs to know about scopes itself).
type GrantLookup func(toolAlias string) (Policy, bool)

// ProviderBinding resolves a tool alias to the provider name configured to
// serve it (lumen.toml's `providers.<toolId> = <providerName>`, spec.md
// §6).
type ProviderBinding func(toolAlias string) (providerName string, ok bool)

// Dispatcher implements the ToolCall bytecode's five steps (spec.md
// §4.10). It holds no per-call state: safe for concurrent Call from
// multiple VM tasks (spec.md §5 "the tool provider registry is read-mostly
// and safe for concurrent call; per-call state lives in the caller").
type Dispatcher struct {
	Registry *Registry
	Grants   GrantLookup
	Bindings ProviderBinding
	Sink     *trace.Sink
	Retry    RetryPolicy
	Log      *zap.Logger

	DefaultTimeoutMs int64
}

// NewDispatcher wires a Registry, grant/binding lookups, and a trace sink
// into one dispatcher, defaulting the retry policy and a nil-safe logger
// (spec.md §9: "there is none in the core" — the logger is threaded in
// explicitly, never a package-level global).
func NewDispatcher(reg *Registry, grants GrantLookup, bindings ProviderBinding, sink *trace.Sink, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		Registry:         reg,
		Grants:           grants,
		Bindings:         bindings,
		Sink:             sink,
		Retry:            DefaultRetryPolicy(),
		Log:              log,
		DefaultTimeoutMs: 30_000,
	}
}

// Call performs one ToolCall: resolve the grant, validate it, resolve and
// invoke the bound provider under a deadline, retry transient failures per
// the retry policy, and record a trace event (spec.md §4.10 steps 1-5).
func (d *Dispatcher) Call(ctx context.Context, toolAlias, domain, input string) (string, *ToolError) {
	policy, ok := d.Grants(toolAlias)
	if !ok {
		return "", NotFound(toolAlias)
	}
	if verr := policy.Validate(domain); verr != nil {
		return "", verr
	}

	providerName, ok := d.Bindings(toolAlias)
	if !ok {
		return "", NotFound(toolAlias)
	}
	provider, ok := d.Registry.Lookup(providerName)
	if !ok {
		return "", ProviderUnavailable("no provider registered for " + providerName)
	}

	timeoutMs := policy.TimeoutMs(d.DefaultTimeoutMs)

	var (
		out     string
		callErr *ToolError
	)
	attempts := d.Retry.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		started := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
		out, callErr = provider.Call(callCtx, input)
		cancel()
		dur := time.Since(started)

		if callCtx.Err() == context.DeadlineExceeded && callErr == nil {
			callErr = Timeout(dur.Milliseconds(), timeoutMs)
		}

		if d.Sink != nil {
			var errForTrace error
			if callErr != nil {
				errForTrace = callErr
			}
			d.Sink.Record(toolAlias, providerName, input, out, errForTrace, started, dur)
		}

		if callErr == nil {
			return out, nil
		}
		if attempt == attempts || !callErr.Transient() {
			d.Log.Warn("tool call failed", zap.String("tool", toolAlias), zap.String("provider", providerName), zap.Int("attempt", attempt), zap.String("kind", callErr.Kind.String()))
			return "", callErr
		}
		delay := d.Retry.RetryAfter(callErr, attempt)
		d.Log.Debug("retrying tool call", zap.String("tool", toolAlias), zap.Int("attempt", attempt), zap.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return "", Timeout(0, timeoutMs)
		case <-time.After(delay):
		}
	}
	return out, callErr
}
