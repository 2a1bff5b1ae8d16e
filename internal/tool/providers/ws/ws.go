// Package ws is an illustrative tool.Provider that dispatches a call over
// a websocket connection to a remote endpoint, satisfying the narrow
// ToolProvider trait spec.md §6 specifies without implementing a concrete
// protocol body (spec.md §1 puts "the concrete body of tool providers...
// only their common trait is specified" out of scope; this is the one
// illustrative example SPEC_FULL.md's domain stack calls for). Grounded
// on the teacher's internal/web package's use of gorilla/websocket for its
// generated apps' live-reload channel, re-wired standalone here since
// Lumen has no REST-app-generation module to host it in.
package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumen-lang/lumen/internal/tool"
)

// Provider dials Endpoint once per call, sends the JSON input as a single
// text frame, and reads back one text frame as the JSON result. Real
// providers would hold a persistent connection pool; a call-scoped dial
// keeps this illustrative body small.
type Provider struct {
	ProviderName string
	Endpoint     string
	dialer       *websocket.Dialer
}

func New(name, endpoint string) *Provider {
	return &Provider{ProviderName: name, Endpoint: endpoint, dialer: websocket.DefaultDialer}
}

func (p *Provider) Name() string { return p.ProviderName }

func (p *Provider) Schema() tool.Schema {
	return tool.Schema{Input: `{"type":"object"}`, Output: `{"type":"object"}`, Effect: "Net"}
}

func (p *Provider) Call(ctx context.Context, input string) (string, *tool.ToolError) {
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		deadline = time.Now().Add(30 * time.Second)
	}

	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	conn, _, err := p.dialer.DialContext(dialCtx, p.Endpoint, nil)
	if err != nil {
		return "", tool.ProviderUnavailable(fmt.Sprintf("dial %s: %v", p.Endpoint, err))
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(input)); err != nil {
		return "", tool.ExecutionFailed(err)
	}

	_ = conn.SetReadDeadline(deadline)
	_, msg, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", tool.Timeout(time.Since(deadline).Milliseconds(), 0)
		}
		return "", tool.ExecutionFailed(err)
	}
	return string(msg), nil
}
