package process

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/lumen-lang/lumen/internal/tool"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// MemoryProvider exposes a memory process through the tool-provider
// interface, so agent cells reach their memory with ordinary grant-governed
// tool calls instead of a dedicated opcode. Input shape:
//
//	{"op": "get"|"set"|"delete"|"keys", "key": "...", "value": <json>}
type MemoryProvider struct {
	mem *Memory
}

func NewMemoryProvider(mem *Memory) *MemoryProvider {
	return &MemoryProvider{mem: mem}
}

func (p *MemoryProvider) Name() string {
	return "memory:" + p.mem.Name()
}

func (p *MemoryProvider) Schema() tool.Schema {
	return tool.Schema{
		Input:  `{"type":"object","properties":{"op":{"type":"string","enum":["get","set","delete","keys"]},"key":{"type":"string"},"value":{}},"required":["op"]}`,
		Output: `{}`,
		Effect: "Memory",
	}
}

func (p *MemoryProvider) Call(ctx context.Context, input string) (string, *tool.ToolError) {
	op := gjson.Get(input, "op").String()
	key := gjson.Get(input, "key").String()

	switch op {
	case "get":
		v, err := p.mem.Get(ctx, key)
		if err != nil {
			return "", tool.ExecutionFailed(err)
		}
		return vmvalue.ToJSON(v), nil
	case "set":
		raw := gjson.Get(input, "value")
		if !raw.Exists() {
			return "", tool.InvalidArgs("set requires a value")
		}
		v, err := vmvalue.FromJSON(raw.Raw)
		if err != nil {
			return "", tool.InvalidArgs(fmt.Sprintf("value is not valid JSON: %v", err))
		}
		if err := p.mem.Set(ctx, key, v); err != nil {
			return "", tool.ExecutionFailed(err)
		}
		return "true", nil
	case "delete":
		if err := p.mem.Delete(ctx, key); err != nil {
			return "", tool.ExecutionFailed(err)
		}
		return "true", nil
	case "keys":
		keys, err := p.mem.Keys(ctx)
		if err != nil {
			return "", tool.ExecutionFailed(err)
		}
		out := "[]"
		for i, k := range keys {
			out, _ = sjson.Set(out, fmt.Sprintf("%d", i), k)
		}
		return out, nil
	default:
		return "", tool.InvalidArgs(fmt.Sprintf("unknown memory op %q", op))
	}
}
