// Package parser implements Lumen's recursive-descent/Pratt parser
// (spec.md §4.3): it consumes the lexer's token stream and produces an
// internal/ast.Program, accumulating diagnostics instead of stopping at the
// first syntax error so a single `lumen build` invocation can report every
// problem in a file at once (mirroring the teacher's error-accumulation
// idiom in internal/compiler/parser).
package parser

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diag"
	"github.com/lumen-lang/lumen/internal/lexer"
	"github.com/lumen-lang/lumen/internal/source"
)

// Parser holds parse state over one token stream.
type Parser struct {
	file  string
	toks  []lexer.Token
	pos   int
	diags diag.List

	// pendingAttrs carries item-level `@name` decorators (e.g. `@must_use`,
	// `@strict`) seen immediately before a declaration, to be claimed by the
	// next parseCell/parseRecord call. Document-level directives handled by
	// internal/mdextract never reach here; these are the rarer in-body form.
	pendingAttrs map[string]bool

	// scriptStmts accumulates top-level statements found outside any cell;
	// Parse wraps them into a synthetic __script_main cell (spec.md §4.3).
	scriptStmts []ast.Stmt
}

// ScriptMainName is the synthetic cell that receives inline top-level
// statements, and the entry cell a script-style document runs as.
const ScriptMainName = "__script_main"

// New creates a Parser over a fully-lexed token stream.
func New(file string, toks []lexer.Token) *Parser {
	return &Parser{file: file, toks: toks}
}

// Parse parses a full program, returning every item it could recover along
// with any diagnostics raised along the way.
func (p *Parser) Parse() (*ast.Program, diag.List) {
	start := p.cur().Span
	var items []ast.Item
	p.skipLayout()
	for !p.atEnd() {
		before := p.pos
		item := p.parseItem()
		if item != nil {
			items = append(items, item)
		}
		p.skipLayout()
		if p.pos == before {
			// Guard against an item parser that consumed nothing, which
			// would otherwise loop forever.
			p.advance()
		}
	}
	end := start
	if len(p.toks) > 0 {
		end = p.toks[len(p.toks)-1].Span
	}
	if len(p.scriptStmts) > 0 {
		first := p.scriptStmts[0].Span()
		last := p.scriptStmts[len(p.scriptStmts)-1].Span()
		items = append(items, &ast.CellDecl{
			BaseNode: bn(first, last),
			Name:     ScriptMainName,
			Body:     p.scriptStmts,
		})
	}
	return &ast.Program{Items: items, SpanRange: source.Merge(start, end)}, p.diags
}

// --- token stream helpers ---

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekAt(n int) lexer.Token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[idx]
}

func (p *Parser) atEnd() bool { return p.cur().Kind == lexer.EOF }

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) check(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) isIdent(lexeme string) bool {
	return p.cur().Kind == lexer.IDENT && p.cur().Lexeme == lexeme
}

func (p *Parser) match(k lexer.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

// skipLayout consumes NEWLINE/INDENT/DEDENT tokens, which are used only for
// lexer-side validation; actual block nesting is carried by `end` keywords.
func (p *Parser) skipLayout() {
	for p.check(lexer.NEWLINE) || p.check(lexer.INDENT) || p.check(lexer.DEDENT) {
		p.advance()
	}
}

func (p *Parser) expect(k lexer.Kind, what string) lexer.Token {
	if p.check(k) {
		return p.advance()
	}
	p.errorf(p.cur().Span, "E101", "expected %s, found %q", what, p.cur().Lexeme)
	return p.cur()
}

func (p *Parser) errorf(sp source.Span, code, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.diags = append(p.diags, diag.New("parse", code, msg, diag.Location{File: p.file, Line: sp.StartLine, Column: sp.StartCol, Length: sp.Len()}, diag.Error))
}

// synchronize discards tokens until a plausible item/statement boundary, so
// one malformed construct doesn't cascade into spurious follow-on errors.
func (p *Parser) synchronize() {
	for !p.atEnd() {
		switch p.cur().Kind {
		case lexer.KW_END, lexer.NEWLINE:
			p.advance()
			return
		case lexer.KW_CELL, lexer.KW_RECORD, lexer.KW_ENUM, lexer.KW_AGENT,
			lexer.KW_PROCESS, lexer.KW_EFFECT, lexer.KW_HANDLER, lexer.KW_USE,
			lexer.KW_GRANT, lexer.KW_TRAIT, lexer.KW_IMPL, lexer.KW_IMPORT,
			lexer.KW_CONST, lexer.KW_MACRO, lexer.KW_TYPE:
			return
		}
		p.advance()
	}
}

// --- top-level items ---

func (p *Parser) parseItem() (item ast.Item) {
	defer func() {
		if r := recover(); r != nil {
			item = nil
			p.synchronize()
		}
	}()

	switch p.cur().Kind {
	case lexer.AT:
		name := p.parseDirectiveLine()
		if name != "" {
			if p.pendingAttrs == nil {
				p.pendingAttrs = map[string]bool{}
			}
			p.pendingAttrs[name] = true
		}
		return nil
	case lexer.KW_RECORD:
		return p.parseRecord()
	case lexer.KW_ENUM:
		return p.parseEnum()
	case lexer.KW_CELL:
		return p.parseCell()
	case lexer.KW_AGENT:
		return p.parseAgent()
	case lexer.KW_PROCESS:
		return p.parseProcess()
	case lexer.KW_EFFECT:
		return p.parseEffect()
	case lexer.KW_HANDLER:
		return p.parseHandler()
	case lexer.KW_USE:
		return p.parseUseTool()
	case lexer.KW_GRANT:
		return p.parseGrant()
	case lexer.KW_TRAIT:
		return p.parseTrait()
	case lexer.KW_IMPL:
		return p.parseImpl()
	case lexer.KW_IMPORT:
		return p.parseImport()
	case lexer.KW_CONST:
		return p.parseConst()
	case lexer.KW_MACRO:
		return p.parseMacro()
	case lexer.KW_TYPE:
		return p.parseTypeAlias()
	default:
		// Inline top-level statements are legal in script-style documents;
		// they collect into a synthetic __script_main cell (spec.md §4.3).
		stmt := p.parseStmt()
		if stmt != nil {
			p.scriptStmts = append(p.scriptStmts, stmt)
		}
		return nil
	}
}

// parseDirectiveLine consumes an `@name value` line left over after markdown
// extraction folds directives into the source (rare, but harmless to accept
// directly in `.lm` files too).
func (p *Parser) parseDirectiveLine() string {
	p.advance() // '@'
	name := ""
	if p.check(lexer.IDENT) {
		name = p.advance().Lexeme
	}
	for !p.check(lexer.NEWLINE) && !p.atEnd() {
		p.advance()
	}
	return name
}

// takeAttrs drains and returns the item-level attributes accumulated since
// the last declaration claimed them.
func (p *Parser) takeAttrs() map[string]bool {
	attrs := p.pendingAttrs
	p.pendingAttrs = nil
	return attrs
}

func (p *Parser) parseGenerics() []string {
	var out []string
	if !p.match(lexer.LT) {
		return nil
	}
	for !p.check(lexer.GT) && !p.atEnd() {
		if p.check(lexer.IDENT) {
			out = append(out, p.advance().Lexeme)
		} else {
			p.advance()
		}
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.GT, "'>'")
	return out
}

func (p *Parser) parseRecord() ast.Item {
	start := p.advance().Span // 'record'
	name := p.expect(lexer.IDENT, "record name").Lexeme
	generics := p.parseGenerics()
	p.skipLayout()

	var fields []ast.Field
	for !p.check(lexer.KW_END) && !p.atEnd() {
		fields = append(fields, p.parseField())
		p.skipLayout()
	}
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.RecordDecl{BaseNode: bn(start, end), Name: name, Generics: generics, Fields: fields}
}

func (p *Parser) parseField() ast.Field {
	start := p.cur().Span
	name := p.expect(lexer.IDENT, "field name").Lexeme
	p.expect(lexer.COLON, "':'")
	typ := p.parseTypeExpr()
	var def ast.Expr
	if p.match(lexer.EQ) {
		def = p.parseExpr()
	}
	where := p.parseWhereClauses()
	return ast.Field{Name: name, Type: typ, Default: def, Where: where, SpanRange: source.Merge(start, p.prevSpan())}
}

func (p *Parser) parseEnum() ast.Item {
	start := p.advance().Span // 'enum'
	name := p.expect(lexer.IDENT, "enum name").Lexeme
	generics := p.parseGenerics()
	p.skipLayout()

	var variants []ast.EnumVariant
	for !p.check(lexer.KW_END) && !p.atEnd() {
		vstart := p.cur().Span
		vname := p.expect(lexer.IDENT, "variant name").Lexeme
		var payload []ast.TypeExpr
		if p.match(lexer.LPAREN) {
			for !p.check(lexer.RPAREN) && !p.atEnd() {
				payload = append(payload, p.parseTypeExpr())
				if !p.match(lexer.COMMA) {
					break
				}
			}
			p.expect(lexer.RPAREN, "')'")
		}
		variants = append(variants, ast.EnumVariant{Name: vname, Payload: payload, SpanRange: source.Merge(vstart, p.prevSpan())})
		p.skipLayout()
	}
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.EnumDecl{BaseNode: bn(start, end), Name: name, Generics: generics, Variants: variants}
}

func (p *Parser) parseParams() []ast.Param {
	var params []ast.Param
	p.expect(lexer.LPAREN, "'('")
	for !p.check(lexer.RPAREN) && !p.atEnd() {
		start := p.cur().Span
		mut := p.match(lexer.KW_MUT)
		name := p.expect(lexer.IDENT, "parameter name").Lexeme
		var typ ast.TypeExpr
		if p.match(lexer.COLON) {
			typ = p.parseTypeExpr()
		}
		var def ast.Expr
		if p.match(lexer.EQ) {
			def = p.parseExpr()
		}
		params = append(params, ast.Param{Name: name, Type: typ, Mutable: mut, Default: def, SpanRange: source.Merge(start, p.prevSpan())})
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN, "')'")
	return params
}

func (p *Parser) parseEffectRow() []string {
	var effects []string
	if !p.match(lexer.SLASH) {
		return nil
	}
	for {
		effects = append(effects, p.expect(lexer.IDENT, "effect name").Lexeme)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	return effects
}

func (p *Parser) parseWhereClauses() []ast.WhereClause {
	var out []ast.WhereClause
	for p.isIdent("where") {
		start := p.advance().Span
		name := p.expect(lexer.IDENT, "constraint name").Lexeme
		var args []ast.Expr
		if p.match(lexer.LPAREN) {
			for !p.check(lexer.RPAREN) && !p.atEnd() {
				args = append(args, p.parseExpr())
				if !p.match(lexer.COMMA) {
					break
				}
			}
			p.expect(lexer.RPAREN, "')'")
		}
		out = append(out, ast.WhereClause{Name: name, Args: args, SpanRange: source.Merge(start, p.prevSpan())})
	}
	return out
}

func (p *Parser) parseCell() ast.Item {
	attrs := p.takeAttrs()
	start := p.advance().Span // 'cell'
	name := p.expect(lexer.IDENT, "cell name").Lexeme
	generics := p.parseGenerics()
	params := p.parseParams()
	var ret ast.TypeExpr
	if p.match(lexer.ARROW) {
		ret = p.parseTypeExpr()
	}
	effects := p.parseEffectRow()
	where := p.parseWhereClauses()
	p.skipLayout()
	body := p.parseBlock()
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.CellDecl{
		BaseNode: bn(start, end), Name: name, Generics: generics, Params: params,
		Ret: ret, Effects: effects, Strict: attrs["strict"], MustUse: attrs["must_use"],
		Where: where, Body: body,
	}
}

func (p *Parser) parseAgent() ast.Item {
	start := p.advance().Span // 'agent'
	name := p.expect(lexer.IDENT, "agent name").Lexeme
	params := p.parseParams()
	var ret ast.TypeExpr
	if p.match(lexer.ARROW) {
		ret = p.parseTypeExpr()
	}
	effects := p.parseEffectRow()
	where := p.parseWhereClauses()
	p.skipLayout()

	decl := &ast.AgentDecl{Name: name, Params: params, Ret: ret, Effects: effects, Where: where}
	for p.check(lexer.IDENT) && (p.cur().Lexeme == "instructions" || p.cur().Lexeme == "tools" || p.cur().Lexeme == "memory") {
		switch p.cur().Lexeme {
		case "instructions":
			p.advance()
			p.expect(lexer.COLON, "':'")
			decl.Instructions = p.parseExpr()
		case "tools":
			p.advance()
			p.expect(lexer.COLON, "':'")
			p.expect(lexer.LBRACKET, "'['")
			for !p.check(lexer.RBRACKET) && !p.atEnd() {
				decl.Tools = append(decl.Tools, p.expect(lexer.IDENT, "tool name").Lexeme)
				if !p.match(lexer.COMMA) {
					break
				}
			}
			p.expect(lexer.RBRACKET, "']'")
		case "memory":
			p.advance()
			p.expect(lexer.COLON, "':'")
			decl.Memory = p.expect(lexer.IDENT, "memory process name").Lexeme
		}
		p.skipLayout()
	}
	decl.Body = p.parseBlock()
	end := p.expect(lexer.KW_END, "'end'").Span
	decl.BaseNode = bn(start, end)
	return decl
}

func (p *Parser) parseProcessKind() (ast.ProcessKind, bool) {
	switch p.cur().Kind {
	case lexer.KW_MEMORY:
		return ast.ProcessMemory, true
	case lexer.KW_MACHINE:
		return ast.ProcessMachine, true
	case lexer.KW_PIPELINE:
		return ast.ProcessPipeline, true
	case lexer.KW_ORCHESTRATION:
		return ast.ProcessOrchestration, true
	case lexer.KW_GUARDRAIL:
		return ast.ProcessGuardrail, true
	case lexer.KW_EVAL:
		return ast.ProcessEval, true
	case lexer.KW_PATTERN:
		return ast.ProcessPattern, true
	default:
		return 0, false
	}
}

func (p *Parser) parseProcess() ast.Item {
	start := p.advance().Span // 'process'
	kind, ok := p.parseProcessKind()
	if !ok {
		p.errorf(p.cur().Span, "E102", "expected a process kind (memory, machine, pipeline, orchestration, guardrail, eval, pattern)")
	} else {
		p.advance()
	}
	name := p.expect(lexer.IDENT, "process name").Lexeme
	p.skipLayout()

	var config []ast.ConfigEntry
	var body []ast.Stmt
	for !p.check(lexer.KW_END) && !p.atEnd() {
		if p.check(lexer.IDENT) && p.peekAt(1).Kind == lexer.COLON {
			cstart := p.cur().Span
			key := p.advance().Lexeme
			p.advance() // ':'
			val := p.parseExpr()
			config = append(config, ast.ConfigEntry{Key: key, Value: val, SpanRange: source.Merge(cstart, p.prevSpan())})
		} else {
			body = append(body, p.parseStmt())
		}
		p.skipLayout()
	}
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.ProcessDecl{BaseNode: bn(start, end), Kind: kind, Name: name, Config: config, Body: body}
}

func (p *Parser) parseEffect() ast.Item {
	start := p.advance().Span // 'effect'
	name := p.expect(lexer.IDENT, "effect name").Lexeme
	p.skipLayout()

	var ops []ast.EffectOp
	for !p.check(lexer.KW_END) && !p.atEnd() {
		ostart := p.cur().Span
		opname := p.expect(lexer.IDENT, "operation name").Lexeme
		params := p.parseParams()
		var ret ast.TypeExpr
		if p.match(lexer.ARROW) {
			ret = p.parseTypeExpr()
		}
		ops = append(ops, ast.EffectOp{Name: opname, Params: params, Ret: ret, SpanRange: source.Merge(ostart, p.prevSpan())})
		p.skipLayout()
	}
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.EffectDecl{BaseNode: bn(start, end), Name: name, Ops: ops}
}

func (p *Parser) parseHandler() ast.Item {
	start := p.advance().Span // 'handler'
	name := p.expect(lexer.IDENT, "handler name").Lexeme
	p.expect(lexer.KW_FOR, "'for'")
	effect := p.expect(lexer.IDENT, "effect name").Lexeme
	p.skipLayout()

	var cases []ast.HandleCase
	for p.check(lexer.KW_HANDLE) {
		cstart := p.advance().Span
		op := p.expect(lexer.IDENT, "operation name").Lexeme
		params := p.parseParams()
		p.skipLayout()
		body := p.parseBlock()
		p.expect(lexer.KW_END, "'end'")
		cases = append(cases, ast.HandleCase{Op: op, Params: params, Body: body, SpanRange: source.Merge(cstart, p.prevSpan())})
		p.skipLayout()
	}
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.HandlerDecl{BaseNode: bn(start, end), Name: name, Effect: effect, Cases: cases}
}

func (p *Parser) parseUseTool() ast.Item {
	start := p.advance().Span // 'use'
	p.expect(lexer.KW_TOOL, "'tool'")
	name := p.expect(lexer.IDENT, "tool name").Lexeme
	var provider string
	if p.isIdent("from") {
		p.advance()
		provider = p.parseStringLiteralText()
	}
	var config []ast.ConfigEntry
	if p.check(lexer.NEWLINE) || p.check(lexer.INDENT) {
		save := p.pos
		p.skipLayout()
		for p.check(lexer.IDENT) && p.peekAt(1).Kind == lexer.COLON {
			cstart := p.cur().Span
			key := p.advance().Lexeme
			p.advance()
			val := p.parseExpr()
			config = append(config, ast.ConfigEntry{Key: key, Value: val, SpanRange: source.Merge(cstart, p.prevSpan())})
			p.skipLayout()
		}
		if !p.check(lexer.KW_END) {
			p.pos = save
		} else {
			p.expect(lexer.KW_END, "'end'")
		}
	}
	end := p.prevSpan()
	return &ast.UseToolDecl{BaseNode: bn(start, end), Name: name, Provider: provider, Config: config}
}

func (p *Parser) parseGrant() ast.Item {
	start := p.advance().Span // 'grant'
	var tools, effects []string
	collect := func() []string {
		var out []string
		if p.match(lexer.LBRACKET) {
			for !p.check(lexer.RBRACKET) && !p.atEnd() {
				out = append(out, p.expect(lexer.IDENT, "name").Lexeme)
				if !p.match(lexer.COMMA) {
					break
				}
			}
			p.expect(lexer.RBRACKET, "']'")
		} else {
			out = append(out, p.expect(lexer.IDENT, "name").Lexeme)
		}
		return out
	}
	if p.check(lexer.KW_TOOL) {
		p.advance()
		tools = collect()
	} else if p.check(lexer.KW_EFFECT) {
		p.advance()
		effects = collect()
	} else {
		tools = collect()
	}
	var scope string
	if p.match(lexer.KW_TO) {
		scope = p.expect(lexer.IDENT, "grant target").Lexeme
	}
	var constraints []ast.ConfigEntry
	if p.check(lexer.NEWLINE) || p.check(lexer.INDENT) {
		save := p.pos
		p.skipLayout()
		for p.check(lexer.IDENT) && p.peekAt(1).Kind == lexer.COLON {
			cstart := p.cur().Span
			key := p.advance().Lexeme
			p.advance()
			val := p.parseExpr()
			constraints = append(constraints, ast.ConfigEntry{Key: key, Value: val, SpanRange: source.Merge(cstart, p.prevSpan())})
			p.skipLayout()
		}
		if !p.check(lexer.KW_END) {
			p.pos = save
		} else {
			p.expect(lexer.KW_END, "'end'")
		}
	}
	end := p.prevSpan()
	return &ast.GrantDecl{BaseNode: bn(start, end), Tools: tools, Effects: effects, Scope: scope, Constraints: constraints}
}

func (p *Parser) parseTrait() ast.Item {
	start := p.advance().Span // 'trait'
	name := p.expect(lexer.IDENT, "trait name").Lexeme
	p.skipLayout()
	var methods []ast.TraitMethod
	for !p.check(lexer.KW_END) && !p.atEnd() {
		mstart := p.cur().Span
		mname := p.expect(lexer.IDENT, "method name").Lexeme
		params := p.parseParams()
		var ret ast.TypeExpr
		if p.match(lexer.ARROW) {
			ret = p.parseTypeExpr()
		}
		methods = append(methods, ast.TraitMethod{Name: mname, Params: params, Ret: ret, SpanRange: source.Merge(mstart, p.prevSpan())})
		p.skipLayout()
	}
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.TraitDecl{BaseNode: bn(start, end), Name: name, Methods: methods}
}

func (p *Parser) parseImpl() ast.Item {
	start := p.advance().Span // 'impl'
	trait := p.expect(lexer.IDENT, "trait name").Lexeme
	p.expect(lexer.KW_FOR, "'for'")
	target := p.expect(lexer.IDENT, "target type name").Lexeme
	p.skipLayout()

	var cells []*ast.CellDecl
	for p.check(lexer.KW_CELL) {
		if c, ok := p.parseCell().(*ast.CellDecl); ok {
			cells = append(cells, c)
		}
		p.skipLayout()
	}
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.ImplDecl{BaseNode: bn(start, end), Trait: trait, Target: target, Cells: cells}
}

func (p *Parser) parseImport() ast.Item {
	start := p.advance().Span // 'import'
	var items []string
	var path string
	switch {
	case p.match(lexer.LBRACE):
		// `import { a, b } from "pkg/mod"`
		for !p.check(lexer.RBRACE) && !p.atEnd() {
			items = append(items, p.expect(lexer.IDENT, "import name").Lexeme)
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.RBRACE, "'}'")
		if p.isIdent("from") {
			p.advance()
		}
		path = p.parseStringLiteralText()
	case p.check(lexer.IDENT):
		// `import pkg.mod: name1, name2`
		path = p.expect(lexer.IDENT, "module path").Lexeme
		for p.match(lexer.DOT) {
			path += "." + p.expect(lexer.IDENT, "module path segment").Lexeme
		}
		if p.match(lexer.COLON) {
			for p.check(lexer.IDENT) {
				items = append(items, p.advance().Lexeme)
				if !p.match(lexer.COMMA) {
					break
				}
			}
		}
	default:
		path = p.parseStringLiteralText()
	}
	var alias string
	if p.match(lexer.KW_AS) {
		alias = p.expect(lexer.IDENT, "alias").Lexeme
	}
	end := p.prevSpan()
	return &ast.ImportDecl{BaseNode: bn(start, end), Path: path, Items: items, Alias: alias}
}

func (p *Parser) parseConst() ast.Item {
	start := p.advance().Span // 'const'
	name := p.expect(lexer.IDENT, "constant name").Lexeme
	var typ ast.TypeExpr
	if p.match(lexer.COLON) {
		typ = p.parseTypeExpr()
	}
	p.expect(lexer.EQ, "'='")
	val := p.parseExpr()
	end := p.prevSpan()
	return &ast.ConstDecl{BaseNode: bn(start, end), Name: name, Type: typ, Value: val}
}

func (p *Parser) parseMacro() ast.Item {
	start := p.advance().Span // 'macro'
	name := p.expect(lexer.IDENT, "macro name").Lexeme
	p.expect(lexer.LPAREN, "'('")
	var params []string
	for !p.check(lexer.RPAREN) && !p.atEnd() {
		params = append(params, p.expect(lexer.IDENT, "macro parameter").Lexeme)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN, "')'")
	p.skipLayout()
	body := p.parseBlock()
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.MacroDecl{BaseNode: bn(start, end), Name: name, Params: params, Body: body}
}

func (p *Parser) parseTypeAlias() ast.Item {
	start := p.advance().Span // 'type'
	name := p.expect(lexer.IDENT, "type name").Lexeme
	generics := p.parseGenerics()
	p.expect(lexer.EQ, "'='")
	target := p.parseTypeExpr()
	end := p.prevSpan()
	return &ast.TypeAliasDecl{BaseNode: bn(start, end), Name: name, Generics: generics, Target: target}
}

// --- shared helpers ---

func (p *Parser) prevSpan() source.Span {
	if p.pos == 0 {
		return p.cur().Span
	}
	return p.toks[p.pos-1].Span
}

func (p *Parser) parseStringLiteralText() string {
	if p.check(lexer.STRING_LIT) {
		return p.advance().Lexeme
	}
	p.errorf(p.cur().Span, "E103", "expected a string literal")
	return ""
}

func bn(start, end source.Span) ast.BaseNode { return ast.BaseNode{SpanRange: source.Merge(start, end)} }
