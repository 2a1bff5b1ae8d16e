package parser

import (
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/lexer"
	"github.com/lumen-lang/lumen/internal/source"
)

// parsePattern parses one match pattern, including the `|` alternation.
func (p *Parser) parsePattern() ast.Pattern {
	first := p.parsePatternPrimary()
	if p.check(lexer.PIPE) {
		alts := []ast.Pattern{first}
		for p.match(lexer.PIPE) {
			alts = append(alts, p.parsePatternPrimary())
		}
		return &ast.OrPattern{BaseNode: bn(first.Span(), p.prevSpan()), Alts: alts}
	}
	return first
}

func (p *Parser) parsePatternPrimary() ast.Pattern {
	start := p.cur().Span

	switch p.cur().Kind {
	case lexer.IDENT:
		if p.cur().Lexeme == "_" {
			p.advance()
			return &ast.WildcardPattern{BaseNode: bn(start, p.prevSpan())}
		}
		name := p.advance().Lexeme
		if p.check(lexer.DOT) {
			p.advance()
			variant := p.expect(lexer.IDENT, "variant name").Lexeme
			return p.finishVariantPattern(start, name, variant)
		}
		if p.check(lexer.LBRACE) {
			return p.parseRecordPattern(start, name)
		}
		if p.check(lexer.LPAREN) {
			return p.finishVariantPattern(start, "", name)
		}
		return &ast.BindPattern{BaseNode: bn(start, p.prevSpan()), Name: name}
	case lexer.LPAREN:
		p.advance()
		var elems []ast.Pattern
		for !p.check(lexer.RPAREN) && !p.atEnd() {
			elems = append(elems, p.parsePattern())
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.RPAREN, "')'")
		return &ast.TuplePattern{BaseNode: bn(start, p.prevSpan()), Elems: elems}
	default:
		val := p.parseUnaryExpr()
		return &ast.LiteralPattern{BaseNode: bn(start, p.prevSpan()), Value: val}
	}
}

func (p *Parser) finishVariantPattern(start source.Span, enum, variant string) ast.Pattern {
	var payload []ast.Pattern
	if p.match(lexer.LPAREN) {
		for !p.check(lexer.RPAREN) && !p.atEnd() {
			payload = append(payload, p.parsePattern())
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.RPAREN, "')'")
	}
	return &ast.VariantPattern{BaseNode: bn(start, p.prevSpan()), Enum: enum, Variant: variant, Payload: payload}
}

func (p *Parser) parseRecordPattern(start source.Span, record string) ast.Pattern {
	p.advance() // '{'
	fields := map[string]ast.Pattern{}
	for !p.check(lexer.RBRACE) && !p.atEnd() {
		name := p.expect(lexer.IDENT, "field name").Lexeme
		var pat ast.Pattern
		if p.match(lexer.COLON) {
			pat = p.parsePattern()
		} else {
			pat = &ast.BindPattern{Name: name}
		}
		fields[name] = pat
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RBRACE, "'}'")
	return &ast.RecordPattern{BaseNode: bn(start, p.prevSpan()), Record: record, Fields: fields}
}
