package parser

import (
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/lexer"
)

// parseTypeExpr parses a type annotation, handling the `A | B | C` union
// suffix and the `T?` optional suffix around a single primary type.
func (p *Parser) parseTypeExpr() ast.TypeExpr {
	first := p.parseTypePrimary()
	if p.check(lexer.PIPE) {
		members := []ast.TypeExpr{first}
		start := first.Span()
		for p.match(lexer.PIPE) {
			members = append(members, p.parseTypePrimary())
		}
		return &ast.UnionType{BaseNode: bn(start, p.prevSpan()), Members: members}
	}
	return first
}

func (p *Parser) parseTypePrimary() ast.TypeExpr {
	var t ast.TypeExpr
	switch {
	case p.check(lexer.LPAREN):
		start := p.advance().Span
		var elems []ast.TypeExpr
		for !p.check(lexer.RPAREN) && !p.atEnd() {
			elems = append(elems, p.parseTypeExpr())
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.RPAREN, "')'")
		t = &ast.TupleType{BaseNode: bn(start, p.prevSpan()), Elems: elems}
	case p.check(lexer.KW_FN):
		t = p.parseFnType()
	case p.check(lexer.IDENT):
		t = p.parseNamedOrResultType()
	default:
		p.errorf(p.cur().Span, "E104", "expected a type, found %q", p.cur().Lexeme)
		sp := p.cur().Span
		p.advance()
		t = &ast.NamedType{BaseNode: bn(sp, sp), Name: "Any"}
	}

	for p.check(lexer.QUESTION) {
		qsp := p.advance().Span
		t = &ast.OptionalType{BaseNode: bn(t.Span(), qsp), Inner: t}
	}
	return t
}

func (p *Parser) parseFnType() ast.TypeExpr {
	start := p.advance().Span // 'fn'
	p.expect(lexer.LPAREN, "'('")
	var params []ast.TypeExpr
	for !p.check(lexer.RPAREN) && !p.atEnd() {
		params = append(params, p.parseTypeExpr())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN, "')'")
	var ret ast.TypeExpr = &ast.NamedType{Name: "Null"}
	if p.match(lexer.ARROW) {
		ret = p.parseTypeExpr()
	}
	effects := p.parseEffectRow()
	return &ast.FnType{BaseNode: bn(start, p.prevSpan()), Params: params, Ret: ret, Effects: effects}
}

// parseNamedOrResultType parses `Name`, `Name(Args...)`, and the special
// `Result(Ok, Err)` shape which is still spelled as a parametric name in
// source but modeled with its own AST node since it always has exactly two
// parts (spec.md §3).
func (p *Parser) parseNamedOrResultType() ast.TypeExpr {
	start := p.cur().Span
	name := p.advance().Lexeme
	if !p.match(lexer.LPAREN) {
		return &ast.NamedType{BaseNode: bn(start, p.prevSpan()), Name: name}
	}

	var args []ast.TypeExpr
	for !p.check(lexer.RPAREN) && !p.atEnd() {
		args = append(args, p.parseTypeExpr())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN, "')'")
	end := p.prevSpan()

	if name == "Result" && len(args) == 2 {
		return &ast.ResultType{BaseNode: bn(start, end), Ok: args[0], Err: args[1]}
	}
	return &ast.NamedType{BaseNode: bn(start, end), Name: name, Args: args}
}
