package parser

import (
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/lexer"
)

// parseBlock parses statements until KW_END or one of stop is reached,
// without consuming the terminator.
func (p *Parser) parseBlock(stop ...lexer.Kind) []ast.Stmt {
	var body []ast.Stmt
	p.skipLayout()
	for !p.atEnd() && !p.check(lexer.KW_END) && !p.inStop(stop) {
		body = append(body, p.parseStmt())
		p.skipLayout()
	}
	return body
}

// parseCaseBody parses the statements of one match arm, stopping at the
// next `case` keyword or the closing `end`.
func (p *Parser) parseCaseBody() []ast.Stmt {
	var body []ast.Stmt
	p.skipLayout()
	for !p.atEnd() && !p.check(lexer.KW_END) && !p.isIdent("case") {
		body = append(body, p.parseStmt())
		p.skipLayout()
	}
	return body
}

func (p *Parser) inStop(stop []lexer.Kind) bool {
	for _, k := range stop {
		if p.check(k) {
			return true
		}
	}
	return false
}

func (p *Parser) parseStmt() (stmt ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			p.synchronizeStmt()
			stmt = &ast.ExprStmt{Value: &ast.LiteralExpr{Kind: ast.LitNull}}
		}
	}()

	switch p.cur().Kind {
	case lexer.KW_LET:
		return p.parseLet()
	case lexer.KW_RETURN:
		return p.parseReturn()
	case lexer.KW_IF:
		return p.parseIfStmt()
	case lexer.KW_WHILE:
		return p.parseWhile()
	case lexer.KW_FOR:
		return p.parseFor()
	case lexer.KW_LOOP:
		return p.parseLoop()
	case lexer.KW_BREAK:
		sp := p.advance().Span
		return &ast.BreakStmt{BaseNode: bn(sp, sp)}
	case lexer.KW_CONTINUE:
		sp := p.advance().Span
		return &ast.ContinueStmt{BaseNode: bn(sp, sp)}
	case lexer.KW_DEFER:
		start := p.advance().Span
		body := p.parseStmtOrBlock()
		return &ast.DeferStmt{BaseNode: bn(start, p.prevSpan()), Body: body}
	case lexer.KW_HALT:
		start := p.advance().Span
		msg := p.parseExpr()
		return &ast.HaltStmt{BaseNode: bn(start, p.prevSpan()), Message: msg}
	case lexer.KW_WITH:
		return p.parseHandleStmt()
	case lexer.KW_MATCH:
		return p.parseMatchStmt()
	default:
		return p.parseSimpleStmt()
	}
}

// synchronizeStmt recovers from a malformed statement by skipping to the
// next newline or block terminator.
func (p *Parser) synchronizeStmt() {
	for !p.atEnd() && !p.check(lexer.NEWLINE) && !p.check(lexer.KW_END) {
		p.advance()
	}
}

// parseStmtOrBlock parses either a single inline statement or (when followed
// by layout) a full block up to `end`.
func (p *Parser) parseStmtOrBlock() []ast.Stmt {
	if p.check(lexer.NEWLINE) || p.check(lexer.INDENT) {
		body := p.parseBlock()
		p.expect(lexer.KW_END, "'end'")
		return body
	}
	return []ast.Stmt{p.parseStmt()}
}

func (p *Parser) parseLet() ast.Stmt {
	start := p.advance().Span // 'let'
	mut := p.match(lexer.KW_MUT)
	name := p.expect(lexer.IDENT, "binding name").Lexeme
	var typ ast.TypeExpr
	if p.match(lexer.COLON) {
		typ = p.parseTypeExpr()
	}
	p.expect(lexer.EQ, "'='")
	val := p.parseExpr()
	return &ast.LetStmt{BaseNode: bn(start, p.prevSpan()), Name: name, Mutable: mut, Type: typ, Value: val}
}

func (p *Parser) parseReturn() ast.Stmt {
	start := p.advance().Span // 'return'
	var val ast.Expr
	if !p.check(lexer.NEWLINE) && !p.check(lexer.KW_END) && !p.atEnd() {
		val = p.parseExpr()
	}
	return &ast.ReturnStmt{BaseNode: bn(start, p.prevSpan()), Value: val}
}

func (p *Parser) parseIfStmt() ast.Stmt {
	start := p.advance().Span // 'if'
	cond := p.parseExpr()
	p.match(lexer.KW_THEN)
	p.skipLayout()
	then := p.parseBlock(lexer.KW_ELSE)
	var els []ast.Stmt
	if p.match(lexer.KW_ELSE) {
		if p.check(lexer.KW_IF) {
			els = []ast.Stmt{p.parseIfStmt()}
		} else {
			p.skipLayout()
			els = p.parseBlock()
			p.expect(lexer.KW_END, "'end'")
		}
	} else {
		p.expect(lexer.KW_END, "'end'")
	}
	return &ast.IfStmt{BaseNode: bn(start, p.prevSpan()), Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile() ast.Stmt {
	start := p.advance().Span // 'while'
	cond := p.parseExpr()
	p.skipLayout()
	body := p.parseBlock()
	p.expect(lexer.KW_END, "'end'")
	return &ast.WhileStmt{BaseNode: bn(start, p.prevSpan()), Cond: cond, Body: body}
}

func (p *Parser) parseFor() ast.Stmt {
	start := p.advance().Span // 'for'
	name := p.expect(lexer.IDENT, "loop variable").Lexeme
	p.expect(lexer.KW_IN, "'in'")
	iter := p.parseExpr()
	p.skipLayout()
	body := p.parseBlock()
	p.expect(lexer.KW_END, "'end'")
	return &ast.ForStmt{BaseNode: bn(start, p.prevSpan()), Name: name, Iter: iter, Body: body}
}

func (p *Parser) parseLoop() ast.Stmt {
	start := p.advance().Span // 'loop'
	p.skipLayout()
	body := p.parseBlock()
	p.expect(lexer.KW_END, "'end'")
	return &ast.LoopStmt{BaseNode: bn(start, p.prevSpan()), Body: body}
}

func (p *Parser) parseHandleStmt() ast.Stmt {
	start := p.advance().Span // 'with'
	var handlers []ast.Expr
	for {
		handlers = append(handlers, p.parseExpr())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.skipLayout()
	body := p.parseBlock()
	p.expect(lexer.KW_END, "'end'")
	return &ast.HandleStmt{BaseNode: bn(start, p.prevSpan()), Handlers: handlers, Body: body}
}

func (p *Parser) parseMatchStmt() ast.Stmt {
	start := p.advance().Span // 'match'
	subject := p.parseExpr()
	p.skipLayout()

	var arms []ast.MatchArm
	for p.isIdent("case") {
		p.advance()
		pat := p.parsePattern()
		var guard ast.Expr
		if p.match(lexer.KW_IF) {
			guard = p.parseExpr()
		}
		p.expect(lexer.FAT_ARROW, "'=>'")
		var body []ast.Stmt
		if p.check(lexer.NEWLINE) || p.check(lexer.INDENT) {
			p.skipLayout()
			body = p.parseCaseBody()
		} else {
			body = []ast.Stmt{&ast.ExprStmt{Value: p.parseExpr()}}
		}
		arms = append(arms, ast.MatchArm{Pattern: pat, Guard: guard, Body: body})
		p.skipLayout()
	}
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.MatchStmt{BaseNode: bn(start, end), Subject: subject, Arms: arms}
}

// parseSimpleStmt handles an expression statement, which may turn out to be
// an assignment once an assignment operator follows the parsed target.
func (p *Parser) parseSimpleStmt() ast.Stmt {
	start := p.cur().Span
	target := p.parseExpr()

	var op ast.AssignOp
	hasOp := true
	switch p.cur().Kind {
	case lexer.EQ:
		op = ast.AssignSet
	case lexer.ASSIGN_PLUS:
		op = ast.AssignAddTo
	case lexer.ASSIGN_MINUS:
		op = ast.AssignSubTo
	case lexer.ASSIGN_STAR:
		op = ast.AssignMulTo
	case lexer.ASSIGN_SLASH:
		op = ast.AssignDivTo
	default:
		hasOp = false
	}
	if hasOp {
		p.advance()
		val := p.parseExpr()
		return &ast.AssignStmt{BaseNode: bn(start, p.prevSpan()), Target: target, Op: op, Value: val}
	}
	return &ast.ExprStmt{BaseNode: bn(start, p.prevSpan()), Value: target}
}
