package parser

import (
	"math/big"
	"strconv"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/lexer"
	"github.com/lumen-lang/lumen/internal/source"
)

// parseExpr is the entry point into the precedence ladder, mirroring the
// teacher's one-recursive-function-per-level style (internal/compiler/parser
// /expressions.go): parseExpr -> parsePipe -> parseNullCoalesce -> ...
// -> parseUnary -> parseCall -> parsePrimary.
func (p *Parser) parseExpr() ast.Expr {
	return p.parsePipe()
}

func (p *Parser) parsePipe() ast.Expr {
	left := p.parseRange()
	for p.check(lexer.PIPE_GT) || p.check(lexer.TILDE_GT) {
		op := ast.OpPipe
		if p.cur().Kind == lexer.TILDE_GT {
			op = ast.OpChain
		}
		p.advance()
		right := p.parseRange()
		left = &ast.BinaryExpr{BaseNode: bn(left.Span(), p.prevSpan()), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseRange() ast.Expr {
	left := p.parseNullCoalesce()
	if p.check(lexer.DOTDOT) || p.check(lexer.DOTDOTEQ) {
		inclusive := p.cur().Kind == lexer.DOTDOTEQ
		p.advance()
		right := p.parseNullCoalesce()
		return &ast.RangeExpr{BaseNode: bn(left.Span(), p.prevSpan()), Start: left, End: right, Inclusive: inclusive}
	}
	return left
}

func (p *Parser) parseNullCoalesce() ast.Expr {
	left := p.parseLogicalOr()
	for p.check(lexer.QUESTION_QUESTION) {
		p.advance()
		right := p.parseLogicalOr()
		left = &ast.BinaryExpr{BaseNode: bn(left.Span(), p.prevSpan()), Op: ast.OpNullCoal, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseLogicalOr() ast.Expr {
	left := p.parseLogicalAnd()
	for p.check(lexer.KW_OR) {
		p.advance()
		right := p.parseLogicalAnd()
		left = &ast.BinaryExpr{BaseNode: bn(left.Span(), p.prevSpan()), Op: ast.OpOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseLogicalAnd() ast.Expr {
	left := p.parseIsAs()
	for p.check(lexer.KW_AND) {
		p.advance()
		right := p.parseIsAs()
		left = &ast.BinaryExpr{BaseNode: bn(left.Span(), p.prevSpan()), Op: ast.OpAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseIsAs() ast.Expr {
	left := p.parseEquality()
	for {
		if p.match(lexer.KW_IS) {
			pat := p.parsePattern()
			left = &ast.IsExpr{BaseNode: bn(left.Span(), p.prevSpan()), Subject: left, Pattern: pat}
			continue
		}
		if p.match(lexer.KW_AS) {
			typ := p.parseTypeExpr()
			left = &ast.AsExpr{BaseNode: bn(left.Span(), p.prevSpan()), Subject: left, Type: typ}
			continue
		}
		break
	}
	return left
}

func (p *Parser) parseEquality() ast.Expr {
	left := p.parseComparison()
	for p.check(lexer.EQEQ) || p.check(lexer.BANGEQ) {
		op := ast.OpEq
		if p.cur().Kind == lexer.BANGEQ {
			op = ast.OpNeq
		}
		p.advance()
		right := p.parseComparison()
		left = &ast.BinaryExpr{BaseNode: bn(left.Span(), p.prevSpan()), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseComparison() ast.Expr {
	left := p.parseBitOr()
	for {
		var op ast.BinOp
		switch p.cur().Kind {
		case lexer.LT:
			op = ast.OpLt
		case lexer.LTEQ:
			op = ast.OpLte
		case lexer.GT:
			op = ast.OpGt
		case lexer.GTEQ:
			op = ast.OpGte
		default:
			return left
		}
		p.advance()
		right := p.parseBitOr()
		left = &ast.BinaryExpr{BaseNode: bn(left.Span(), p.prevSpan()), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseBitOr() ast.Expr {
	left := p.parseBitXor()
	for p.check(lexer.PIPE) {
		p.advance()
		right := p.parseBitXor()
		left = &ast.BinaryExpr{BaseNode: bn(left.Span(), p.prevSpan()), Op: ast.OpBitOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitXor() ast.Expr {
	left := p.parseBitAnd()
	for p.check(lexer.CARET) {
		p.advance()
		right := p.parseBitAnd()
		left = &ast.BinaryExpr{BaseNode: bn(left.Span(), p.prevSpan()), Op: ast.OpBitXor, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitAnd() ast.Expr {
	left := p.parseShift()
	for p.check(lexer.AMP) {
		p.advance()
		right := p.parseShift()
		left = &ast.BinaryExpr{BaseNode: bn(left.Span(), p.prevSpan()), Op: ast.OpBitAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseShift() ast.Expr {
	left := p.parseTerm()
	for p.check(lexer.SHL) || p.check(lexer.SHR) {
		op := ast.OpShl
		if p.cur().Kind == lexer.SHR {
			op = ast.OpShr
		}
		p.advance()
		right := p.parseTerm()
		left = &ast.BinaryExpr{BaseNode: bn(left.Span(), p.prevSpan()), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseTerm() ast.Expr {
	left := p.parseFactor()
	for {
		var op ast.BinOp
		switch p.cur().Kind {
		case lexer.PLUS:
			op = ast.OpAdd
		case lexer.MINUS:
			op = ast.OpSub
		case lexer.PLUSPLUS:
			op = ast.OpConcat
		default:
			return left
		}
		p.advance()
		right := p.parseFactor()
		left = &ast.BinaryExpr{BaseNode: bn(left.Span(), p.prevSpan()), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseFactor() ast.Expr {
	left := p.parseExponent()
	for {
		var op ast.BinOp
		switch p.cur().Kind {
		case lexer.STAR:
			op = ast.OpMul
		case lexer.SLASH:
			op = ast.OpDiv
		case lexer.SLASHSLASH:
			op = ast.OpFloorDiv
		case lexer.PERCENT:
			op = ast.OpMod
		default:
			return left
		}
		p.advance()
		right := p.parseExponent()
		left = &ast.BinaryExpr{BaseNode: bn(left.Span(), p.prevSpan()), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseExponent() ast.Expr {
	left := p.parseUnaryExpr()
	if p.check(lexer.STARSTAR) {
		p.advance()
		right := p.parseExponent() // right-associative
		return &ast.BinaryExpr{BaseNode: bn(left.Span(), p.prevSpan()), Op: ast.OpPow, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnaryExpr() ast.Expr {
	start := p.cur().Span
	switch p.cur().Kind {
	case lexer.KW_NOT:
		p.advance()
		operand := p.parseUnaryExpr()
		return &ast.UnaryExpr{BaseNode: bn(start, p.prevSpan()), Op: ast.OpNot, Operand: operand}
	case lexer.MINUS:
		p.advance()
		operand := p.parseUnaryExpr()
		return &ast.UnaryExpr{BaseNode: bn(start, p.prevSpan()), Op: ast.OpNeg, Operand: operand}
	case lexer.TILDE:
		p.advance()
		operand := p.parseUnaryExpr()
		return &ast.UnaryExpr{BaseNode: bn(start, p.prevSpan()), Op: ast.OpBitNot, Operand: operand}
	case lexer.KW_TRY:
		p.advance()
		inner := p.parseUnaryExpr()
		return &ast.TryExpr{BaseNode: bn(start, p.prevSpan()), Inner: inner}
	case lexer.KW_AWAIT:
		p.advance()
		inner := p.parseUnaryExpr()
		return &ast.AwaitExpr{BaseNode: bn(start, p.prevSpan()), Inner: inner}
	default:
		return p.parseCall()
	}
}

func (p *Parser) parseCall() ast.Expr {
	expr := p.parsePrimary()
	for {
		switch p.cur().Kind {
		case lexer.LPAREN:
			expr = p.finishCall(expr)
		case lexer.DOT:
			p.advance()
			field := p.expect(lexer.IDENT, "field name").Lexeme
			expr = &ast.FieldAccessExpr{BaseNode: bn(expr.Span(), p.prevSpan()), Object: expr, Field: field}
		case lexer.QUESTION_DOT:
			p.advance()
			field := p.expect(lexer.IDENT, "field name").Lexeme
			expr = &ast.FieldAccessExpr{BaseNode: bn(expr.Span(), p.prevSpan()), Object: expr, Field: field, Safe: true}
		case lexer.LBRACKET:
			p.advance()
			idx := p.parseExpr()
			p.expect(lexer.RBRACKET, "']'")
			expr = &ast.IndexExpr{BaseNode: bn(expr.Span(), p.prevSpan()), Object: expr, Index: idx}
		case lexer.QUESTION_LBRACKET:
			p.advance()
			idx := p.parseExpr()
			p.expect(lexer.RBRACKET, "']'")
			expr = &ast.IndexExpr{BaseNode: bn(expr.Span(), p.prevSpan()), Object: expr, Index: idx, Safe: true}
		default:
			return expr
		}
	}
}

func (p *Parser) finishCall(callee ast.Expr) ast.Expr {
	p.advance() // '('
	var args []ast.Expr
	for !p.check(lexer.RPAREN) && !p.atEnd() {
		args = append(args, p.parseExpr())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN, "')'")
	return &ast.CallExpr{BaseNode: bn(callee.Span(), p.prevSpan()), Callee: callee, Args: args}
}

func (p *Parser) parsePrimary() ast.Expr {
	start := p.cur().Span

	switch p.cur().Kind {
	case lexer.INT_LIT:
		text := p.advance().Lexeme
		v, _ := strconv.ParseInt(text, 0, 64)
		return &ast.LiteralExpr{BaseNode: bn(start, p.prevSpan()), Kind: ast.LitInt, Value: v}
	case lexer.BIGINT_LIT:
		text := p.advance().Lexeme
		v := new(big.Int)
		v.SetString(text, 0)
		return &ast.LiteralExpr{BaseNode: bn(start, p.prevSpan()), Kind: ast.LitBigInt, Value: v}
	case lexer.FLOAT_LIT:
		text := p.advance().Lexeme
		v, _ := strconv.ParseFloat(text, 64)
		return &ast.LiteralExpr{BaseNode: bn(start, p.prevSpan()), Kind: ast.LitFloat, Value: v}
	case lexer.BOOL_LIT, lexer.KW_TRUE, lexer.KW_FALSE:
		text := p.advance().Lexeme
		return &ast.LiteralExpr{BaseNode: bn(start, p.prevSpan()), Kind: ast.LitBool, Value: text == "true"}
	case lexer.KW_NULL:
		p.advance()
		return &ast.LiteralExpr{BaseNode: bn(start, p.prevSpan()), Kind: ast.LitNull}
	case lexer.BYTES_LIT:
		text := p.advance().Lexeme
		return &ast.LiteralExpr{BaseNode: bn(start, p.prevSpan()), Kind: ast.LitBytes, Value: []byte(text)}
	case lexer.STRING_LIT:
		return p.parseStringLitExpr()
	case lexer.IDENT:
		name := p.advance().Lexeme
		if p.check(lexer.LBRACE) {
			return p.parseRecordLit(start, name)
		}
		return &ast.IdentExpr{BaseNode: bn(start, p.prevSpan()), Name: name}
	case lexer.LPAREN:
		return p.parseParenOrTuple()
	case lexer.LBRACKET:
		return p.parseListLit()
	case lexer.LBRACE:
		return p.parseBraceLit()
	case lexer.KW_IF:
		return p.parseIfExpr()
	case lexer.KW_MATCH:
		return p.parseMatchExpr()
	case lexer.KW_DO:
		return p.parseBlockExpr()
	case lexer.KW_FN:
		return p.parseLambda()
	case lexer.KW_PERFORM:
		return p.parsePerform()
	case lexer.KW_RESUME:
		return p.parseResume()
	case lexer.KW_SPAWN:
		p.advance()
		body := p.parseExpr()
		return &ast.SpawnExpr{BaseNode: bn(start, p.prevSpan()), Body: body}
	case lexer.KW_PARALLEL:
		return p.parseParallel()
	case lexer.KW_RACE:
		return p.parseRace()
	case lexer.KW_VOTE:
		return p.parseVote()
	case lexer.KW_SELECT:
		return p.parseSelect()
	case lexer.KW_TIMEOUT:
		return p.parseTimeout()
	default:
		p.errorf(p.cur().Span, "E105", "expected an expression, found %q", p.cur().Lexeme)
		sp := p.cur().Span
		if !p.atEnd() {
			p.advance()
		}
		return &ast.LiteralExpr{BaseNode: bn(sp, sp), Kind: ast.LitNull}
	}
}

// parseStringLitExpr builds a literal or, when the lexer recorded
// interpolation segments on the token's Parts, a StringInterpExpr. Parts is a
// flat concatenation of each `{…}` segment's own sub-lexed token stream (each
// ending in its own EOF), so it is split back into individual expressions on
// those EOF boundaries before each is parsed independently.
func (p *Parser) parseStringLitExpr() ast.Expr {
	start := p.cur().Span
	tok := p.advance()
	lit := &ast.LiteralExpr{Kind: ast.LitString, Value: tok.Lexeme}
	if len(tok.Parts) == 0 {
		return &ast.LiteralExpr{BaseNode: bn(start, p.prevSpan()), Kind: ast.LitString, Value: tok.Lexeme}
	}

	parts := []ast.Expr{lit}
	seg := tok.Parts[:0:0]
	for _, t := range tok.Parts {
		seg = append(seg, t)
		if t.Kind == lexer.EOF {
			sub := New(tok.Span.File, seg)
			parts = append(parts, sub.parseExpr())
			seg = nil
		}
	}
	return &ast.StringInterpExpr{BaseNode: bn(start, p.prevSpan()), Parts: parts}
}

func (p *Parser) parseParenOrTuple() ast.Expr {
	start := p.advance().Span // '('
	if p.check(lexer.RPAREN) {
		p.advance()
		return &ast.TupleExpr{BaseNode: bn(start, p.prevSpan())}
	}
	first := p.parseExpr()
	if !p.check(lexer.COMMA) {
		p.expect(lexer.RPAREN, "')'")
		return first
	}
	elems := []ast.Expr{first}
	for p.match(lexer.COMMA) {
		if p.check(lexer.RPAREN) {
			break
		}
		elems = append(elems, p.parseExpr())
	}
	p.expect(lexer.RPAREN, "')'")
	return &ast.TupleExpr{BaseNode: bn(start, p.prevSpan()), Elems: elems}
}

func (p *Parser) parseListLit() ast.Expr {
	start := p.advance().Span // '['
	var elems []ast.Expr
	for !p.check(lexer.RBRACKET) && !p.atEnd() {
		elems = append(elems, p.parseExpr())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RBRACKET, "']'")
	return &ast.ListExpr{BaseNode: bn(start, p.prevSpan()), Elems: elems}
}

// parseBraceLit disambiguates `{}`/`{a, b}` (set) from `{k: v}` (map) by
// looking one token ahead for a colon after the first element.
func (p *Parser) parseBraceLit() ast.Expr {
	start := p.advance().Span // '{'
	if p.check(lexer.RBRACE) {
		p.advance()
		return &ast.MapExpr{BaseNode: bn(start, p.prevSpan())}
	}

	first := p.parseExpr()
	if p.match(lexer.COLON) {
		firstVal := p.parseExpr()
		entries := []ast.MapEntry{{Key: first, Value: firstVal}}
		for p.match(lexer.COMMA) {
			if p.check(lexer.RBRACE) {
				break
			}
			k := p.parseExpr()
			p.expect(lexer.COLON, "':'")
			v := p.parseExpr()
			entries = append(entries, ast.MapEntry{Key: k, Value: v})
		}
		p.expect(lexer.RBRACE, "'}'")
		return &ast.MapExpr{BaseNode: bn(start, p.prevSpan()), Entries: entries}
	}

	elems := []ast.Expr{first}
	for p.match(lexer.COMMA) {
		if p.check(lexer.RBRACE) {
			break
		}
		elems = append(elems, p.parseExpr())
	}
	p.expect(lexer.RBRACE, "'}'")
	return &ast.SetExpr{BaseNode: bn(start, p.prevSpan()), Elems: elems}
}

// parseRecordLit parses `Name { field: value, ..spread }`. Record literals
// are unambiguous here since Lumen never uses `{}` to delimit a block.
func (p *Parser) parseRecordLit(start source.Span, name string) ast.Expr {
	p.advance() // '{'
	var fields []ast.RecordFieldInit
	var spread ast.Expr
	for !p.check(lexer.RBRACE) && !p.atEnd() {
		if p.check(lexer.DOTDOT) {
			p.advance()
			spread = p.parseExpr()
		} else {
			fname := p.expect(lexer.IDENT, "field name").Lexeme
			p.expect(lexer.COLON, "':'")
			val := p.parseExpr()
			fields = append(fields, ast.RecordFieldInit{Name: fname, Value: val})
		}
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RBRACE, "'}'")
	return &ast.RecordLitExpr{BaseNode: bn(start, p.prevSpan()), Record: name, Fields: fields, Spread: spread}
}

func (p *Parser) parseIfExpr() ast.Expr {
	start := p.advance().Span // 'if'
	cond := p.parseExpr()
	p.expect(lexer.KW_THEN, "'then'")
	then := p.parseExpr()
	p.expect(lexer.KW_ELSE, "'else'")
	els := p.parseExpr()
	return &ast.IfExpr{BaseNode: bn(start, p.prevSpan()), Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseMatchExpr() ast.Expr {
	start := p.advance().Span // 'match'
	subject := p.parseExpr()
	p.skipLayout()
	var arms []ast.MatchExprArm
	for p.isIdent("case") {
		p.advance()
		pat := p.parsePattern()
		var guard ast.Expr
		if p.match(lexer.KW_IF) {
			guard = p.parseExpr()
		}
		p.expect(lexer.FAT_ARROW, "'=>'")
		val := p.parseExpr()
		arms = append(arms, ast.MatchExprArm{Pattern: pat, Guard: guard, Value: val})
		p.skipLayout()
	}
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.MatchExpr{BaseNode: bn(start, end), Subject: subject, Arms: arms}
}

func (p *Parser) parseBlockExpr() ast.Expr {
	start := p.advance().Span // 'do'
	p.skipLayout()
	body := p.parseBlock()
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.BlockExpr{BaseNode: bn(start, end), Body: body}
}

func (p *Parser) parseLambda() ast.Expr {
	start := p.advance().Span // 'fn'
	params := p.parseParams()
	p.expect(lexer.ARROW, "'->'")
	body := p.parseExpr()
	return &ast.LambdaExpr{BaseNode: bn(start, p.prevSpan()), Params: params, Body: body}
}

func (p *Parser) parsePerform() ast.Expr {
	start := p.advance().Span // 'perform'
	effect := p.expect(lexer.IDENT, "effect name").Lexeme
	p.expect(lexer.DOT, "'.'")
	op := p.expect(lexer.IDENT, "operation name").Lexeme
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
	return &ast.PerformExpr{BaseNode: bn(start, p.prevSpan()), Effect: effect, Op: op, Args: args}
}

func (p *Parser) parseResume() ast.Expr {
	start := p.advance().Span // 'resume'
	p.expect(lexer.LPAREN, "'('")
	var val ast.Expr
	if !p.check(lexer.RPAREN) {
		val = p.parseExpr()
	}
	p.expect(lexer.RPAREN, "')'")
	return &ast.ResumeExpr{BaseNode: bn(start, p.prevSpan()), Value: val}
}

func (p *Parser) parseBranchList() []ast.Expr {
	p.skipLayout()
	var out []ast.Expr
	for !p.check(lexer.KW_END) && !p.atEnd() {
		out = append(out, p.parseExpr())
		p.skipLayout()
	}
	return out
}

func (p *Parser) parseParallel() ast.Expr {
	start := p.advance().Span // 'parallel'
	branches := p.parseBranchList()
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.ParallelExpr{BaseNode: bn(start, end), Branches: branches}
}

func (p *Parser) parseRace() ast.Expr {
	start := p.advance().Span // 'race'
	branches := p.parseBranchList()
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.RaceExpr{BaseNode: bn(start, end), Branches: branches}
}

func (p *Parser) parseVote() ast.Expr {
	start := p.advance().Span // 'vote'
	var quorum ast.Expr
	if p.isIdent("quorum") {
		p.advance()
		quorum = p.parseExpr()
	}
	branches := p.parseBranchList()
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.VoteExpr{BaseNode: bn(start, end), Branches: branches, Quorum: quorum}
}

func (p *Parser) parseSelect() ast.Expr {
	start := p.advance().Span // 'select'
	p.skipLayout()
	var cases []ast.SelectCase
	for p.isIdent("case") {
		p.advance()
		src := p.parseExpr()
		p.expect(lexer.FAT_ARROW, "'=>'")
		body := p.parseExpr()
		cases = append(cases, ast.SelectCase{Source: src, Body: body})
		p.skipLayout()
	}
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.SelectExpr{BaseNode: bn(start, end), Cases: cases}
}

func (p *Parser) parseTimeout() ast.Expr {
	start := p.advance().Span // 'timeout'
	dur := p.parseExpr()
	p.skipLayout()
	inner := p.parseExpr()
	var fallback ast.Expr
	if p.match(lexer.KW_ELSE) {
		fallback = p.parseExpr()
	}
	end := p.expect(lexer.KW_END, "'end'").Span
	return &ast.TimeoutExpr{BaseNode: bn(start, end), Duration: dur, Inner: inner, Fallback: fallback}
}
