package lexer

import "github.com/lumen-lang/lumen/internal/source"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	EOF Kind = iota
	ERROR
	COMMENT

	// Synthetic layout tokens.
	NEWLINE
	INDENT
	DEDENT

	// Literals.
	IDENT
	INT_LIT
	BIGINT_LIT
	FLOAT_LIT
	STRING_LIT
	STRING_INTERP_START // opening quote, text up to first `{`
	STRING_INTERP_MID   // `}` ... `{` between interpolation segments
	STRING_INTERP_END   // `}` ... closing quote
	BYTES_LIT
	BOOL_LIT

	// Keywords.
	KW_CELL
	KW_RECORD
	KW_ENUM
	KW_AGENT
	KW_PROCESS
	KW_MEMORY
	KW_MACHINE
	KW_PIPELINE
	KW_ORCHESTRATION
	KW_GUARDRAIL
	KW_EVAL
	KW_PATTERN
	KW_EFFECT
	KW_HANDLE
	KW_HANDLER
	KW_WITH
	KW_PERFORM
	KW_RESUME
	KW_USE
	KW_TOOL
	KW_GRANT
	KW_BIND
	KW_TO
	KW_TRAIT
	KW_IMPL
	KW_IMPORT
	KW_CONST
	KW_MACRO
	KW_TYPE
	KW_LET
	KW_MUT
	KW_IF
	KW_THEN
	KW_ELSE
	KW_MATCH
	KW_WHILE
	KW_FOR
	KW_IN
	KW_LOOP
	KW_BREAK
	KW_CONTINUE
	KW_RETURN
	KW_DEFER
	KW_TRY
	KW_HALT
	KW_ASYNC
	KW_AWAIT
	KW_SPAWN
	KW_PARALLEL
	KW_RACE
	KW_VOTE
	KW_SELECT
	KW_TIMEOUT
	KW_NOT
	KW_AND
	KW_OR
	KW_IS
	KW_AS
	KW_NULL
	KW_TRUE
	KW_FALSE
	KW_FN
	KW_END
	KW_DO

	// Punctuation / operators.
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET
	LBRACE
	RBRACE
	COMMA
	COLON
	DOUBLE_COLON
	SEMI
	DOT
	QUESTION_DOT
	QUESTION_LBRACKET
	QUESTION
	QUESTION_QUESTION
	BANG
	AT
	ARROW       // ->
	FAT_ARROW   // =>
	PIPE_GT     // |>
	TILDE_GT    // ~>
	DOTDOT      // ..
	DOTDOTEQ    // ..=
	PLUSPLUS    // ++
	PLUS
	MINUS
	STAR
	SLASH
	SLASHSLASH // //
	PERCENT
	STARSTAR // **
	TILDE
	AMP
	PIPE
	CARET
	SHL
	SHR
	EQ
	EQEQ
	BANGEQ
	LT
	LTEQ
	GT
	GTEQ
	ASSIGN_PLUS
	ASSIGN_MINUS
	ASSIGN_STAR
	ASSIGN_SLASH
	ELLIPSIS

	DIRECTIVE_AT // '@' starting a directive line in markdown extraction
)

var kindNames = map[Kind]string{
	EOF: "eof", ERROR: "error", COMMENT: "comment",
	NEWLINE: "newline", INDENT: "indent", DEDENT: "dedent",
	IDENT: "ident", INT_LIT: "int", BIGINT_LIT: "bigint", FLOAT_LIT: "float",
	STRING_LIT: "string", BYTES_LIT: "bytes", BOOL_LIT: "bool",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "tok"
}

// Keywords maps reserved identifiers to their Kind.
var Keywords = map[string]Kind{
	"cell": KW_CELL, "record": KW_RECORD, "enum": KW_ENUM, "agent": KW_AGENT,
	"process": KW_PROCESS, "memory": KW_MEMORY, "machine": KW_MACHINE,
	"pipeline": KW_PIPELINE, "orchestration": KW_ORCHESTRATION,
	"guardrail": KW_GUARDRAIL, "eval": KW_EVAL, "pattern": KW_PATTERN,
	"effect": KW_EFFECT, "handle": KW_HANDLE, "handler": KW_HANDLER,
	"with": KW_WITH, "perform": KW_PERFORM, "resume": KW_RESUME,
	"use": KW_USE, "tool": KW_TOOL, "grant": KW_GRANT, "bind": KW_BIND,
	"to": KW_TO, "trait": KW_TRAIT, "impl": KW_IMPL, "import": KW_IMPORT,
	"const": KW_CONST, "macro": KW_MACRO, "type": KW_TYPE,
	"let": KW_LET, "mut": KW_MUT, "if": KW_IF, "then": KW_THEN,
	"else": KW_ELSE, "match": KW_MATCH, "while": KW_WHILE, "for": KW_FOR,
	"in": KW_IN, "loop": KW_LOOP, "break": KW_BREAK, "continue": KW_CONTINUE,
	"return": KW_RETURN, "defer": KW_DEFER, "try": KW_TRY, "halt": KW_HALT,
	"async": KW_ASYNC, "await": KW_AWAIT, "spawn": KW_SPAWN,
	"parallel": KW_PARALLEL, "race": KW_RACE, "vote": KW_VOTE,
	"select": KW_SELECT, "timeout": KW_TIMEOUT, "not": KW_NOT, "and": KW_AND,
	"or": KW_OR, "is": KW_IS, "as": KW_AS, "null": KW_NULL, "true": KW_TRUE,
	"false": KW_FALSE, "fn": KW_FN, "end": KW_END, "do": KW_DO,
}

// Token is a single lexical unit: its kind, literal lexeme, and span.
type Token struct {
	Kind   Kind
	Lexeme string
	Span   source.Span

	// Parts holds the decoded interpolation expression token streams of a
	// STRING_LIT token (populated by the lexer for the `{…}` segments).
	Parts []Token
}

func (t Token) String() string { return t.Lexeme }
