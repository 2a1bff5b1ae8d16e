package diag

// Error code ranges, one band per compiler stage, matching spec.md §7's
// taxonomy (compile-time: lex/parse/resolve/type/constraint/lower; runtime
// codes live alongside their raising sites in internal/vm).
//
//	E0xx lexer      E1xx parser     E2xx resolver
//	E3xx typecheck  E4xx constraint E5xx lowering
const (
	ErrUnterminatedString  = "E001"
	ErrInconsistentIndent  = "E002"
	ErrInvalidNumber       = "E003"
	ErrInvalidEscape       = "E004"
	ErrUnterminatedComment = "E005"
	ErrMalformedToken      = "E006"

	ErrUnexpectedToken  = "E101"
	ErrExpectedIdent    = "E102"
	ErrExpectedType     = "E103"
	ErrUnmatchedBracket = "E104"
	ErrInvalidPattern   = "E105"

	ErrUndefinedVar     = "E201"
	ErrDuplicateName    = "E202"
	ErrCyclicImport     = "E203"
	ErrUndeclaredEffect = "E204"
	ErrUngrantedTool    = "E205"

	ErrMismatch       = "E301"
	ErrNotCallable    = "E302"
	ErrArgCount       = "E303"
	ErrUnknownField   = "E304"
	ErrUndefinedType  = "E305"
	ErrMissingReturn  = "E306"
	ErrImmutableAssig = "E307"
	ErrIncompleteMatch = "E308"
	ErrMustUseIgnored = "E309"

	ErrConstraintSideEffect = "E401"
	ErrConstraintNonDeterm  = "E402"

	ErrRegisterExhausted = "E501"
	ErrUnresolvedJump    = "E502"
	ErrJumpOutOfRange    = "E503"

	// E6xx: session-level failures raised by the compile driver rather
	// than any single stage.
	ErrFileRead          = "E601"
	ErrModuleNotFound    = "E602"
	ErrImportFailed      = "E603"
	ErrModuleMerge       = "E604"
	ErrBadDirective      = "E605"
	WarnUnknownDirective = "W601"
)
