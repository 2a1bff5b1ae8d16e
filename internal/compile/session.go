// Package compile drives the seven-stage pipeline spec.md §2 enumerates —
// markdown extraction, lexing, parsing, resolution, type checking,
// constraint validation, lowering — over one document and its import
// closure, producing a lir.LirModule plus warnings, or diagnostics and no
// module (spec.md §7 "User-visible behavior"). Grounded on the teacher's
// internal/cli/commands/build.go, which threads one file through its
// lexer -> parser -> typechecker -> codegen stages inside a single
// function, generalized here into a reusable Session so the CLI, the
// import loader, and tests all share one pipeline.
package compile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/checker"
	"github.com/lumen-lang/lumen/internal/diag"
	"github.com/lumen-lang/lumen/internal/lexer"
	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/lower"
	"github.com/lumen-lang/lumen/internal/mdextract"
	"github.com/lumen-lang/lumen/internal/parser"
	"github.com/lumen-lang/lumen/internal/resolver"
	"github.com/lumen-lang/lumen/internal/validator"
)

// Options configures a compilation session.
type Options struct {
	Log *zap.Logger

	// PackageRoot, DepRoots, StdlibRoot are the module-resolution search
	// order (spec.md §6 "Module resolution"): current package root first,
	// then configured dependency roots, then the standard library.
	PackageRoot string
	DepRoots    []string
	StdlibRoot  string

	// Strict forces @strict even when the document does not declare it.
	Strict bool
}

// Unit is one compiled document: its AST, resolution, checker environment,
// lowered module, and the directives that governed compilation.
type Unit struct {
	File          string
	Program       *ast.Program
	Resolution    *resolver.Resolution
	Env           *checker.Env
	Module        *lir.LirModule
	Strict        bool
	Deterministic bool
	Diags         diag.List
}

// Session compiles documents and memoizes their units so an import graph
// compiles each module exactly once. Single-threaded per compilation
// (spec.md §5 "The compiler is single-threaded per compilation").
type Session struct {
	opts  Options
	log   *zap.Logger
	units map[string]*Unit
	stack []string // files currently compiling, for import-cycle reporting
}

// NewSession builds a Session. A nil logger is replaced with a no-op one;
// the logger is threaded in explicitly, never read from a global (spec.md
// §9 "Global state: there is none in the core").
func NewSession(opts Options) *Session {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PackageRoot == "" {
		opts.PackageRoot = "."
	}
	return &Session{opts: opts, log: log, units: map[string]*Unit{}}
}

// CompileFile compiles the document at path along with everything it
// imports, returning the merged unit. The returned diag.List carries every
// diagnostic from every stage; per spec.md §7 the caller gets either a
// module and warnings, or errors and Unit.Module == nil.
func (s *Session) CompileFile(path string) (*Unit, diag.List) {
	content, err := os.ReadFile(path)
	if err != nil {
		d := diag.New("compile", diag.ErrFileRead, fmt.Sprintf("cannot read %s: %v", path, err), diag.Location{File: path}, diag.Error)
		return nil, diag.List{d}
	}
	return s.compile(path, string(content), nil)
}

// CompileSource compiles in-memory content under a synthetic filename,
// used by tests and the REPL boundary.
func (s *Session) CompileSource(file, content string) (*Unit, diag.List) {
	return s.compile(file, content, nil)
}

func (s *Session) compile(file, content string, chain []string) (*Unit, diag.List) {
	if u, ok := s.units[file]; ok {
		return u, u.Diags
	}
	s.stack = append(s.stack, file)
	defer func() { s.stack = s.stack[:len(s.stack)-1] }()

	var all diag.List
	remap := func(diag.List) diag.List { return nil }

	// Stage 1: markdown extraction (.lm.md only; .lm and .lumen skip it).
	src := content
	var directives []mdextract.Directive
	if mdextract.IsMarkdown(file) {
		ext := mdextract.Extract(content)
		src = ext.Source
		directives = ext.Directives
		remap = newLineRemapper(ext)
	}
	strict, deterministic, dirDiags := s.readDirectives(file, directives)
	all = append(all, dirDiags...)

	docHash := DocHash(src)

	// Stage 2: lexing.
	toks, lexDiags := lexer.New(file, src).ScanTokens()
	all = append(all, applyRemap(remap, lexDiags)...)
	if lexDiags.HasErrors() {
		return nil, all
	}

	// Stage 3: parsing.
	prog, parseDiags := parser.New(file, toks).Parse()
	all = append(all, applyRemap(remap, parseDiags)...)
	if parseDiags.HasErrors() {
		return nil, all
	}

	// Stage 4: resolution, with imports loaded recursively through this
	// session so each module in the graph compiles exactly once.
	var imported []*Unit
	res := resolver.Resolve(prog, resolver.Options{
		File:       file,
		Strict:     strict,
		Import:     s.importerFor(chain, &imported),
		ImportPath: chain,
	})
	all = append(all, applyRemap(remap, res.Diags)...)
	if res.Diags.HasErrors() {
		return nil, all
	}

	// Stages 5 + 6 both run to completion before gating, so one build
	// reports type and constraint errors together (spec.md §7
	// "Compile-time errors accumulate per stage").
	env := checker.BuildEnv(prog)
	_, checkDiags := checker.Check(prog, env, res)
	all = append(all, applyRemap(remap, checkDiags)...)

	valDiags := validator.Validate(prog)
	all = append(all, applyRemap(remap, valDiags)...)
	if checkDiags.HasErrors() || valDiags.HasErrors() {
		return nil, all
	}

	// Stage 7: lowering and register allocation.
	mod, lowDiags := lower.Lower(prog, res, env, docHash)
	all = append(all, applyRemap(remap, lowDiags)...)
	if lowDiags.HasErrors() {
		return nil, all
	}

	for _, imp := range imported {
		merged, err := lir.Merge(mod, imp.Module)
		if err != nil {
			d := diag.New("compile", diag.ErrModuleMerge, err.Error(), diag.Location{File: file}, diag.Error)
			return nil, append(all, d)
		}
		merged.DocHash = docHash
		mod = merged
	}

	if len(chain) == 0 {
		ensureEntry(mod)
	}

	u := &Unit{
		File: file, Program: prog, Resolution: res, Env: env, Module: mod,
		Strict: strict, Deterministic: deterministic, Diags: all,
	}
	s.units[file] = u
	s.log.Debug("compiled module",
		zap.String("file", file),
		zap.Int("cells", len(mod.Cells)),
		zap.Int("warnings", len(all.Warnings())))
	return u, all
}

// readDirectives interprets the document-level directives spec.md §6
// names: @strict and @deterministic. Unknown directives are warnings.
func (s *Session) readDirectives(file string, directives []mdextract.Directive) (strict, deterministic bool, diags diag.List) {
	strict = s.opts.Strict
	for _, d := range directives {
		loc := diag.Location{File: file, Line: d.Line, Column: 1}
		switch d.Name {
		case "strict":
			v, ok := d.BoolValue()
			if !ok {
				diags = append(diags, diag.New("compile", diag.ErrBadDirective, fmt.Sprintf("@strict expects true or false, got %q", d.Value), loc, diag.Error))
				continue
			}
			strict = strict || v
		case "deterministic":
			v, ok := d.BoolValue()
			if !ok {
				diags = append(diags, diag.New("compile", diag.ErrBadDirective, fmt.Sprintf("@deterministic expects true or false, got %q", d.Value), loc, diag.Error))
				continue
			}
			deterministic = v
		default:
			diags = append(diags, diag.New("compile", diag.WarnUnknownDirective, fmt.Sprintf("unknown directive @%s", d.Name), loc, diag.Warning))
		}
	}
	return strict, deterministic, diags
}

// DocHash is the content hash recorded in LirModule.DocHash: SHA-256 over
// the extracted source, hex-encoded.
func DocHash(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// EntryCell picks the cell `lumen run` executes: an explicit main wins,
// otherwise the synthetic script cell inline statements collect into.
func EntryCell(mod *lir.LirModule) (string, bool) {
	if mod.CellByName("main") != nil {
		return "main", true
	}
	if mod.CellByName(parser.ScriptMainName) != nil {
		return parser.ScriptMainName, true
	}
	return "", false
}

// ensureEntry gives a module with no runnable cell a synthetic main that
// returns Null, so an empty program still compiles to something `lumen
// run` can execute (spec.md §8 boundary case).
func ensureEntry(mod *lir.LirModule) {
	if _, ok := EntryCell(mod); ok {
		return
	}
	mod.Cells = append(mod.Cells, lir.LirCell{
		Name:          "main",
		ReturnType:    "Null",
		RegisterCount: 1,
		Instructions:  []lir.Instruction{lir.ABC(lir.OpReturn, 0, 0, 0)},
	})
}

// applyRemap rewrites diagnostic locations from extracted-source lines back
// to original-document lines (spec.md §4.2 "diagnostics report original
// source positions"); the identity remapper returns nil and leaves ds
// untouched.
func applyRemap(remap func(diag.List) diag.List, ds diag.List) diag.List {
	if mapped := remap(ds); mapped != nil {
		return mapped
	}
	return ds
}

// newLineRemapper precomputes the extracted text's line-start offsets so a
// diagnostic's line maps back through mdextract's offset table.
func newLineRemapper(ext mdextract.Result) func(diag.List) diag.List {
	starts := []int{0}
	for i, ch := range ext.Source {
		if ch == '\n' {
			starts = append(starts, i+1)
		}
	}
	return func(ds diag.List) diag.List {
		if len(ds) == 0 {
			return nil
		}
		out := make(diag.List, len(ds))
		for i, d := range ds {
			if d.Location.Line >= 1 && d.Location.Line <= len(starts) {
				d.Location.Line = ext.SourceLineFor(starts[d.Location.Line-1])
			}
			out[i] = d
		}
		return out
	}
}

// cycleMessage renders an import cycle with every hop, ending back at the
// repeated module (spec.md §6 "Cyclic imports are rejected with the full
// cycle").
func cycleMessage(chain []string, repeat string) string {
	return "circular import: " + strings.Join(append(append([]string{}, chain...), repeat), " -> ")
}
