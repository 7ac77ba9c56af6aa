package codeassist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ErrForbiddenImport is returned for snippets importing packages outside the
// allow-list.
var ErrForbiddenImport = errors.New("forbidden imports")

// RunResult is the outcome of interpreting a Go snippet.
type RunResult struct {
	Output  string        // captured stdout and stderr
	Ran     bool          // a main function was executed
	Err     error         // compile or runtime error, nil on success
	Elapsed time.Duration
}

// String renders the result for a model prompt.
func (r RunResult) String() string {
	var sb strings.Builder
	switch {
	case r.Err != nil:
		fmt.Fprintf(&sb, "Execution failed: %v\n", r.Err)
	case r.Ran:
		sb.WriteString("Execution succeeded.\n")
	default:
		sb.WriteString("Compiled successfully; no main function to run.\n")
	}
	if out := strings.TrimSpace(r.Output); out != "" {
		sb.WriteString("Output:\n")
		sb.WriteString(out)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Runner interprets Go snippets with yaegi. Only allow-listed stdlib
// packages may be imported, so snippets get no filesystem, network or exec
// access.
type Runner struct {
	allowedPackages map[string]bool
	timeout         time.Duration
}

// NewRunner creates a runner with the default allow-list.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Runner{
		allowedPackages: map[string]bool{
			"bytes":           true,
			"encoding/base64": true,
			"encoding/json":   true,
			"errors":          true,
			"fmt":             true,
			"math":            true,
			"path":            true,
			"regexp":          true,
			"sort":            true,
			"strconv":         true,
			"strings":         true,
			"time":            true,
			"unicode":         true,
			"unicode/utf8":    true,
		},
		timeout: timeout,
	}
}

// Run interprets code and captures its output. Failures of the snippet
// itself are reported in RunResult.Err; the returned error is reserved for
// snippets that are refused before running.
func (r *Runner) Run(ctx context.Context, code string) (RunResult, error) {
	src := code
	if !strings.HasPrefix(strings.TrimSpace(stripComments(code)), "package ") {
		src = "package main\n\n" + code
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "snippet.go", src, parser.AllErrors)
	if err != nil {
		return RunResult{Err: fmt.Errorf("syntax error: %w", err)}, nil
	}
	if err := r.validateImports(file); err != nil {
		return RunResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out lockedBuffer
	i := interp.New(interp.Options{Stdout: &out, Stderr: &out})
	if err := i.Use(stdlib.Symbols); err != nil {
		return RunResult{}, fmt.Errorf("failed to load stdlib: %w", err)
	}

	start := time.Now()
	evalErr := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		_, err = i.EvalWithContext(ctx, src)
		return err
	}()

	res := RunResult{
		Output:  out.String(),
		Ran:     hasMain(file) && evalErr == nil,
		Err:     evalErr,
		Elapsed: time.Since(start),
	}
	if errors.Is(evalErr, context.DeadlineExceeded) {
		res.Err = fmt.Errorf("execution timed out after %s", r.timeout)
	}
	logging.CodeAssistDebug("yaegi run: ran=%v err=%v output_len=%d elapsed=%v", res.Ran, res.Err, len(res.Output), res.Elapsed)
	return res, nil
}

// validateImports checks that the code only imports allowed packages.
func (r *Runner) validateImports(file *ast.File) error {
	var forbidden []string
	for _, imp := range file.Imports {
		pkg, err := strconv.Unquote(imp.Path.Value)
		if err != nil || !r.allowedPackages[pkg] {
			forbidden = append(forbidden, imp.Path.Value)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("%w: %v (allowed: %v)", ErrForbiddenImport, forbidden, r.allowed())
	}
	return nil
}

func (r *Runner) allowed() []string {
	pkgs := make([]string, 0, len(r.allowedPackages))
	for pkg := range r.allowedPackages {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}

func hasMain(file *ast.File) bool {
	if file.Name == nil || file.Name.Name != "main" {
		return false
	}
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Recv == nil && fn.Name.Name == "main" {
			return true
		}
	}
	return false
}

// stripComments drops leading line comments so a file header does not hide
// the package clause.
func stripComments(code string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if t != "" && !strings.HasPrefix(t, "//") {
			return strings.Join(lines[i:], "\n")
		}
	}
	return ""
}

// lockedBuffer guards the output buffer; a timed-out snippet may still be
// writing when Run returns.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
