package expr

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Environment compiles CEL expressions with the rulebook function library.
// Programs are cached by expression text, since the CLI and the MCP server
// evaluate the same few filters against many rules.
type Environment struct {
	env      *cel.Env
	programs map[string]cel.Program
	mu       sync.Mutex
}

// NewEnvironment creates a new [Environment].
func NewEnvironment(opts ...cel.EnvOption) (*Environment, error) {
	env, err := cel.NewEnv(append(opts, cel.Lib(lib{}))...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &Environment{
		env:      env,
		programs: map[string]cel.Program{},
	}, nil
}

// MustNewEnvironment creates a new [Environment] and panics on error.
func MustNewEnvironment(opts ...cel.EnvOption) *Environment {
	env, err := NewEnvironment(opts...)
	if err != nil {
		panic(err)
	}

	return env
}

// CompileBool compiles an expression that must produce a bool. Expressions
// typed as dyn are accepted and checked on evaluation.
//
//nolint:ireturn // Following CEL's function signature.
func (e *Environment) CompileBool(expression string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.programs[expression]; ok {
		return p, nil
	}

	ast, issues := e.env.Compile(expression)
	if err := issues.Err(); err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}

	if out := ast.OutputType(); !out.IsAssignableType(cel.BoolType) {
		return nil, fmt.Errorf("compile %q: %w, got %s", expression, ErrNotBool, out)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	e.programs[expression] = program

	return program, nil
}
