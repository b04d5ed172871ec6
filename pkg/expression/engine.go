// Package expression evaluates conditional form-rule expressions against an
// answer map, wrapping expr-lang/expr with a compiled-program cache.
package expression

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine compiles rule conditions once and reuses the programs. Conditions
// reference answers by field key; absent answers evaluate as nil, so authors
// write e.g. `graduated == true` or `grad_year != nil && grad_year < 2020`.
type Engine struct {
	programCache map[string]*vm.Program
	mu           sync.RWMutex
}

// NewEngine creates a new expression engine
func NewEngine() *Engine {
	return &Engine{
		programCache: make(map[string]*vm.Program),
	}
}

// EvaluateCondition runs a rule condition against the answer environment and
// coerces the result to bool. A non-boolean result is an authoring error.
func (e *Engine) EvaluateCondition(condition string, answers map[string]any) (bool, error) {
	program, err := e.getProgram(condition)
	if err != nil {
		return false, err
	}

	env := make(map[string]any, len(answers))
	for k, v := range answers {
		env[k] = v
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q evaluated to %T, want bool", condition, output)
	}
	return result, nil
}

// Validate checks that a condition compiles, for form authoring endpoints.
func (e *Engine) Validate(condition string) error {
	_, err := e.getProgram(condition)
	return err
}

func (e *Engine) getProgram(condition string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.programCache[condition]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double check
	if prog, ok := e.programCache[condition]; ok {
		return prog, nil
	}

	// Answer maps are open-ended, so undefined variables must be legal;
	// they come through as nil at run time.
	program, err := expr.Compile(condition, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	e.programCache[condition] = program
	return program, nil
}
