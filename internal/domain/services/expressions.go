package services

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// maxExpressionLength bounds layout-declared expressions.
const maxExpressionLength = 1000

// ExpressionEvaluator evaluates layout-declared expressions (component
// visibility, custom rules) against the flattened data model. Compiled
// programs are cached to avoid redundant compilation overhead.
type ExpressionEvaluator struct {
	programCache map[string]*vm.Program
	cacheMu      sync.RWMutex
}

// NewExpressionEvaluator creates an evaluator with an initialized cache.
func NewExpressionEvaluator() *ExpressionEvaluator {
	return &ExpressionEvaluator{
		programCache: make(map[string]*vm.Program),
	}
}

// EvalBool evaluates an expression expected to yield a boolean. The
// flat model is exposed as "data"; a non-boolean result or evaluation
// failure is an error, never a silent default.
func (e *ExpressionEvaluator) EvalBool(expression string, flat FlatMap) (bool, error) {
	if len(expression) > maxExpressionLength {
		return false, fmt.Errorf("expression exceeds maximum length of %d", maxExpressionLength)
	}

	program, err := e.getOrCompile(expression)
	if err != nil {
		return false, fmt.Errorf("compiling expression: %w", err)
	}

	env := map[string]interface{}{
		"data": map[string]any(flat),
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluating expression: %w", err)
	}

	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, expected bool", expression, result)
	}
	return b, nil
}

// getOrCompile retrieves a cached program or compiles and caches a new one.
func (e *ExpressionEvaluator) getOrCompile(expression string) (*vm.Program, error) {
	e.cacheMu.RLock()
	program, found := e.programCache[expression]
	e.cacheMu.RUnlock()

	if found {
		return program, nil
	}

	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	if program, found := e.programCache[expression]; found {
		return program, nil
	}

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	e.programCache[expression] = program
	return program, nil
}
