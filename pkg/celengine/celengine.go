package celengine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

var envCache = sync.Map{}

// GetOrBuildEnv returns a CEL environment declaring one int variable per
// attribute key. Environments are cached by key set, so rule evaluation on a
// hot path compiles the declarations once.
func GetOrBuildEnv(attrs map[string]int64) (*cel.Env, error) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cacheKey := strings.Join(keys, ",")

	if v, ok := envCache.Load(cacheKey); ok {
		return v.(*cel.Env), nil
	}

	variables := make([]cel.EnvOption, 0, len(keys))
	for _, k := range keys {
		variables = append(variables, cel.Variable(k, cel.IntType))
	}

	env, err := cel.NewEnv(variables...)
	if err != nil {
		return nil, err
	}
	envCache.Store(cacheKey, env)
	return env, nil
}

// ValidateExpression compiles expr against the environment without running it.
func ValidateExpression(env *cel.Env, expr string) error {
	_, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}
	return nil
}

// Evaluate compiles and runs a boolean expression against the attributes.
func Evaluate(env *cel.Env, expr string, attrs map[string]int64) (bool, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, issues.Err()
	}

	prg, err := env.Program(ast)
	if err != nil {
		return false, err
	}

	input := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		input[k] = v
	}

	out, _, err := prg.Eval(input)
	if err != nil {
		return false, err
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expected bool from expression, got %T (%v)", out.Value(), out.Value())
	}

	return b, nil
}
