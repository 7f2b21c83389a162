package rules

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common"

	"github.com/agentstation/infer/pkg/errors"
	"github.com/agentstation/infer/pkg/pits"
)

var celEnv *cel.Env

func init() {
	env, err := cel.NewEnv(
		cel.Variable("pit", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to construct CEL rule env: %v", err))
	}
	celEnv = env
}

// CompileFilter compiles a CEL expression over `pit` that yields a bool.
//
//	!pit.uri.contains('term')
func CompileFilter(expr, name string) (Predicate, error) {
	prg, err := compile(expr, name, cel.BoolType)
	if err != nil {
		return nil, err
	}
	return func(p pits.PIT) (bool, error) {
		out, _, err := prg.Eval(map[string]any{"pit": activation(p)})
		if err != nil {
			return false, fmt.Errorf("evaluate filter %s: %w", name, err)
		}
		ok, isBool := out.Value().(bool)
		if !isBool {
			return false, fmt.Errorf("filter %s returned %T, want bool", name, out.Value())
		}
		return ok, nil
	}, nil
}

// CompileName compiles a CEL expression over `pit` that yields a string.
//
//	pit.data.label + ' ' + pit.name
func CompileName(expr, name string) (ComputedName, error) {
	prg, err := compile(expr, name, cel.StringType)
	if err != nil {
		return nil, err
	}
	return func(p pits.PIT) (string, error) {
		out, _, err := prg.Eval(map[string]any{"pit": activation(p)})
		if err != nil {
			return "", fmt.Errorf("evaluate name %s: %w", name, err)
		}
		s, ok := out.Value().(string)
		if !ok {
			return "", fmt.Errorf("name %s returned %T, want string", name, out.Value())
		}
		return s, nil
	}, nil
}

func compile(expr, name string, want *cel.Type) (cel.Program, error) {
	ast, issues := celEnv.CompileSource(common.NewStringSource(expr, name))
	if issues != nil {
		if err := issues.Err(); err != nil {
			return nil, errors.NewParseError("cel", name, err.Error(), err)
		}
	}

	// Field access on the dyn-typed map stays dyn; the value is checked at
	// evaluation time instead.
	out := ast.OutputType()
	if !reflect.DeepEqual(out, want) && !reflect.DeepEqual(out, cel.DynType) {
		return nil, errors.NewParseError("cel", name,
			fmt.Sprintf("expected a %s expression, but got '%s'", want, out), nil)
	}

	prg, err := celEnv.Program(ast)
	if err != nil {
		return nil, errors.NewParseError("cel", name, err.Error(), err)
	}
	return prg, nil
}

// activation exposes a PIT to expressions. Absent strings are empty so
// method calls on them never fail.
func activation(p pits.PIT) map[string]any {
	data := p.Data
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"id":          p.ID,
		"uri":         p.URI,
		"type":        p.Type,
		"name":        p.Name,
		"data":        data,
		"hasGeometry": p.HasGeometry(),
	}
}
