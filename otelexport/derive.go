package otelexport

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dvtools/txtrace"
)

type derivedAttribute struct {
	name    string
	program *vm.Program
}

// WithDerivedAttribute attaches an attribute computed from an
// expr-lang expression to every exported span. The expression sees
// "attrs" (map of the span's attributes), "name" (span name), and
// "scope" (instrumentation scope name):
//
//	otelexport.WithDerivedAttribute("bytes_kb", `attrs["bytes"] / 1024`)
//
// The expression is compiled once; a compile error fails exporter
// construction.
func WithDerivedAttribute(name, expression string) Option {
	return func(e *Exporter) error {
		if name == "" {
			return fmt.Errorf("derived attribute name: %w", txtrace.ErrInvalidName)
		}
		program, err := expr.Compile(expression, expr.Env(exprEnv()))
		if err != nil {
			return fmt.Errorf("compiling expression for derived attribute %q: %w", name, err)
		}
		e.derived = append(e.derived, derivedAttribute{name: name, program: program})
		return nil
	}
}

// exprEnv is the shape expressions are type-checked against.
func exprEnv() map[string]interface{} {
	return map[string]interface{}{
		"attrs": map[string]interface{}{},
		"name":  "",
		"scope": "",
	}
}

// addDerived evaluates every derived-attribute expression against the
// span and attaches the results.
func (e *Exporter) addDerived(txn *txtrace.Transaction, span sdktrace.ReadOnlySpan) error {
	if len(e.derived) == 0 {
		return nil
	}

	attrs := make(map[string]interface{}, len(span.Attributes()))
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	env := map[string]interface{}{
		"attrs": attrs,
		"name":  span.Name(),
		"scope": span.InstrumentationScope().Name,
	}

	for _, d := range e.derived {
		out, err := expr.Run(d.program, env)
		if err != nil {
			return fmt.Errorf("evaluating derived attribute %q: %w", d.name, err)
		}
		if err := addDerivedValue(txn, d.name, out); err != nil {
			return err
		}
	}
	return nil
}

func addDerivedValue(txn *txtrace.Transaction, name string, out interface{}) error {
	switch v := out.(type) {
	case nil:
		return nil
	case int:
		return txn.AddInt(name, int64(v), txtrace.RadixDec)
	case int64:
		return txn.AddInt(name, v, txtrace.RadixDec)
	case uint64:
		return txn.AddUint(name, v, txtrace.RadixDec)
	case float64:
		return txn.AddDouble(name, v)
	case bool:
		return txn.AddString(name, fmt.Sprintf("%t", v))
	case string:
		return txn.AddString(name, v)
	default:
		return txn.AddString(name, fmt.Sprintf("%v", v))
	}
}
