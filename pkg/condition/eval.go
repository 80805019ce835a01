package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
)

func (e *logicExpr) eval(ctx Context) (any, error) {
	lv, err := evalBool(e.lhs, ctx)
	if err != nil {
		return nil, err
	}
	// Short-circuit like the connectives everyone expects.
	if e.op == "and" && !lv {
		return false, nil
	}
	if e.op == "or" && lv {
		return true, nil
	}
	return evalBool(e.rhs, ctx)
}

func (e *notExpr) eval(ctx Context) (any, error) {
	v, err := evalBool(e.operand, ctx)
	if err != nil {
		return nil, err
	}
	return !v, nil
}

func (e *literal) eval(ctx Context) (any, error) {
	return e.value, nil
}

func (e *reference) eval(ctx Context) (any, error) {
	v, ok := ctx.Lookup(e.step, e.key)
	if !ok {
		return nil, &EvalError{Ref: e.raw, Msg: "no recorded result for this reference"}
	}
	return v, nil
}

func (e *compareExpr) eval(ctx Context) (any, error) {
	lv, err := e.lhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	rv, err := e.rhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	return compare(e.op, lv, rv)
}

func evalBool(e expr, ctx Context) (bool, error) {
	v, err := e.eval(ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &EvalError{Msg: fmt.Sprintf("logical operand is %T, want boolean", v)}
	}
	return b, nil
}

// compare applies a comparison operator to two resolved values. Both sides
// are compared numerically when both are numbers (or numeric strings),
// as strings when both are strings, and as booleans for == and != only.
// A type mismatch is an EvalError rather than a silent false.
func compare(op string, lv, rv any) (bool, error) {
	if lf, lok := asNumber(lv); lok {
		if rf, rok := asNumber(rv); rok {
			return compareNumbers(op, lf, rf), nil
		}
	}
	if ls, lok := lv.(string); lok {
		if rs, rok := rv.(string); rok {
			return compareStrings(op, ls, rs), nil
		}
	}
	if lb, lok := lv.(bool); lok {
		if rb, rok := rv.(bool); rok {
			switch op {
			case "==":
				return lb == rb, nil
			case "!=":
				return lb != rb, nil
			}
			return false, &EvalError{Msg: fmt.Sprintf("operator %q is not defined for booleans", op)}
		}
	}
	return false, &EvalError{Msg: fmt.Sprintf("cannot compare %T with %T", lv, rv)}
}

func compareNumbers(op string, l, r float64) bool {
	switch op {
	case "==":
		return l == r
	case "!=":
		return l != r
	case "<":
		return l < r
	case ">":
		return l > r
	case "<=":
		return l <= r
	case ">=":
		return l >= r
	}
	return false
}

func compareStrings(op string, l, r string) bool {
	switch op {
	case "==":
		return l == r
	case "!=":
		return l != r
	case "<":
		return l < r
	case ">":
		return l > r
	case "<=":
		return l <= r
	case ">=":
		return l >= r
	}
	return false
}

// asNumber normalizes numeric result values. Handler data passes through
// JSON at the trace/snapshot boundary, so numbers may arrive as float64,
// int, or numeric strings captured from model output.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
