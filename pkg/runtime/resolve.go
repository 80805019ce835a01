package runtime

import (
	"fmt"
	"regexp"
)

// refRe matches {step_id.key} references in argument strings.
var refRe = regexp.MustCompile(`\{([A-Za-z0-9_-]+)\.([A-Za-z0-9_-]+)\}`)

// ResolveArguments returns a copy of args with every {step_id.key}
// reference replaced by the recorded result value. A string that is
// exactly one reference resolves to the typed value; references
// embedded in longer strings are stringified in place. A reference to
// a result that was never recorded is an error.
func ResolveArguments(args map[string]any, state *RunState) (map[string]any, error) {
	if args == nil {
		return nil, nil
	}
	resolved := make(map[string]any, len(args))
	for k, v := range args {
		rv, err := resolveValue(v, state)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", k, err)
		}
		resolved[k] = rv
	}
	return resolved, nil
}

func resolveValue(v any, state *RunState) (any, error) {
	switch val := v.(type) {
	case string:
		return resolveString(val, state)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			rv, err := resolveValue(inner, state)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			rv, err := resolveValue(inner, state)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveString(s string, state *RunState) (any, error) {
	// Whole-string reference keeps the typed value.
	if m := refRe.FindStringSubmatch(s); m != nil && m[0] == s {
		v, ok := state.Lookup(m[1], m[2])
		if !ok {
			return nil, fmt.Errorf("unresolved reference %s: no recorded result for %s.%s", s, m[1], m[2])
		}
		return v, nil
	}

	var missing string
	out := refRe.ReplaceAllStringFunc(s, func(ref string) string {
		m := refRe.FindStringSubmatch(ref)
		v, ok := state.Lookup(m[1], m[2])
		if !ok {
			if missing == "" {
				missing = ref
			}
			return ref
		}
		return fmt.Sprintf("%v", v)
	})
	if missing != "" {
		return nil, fmt.Errorf("unresolved reference %s", missing)
	}
	return out, nil
}
