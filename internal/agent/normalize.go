package agent

import (
	"strconv"
	"strings"
)

// ParamKind drives type coercion of loosely-typed model-supplied values.
type ParamKind int

const (
	KindString ParamKind = iota
	KindInt
	KindFloat
	KindBool
	KindStringList
)

// ParamSpec maps one target parameter onto an ordered list of acceptable
// source-key synonyms. The target name itself must be the first synonym so
// that normalizing an already-normalized bundle is the identity.
type ParamSpec struct {
	Target   string
	Synonyms []string
	Kind     ParamKind
	Default  any
}

// ArgSpec is a tool's full argument contract. A nil ArgSpec means
// pass-through: arguments reach the tool unchanged.
type ArgSpec struct {
	Params []ParamSpec
}

// P builds a ParamSpec. target is implicitly the first synonym.
func P(target string, kind ParamKind, def any, synonyms ...string) ParamSpec {
	return ParamSpec{
		Target:   target,
		Synonyms: append([]string{target}, synonyms...),
		Kind:     kind,
		Default:  def,
	}
}

// Spec builds an ArgSpec from parameter specs.
func Spec(params ...ParamSpec) *ArgSpec {
	return &ArgSpec{Params: params}
}

// Normalize maps a raw argument bundle onto the tool's exact parameter
// names. For each parameter the first present non-null synonym wins; absent
// parameters take the documented default. Values are coerced to the declared
// kind. Unknown keys are dropped for tools with a spec.
func (s *ArgSpec) Normalize(raw map[string]any) map[string]any {
	if s == nil {
		return raw
	}
	out := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		v := pick(raw, p.Synonyms)
		if v == nil {
			v = p.Default
		}
		out[p.Target] = coerce(v, p.Kind)
	}
	return out
}

func pick(raw map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func coerce(v any, kind ParamKind) any {
	if v == nil {
		return zeroFor(kind)
	}
	switch kind {
	case KindString:
		switch x := v.(type) {
		case string:
			return x
		case float64:
			return trimFloat(x)
		case bool:
			return strconv.FormatBool(x)
		default:
			return v
		}
	case KindInt:
		switch x := v.(type) {
		case int:
			return x
		case float64:
			return int(x)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
				return n
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return int(f)
			}
			return 0
		default:
			return 0
		}
	case KindFloat:
		switch x := v.(type) {
		case float64:
			return x
		case int:
			return float64(x)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f
			}
			return 0.0
		default:
			return 0.0
		}
	case KindBool:
		switch x := v.(type) {
		case bool:
			return x
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			return err == nil && b
		case float64:
			return x != 0
		default:
			return false
		}
	case KindStringList:
		switch x := v.(type) {
		case []string:
			return x
		case []any:
			out := make([]string, 0, len(x))
			for _, it := range x {
				if s, ok := it.(string); ok {
					if s = strings.TrimSpace(s); s != "" {
						out = append(out, s)
					}
				} else if it != nil {
					out = append(out, strings.TrimSpace(coerce(it, KindString).(string)))
				}
			}
			return out
		case string:
			// Comma-separated directives, e.g. "A123T, del10-12".
			parts := strings.Split(x, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			return out
		default:
			return []string{}
		}
	}
	return v
}

func zeroFor(kind ParamKind) any {
	switch kind {
	case KindString:
		return ""
	case KindInt:
		return 0
	case KindFloat:
		return 0.0
	case KindBool:
		return false
	case KindStringList:
		return []string{}
	}
	return nil
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Helper accessors for tool implementations reading normalized bundles.

func ArgString(args map[string]any, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}

func ArgInt(args map[string]any, key string) int {
	switch x := args[key].(type) {
	case int:
		return x
	case float64:
		return int(x)
	}
	return 0
}

func ArgBool(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func ArgStringList(args map[string]any, key string) []string {
	switch x := args[key].(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, it := range x {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
