package cmp

// AnyEq compares two JSON-decoded values structurally.
//
// Both values are expected to be trees of bool, float64, string, nil,
// []any and map[string]any, which is what encoding/json produces for
// untyped documents.
// Values set in code with int or []string are compared as their
// JSON forms (float64, []any).
func AnyEq(a, b any) bool {
	switch va := a.(type) {
	case nil:
		return b == nil
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	case int:
		return AnyEq(float64(va), b)
	case int64:
		return AnyEq(float64(va), b)
	case float64:
		switch vb := b.(type) {
		case float64:
			return va == vb
		case int:
			return va == float64(vb)
		case int64:
			return va == float64(vb)
		}
		return false
	case []string:
		bs := make([]any, len(va))
		for i, s := range va {
			bs[i] = s
		}
		return AnyEq(bs, b)
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	case []any:
		switch vb := b.(type) {
		case []any:
			return SliceEqWith(va, vb, AnyEq)
		case []string:
			return AnyEq(vb, va)
		}
		return false
	case map[string]any:
		vb, ok := b.(map[string]any)
		return ok && MapEqWith(va, vb, AnyEq)
	default:
		return false
	}
}
