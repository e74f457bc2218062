package settings

// Merge deep-merges src into dst and returns the merged tree. Neither input
// is mutated. When both sides hold a nested map for the same key the maps are
// merged recursively; any other pairing (scalar, sequence, type change)
// replaces the destination value wholesale. Updating one nested leaf
// therefore leaves every sibling leaf untouched.
func Merge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, sv := range src {
		dv, exists := out[k]
		if !exists {
			out[k] = sv
			continue
		}
		dm, dok := asMap(dv)
		sm, sok := asMap(sv)
		if dok && sok {
			out[k] = Merge(dm, sm)
			continue
		}
		out[k] = sv
	}
	return out
}

// asMap normalizes the two map shapes yaml.v3 can produce.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}
