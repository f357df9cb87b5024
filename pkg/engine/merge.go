package engine

// Merge combines a generic default record with a specific record.
// Specific parameters win per key; include lists are concatenated
// defaults-first and de-duplicated by first occurrence.
func Merge(defaults, specific ConfigRecord) ConfigRecord {
	out := EmptyRecord()
	overlay(out.Parameters, defaults.Parameters)
	overlay(out.Parameters, specific.Parameters)
	out.IncludeSingletons = uniqueConcat(defaults.IncludeSingletons, specific.IncludeSingletons)
	out.IncludeClasses = uniqueConcat(defaults.IncludeClasses, specific.IncludeClasses)
	return out
}

// MergeWithBuiltins overlays resolved parameters on the builtin ones.
// Include lists come from the resolved record only.
func MergeWithBuiltins(builtin, resolved ConfigRecord) ConfigRecord {
	out := EmptyRecord()
	overlay(out.Parameters, builtin.Parameters)
	overlay(out.Parameters, resolved.Parameters)
	out.IncludeSingletons = uniqueConcat(nil, resolved.IncludeSingletons)
	out.IncludeClasses = uniqueConcat(nil, resolved.IncludeClasses)
	return out
}

// ResourceParameters seeds name=title, then applies the merged parameters.
// An explicit name in configuration overrides the title.
func ResourceParameters(title string, merged ConfigRecord) map[string]interface{} {
	params := map[string]interface{}{"name": title}
	overlay(params, merged.Parameters)
	return params
}

func overlay(dst, src map[string]interface{}) {
	for k, v := range src {
		dst[k] = v
	}
}

func uniqueConcat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
