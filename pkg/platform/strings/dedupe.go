// Package strings provides string slice utilities.
package strings

// DedupeNonEmpty removes duplicates and empty strings, preserving first-seen order.
//
//	DedupeNonEmpty([]string{"a@x.com", "", "b@x.com", "a@x.com"})
//	// Returns: []string{"a@x.com", "b@x.com"}
func DedupeNonEmpty(values []string) []string {
	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// Contains reports whether values holds v.
func Contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
