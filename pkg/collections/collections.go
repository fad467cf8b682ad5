// Package collections holds small generic slice helpers.
package collections

// Apply applies the applicator function to each item in the input slice.
func Apply[T, V any](items []T, applicator func(T) V) []V {
	result := make([]V, len(items))
	for i, item := range items {
		result[i] = applicator(item)
	}
	return result
}

func ApplyVariadic[T, V any](applicator func(T) V, items ...T) []V {
	return Apply(items, applicator)
}

// Filter returns the items keep reports true for, in order. The result is
// a new slice; items is not modified.
func Filter[T any](items []T, keep func(T) bool) []T {
	var result []T
	for _, item := range items {
		if keep(item) {
			result = append(result, item)
		}
	}
	return result
}

// Index builds a lookup from key to item. Later items win on duplicate keys.
func Index[T any, K comparable](items []T, key func(T) K) map[K]T {
	result := make(map[K]T, len(items))
	for _, item := range items {
		result[key(item)] = item
	}
	return result
}
