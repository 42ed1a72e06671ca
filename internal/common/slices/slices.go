package slices

// Concatenate returns a new slice holding the elements of each of s in order. Returns nil if
// every input is nil.
func Concatenate[S ~[]E, E any](s ...S) S {
	n := 0
	allNil := true
	for _, si := range s {
		n += len(si)
		allNil = allNil && si == nil
	}
	if allNil {
		return nil
	}
	rv := make(S, 0, n)
	for _, si := range s {
		rv = append(rv, si...)
	}
	return rv
}

// GroupByFunc groups the elements of s by keyFunc, keeping their relative order.
func GroupByFunc[S ~[]E, E any, K comparable](s S, keyFunc func(E) K) map[K]S {
	rv := make(map[K]S)
	for _, e := range s {
		k := keyFunc(e)
		rv[k] = append(rv[k], e)
	}
	return rv
}
