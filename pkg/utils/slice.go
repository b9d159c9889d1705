package utils

// Map applies mapper to each element of sli.
//
// The result has the same length as sli, and the element at index N is
// mapper(sli[N]).
func Map[T any, R any](sli []T, mapper func(v T) R) []R {
	ret := make([]R, len(sli))
	for nth, v := range sli {
		ret[nth] = mapper(v)
	}
	return ret
}

// Filter returns the elements of vs for which predicator is true,
// keeping their order. The result is never nil.
func Filter[T any](vs []T, predicator func(T) bool) []T {
	ret := []T{}
	for _, v := range vs {
		if predicator(v) {
			ret = append(ret, v)
		}
	}
	return ret
}
