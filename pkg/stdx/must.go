package stdx

// Must0 panics if the provided error is not nil. It is intended for error
// handling in situations where an error is not expected and should terminate
// the program if it occurs.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v if err is nil and panics otherwise. It is useful for
// collapsing two-value returns in places where the error case indicates a
// programming mistake rather than a runtime condition.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
