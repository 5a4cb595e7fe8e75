package stdx

// Must0 panics if err is not nil. It is meant for start-up wiring where an
// error means the process cannot do anything useful.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v, or panics with err when err is not nil.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
