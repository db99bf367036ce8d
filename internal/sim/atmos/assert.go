//go:build !atmosdebug

package atmos

// assert is compiled out of release builds; the atmosdebug build tag turns
// violations into panics.
func assert(bool, string) {}
