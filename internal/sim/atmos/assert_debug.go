//go:build atmosdebug

package atmos

func assert(ok bool, msg string) {
	if !ok {
		panic("atmos invariant: " + msg)
	}
}
