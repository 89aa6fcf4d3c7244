//go:build !linux

package procexec

// EnableChildSubreaper is a no-op on non-Linux platforms, which have no
// equivalent to PR_SET_CHILD_SUBREAPER.
func EnableChildSubreaper() error {
	return nil
}
