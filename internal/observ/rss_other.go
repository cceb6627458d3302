//go:build !linux

package observ

// Resident is not available on this platform.
func Resident() (uint64, bool) {
	return 0, false
}
