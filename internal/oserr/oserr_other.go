//go:build !windows

package oserr

func platformCode(error) (Code, bool) {
	return 0, false
}
