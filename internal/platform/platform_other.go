//go:build !windows

package platform

func Detect() Info {
	return baseInfo()
}
