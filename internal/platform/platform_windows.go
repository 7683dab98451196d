//go:build windows

package platform

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/windows/registry"
)

const winfspKey = `SOFTWARE\WinFsp`

func Detect() Info {
	info := baseInfo()
	info.InstallDir, _ = BinPath()
	return info
}

// BinPath returns the "bin" directory of the WinFsp installation. WinFsp
// registers itself in the 32-bit registry view only.
func BinPath() (string, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, winfspKey, registry.QUERY_VALUE|registry.WOW64_32KEY)
	if err != nil {
		return "", fmt.Errorf("open HKLM\\%s: %w", winfspKey, err)
	}
	defer k.Close()

	dir, _, err := k.GetStringValue("InstallDir")
	if err != nil {
		return "", fmt.Errorf("read InstallDir: %w", err)
	}
	if dir == "" {
		return "", fmt.Errorf("empty InstallDir under HKLM\\%s", winfspKey)
	}

	return filepath.Join(dir, "bin"), nil
}
