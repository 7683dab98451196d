package platform

import "runtime"

// Info describes the host as far as the WinFsp tooling cares.
type Info struct {
	OS   string
	Arch string

	// WinFsp
	DLLName    string // per-arch DLL file name, empty when WinFsp has no build for Arch
	InstallDir string // WinFsp "bin" directory from the registry, empty when not installed
}

// DLLName returns the WinFsp DLL shipped for a Go architecture.
func DLLName(arch string) string {
	switch arch {
	case "amd64":
		return "winfsp-x64.dll"
	case "386":
		return "winfsp-x86.dll"
	case "arm64":
		return "winfsp-a64.dll"
	}
	return ""
}

func baseInfo() Info {
	return Info{
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		DLLName: DLLName(runtime.GOARCH),
	}
}
