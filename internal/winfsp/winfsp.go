// Package winfsp binds the parts of the WinFsp user-mode API fsptool needs.
package winfsp

// Device class roots the file system driver enumerates volumes under.
const (
	DiskDeviceName = "WinFsp.Disk"
	NetDeviceName  = "WinFsp.Net"
)

// Options controls where the WinFsp DLL is looked up.
type Options struct {
	Dir string // directory holding the DLL, searched before the registry install dir
	DLL string // DLL file name, defaults to the per-arch name
}
