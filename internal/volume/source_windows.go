//go:build windows

package volume

import (
	"github.com/nhdewitt/fsptool/internal/winfsp"
	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
)

type windowsSource struct {
	dll *winfsp.DLL
}

// NewSource returns the live source backed by the WinFsp DLL and the
// kernel32 drive letter calls.
func NewSource(opts winfsp.Options, log zerolog.Logger) (Source, error) {
	dll, err := winfsp.Load(opts, log)
	if err != nil {
		return nil, err
	}
	return &windowsSource{dll: dll}, nil
}

func (s *windowsSource) VolumeList(class string, buf []byte) (uintptr, error) {
	return s.dll.GetVolumeList(class, buf)
}

func (s *windowsSource) LogicalDrives() (uint32, error) {
	return windows.GetLogicalDrives()
}

func (s *windowsSource) ResolveDrive(letter Letter) (string, error) {
	return queryDosDevice(letter.String())
}

// queryDosDevice returns the first target of an MS-DOS device name.
func queryDosDevice(name string) (string, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return "", err
	}

	var target [windows.MAX_PATH]uint16
	if _, err := windows.QueryDosDevice(namePtr, &target[0], uint32(len(target))); err != nil {
		return "", err
	}

	return windows.UTF16ToString(target[:]), nil
}
