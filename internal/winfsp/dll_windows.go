//go:build windows

package winfsp

import (
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/nhdewitt/fsptool/internal/oserr"
	"github.com/nhdewitt/fsptool/internal/platform"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
)

// DLL is a loaded WinFsp DLL with the procs fsptool calls.
type DLL struct {
	dll *windows.DLL

	fsctlGetVolumeList       *windows.Proc
	posixMapSidToUid         *windows.Proc
	posixMapUidToSid         *windows.Proc
	deleteSecurityDescriptor *windows.Proc
}

var (
	loadOnce sync.Once
	loaded   *DLL
	loadErr  error
)

// Load loads the WinFsp DLL once per process. Later calls return the first
// result regardless of opts.
func Load(opts Options, log zerolog.Logger) (*DLL, error) {
	loadOnce.Do(func() {
		loaded, loadErr = load(opts, log)
	})
	return loaded, loadErr
}

func load(opts Options, log zerolog.Logger) (*DLL, error) {
	name := opts.DLL
	if name == "" {
		name = platform.DLLName(runtime.GOARCH)
	}
	if name == "" {
		return nil, errors.Wrapf(oserr.ErrNotSupported, "winfsp unsupported arch %q", runtime.GOARCH)
	}

	dll, err := openDLL(name, opts.Dir, log)
	if err != nil {
		return nil, err
	}

	d := &DLL{dll: dll}
	procs := map[string]**windows.Proc{
		"FspFsctlGetVolumeList":       &d.fsctlGetVolumeList,
		"FspPosixMapSidToUid":         &d.posixMapSidToUid,
		"FspPosixMapUidToSid":         &d.posixMapUidToSid,
		"FspDeleteSecurityDescriptor": &d.deleteSecurityDescriptor,
	}
	for proc, target := range procs {
		p, err := dll.FindProc(proc)
		if err != nil {
			dll.Release()
			return nil, errors.Wrapf(err, "winfsp cannot find proc %q", proc)
		}
		*target = p
	}

	return d, nil
}

// openDLL tries the default search path, then the configured directory,
// then the install directory recorded in the registry.
func openDLL(name, dir string, log zerolog.Logger) (*windows.DLL, error) {
	candidates := []string{name}
	if dir != "" {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	if bin, err := platform.BinPath(); err == nil {
		candidates = append(candidates, filepath.Join(bin, name))
	} else {
		log.Debug().Err(err).Msg("winfsp install dir not found")
	}

	var lastErr error
	for _, path := range candidates {
		dll, err := windows.LoadDLL(path)
		if err == nil {
			log.Debug().Str("path", path).Msg("winfsp dll loaded")
			return dll, nil
		}
		log.Debug().Str("path", path).Err(err).Msg("winfsp dll not loaded")
		lastErr = err
	}

	return nil, errors.Wrapf(lastErr, "winfsp load %s", name)
}

// GetVolumeList fills buf with the device paths of the volumes mounted
// under deviceName, packed as null-terminated UTF-16 strings, and returns
// the number of bytes written.
func (d *DLL) GetVolumeList(deviceName string, buf []byte) (uintptr, error) {
	devicePtr, err := windows.UTF16PtrFromString(deviceName)
	if err != nil {
		return 0, err
	}

	var bufPtr *byte
	if len(buf) > 0 {
		bufPtr = &buf[0]
	}
	size := uintptr(len(buf))

	r, _, _ := d.fsctlGetVolumeList.Call(
		uintptr(unsafe.Pointer(devicePtr)),
		uintptr(unsafe.Pointer(bufPtr)),
		uintptr(unsafe.Pointer(&size)),
	)
	if err := oserr.FromStatus(windows.NTStatus(r)); err != nil {
		return size, err
	}

	return size, nil
}

// PosixMapSidToUid maps a SID to a POSIX uid or gid.
func (d *DLL) PosixMapSidToUid(sid *windows.SID) (uint32, error) {
	var uid uint32
	r, _, _ := d.posixMapSidToUid.Call(
		uintptr(unsafe.Pointer(sid)),
		uintptr(unsafe.Pointer(&uid)),
	)
	if err := oserr.FromStatus(windows.NTStatus(r)); err != nil {
		return 0, errors.Wrap(err, "FspPosixMapSidToUid")
	}
	return uid, nil
}

// PosixMapUidToSid maps a POSIX uid or gid to a SID. The returned SID is a
// Go-owned copy.
func (d *DLL) PosixMapUidToSid(uid uint32) (*windows.SID, error) {
	var sid *windows.SID
	r, _, _ := d.posixMapUidToSid.Call(
		uintptr(uid),
		uintptr(unsafe.Pointer(&sid)),
	)
	if err := oserr.FromStatus(windows.NTStatus(r)); err != nil {
		return nil, errors.Wrap(err, "FspPosixMapUidToSid")
	}
	defer d.deleteSecurityDescriptor.Call(
		uintptr(unsafe.Pointer(sid)),
		d.posixMapUidToSid.Addr(),
	)

	return sid.Copy()
}
