// Package volume lists the volumes the WinFsp driver has mounted, paired
// with the drive letters bound to them.
package volume

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"

	"github.com/nhdewitt/fsptool/internal/querybuf"
	"github.com/nhdewitt/fsptool/internal/winfsp"
	"github.com/rs/zerolog"
)

// DeviceClasses are listed in this order.
var DeviceClasses = []string{winfsp.DiskDeviceName, winfsp.NetDeviceName}

// Source is the OS side of a listing.
type Source interface {
	// VolumeList fills buf with the packed device paths of class and
	// returns the bytes written, or an error matching
	// oserr.ErrBufferTooSmall when buf cannot hold them.
	VolumeList(class string, buf []byte) (uintptr, error)

	// LogicalDrives returns the bitmap of drive letters in use.
	LogicalDrives() (uint32, error)

	// ResolveDrive returns the device path a drive letter points to.
	ResolveDrive(letter Letter) (string, error)
}

// Entry is one listed volume.
type Entry struct {
	Letter Letter
	Device string
}

func (e Entry) String() string {
	return fmt.Sprintf("%-4s%s", e.Letter, e.Device)
}

type Enumerator struct {
	src     Source
	classes []string
	log     zerolog.Logger
	opts    []querybuf.Option
}

func NewEnumerator(src Source, log zerolog.Logger, opts ...querybuf.Option) *Enumerator {
	return &Enumerator{
		src:     src,
		classes: DeviceClasses,
		log:     log,
		opts:    append([]querybuf.Option{querybuf.WithLogger(log)}, opts...),
	}
}

// List writes one line per mounted volume to w, disk volumes first, each
// class in the order the driver reports them. One drive bitmap snapshot is
// consumed across both classes. A failure stops the listing; lines already
// written stay written.
func (e *Enumerator) List(w io.Writer) error {
	mask, err := e.src.LogicalDrives()
	if err != nil {
		e.log.Warn().Err(err).Msg("logical drives unavailable, listing without drive letters")
		mask = 0
	}
	index := NewDriveIndex(mask, e.src.ResolveDrive, e.log)

	for _, class := range e.classes {
		if err := e.listClass(w, class, index); err != nil {
			return fmt.Errorf("list %s volumes: %w", class, err)
		}
	}

	return nil
}

func (e *Enumerator) listClass(w io.Writer, class string, index *DriveIndex) error {
	buf, err := querybuf.Grow(func(b []byte) (uintptr, error) {
		return e.src.VolumeList(class, b)
	}, e.opts...)
	if err != nil {
		return err
	}
	defer buf.Release()

	devices := SplitDevicePaths(buf.Bytes())
	e.log.Debug().Str("class", class).Int("volumes", len(devices)).Msg("volume list read")

	for _, device := range devices {
		entry := Entry{Letter: index.Lookup(device), Device: device}
		if _, err := fmt.Fprintln(w, entry); err != nil {
			return err
		}
	}

	return nil
}

// SplitDevicePaths decodes a packed list of null-terminated little-endian
// UTF-16 strings. Every terminated string is kept, empty ones included; a
// trailing unterminated fragment is dropped.
func SplitDevicePaths(buf []byte) []string {
	units := make([]uint16, len(buf)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(buf[2*i:])
	}

	var paths []string
	start := 0
	for i, u := range units {
		if u != 0 {
			continue
		}
		paths = append(paths, string(utf16.Decode(units[start:i])))
		start = i + 1
	}

	return paths
}
