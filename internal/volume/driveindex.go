package volume

import "github.com/rs/zerolog"

// Letter is a drive letter 'A' through 'Z', or NoLetter.
type Letter byte

// NoLetter marks a volume without a drive letter binding.
const NoLetter Letter = 0

const allLetters = 1<<26 - 1

func (l Letter) String() string {
	if l == NoLetter {
		return ""
	}
	return string(rune(l)) + ":"
}

// ResolveFunc returns the device path a drive letter currently points to.
type ResolveFunc func(letter Letter) (string, error)

type resolution struct {
	path string
	ok   bool
}

// DriveIndex matches device paths to the drive letters in a logical drive
// bitmap (bit i set means 'A'+i is in use). A matched letter is consumed and
// never returned again by the same index.
type DriveIndex struct {
	mask     uint32
	resolve  ResolveFunc
	resolved map[Letter]resolution
	log      zerolog.Logger
}

func NewDriveIndex(mask uint32, resolve ResolveFunc, log zerolog.Logger) *DriveIndex {
	return &DriveIndex{
		mask:     mask & allLetters,
		resolve:  resolve,
		resolved: make(map[Letter]resolution),
		log:      log,
	}
}

// Mask returns the letters not consumed yet.
func (x *DriveIndex) Mask() uint32 {
	return x.mask
}

// Lookup scans the remaining letters from Z down to A and returns the first
// one resolving exactly to devicePath, removing it from the index. It
// returns NoLetter when nothing matches.
func (x *DriveIndex) Lookup(devicePath string) Letter {
	if x.mask == 0 {
		return NoLetter
	}

	for l := Letter('Z'); l >= 'A'; l-- {
		bit := uint32(1) << (l - 'A')
		if x.mask&bit == 0 {
			continue
		}

		path, ok := x.target(l)
		if !ok || path != devicePath {
			continue
		}

		x.mask &^= bit
		return l
	}

	return NoLetter
}

// target resolves l at most once per index.
func (x *DriveIndex) target(l Letter) (string, bool) {
	if r, ok := x.resolved[l]; ok {
		return r.path, r.ok
	}

	path, err := x.resolve(l)
	if err != nil {
		x.log.Debug().Str("drive", l.String()).Err(err).Msg("drive letter did not resolve")
	}
	r := resolution{path: path, ok: err == nil}
	x.resolved[l] = r

	return r.path, r.ok
}
