//go:build !windows

package volume

import (
	"fmt"

	"github.com/nhdewitt/fsptool/internal/oserr"
	"github.com/nhdewitt/fsptool/internal/winfsp"
	"github.com/rs/zerolog"
)

func NewSource(winfsp.Options, zerolog.Logger) (Source, error) {
	return nil, fmt.Errorf("volume: %w", oserr.ErrNotSupported)
}
