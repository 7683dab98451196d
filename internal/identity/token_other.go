//go:build !windows

package identity

import (
	"fmt"

	"github.com/nhdewitt/fsptool/internal/oserr"
	"github.com/nhdewitt/fsptool/internal/winfsp"
	"github.com/rs/zerolog"
)

func OpenProcessToken(zerolog.Logger) (Token, error) {
	return nil, fmt.Errorf("identity: %w", oserr.ErrNotSupported)
}

func NewDirectory(winfsp.Options, zerolog.Logger) (Directory, error) {
	return nil, fmt.Errorf("identity: %w", oserr.ErrNotSupported)
}
