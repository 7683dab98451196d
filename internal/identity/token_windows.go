//go:build windows

package identity

import (
	"fmt"
	"unsafe"

	"github.com/nhdewitt/fsptool/internal/oserr"
	"github.com/nhdewitt/fsptool/internal/querybuf"
	"github.com/nhdewitt/fsptool/internal/winfsp"
	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
)

// tokenOwner mirrors TOKEN_OWNER.
type tokenOwner struct {
	Owner *windows.SID
}

type windowsSID struct {
	sid *windows.SID
}

func (s windowsSID) Text() (string, error) {
	var str *uint16
	if err := windows.ConvertSidToStringSid(s.sid, &str); err != nil {
		return "", err
	}
	defer windows.LocalFree(windows.Handle(unsafe.Pointer(str)))

	return windows.UTF16PtrToString(str), nil
}

func unwrapSID(sid SID) (*windows.SID, error) {
	ws, ok := sid.(windowsSID)
	if !ok || ws.sid == nil {
		return nil, fmt.Errorf("foreign sid %T: %w", sid, oserr.ErrInvalidParameter)
	}
	return ws.sid, nil
}

type processToken struct {
	token windows.Token
	opts  []querybuf.Option
}

// OpenProcessToken opens the calling process's token for querying.
func OpenProcessToken(log zerolog.Logger) (Token, error) {
	var token windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_QUERY, &token); err != nil {
		return nil, fmt.Errorf("open process token: %w", err)
	}

	return &processToken{
		token: token,
		opts:  []querybuf.Option{querybuf.WithLogger(log)},
	}, nil
}

func (t *processToken) Close() error {
	return t.token.Close()
}

func infoClass(role Role) (uint32, error) {
	switch role {
	case RoleUser:
		return windows.TokenUser, nil
	case RoleOwner:
		return windows.TokenOwner, nil
	case RolePrimaryGroup:
		return windows.TokenPrimaryGroup, nil
	}
	return 0, fmt.Errorf("%s: %w", role, oserr.ErrInvalidParameter)
}

func (t *processToken) Info(role Role) (Info, error) {
	class, err := infoClass(role)
	if err != nil {
		return nil, err
	}

	buf, err := querybuf.Probe(func(b []byte) (uint32, error) {
		var ptr *byte
		if len(b) > 0 {
			ptr = &b[0]
		}
		var n uint32
		err := windows.GetTokenInformation(t.token, class, ptr, uint32(len(b)), &n)
		return n, oserr.FromErrno(err)
	}, querybuf.TokenLimit, t.opts...)
	if err != nil {
		return nil, err
	}

	data := buf.Bytes()
	if len(data) < int(unsafe.Sizeof(uintptr(0))) {
		buf.Release()
		return nil, fmt.Errorf("token %s: short block of %d bytes: %w", role, len(data), oserr.ErrInvalidParameter)
	}

	var sid *windows.SID
	switch role {
	case RoleUser:
		sid = (*windows.Tokenuser)(unsafe.Pointer(&data[0])).User.Sid
	case RoleOwner:
		sid = (*tokenOwner)(unsafe.Pointer(&data[0])).Owner
	case RolePrimaryGroup:
		sid = (*windows.Tokenprimarygroup)(unsafe.Pointer(&data[0])).PrimaryGroup
	}

	return &tokenInfo{buf: buf, sid: sid}, nil
}

// tokenInfo keeps the block alive; sid points into it.
type tokenInfo struct {
	buf *querybuf.Buffer
	sid *windows.SID
}

func (i *tokenInfo) SID() SID {
	return windowsSID{sid: i.sid}
}

func (i *tokenInfo) Release() {
	i.sid = nil
	i.buf.Release()
}

type windowsDirectory struct {
	dll *winfsp.DLL
}

// NewDirectory returns the directory backed by LookupAccountSid and the
// WinFsp POSIX mapping.
func NewDirectory(opts winfsp.Options, log zerolog.Logger) (Directory, error) {
	dll, err := winfsp.Load(opts, log)
	if err != nil {
		return nil, err
	}
	return &windowsDirectory{dll: dll}, nil
}

func (d *windowsDirectory) LookupAccount(sid SID) (string, string, error) {
	ws, err := unwrapSID(sid)
	if err != nil {
		return "", "", err
	}
	account, domain, _, err := ws.LookupAccount("")
	return account, domain, err
}

func (d *windowsDirectory) PosixID(sid SID) (uint32, error) {
	ws, err := unwrapSID(sid)
	if err != nil {
		return 0, err
	}
	return d.dll.PosixMapSidToUid(ws)
}

func (d *windowsDirectory) SIDForPosixID(id uint32) (SID, error) {
	sid, err := d.dll.PosixMapUidToSid(id)
	if err != nil {
		return nil, err
	}
	return windowsSID{sid: sid}, nil
}

func (d *windowsDirectory) ParseSID(text string) (SID, error) {
	sid, err := windows.StringToSid(text)
	if err != nil {
		return nil, err
	}
	return windowsSID{sid: sid}, nil
}
