package cli

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/nhdewitt/fsptool/internal/identity"
	"github.com/nhdewitt/fsptool/internal/oserr"
	"github.com/nhdewitt/fsptool/internal/volume"
	"github.com/nhdewitt/fsptool/internal/winfsp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	volumes map[string][]string
	errs    map[string]error
	drives  uint32
	targets map[volume.Letter]string
}

func (s *stubSource) VolumeList(class string, buf []byte) (uintptr, error) {
	if err := s.errs[class]; err != nil {
		return 0, err
	}
	var data []byte
	for _, p := range s.volumes[class] {
		for _, u := range utf16.Encode([]rune(p)) {
			data = binary.LittleEndian.AppendUint16(data, u)
		}
		data = binary.LittleEndian.AppendUint16(data, 0)
	}
	if len(data) > len(buf) {
		return uintptr(len(data)), oserr.ErrBufferTooSmall
	}
	return uintptr(copy(buf, data)), nil
}

func (s *stubSource) LogicalDrives() (uint32, error) {
	return s.drives, nil
}

func (s *stubSource) ResolveDrive(l volume.Letter) (string, error) {
	if t, ok := s.targets[l]; ok {
		return t, nil
	}
	return "", oserr.ErrorInvalidParameter
}

type stubSID string

func (s stubSID) Text() (string, error) {
	return string(s), nil
}

type stubInfo struct {
	sid stubSID
}

func (i stubInfo) SID() identity.SID { return i.sid }
func (i stubInfo) Release()          {}

type stubToken struct {
	errs   map[identity.Role]error
	closed bool
}

func (t *stubToken) Info(role identity.Role) (identity.Info, error) {
	if err := t.errs[role]; err != nil {
		return nil, err
	}
	sids := map[identity.Role]stubSID{
		identity.RoleUser:         "S-1-5-21-1-2-3-1001",
		identity.RoleOwner:        "S-1-5-21-1-2-3-1001",
		identity.RolePrimaryGroup: "S-1-5-21-1-2-3-513",
	}
	return stubInfo{sid: sids[role]}, nil
}

func (t *stubToken) Close() error {
	t.closed = true
	return nil
}

type stubDirectory struct{}

func (stubDirectory) LookupAccount(sid identity.SID) (string, string, error) {
	text, _ := sid.Text()
	if strings.HasSuffix(text, "-513") {
		return "", "", oserr.ErrorNoneMapped
	}
	return "bob", "HOST", nil
}

func (stubDirectory) PosixID(sid identity.SID) (uint32, error) {
	text, _ := sid.Text()
	if strings.HasSuffix(text, "-513") {
		return 197121, nil
	}
	return 197609, nil
}

func (stubDirectory) SIDForPosixID(id uint32) (identity.SID, error) {
	if id == 197609 {
		return stubSID("S-1-5-21-1-2-3-1001"), nil
	}
	return nil, oserr.ErrorNoneMapped
}

func (stubDirectory) ParseSID(text string) (identity.SID, error) {
	if !strings.HasPrefix(text, "S-") {
		return nil, oserr.ErrorInvalidParameter
	}
	return stubSID(text), nil
}

func stubEnv(src *stubSource, tok *stubToken) Env {
	return Env{
		VolumeSource: func(winfsp.Options, zerolog.Logger) (volume.Source, error) {
			return src, nil
		},
		Token: func(zerolog.Logger) (identity.Token, error) {
			return tok, nil
		},
		Directory: func(winfsp.Options, zerolog.Logger) (identity.Directory, error) {
			return stubDirectory{}, nil
		},
	}
}

func run(t *testing.T, env Env, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(env, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExecute_Lsvol(t *testing.T) {
	src := &stubSource{
		volumes: map[string][]string{
			winfsp.DiskDeviceName: {`\Device\Volume{a}`, `\Device\Volume{b}`},
			winfsp.NetDeviceName:  {`\Device\Volume{n}`},
		},
		drives:  1<<('C'-'A') | 1<<('Z'-'A'),
		targets: map[volume.Letter]string{'C': `\Device\HarddiskVolume2`, 'Z': `\Device\Volume{n}`},
	}

	code, out, _ := run(t, stubEnv(src, &stubToken{}), "lsvol")
	require.Equal(t, 0, code)
	assert.Equal(t, "    \\Device\\Volume{a}\n    \\Device\\Volume{b}\nZ:  \\Device\\Volume{n}\n", out)
}

func TestExecute_LsvolFailure(t *testing.T) {
	src := &stubSource{
		volumes: map[string][]string{winfsp.DiskDeviceName: {`\Device\Volume{a}`}},
		errs:    map[string]error{winfsp.NetDeviceName: oserr.ErrorAccessDenied},
	}

	code, out, stderr := run(t, stubEnv(src, &stubToken{}), "lsvol")
	assert.Equal(t, 5, code)
	assert.Equal(t, "    \\Device\\Volume{a}\n", out)
	assert.Contains(t, stderr, "command failed")
}

func TestExecute_LsvolExtraArgs(t *testing.T) {
	code, out, stderr := run(t, stubEnv(&stubSource{}, &stubToken{}), "lsvol", "extra")
	assert.Equal(t, 87, code)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Usage:")
}

func TestExecute_ID(t *testing.T) {
	tok := &stubToken{}

	code, out, _ := run(t, stubEnv(&stubSource{}, tok), "id")
	require.Equal(t, 0, code)
	assert.Equal(t,
		"User=S-1-5-21-1-2-3-1001(HOST\\bob) (uid=197609)\n"+
			"Owner=S-1-5-21-1-2-3-1001(HOST\\bob) (uid=197609)\n"+
			"Group=S-1-5-21-1-2-3-513() (gid=197121)\n",
		out)
	assert.True(t, tok.closed)
}

func TestExecute_IDGroupFailure(t *testing.T) {
	tok := &stubToken{errs: map[identity.Role]error{identity.RolePrimaryGroup: oserr.ErrorAccessDenied}}

	code, out, _ := run(t, stubEnv(&stubSource{}, tok), "id")
	assert.Equal(t, 5, code)
	assert.Empty(t, out)
	assert.True(t, tok.closed)
}

func TestExecute_UIDToSID(t *testing.T) {
	env := stubEnv(&stubSource{}, &stubToken{})

	code, out, _ := run(t, env, "uidtosid", "197609")
	require.Equal(t, 0, code)
	assert.Equal(t, "S-1-5-21-1-2-3-1001(HOST\\bob)\n", out)

	code, _, _ = run(t, env, "uidtosid", "12")
	assert.Equal(t, 1332, code)

	code, _, _ = run(t, env, "uidtosid", "-1")
	assert.Equal(t, 87, code)

	code, _, _ = run(t, env, "uidtosid")
	assert.Equal(t, 87, code)
}

func TestExecute_SIDToUID(t *testing.T) {
	env := stubEnv(&stubSource{}, &stubToken{})

	code, out, _ := run(t, env, "sidtouid", "S-1-5-21-1-2-3-513")
	require.Equal(t, 0, code)
	assert.Equal(t, "S-1-5-21-1-2-3-513() (uid=197121)\n", out)

	code, _, _ = run(t, env, "sidtouid", "bogus")
	assert.Equal(t, 87, code)
}

func TestExecute_Stubs(t *testing.T) {
	for _, name := range []string{"permtosd", "sdtoperm"} {
		t.Run(name, func(t *testing.T) {
			code, out, _ := run(t, stubEnv(&stubSource{}, &stubToken{}), name, "0755")
			assert.Equal(t, 1, code)
			assert.Empty(t, out)
		})
	}
}

func TestExecute_Usage(t *testing.T) {
	env := stubEnv(&stubSource{}, &stubToken{})

	code, _, stderr := run(t, env)
	assert.Equal(t, 87, code)
	assert.Contains(t, stderr, "lsvol")

	code, _, stderr = run(t, env, "frobnicate")
	assert.Equal(t, 87, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)

	code, _, _ = run(t, env, "lsvol", "--no-such-flag")
	assert.Equal(t, 87, code)
}

func TestExecute_SourceUnavailable(t *testing.T) {
	env := stubEnv(&stubSource{}, &stubToken{})
	env.VolumeSource = func(winfsp.Options, zerolog.Logger) (volume.Source, error) {
		return nil, oserr.ErrNotSupported
	}

	code, _, _ := run(t, env, "lsvol")
	assert.Equal(t, 50, code)
}

func TestExecute_WinFspOptionsFromFlags(t *testing.T) {
	var got winfsp.Options
	env := stubEnv(&stubSource{}, &stubToken{})
	env.VolumeSource = func(opts winfsp.Options, _ zerolog.Logger) (volume.Source, error) {
		got = opts
		return &stubSource{}, nil
	}

	code, _, _ := run(t, env, "--winfsp-dir", `D:\winfsp\bin`, "lsvol")
	require.Equal(t, 0, code)
	assert.Equal(t, `D:\winfsp\bin`, got.Dir)
}
