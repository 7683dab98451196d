//go:build windows

package identity

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessToken_Info(t *testing.T) {
	tok, err := OpenProcessToken(zerolog.Nop())
	require.NoError(t, err)
	defer tok.Close()

	for _, role := range Roles {
		t.Run(role.String(), func(t *testing.T) {
			info, err := tok.Info(role)
			require.NoError(t, err)
			defer info.Release()

			text, err := info.SID().Text()
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(text, "S-1-"), "unexpected sid %q", text)
		})
	}
}

func TestWindowsDirectory_ParseSID(t *testing.T) {
	d := &windowsDirectory{}

	sid, err := d.ParseSID("S-1-5-32-544")
	require.NoError(t, err)

	text, err := sid.Text()
	require.NoError(t, err)
	assert.Equal(t, "S-1-5-32-544", text)

	account, domain, err := d.LookupAccount(sid)
	require.NoError(t, err)
	assert.NotEmpty(t, account)
	assert.NotEmpty(t, domain)

	_, err = d.ParseSID("garbage")
	assert.Error(t, err)
}

func TestUnwrapSID_Foreign(t *testing.T) {
	_, err := unwrapSID(fakeSID{text: "S-1-1-0"})
	assert.Error(t, err)
}
