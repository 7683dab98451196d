package platform

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDLLName(t *testing.T) {
	tests := []struct {
		arch string
		want string
	}{
		{"amd64", "winfsp-x64.dll"},
		{"386", "winfsp-x86.dll"},
		{"arm64", "winfsp-a64.dll"},
		{"riscv64", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.arch, func(t *testing.T) {
			assert.Equal(t, tt.want, DLLName(tt.arch))
		})
	}
}

func TestDetect(t *testing.T) {
	info := Detect()

	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
	assert.Equal(t, DLLName(runtime.GOARCH), info.DLLName)
	if runtime.GOOS != "windows" {
		assert.Empty(t, info.InstallDir)
	}
}
