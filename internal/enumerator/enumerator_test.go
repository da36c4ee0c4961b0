package enumerator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrain_PreservesOrderAndRestarts(t *testing.T) {
	src := Static(Program{Name: "a"}, Program{Name: "b"}, Program{Name: "c"})

	first, err := Drain(src)
	require.NoError(t, err)
	second, err := Drain(src)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, names(first))
	assert.Equal(t, first, second)
}

func TestDrain_Empty(t *testing.T) {
	got, err := Drain(Static[Process]())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDrain_Failing(t *testing.T) {
	boom := errors.New("access denied")
	_, err := Drain(Failing[Service](boom))
	assert.ErrorIs(t, err, boom)
}

type brokenAdapter struct{ n int }

func (b *brokenAdapter) IsAtEnd() bool   { return b.n >= 1 }
func (b *brokenAdapter) Advance()        { b.n++ }
func (b *brokenAdapter) Record() Program { return Program{Name: "partial"} }
func (b *brokenAdapter) Err() error      { return errors.New("cursor lost") }

func TestDrain_AdapterError(t *testing.T) {
	src := func() (Adapter[Program], error) { return &brokenAdapter{}, nil }
	got, err := Drain[Program](src)
	require.Error(t, err)
	assert.Nil(t, got)
}

func names(ps []Program) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestParseDpkgStatus(t *testing.T) {
	const status = `Package: bash
Status: install ok installed
Architecture: amd64
Version: 5.2.15-2
Maintainer: Matthias Klose <doko@debian.org>
Description: GNU Bourne Again SHell
 Bash is an sh-compatible command language interpreter.

Package: removed-tool
Status: deinstall ok config-files
Version: 1.0

Package: libc6
Status: install ok installed
Architecture: amd64
Version: 2.36-9
Maintainer: GNU Libc Maintainers
`
	pkgs, err := parseDpkgStatus(strings.NewReader(status))
	require.NoError(t, err)
	require.Len(t, pkgs, 3)

	assert.Equal(t, "bash", pkgs[0].Name)
	assert.True(t, pkgs[0].Installed)
	assert.Equal(t, "Matthias Klose", pkgs[0].Publisher())
	assert.False(t, pkgs[1].Installed)
	assert.Equal(t, "GNU Libc Maintainers", pkgs[2].Publisher())
	assert.Equal(t, "2.36-9", pkgs[2].Version)
}

func TestParseProcStatus(t *testing.T) {
	const status = "Name:\tnginx\nState:\tS (sleeping)\nVmRSS:\t    2048 kB\nVmSwap:\t       4 kB\n"
	st, err := parseProcStatus(strings.NewReader(status))
	require.NoError(t, err)
	assert.Equal(t, procStatus{Name: "nginx", RSS: 2048 * 1024, Swap: 4 * 1024}, st)
}

func TestParseModules(t *testing.T) {
	const modules = "nf_tables 327680 0 - Live 0x0000000000000000\n" +
		"xfs 2023424 1 - Unloading 0x0000000000000000\n" +
		"odd 1 0 - Weird 0x0\n" +
		"short line\n"
	mods, err := parseModules(strings.NewReader(modules))
	require.NoError(t, err)
	require.Len(t, mods, 3)

	assert.Equal(t, "nf_tables", mods[0].Name)
	assert.Equal(t, StatusRunning, mods[0].Status)
	assert.Equal(t, StatusStopPending, mods[1].Status)
	assert.Equal(t, ServiceStatus(-1), mods[2].Status)
	assert.Equal(t, StartupDemand, mods[0].StartupType)
}

func TestParseUnit(t *testing.T) {
	const unit = `# comment
[Unit]
Description=OpenBSD Secure Shell server

[Service]
ExecStartPre=/usr/sbin/sshd -t
ExecStart=-/usr/sbin/sshd -D $SSHD_OPTS
ExecStart=/ignored
User=sshd

[Install]
WantedBy=multi-user.target
`
	u, err := parseUnit(strings.NewReader(unit))
	require.NoError(t, err)
	assert.Equal(t, unitFile{
		Description: "OpenBSD Secure Shell server",
		ExecStart:   "/usr/sbin/sshd -D $SSHD_OPTS",
		User:        "sshd",
	}, u)
}

func TestFormatInstallDate(t *testing.T) {
	assert.Equal(t, "2024-01-01", formatInstallDate("20240101"))
	assert.Equal(t, "", formatInstallDate(""))
	assert.Equal(t, "1/2/2024", formatInstallDate("1/2/2024"))
	assert.Equal(t, "2024ab01", formatInstallDate("2024ab01"))
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "services", ScopeServices.String())
	assert.Equal(t, "drivers", ScopeDrivers.String())
	assert.Equal(t, "unknown", Scope(9).String())
}
