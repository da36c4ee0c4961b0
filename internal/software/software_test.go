package software

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"pgregory.net/rapid"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/enumerator"
)

func TestGroup_OrderAndIdentity(t *testing.T) {
	g := Group(Sources{})
	require.Len(t, g.Categories, 6)
	assert.Equal(t, "Software", g.Name)
	assert.Equal(t, IconSoftware, g.Icon)

	want := []struct {
		name string
		id   category.ID
		icon category.IconRef
	}{
		{"Programs", ProgramsID, IconApplications},
		{"Updates", UpdatesID, IconApplications},
		{"Services", ServicesID, IconGear},
		{"Drivers", DriversID, IconPCI},
		{"Processes", ProcessesID, IconSystemMonitor},
		{"Licenses", LicensesID, IconLicenseKey},
	}
	for i, w := range want {
		c := g.Categories[i]
		assert.Equal(t, w.name, c.Name())
		assert.Equal(t, w.id, c.ID())
		assert.Equal(t, w.icon, c.Icon())
	}
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(Sources{})
	require.NoError(t, err)
	assert.Equal(t, 6, reg.Len())

	c, ok := reg.Lookup("14BB101B-EE61-49E6-B5B9-874C4DBEA03C")
	require.True(t, ok)
	assert.Equal(t, "Processes", c.Name())

	_, ok = reg.Lookup("00000000-0000-0000-0000-000000000000")
	assert.False(t, ok)
}

func TestPrograms_SingleRecord(t *testing.T) {
	c := NewPrograms(enumerator.Static(enumerator.Program{
		Name:            "Foo",
		Version:         "1.0",
		Publisher:       "Acme",
		InstallDate:     "2024-01-01",
		InstallLocation: "/opt/foo",
	}))

	payload, err := c.Serialize()
	require.NoError(t, err)
	rows, err := c.Parse(payload)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, IconApplications, rows[0].Icon)
	assert.Equal(t, []string{"Foo", "1.0", "Acme", "2024-01-01", "/opt/foo"}, rows[0].Texts())
	assert.Len(t, c.Columns(), len(rows[0].Cells))
}

func TestServices_EmptyIsNotAnError(t *testing.T) {
	c := NewServices(enumerator.Static[enumerator.Service]())

	payload, err := c.Serialize()
	require.NoError(t, err)
	assert.Empty(t, payload)

	rows, err := c.Parse(payload)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestServices_UnknownStatusStillRenders(t *testing.T) {
	// status 7 is outside the host enumeration, which stops at 6
	c := NewServices(enumerator.Static(enumerator.Service{
		Name:        "spooler",
		DisplayName: "Print Spooler",
		Status:      enumerator.ServiceStatus(7),
		StartupType: enumerator.StartupAuto,
		StartName:   "LocalSystem",
		BinaryPath:  `C:\Windows\System32\spoolsv.exe`,
	}))

	payload, err := c.Serialize()
	require.NoError(t, err)
	rows, err := c.Parse(payload)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, []string{
		"Print Spooler", "spooler", "", "Unknown", "Auto Start", "LocalSystem", `C:\Windows\System32\spoolsv.exe`,
	}, rows[0].Texts())
}

func TestServices_WireStatusOutsideEnumDecodesToUnknown(t *testing.T) {
	msg := Services{Items: []ServiceItem{{Name: "x", DisplayName: "X", Status: 42, StartupType: -3}}}

	rows, err := NewServices(nil).Parse(msg.MarshalWire())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	texts := rows[0].Texts()
	assert.Equal(t, "X", texts[0])
	assert.Equal(t, "x", texts[1])
	assert.Equal(t, "Unknown", texts[3])
	assert.Equal(t, "Unknown", texts[4])
}

func TestDrivers_SharesSchemaWithoutAccount(t *testing.T) {
	svc := enumerator.Service{
		Name:        "ext4",
		DisplayName: "ext4",
		Status:      enumerator.StatusRunning,
		StartupType: enumerator.StartupDemand,
		StartName:   "ignored",
		BinaryPath:  "/lib/modules/ext4.ko",
	}
	d := NewDrivers(enumerator.Static(svc))

	payload, err := d.Serialize()
	require.NoError(t, err)

	rows, err := d.Parse(payload)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, IconPCI, rows[0].Icon)
	assert.Equal(t, []string{"ext4", "ext4", "", "Running", "Demand Start", "/lib/modules/ext4.ko"}, rows[0].Texts())
	assert.Len(t, d.Columns(), 6)

	// the same bytes are a valid Services payload
	rows, err = NewServices(nil).Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, "ignored", rows[0].Texts()[5])
}

func TestProcesses_Kilobytes(t *testing.T) {
	c := NewProcesses(enumerator.Static(
		enumerator.Process{ProcessName: "init", UsedMemory: 10 * 1024, UsedSwap: 0},
		enumerator.Process{ProcessName: "tiny", UsedMemory: 1000},
	))

	payload, err := c.Serialize()
	require.NoError(t, err)
	rows, err := c.Parse(payload)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, category.Cell{Text: "10", Unit: "kB"}, rows[0].Cells[2])
	assert.Equal(t, category.Cell{}, rows[0].Cells[3])
	assert.Equal(t, "10 kB", rows[0].Cells[2].String())
	assert.Equal(t, category.Cell{Text: "0", Unit: "kB"}, rows[1].Cells[2])
}

func TestProcesses_InvalidUTF8StillDecodes(t *testing.T) {
	c := NewProcesses(enumerator.Static(
		enumerator.Process{ProcessName: "weird", Description: "cmd \xff\xfe arg"},
		enumerator.Process{ProcessName: "sshd"},
	))

	payload, err := c.Serialize()
	require.NoError(t, err)
	rows, err := c.Parse(payload)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "cmd \uFFFD arg", rows[0].Cells[4].Text)
	assert.Equal(t, "sshd", rows[1].Cells[0].Text)
}

func TestPrograms_InvalidUTF8StillDecodes(t *testing.T) {
	c := NewPrograms(enumerator.Static(enumerator.Program{Name: "caf\xe9", Publisher: "ok"}))

	payload, err := c.Serialize()
	require.NoError(t, err)
	rows, err := c.Parse(payload)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "caf\uFFFD", rows[0].Cells[0].Text)
}

func TestParse_TruncatedPayload(t *testing.T) {
	full := (&Programs{Items: []ProgramItem{{Name: "Foo", Version: "1.0"}, {Name: "Bar"}}}).MarshalWire()

	cats := []category.Category{NewPrograms(nil), NewServices(nil), NewDrivers(nil), NewProcesses(nil)}
	for _, c := range cats {
		t.Run(c.Name(), func(t *testing.T) {
			for n := 1; n < len(full); n++ {
				rows, err := c.Parse(full[:n])
				if err == nil {
					// cut exactly between two items
					continue
				}
				assert.ErrorIs(t, err, category.ErrDecode)
				assert.Nil(t, rows)
			}
		})
	}
}

func TestParse_Garbage(t *testing.T) {
	rows, err := NewPrograms(nil).Parse([]byte{0x0a, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01})
	assert.ErrorIs(t, err, category.ErrDecode)
	assert.Nil(t, rows)

	rows, err = NewProcesses(nil).Parse([]byte{0x0a, 0x02, 0x0a, 0x01, 0xff})
	assert.ErrorIs(t, err, category.ErrDecode)
	assert.Nil(t, rows)
}

func TestParse_SkipsFieldsFromNewerBuilds(t *testing.T) {
	item := (&ProgramItem{Name: "Foo"}).MarshalWire()
	item = protowire.AppendTag(item, 99, protowire.BytesType)
	item = protowire.AppendString(item, "future")

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, item)
	b = protowire.AppendTag(b, 15, protowire.VarintType)
	b = protowire.AppendVarint(b, 3)

	rows, err := NewPrograms(nil).Parse(b)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Foo", "", "", "", ""}, rows[0].Texts())
}

func TestSerialize_EnumeratorFailure(t *testing.T) {
	boom := errors.New("access denied")

	_, err := NewPrograms(enumerator.Failing[enumerator.Program](boom)).Serialize()
	assert.ErrorIs(t, err, category.ErrEnumerate)
	assert.ErrorIs(t, err, boom)

	_, err = NewDrivers(enumerator.Failing[enumerator.Service](boom)).Serialize()
	assert.ErrorIs(t, err, category.ErrEnumerate)

	_, err = NewProcesses(nil).Serialize()
	assert.ErrorIs(t, err, category.ErrNoSource)
}

func TestPlaceholders(t *testing.T) {
	for _, c := range []category.Category{NewUpdates(), NewLicenses()} {
		t.Run(c.Name(), func(t *testing.T) {
			// still incomplete: nothing is collected for this category yet
			assert.True(t, category.IsIncomplete(c))

			payload, err := c.Serialize()
			require.NoError(t, err)
			assert.Empty(t, payload)

			for _, in := range [][]byte{nil, {}, {0xff, 0x00, 0x13}, []byte("not a payload")} {
				rows, err := c.Parse(in)
				require.NoError(t, err)
				assert.Empty(t, rows)
			}
		})
	}

	assert.False(t, category.IsIncomplete(NewPrograms(nil)))
}

func TestPlaceholders_DoNotDisturbRegistry(t *testing.T) {
	reg, err := NewRegistry(Sources{})
	require.NoError(t, err)

	ids := make([]category.ID, 0, reg.Len())
	for _, c := range reg.All() {
		_, _ = c.Parse([]byte{0x01})
		ids = append(ids, c.ID())
	}
	assert.Equal(t, []category.ID{ProgramsID, UpdatesID, ServicesID, DriversID, ProcessesID, LicensesID}, ids)

	u, ok := reg.Lookup(UpdatesID)
	require.True(t, ok)
	assert.Same(t, u, reg.All()[1])
}

func TestLabels_Total(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := ServiceStatus(rapid.Int32().Draw(t, "status"))
		l := StatusLabel(s)
		if s < StatusContinuePending || s > StatusStopped {
			if l != UnknownLabel {
				t.Fatalf("status %d: got %q", s, l)
			}
		} else if l == UnknownLabel || l == "" {
			t.Fatalf("status %d has no label", s)
		}

		st := StartupType(rapid.Int32().Draw(t, "startup"))
		l = StartupTypeLabel(st)
		if st < StartupAutoStart || st > StartupSystemStart {
			if l != UnknownLabel {
				t.Fatalf("startup %d: got %q", st, l)
			}
		} else if l == UnknownLabel || l == "" {
			t.Fatalf("startup %d has no label", st)
		}
	})
}

var field = rapid.StringMatching(`[\p{L}\p{N} ./:\\-]{0,24}`)

func TestPrograms_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gen := rapid.Custom(func(t *rapid.T) enumerator.Program {
			return enumerator.Program{
				Name:            field.Draw(t, "name"),
				Version:         field.Draw(t, "version"),
				Publisher:       field.Draw(t, "publisher"),
				InstallDate:     field.Draw(t, "date"),
				InstallLocation: field.Draw(t, "location"),
			}
		})
		records := rapid.SliceOf(gen).Draw(t, "records")

		c := NewPrograms(enumerator.Static(records...))
		payload, err := c.Serialize()
		if err != nil {
			t.Fatal(err)
		}
		rows, err := c.Parse(payload)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != len(records) {
			t.Fatalf("got %d rows, want %d", len(rows), len(records))
		}
		for i, p := range records {
			got := rows[i].Texts()
			want := []string{p.Name, p.Version, p.Publisher, p.InstallDate, p.InstallLocation}
			for j := range want {
				if got[j] != want[j] {
					t.Fatalf("row %d col %d: got %q want %q", i, j, got[j], want[j])
				}
			}
		}
	})
}

func TestServices_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gen := rapid.Custom(func(t *rapid.T) ServiceItem {
			return ServiceItem{
				Name:        field.Draw(t, "name"),
				DisplayName: field.Draw(t, "display"),
				Description: field.Draw(t, "description"),
				Status:      ServiceStatus(rapid.Int32Range(-5, 20).Draw(t, "status")),
				StartupType: StartupType(rapid.Int32Range(-5, 20).Draw(t, "startup")),
				BinaryPath:  field.Draw(t, "binary"),
				StartName:   field.Draw(t, "account"),
			}
		})
		msg := Services{Items: rapid.SliceOf(gen).Draw(t, "items")}

		var got Services
		if err := got.UnmarshalWire(msg.MarshalWire()); err != nil {
			t.Fatal(err)
		}
		if len(got.Items) != len(msg.Items) {
			t.Fatalf("got %d items, want %d", len(got.Items), len(msg.Items))
		}
		for i := range msg.Items {
			if got.Items[i] != msg.Items[i] {
				t.Fatalf("item %d: got %+v want %+v", i, got.Items[i], msg.Items[i])
			}
		}
	})
}

func TestProcesses_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gen := rapid.Custom(func(t *rapid.T) ProcessItem {
			return ProcessItem{
				ProcessName: field.Draw(t, "name"),
				FilePath:    field.Draw(t, "path"),
				UsedMemory:  rapid.Uint64().Draw(t, "memory"),
				UsedSwap:    rapid.Uint64().Draw(t, "swap"),
				Description: field.Draw(t, "description"),
			}
		})
		msg := Processes{Items: rapid.SliceOf(gen).Draw(t, "items")}

		var got Processes
		if err := got.UnmarshalWire(msg.MarshalWire()); err != nil {
			t.Fatal(err)
		}
		if len(got.Items) != len(msg.Items) {
			t.Fatalf("got %d items, want %d", len(got.Items), len(msg.Items))
		}
		for i := range msg.Items {
			if got.Items[i] != msg.Items[i] {
				t.Fatalf("item %d: got %+v want %+v", i, got.Items[i], msg.Items[i])
			}
		}
	})
}
