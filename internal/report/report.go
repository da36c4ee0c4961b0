// Package report stores a collection run in a file so it can be viewed on
// another machine without a collector in between.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	cbor "github.com/fxamacker/cbor/v2"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/collector"
)

// FormatVersion is written into every bundle.
const FormatVersion = 1

// ErrVersion is returned for bundles written by an incompatible release.
var ErrVersion = errors.New("unsupported report version")

// Entry is the payload of one category, or the reason it is missing.
type Entry struct {
	CategoryID category.ID `cbor:"1,keyasint"`
	Name       string      `cbor:"2,keyasint,omitempty"`
	Payload    []byte      `cbor:"3,keyasint,omitempty"`
	Error      string      `cbor:"4,keyasint,omitempty"`
}

// Bundle is one host snapshot.
type Bundle struct {
	Version     int       `cbor:"1,keyasint"`
	Hostname    string    `cbor:"2,keyasint"`
	HostID      string    `cbor:"3,keyasint,omitempty"`
	CollectedAt time.Time `cbor:"4,keyasint"`
	Entries     []Entry   `cbor:"5,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	if encMode, err = opts.EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

// FromResults builds a bundle from a collection run.
func FromResults(hostname, hostID string, collectedAt time.Time, results []collector.Result) Bundle {
	b := Bundle{
		Version:     FormatVersion,
		Hostname:    hostname,
		HostID:      hostID,
		CollectedAt: collectedAt.UTC(),
		Entries:     make([]Entry, 0, len(results)),
	}
	for _, r := range results {
		e := Entry{CategoryID: r.ID, Name: r.Name, Payload: r.Payload}
		if r.Err != nil {
			e.Payload = nil
			e.Error = r.Err.Error()
		}
		b.Entries = append(b.Entries, e)
	}
	return b
}

func Encode(w io.Writer, b Bundle) error {
	if b.Version == 0 {
		b.Version = FormatVersion
	}
	if err := encMode.NewEncoder(w).Encode(b); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func Decode(r io.Reader) (Bundle, error) {
	var b Bundle
	if err := decMode.NewDecoder(r).Decode(&b); err != nil {
		return Bundle{}, fmt.Errorf("decode report: %w", err)
	}
	if b.Version != FormatVersion {
		return Bundle{}, fmt.Errorf("%w: %d", ErrVersion, b.Version)
	}
	return b, nil
}

// Write saves b to path, replacing any existing file.
func Write(path string, b Bundle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := Encode(f, b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func Read(path string) (Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return Bundle{}, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
