package viewer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/report"
	"github.com/go-tangra/go-tangra-sysinfo/internal/store"
)

const (
	DefaultExpiration      = 30 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// Source is the part of the store the viewer reads.
type Source interface {
	Latest(ctx context.Context, hostname string) ([]store.Snapshot, error)
	LatestCategory(ctx context.Context, hostname, categoryID string) (*store.Snapshot, error)
}

// Report is every decoded category of one host.
type Report struct {
	Hostname string    `json:"hostname" yaml:"hostname"`
	HostID   string    `json:"host_id,omitempty" yaml:"host_id,omitempty"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// Viewer decodes stored snapshots. Snapshots never change once stored, so
// decoded sections are cached by snapshot ID.
type Viewer struct {
	reg   *category.Registry
	src   Source
	cache *gocache.Cache
}

func New(reg *category.Registry, src Source) *Viewer {
	return &Viewer{
		reg:   reg,
		src:   src,
		cache: gocache.New(DefaultExpiration, DefaultCleanupInterval),
	}
}

// Registry returns the registry sections are decoded with.
func (v *Viewer) Registry() *category.Registry { return v.reg }

// Section decodes snap, reusing an earlier decode of the same snapshot.
func (v *Viewer) Section(snap store.Snapshot) Section {
	if snap.ID == 0 {
		return Decode(v.reg, snap)
	}
	key := strconv.FormatInt(snap.ID, 10)
	if cached, ok := v.cache.Get(key); ok {
		if sec, ok := cached.(Section); ok {
			return sec
		}
	}

	sec := Decode(v.reg, snap)
	if sec.Status == StatusDecodeError {
		zap.L().Warn("stored payload does not decode",
			zap.Int64("snapshot_id", snap.ID),
			zap.String("hostname", snap.Hostname),
			zap.String("category", sec.Name),
			zap.String("error", sec.Error),
		)
	}
	v.cache.SetDefault(key, sec)
	return sec
}

// Report decodes the newest snapshot of every category stored for hostname.
// Sections follow registry order; categories this build does not know come
// last.
func (v *Viewer) Report(ctx context.Context, hostname string) (*Report, error) {
	snaps, err := v.src.Latest(ctx, hostname)
	if err != nil {
		return nil, err
	}

	rep := &Report{Hostname: hostname, Sections: make([]Section, 0, len(snaps))}
	for _, snap := range snaps {
		if rep.HostID == "" {
			rep.HostID = snap.HostID
		}
		rep.Sections = append(rep.Sections, v.Section(snap))
	}
	v.sortSections(rep.Sections)
	return rep, nil
}

// Category decodes the newest snapshot of one category.
func (v *Viewer) Category(ctx context.Context, hostname string, id category.ID) (Section, error) {
	snap, err := v.src.LatestCategory(ctx, hostname, string(id))
	if err != nil {
		return Section{}, err
	}
	return v.Section(*snap), nil
}

// FromBundle decodes an offline report bundle.
func (v *Viewer) FromBundle(b *report.Bundle) (*Report, error) {
	if b == nil {
		return nil, fmt.Errorf("nil report bundle")
	}
	rep := &Report{Hostname: b.Hostname, HostID: b.HostID, Sections: make([]Section, 0, len(b.Entries))}
	for _, e := range b.Entries {
		rep.Sections = append(rep.Sections, Decode(v.reg, store.Snapshot{
			HostID:       b.HostID,
			Hostname:     b.Hostname,
			CategoryID:   string(e.CategoryID),
			Payload:      e.Payload,
			CollectError: e.Error,
			CollectedAt:  b.CollectedAt,
		}))
	}
	v.sortSections(rep.Sections)
	return rep, nil
}

func (v *Viewer) sortSections(sections []Section) {
	rank := func(s Section) int {
		if i := v.reg.Index(s.CategoryID); i >= 0 {
			return i
		}
		return v.reg.Len()
	}
	sort.SliceStable(sections, func(i, j int) bool {
		return rank(sections[i]) < rank(sections[j])
	})
}
