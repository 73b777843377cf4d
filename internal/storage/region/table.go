package region

import (
	"sort"

	"github.com/yndnr/picoretain/internal/core/domain"
)

// Name identifies the collection stored in a region.
type Name string

// Region names, one per session collection.
const (
	Resources           Name = "resources"
	RemoteResources     Name = "remote_resources"
	LocalSubscriptions  Name = "local_subscriptions"
	RemoteSubscriptions Name = "remote_subscriptions"
	LocalQueryables     Name = "local_queryables"
	PendingQueries      Name = "pending_queries"
)

// Canonical is the order in which regions are laid out, written and read.
var Canonical = []Name{
	Resources,
	RemoteResources,
	LocalSubscriptions,
	RemoteSubscriptions,
	LocalQueryables,
	PendingQueries,
}

// IsKnown reports whether n is one of the canonical names.
func IsKnown(n Name) bool {
	for _, c := range Canonical {
		if c == n {
			return true
		}
	}
	return false
}

// MinSize is the smallest usable region: a header and an empty count.
const MinSize = HeaderSize + 8

// DefaultBudget is the retention budget of the reference target.
const DefaultBudget = 4096

// Spec requests a size for one region.
type Spec struct {
	Name Name
	Size int
}

// DefaultSpecs returns the region sizes used by DefaultTable.
func DefaultSpecs() []Spec {
	return []Spec{
		{Resources, 512},
		{RemoteResources, 512},
		{LocalSubscriptions, 768},
		{RemoteSubscriptions, 512},
		{LocalQueryables, 512},
		{PendingQueries, 1280},
	}
}

// Region is a byte range inside retained memory.
type Region struct {
	Name   Name `json:"name" yaml:"name"`
	Offset int  `json:"offset" yaml:"offset"`
	Size   int  `json:"size" yaml:"size"`
}

// End returns the offset one past the last byte of the region.
func (r Region) End() int { return r.Offset + r.Size }

// BodyCap returns how many body bytes fit after the header.
func (r Region) BodyCap() int { return r.Size - HeaderSize }

// Table maps region names to disjoint byte ranges.
type Table struct {
	budget  int
	total   int
	regions []Region
	index   map[Name]int
}

// NewTable lays the requested regions out contiguously in canonical order.
//
// Every canonical name must appear exactly once with a size of at least
// MinSize, and the sizes must add up to no more than budget.
func NewTable(budget int, specs []Spec) (*Table, error) {
	if budget <= 0 {
		return nil, domain.ErrLayoutInvalid.WithDetailsf("budget %d", budget)
	}

	sizes := make(map[Name]int, len(specs))
	for _, s := range specs {
		if !IsKnown(s.Name) {
			return nil, domain.ErrLayoutInvalid.WithDetailsf("unknown region %q", s.Name)
		}
		if _, dup := sizes[s.Name]; dup {
			return nil, domain.ErrLayoutInvalid.WithDetailsf("region %q listed twice", s.Name)
		}
		if s.Size < MinSize {
			return nil, domain.ErrLayoutInvalid.WithDetailsf(
				"region %q size %d below minimum %d", s.Name, s.Size, MinSize)
		}
		sizes[s.Name] = s.Size
	}

	t := &Table{
		budget:  budget,
		regions: make([]Region, 0, len(Canonical)),
		index:   make(map[Name]int, len(Canonical)),
	}
	offset := 0
	for _, name := range Canonical {
		size, ok := sizes[name]
		if !ok {
			return nil, domain.ErrLayoutInvalid.WithDetailsf("region %q has no size", name)
		}
		t.index[name] = len(t.regions)
		t.regions = append(t.regions, Region{Name: name, Offset: offset, Size: size})
		offset += size
	}
	if offset > budget {
		return nil, domain.ErrLayoutInvalid.WithDetailsf(
			"regions need %d bytes, budget is %d", offset, budget)
	}
	t.total = offset
	return t, nil
}

// DefaultTable returns the 4 KiB reference layout.
func DefaultTable() *Table {
	t, err := NewTable(DefaultBudget, DefaultSpecs())
	if err != nil {
		panic(err)
	}
	return t
}

// SpecsFromMap converts a name->size map, as found in configuration, into
// specs. Names are sorted so error messages are deterministic.
func SpecsFromMap(m map[string]int) []Spec {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)

	specs := make([]Spec, 0, len(m))
	for _, n := range names {
		specs = append(specs, Spec{Name: Name(n), Size: m[n]})
	}
	return specs
}

// Lookup returns the region stored under name.
func (t *Table) Lookup(name Name) (Region, error) {
	i, ok := t.index[name]
	if !ok {
		return Region{}, domain.ErrUnknownRegion.WithDetailsf("%q", name)
	}
	return t.regions[i], nil
}

// Slice returns the bytes of region name within mem.
func (t *Table) Slice(mem []byte, name Name) ([]byte, error) {
	r, err := t.Lookup(name)
	if err != nil {
		return nil, err
	}
	if len(mem) < t.total {
		return nil, domain.ErrLayoutInvalid.WithDetailsf(
			"retained memory is %d bytes, layout needs %d", len(mem), t.total)
	}
	return mem[r.Offset:r.End():r.End()], nil
}

// Regions returns the regions in canonical order.
func (t *Table) Regions() []Region {
	out := make([]Region, len(t.regions))
	copy(out, t.regions)
	return out
}

// Total returns the bytes covered by all regions.
func (t *Table) Total() int { return t.total }

// Budget returns the retention budget the table was built for.
func (t *Table) Budget() int { return t.budget }
