package snapshot

import (
	"github.com/yndnr/picoretain/internal/storage/codec"
	"github.com/yndnr/picoretain/internal/storage/region"
)

// RegionReport is a read-only summary of one region.
type RegionReport struct {
	Name   region.Name   `json:"name" yaml:"name"`
	Offset int           `json:"offset" yaml:"offset" table:"wide"`
	Size   int           `json:"size" yaml:"size"`
	Status region.Status `json:"-" yaml:"-" table:"-"`
	State  string        `json:"status" yaml:"status"`
	Header region.Header `json:"header" yaml:"header" table:"-"`

	// Count and Used are only set for valid regions.
	Count uint64 `json:"count" yaml:"count"`
	Used  int    `json:"used" yaml:"used"`
}

// Inspect reads the header and entity count of every region in mem.
func Inspect(table *region.Table, mem []byte) []RegionReport {
	out := make([]RegionReport, 0, len(table.Regions()))
	for _, r := range table.Regions() {
		rep := RegionReport{Name: r.Name, Offset: r.Offset, Size: r.Size}
		raw, err := table.Slice(mem, r.Name)
		if err != nil {
			rep.Status = region.StatusBadLength
			rep.State = rep.Status.String()
			out = append(out, rep)
			continue
		}
		rep.Header, _ = region.ReadHeader(raw)
		rep.Status = region.Check(raw)
		rep.State = rep.Status.String()
		if rep.Status == region.StatusValid {
			body, _ := region.Open(raw)
			rep.Used = region.HeaderSize + len(body)
			if n, err := codec.NewReader(body).U64(); err == nil {
				rep.Count = n
			}
		}
		out = append(out, rep)
	}
	return out
}
