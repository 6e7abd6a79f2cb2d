package survey

import (
	"math"
	"sync"
	"time"
)

// FormatGroupID renders <prefix><YYYYMMDD>T<fractional-hour> for t in UTC.
// The fractional hour is rounded to 8 decimals (about 36µs).
func FormatGroupID(prefix string, t time.Time) string {
	t = t.UTC()
	h := float64(t.Hour()) +
		float64(t.Minute())/60.0 +
		float64(t.Second())/3600.0 +
		float64(t.Nanosecond()/1000)/3600e6
	h = math.Round(h*1e8) / 1e8
	return prefix + t.Format("20060102") + "T" + FormatFloat(h)
}

// GroupIDGenerator hands out group ids that are unique within the process.
// When two ids would collide the timestamp is advanced one microsecond at a
// time until the rendered id is new.
type GroupIDGenerator struct {
	prefix string

	mu     sync.Mutex
	issued map[string]struct{}
}

func NewGroupIDGenerator(prefix string) *GroupIDGenerator {
	return &GroupIDGenerator{prefix: prefix, issued: map[string]struct{}{}}
}

func (g *GroupIDGenerator) Prefix() string { return g.prefix }

func (g *GroupIDGenerator) Next(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		id := FormatGroupID(g.prefix, t)
		if _, dup := g.issued[id]; !dup {
			g.issued[id] = struct{}{}
			return id
		}
		t = t.Add(time.Microsecond)
	}
}
