package content

import (
	"sort"

	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// L1Summary is the free, no-channel-required preview of an L1 artifact's
// mentions, returned from a preview or an authorized query (spec.md §4.3,
// §4.6). It never exposes the mention text itself, only its shape.
type L1Summary struct {
	CountsByCategory map[string]uint64
	TopEntities      []string
}

// SummarizeMentions builds an L1Summary from a full mention list. TopEntities
// is capped at topN, ordered by descending frequency then lexicographically
// to keep the result deterministic.
func SummarizeMentions(mentions []Mention, topN int) L1Summary {
	counts := make(map[string]uint64, len(mentions))
	entityFreq := make(map[string]uint64)
	for _, m := range mentions {
		counts[m.Category]++
		for _, e := range m.Entities {
			entityFreq[e]++
		}
	}

	entities := make([]string, 0, len(entityFreq))
	for e := range entityFreq {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		if entityFreq[entities[i]] != entityFreq[entities[j]] {
			return entityFreq[entities[i]] > entityFreq[entities[j]]
		}
		return entities[i] < entities[j]
	})
	if topN >= 0 && len(entities) > topN {
		entities = entities[:topN]
	}

	return L1Summary{CountsByCategory: counts, TopEntities: entities}
}

// ToWire converts an L1Summary to its wire representation.
func (s L1Summary) ToWire() wire.L1SummaryWire {
	return wire.L1SummaryWire{CountsByCategory: s.CountsByCategory, TopEntities: s.TopEntities}
}

// FromWire converts a wire.L1SummaryWire back to an L1Summary.
func FromWire(w wire.L1SummaryWire) L1Summary {
	return L1Summary{CountsByCategory: w.CountsByCategory, TopEntities: w.TopEntities}
}
