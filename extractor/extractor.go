// Package extractor defines the L1 extraction contract of spec.md §3/§6:
// "extract(bytes, mime) -> [Mention], pure and side-effect-free". Concrete
// extraction logic (NLP, entity recognition, whatever a given deployment
// plugs in) is explicitly out of scope per spec.md's Non-goals; this
// package only states the interface content.Service depends on.
package extractor

import "github.com/gdgiangi/nodalync-protocol-sub004/content"

// L1Extractor turns raw L0 bytes into a list of mentions. Implementations
// must be pure and side-effect-free: the same (data, mime) pair always
// yields the same mentions, and extraction must not mutate or read any
// state beyond its arguments. content.Service.Preview/Summarize accept any
// value satisfying this interface (content.Extractor is the structurally
// identical port that package owns, so it never has to import extractor).
type L1Extractor interface {
	Extract(data []byte, mime string) ([]content.Mention, error)
}

// Null is the zero-configuration extractor: it returns no mentions for any
// input. Nodes that have not wired in a concrete extractor use this so
// Preview/Summarize still return a well-formed, empty L1Summary rather than
// requiring a nil check everywhere an Extractor is threaded through.
type Null struct{}

// Extract always returns an empty mention list.
func (Null) Extract(data []byte, mime string) ([]content.Mention, error) {
	return nil, nil
}

var _ L1Extractor = Null{}
