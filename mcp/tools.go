package mcp

import (
	"github.com/gdgiangi/nodalync-protocol-sub004/content"
	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

// QueryKnowledgeInput is the query_knowledge tool's request: fetch one
// piece of content by hash, refusing to pay more than MaxPrice (which a
// caller typically sets from BudgetTracker.Remaining()).
type QueryKnowledgeInput struct {
	Hash     ndlcrypto.Hash `json:"hash"`
	MaxPrice uint64         `json:"max_price"`
}

// QueryKnowledgeOutput is the query_knowledge tool's response: the content
// bytes plus its L1 summary, and what was actually paid for it.
type QueryKnowledgeOutput struct {
	Content      []byte          `json:"content"`
	Summary      content.L1Summary `json:"summary"`
	CostPaid     uint64          `json:"cost_paid"`
	AutoApproved bool            `json:"auto_approved"`
}

// ListSourcesInput is the list_sources tool's request: browse available
// content, optionally filtered by layer (L0-L3) and capped at Limit
// results (0 means no cap).
type ListSourcesInput struct {
	ContentType content.ContentType `json:"content_type,omitempty"`
	Limit       int                 `json:"limit,omitempty"`
}

// SourceSummary is one entry in a ListSourcesOutput: enough to decide
// whether to query it, without the content bytes themselves.
type SourceSummary struct {
	Hash         ndlcrypto.Hash      `json:"hash"`
	Title        string              `json:"title"`
	ContentType  content.ContentType `json:"content_type"`
	Price        uint64              `json:"price"`
	TotalQueries uint64              `json:"total_queries"`
}

// ListSourcesOutput is the list_sources tool's response.
type ListSourcesOutput struct {
	Sources []SourceSummary `json:"sources"`
}
