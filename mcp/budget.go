// Package mcp defines the core-visible contract the MCP (model-context
// protocol) adapter depends on, per spec.md §6: a session budget tracker
// plus the two request/response shapes an AI client's query_knowledge and
// list_sources tools exchange. The MCP server itself — the rmcp transport,
// tool registration, Claude Desktop wiring — is out of scope; only these
// plain structs are.
package mcp

import "fmt"

// Code identifies a class of MCP-layer failure.
type Code string

const (
	CodeBudgetExceeded Code = "BudgetExceeded"
)

// Error is this package's structured error type.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func newErr(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// BudgetTracker guards a single MCP session's spending against a fixed
// budget, per spec.md §6: "{ budget, auto_approve, spent }, which rejects
// a query whose price > remaining (BudgetExceeded) and auto-approves if
// price <= auto_approve". It holds no channel or network state of its own
// — it only gates whether a query should be attempted at all.
type BudgetTracker struct {
	budget      uint64
	autoApprove uint64
	spent       uint64
}

// NewBudgetTracker starts a tracker with the given session budget and
// auto-approval threshold, both in the same unit as content prices.
func NewBudgetTracker(budget, autoApprove uint64) *BudgetTracker {
	return &BudgetTracker{budget: budget, autoApprove: autoApprove}
}

// Remaining reports how much of the session budget is left unspent.
func (b *BudgetTracker) Remaining() uint64 {
	if b.spent >= b.budget {
		return 0
	}
	return b.budget - b.spent
}

// Spent reports the amount spent so far this session.
func (b *BudgetTracker) Spent() uint64 {
	return b.spent
}

// AutoApprove reports whether a query of the given price would be approved
// without prompting the user, per spec.md §6's "auto-approves if price <=
// auto_approve".
func (b *BudgetTracker) AutoApprove(price uint64) bool {
	return price <= b.autoApprove
}

// Authorize checks a proposed query's price against the remaining budget,
// per spec.md §6's "rejects a query whose price > remaining". It does not
// itself deduct spend — callers record the actual charge via Spend once a
// query has actually completed, since a query can fail after authorization
// (e.g. the content moved, the channel closed) without ever being paid.
func (b *BudgetTracker) Authorize(price uint64) error {
	remaining := b.Remaining()
	if price > remaining {
		return newErr(CodeBudgetExceeded, fmt.Sprintf("query costs %d but only %d remaining", price, remaining))
	}
	return nil
}

// Spend records an amount actually paid against the session budget, once a
// query has completed and its channel update has been accepted.
func (b *BudgetTracker) Spend(amount uint64) {
	b.spent += amount
}
