package p2p

import "time"

// Reputation tracking mirrors the teacher's ban-score decay mechanic but
// inverted: where a ban score only ever accumulates penalties and decays
// toward zero, a Reputation starts neutral, rises on successful queries
// and falls on protocol violations, and decays back toward neutral when
// left untouched (SPEC_FULL §12 supplement 1; store.PeerRecord.Reputation
// is this type's persisted value).
type Reputation struct {
	score       float64
	lastUpdated time.Time
}

const (
	// NeutralReputation is a freshly-seen peer's starting score.
	NeutralReputation = 0

	// BanThreshold is the score at or below which a peer should be
	// disconnected and refused reconnection for BanDurationDefault.
	BanThreshold = -100

	// ThrottleThreshold is the score at or below which a peer's requests
	// should be delayed rather than served immediately.
	ThrottleThreshold = -50

	ThrottleDelay      = 500 * time.Millisecond
	BanDurationDefault = 24 * time.Hour

	// DecayPerMinute pulls an untouched score one unit per minute back
	// toward NeutralReputation, so a peer that stops misbehaving (or stops
	// being useful) isn't permanently marked either way.
	DecayPerMinute = 1

	// SuccessDelta and the violation deltas below are the adjustments
	// RecordSuccess/RecordViolation apply; violations are weighted far
	// heavier than any single success, so no amount of good queries lets
	// a peer "buy back" trust fast enough to mask an active attack.
	SuccessDelta          = 1
	ViolationBadSignature = -25
	ViolationNonceReplay  = -40
	ViolationMalformed    = -10
	ViolationRateLimited  = -2
)

// NewReputation returns a Reputation starting at NeutralReputation.
func NewReputation() *Reputation {
	return &Reputation{score: NeutralReputation}
}

// ReputationFromScore resumes tracking from a score persisted in
// store.PeerRecord.Reputation (e.g. after a restart).
func ReputationFromScore(score float64) *Reputation {
	return &Reputation{score: score}
}

// Score returns the current score after decaying it toward neutral for
// any elapsed time since the last update.
func (r *Reputation) Score(now time.Time) float64 {
	r.decayTo(now)
	return r.score
}

// Add applies delta and returns the resulting score.
func (r *Reputation) Add(now time.Time, delta float64) float64 {
	r.decayTo(now)
	r.score += delta
	return r.score
}

// RecordSuccess nudges the score up after a successfully served query.
func (r *Reputation) RecordSuccess(now time.Time) float64 {
	return r.Add(now, SuccessDelta)
}

// RecordViolation applies a named penalty after a protocol violation.
func (r *Reputation) RecordViolation(now time.Time, delta float64) float64 {
	return r.Add(now, delta)
}

// ShouldBan reports whether the peer's score has fallen to BanThreshold.
func (r *Reputation) ShouldBan(now time.Time) bool {
	return r.Score(now) <= BanThreshold
}

// ShouldThrottle reports whether the peer's score has fallen to
// ThrottleThreshold.
func (r *Reputation) ShouldThrottle(now time.Time) bool {
	return r.Score(now) <= ThrottleThreshold
}

func (r *Reputation) decayTo(now time.Time) {
	if r.lastUpdated.IsZero() {
		r.lastUpdated = now
		return
	}
	if now.Before(r.lastUpdated) {
		r.lastUpdated = now
		return
	}
	minutes := int(now.Sub(r.lastUpdated) / time.Minute)
	if minutes <= 0 {
		return
	}
	step := float64(minutes * DecayPerMinute)
	switch {
	case r.score > NeutralReputation:
		r.score -= step
		if r.score < NeutralReputation {
			r.score = NeutralReputation
		}
	case r.score < NeutralReputation:
		r.score += step
		if r.score > NeutralReputation {
			r.score = NeutralReputation
		}
	}
	r.lastUpdated = now
}
