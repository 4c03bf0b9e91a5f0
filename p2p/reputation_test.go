package p2p

import (
	"testing"
	"time"
)

func TestReputationDecaysTowardNeutral(t *testing.T) {
	r := NewReputation()
	t0 := time.Unix(1_700_000_000, 0)
	r.Add(t0, 60)
	if s := r.Score(t0); s != 60 {
		t.Fatalf("expected 60, got %v", s)
	}
	t1 := t0.Add(10 * time.Minute)
	if s := r.Score(t1); s != 50 {
		t.Fatalf("expected 50 after 10 minutes of decay, got %v", s)
	}
	t2 := t1.Add(100 * time.Minute)
	if s := r.Score(t2); s != NeutralReputation {
		t.Fatalf("expected score to floor at neutral, got %v", s)
	}
}

func TestReputationDecaysUpwardFromNegative(t *testing.T) {
	r := NewReputation()
	t0 := time.Unix(1_700_000_000, 0)
	r.Add(t0, -30)
	t1 := t0.Add(40 * time.Minute)
	if s := r.Score(t1); s != NeutralReputation {
		t.Fatalf("expected negative score to decay back to neutral, got %v", s)
	}
}

func TestReputationBanAndThrottleThresholds(t *testing.T) {
	r := NewReputation()
	now := time.Unix(1_700_000_000, 0)
	r.RecordViolation(now, ViolationNonceReplay)
	r.RecordViolation(now, ViolationBadSignature)
	if !r.ShouldThrottle(now) {
		t.Fatalf("expected throttle after heavy violations")
	}
	if r.ShouldBan(now) {
		t.Fatalf("should not yet ban at -65")
	}
	r.RecordViolation(now, ViolationNonceReplay)
	if !r.ShouldBan(now) {
		t.Fatalf("expected ban after crossing threshold")
	}
}

func TestReputationSuccessRaisesScore(t *testing.T) {
	r := NewReputation()
	now := time.Unix(1_700_000_000, 0)
	for i := 0; i < 5; i++ {
		r.RecordSuccess(now)
	}
	if s := r.Score(now); s != 5*SuccessDelta {
		t.Fatalf("expected %v, got %v", 5*SuccessDelta, s)
	}
}
