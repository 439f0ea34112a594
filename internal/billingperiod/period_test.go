package billingperiod

import (
	"testing"
	"time"
)

func TestResolveSameMonthSamePeriod(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kuala_Lumpur")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	first := Resolve(time.Date(2025, time.March, 1, 0, 0, 0, 0, loc), loc)
	mid := Resolve(time.Date(2025, time.March, 14, 9, 30, 0, 0, loc), loc)
	last := Resolve(time.Date(2025, time.March, 31, 23, 59, 59, 0, loc), loc)

	if !first.Start.Equal(mid.Start) || !first.End.Equal(mid.End) {
		t.Fatalf("expected identical periods, got %+v vs %+v", first, mid)
	}
	if !first.Start.Equal(last.Start) || !first.End.Equal(last.End) {
		t.Fatalf("expected identical periods, got %+v vs %+v", first, last)
	}
}

func TestResolveBoundaries(t *testing.T) {
	loc := time.UTC
	p := Resolve(time.Date(2025, time.January, 15, 12, 0, 0, 0, loc), loc)

	wantStart := time.Date(2025, time.January, 1, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2025, time.February, 1, 0, 0, 0, 0, loc)
	if !p.Start.Equal(wantStart) {
		t.Fatalf("expected start %v, got %v", wantStart, p.Start)
	}
	if !p.End.Equal(wantEnd) {
		t.Fatalf("expected end %v, got %v", wantEnd, p.End)
	}
}

func TestResolveAdjacentMonthsDiffer(t *testing.T) {
	loc := time.UTC
	jan := Resolve(time.Date(2025, time.January, 31, 23, 59, 59, 0, loc), loc)
	feb := Resolve(time.Date(2025, time.February, 1, 0, 0, 0, 0, loc), loc)

	if jan.Start.Equal(feb.Start) {
		t.Fatalf("expected distinct periods across month boundary")
	}
	if !jan.End.Equal(feb.Start) {
		t.Fatalf("expected contiguous periods, got jan end %v, feb start %v", jan.End, feb.Start)
	}
}

func TestResolveUsesZone(t *testing.T) {
	kl, err := time.LoadLocation("Asia/Kuala_Lumpur")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 2025-01-31 18:00 UTC is already February 1st in Kuala Lumpur.
	ref := time.Date(2025, time.January, 31, 18, 0, 0, 0, time.UTC)
	p := Resolve(ref, kl)
	if p.Start.Month() != time.February {
		t.Fatalf("expected February period in KL zone, got %v", p.Start)
	}
}

func TestContains(t *testing.T) {
	loc := time.UTC
	p := Resolve(time.Date(2025, time.June, 10, 0, 0, 0, 0, loc), loc)

	if !p.Contains(p.Start) {
		t.Fatalf("period start should be inside the period")
	}
	if p.Contains(p.End) {
		t.Fatalf("period end is exclusive")
	}
}

func TestKey(t *testing.T) {
	p := Resolve(time.Date(2025, time.September, 5, 0, 0, 0, 0, time.UTC), time.UTC)
	if got := p.Key(); got != "202509" {
		t.Fatalf("expected key 202509, got %q", got)
	}
}
