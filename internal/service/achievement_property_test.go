// Property-based tests for achievement threshold and visit milestone
// logic.
package service

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/AndreyDiak/muzloto-server/internal/config"
)

// TestMilestoneProgressNeverNegativeProperty checks that progress is
// clamped at zero no matter how visits and claims relate.
func TestMilestoneProgressNeverNegativeProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		visits := rapid.IntRange(0, 1000).Draw(rt, "visits")
		claimed := rapid.IntRange(0, 200).Draw(rt, "claimed")
		interval := rapid.IntRange(1, 20).Draw(rt, "interval")

		progress := MilestoneProgress(visits, claimed, interval)
		if progress < 0 {
			rt.Fatalf("progress %d is negative (visits=%d claimed=%d interval=%d)", progress, visits, claimed, interval)
		}
	})
}

// TestMilestoneClaimConsumesOneIntervalProperty checks the claim
// accounting: each claim consumes exactly one interval of visits and
// overshoot carries over into the next cycle.
func TestMilestoneClaimConsumesOneIntervalProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		interval := rapid.IntRange(1, 20).Draw(rt, "interval")
		visits := rapid.IntRange(0, 500).Draw(rt, "visits")

		claimed := 0
		for MilestoneProgress(visits, claimed, interval) >= interval {
			before := MilestoneProgress(visits, claimed, interval)
			claimed++
			after := MilestoneProgress(visits, claimed, interval)
			if after != before-interval {
				rt.Fatalf("claim consumed %d visits, want %d (visits=%d claimed=%d)", before-after, interval, visits, claimed)
			}
		}

		// Every claimable interval was claimed, never more.
		if claimed != visits/interval {
			rt.Fatalf("claimed %d milestones for %d visits at interval %d, want %d", claimed, visits, interval, visits/interval)
		}
		// Leftover progress is the remainder.
		if got := MilestoneProgress(visits, claimed, interval); got != visits%interval {
			rt.Fatalf("leftover progress %d, want %d", got, visits%interval)
		}
	})
}

// TestReachedThresholdsMonotonicProperty checks that raising a counter
// never shrinks the reached set and that every returned definition
// matches the counter and is actually covered.
func TestReachedThresholdsMonotonicProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		defs := config.DefaultAchievements()
		counters := []string{config.CounterVisits, config.CounterPurchases, config.CounterBingo}
		counter := counters[rapid.IntRange(0, len(counters)-1).Draw(rt, "counter")]

		low := rapid.IntRange(0, 50).Draw(rt, "low")
		high := rapid.IntRange(low, 100).Draw(rt, "high")

		reachedLow := ReachedThresholds(defs, counter, low)
		reachedHigh := ReachedThresholds(defs, counter, high)

		if len(reachedHigh) < len(reachedLow) {
			rt.Fatalf("reached set shrank: %d at value %d, %d at value %d", len(reachedLow), low, len(reachedHigh), high)
		}

		for _, def := range reachedHigh {
			if def.Counter != counter {
				rt.Fatalf("definition %q has counter %q, asked for %q", def.Slug, def.Counter, counter)
			}
			if high < def.Threshold {
				rt.Fatalf("definition %q threshold %d not covered by value %d", def.Slug, def.Threshold, high)
			}
		}

		// Nothing covered was left out.
		for _, def := range defs {
			if def.Counter == counter && high >= def.Threshold {
				found := false
				for _, r := range reachedHigh {
					if r.Slug == def.Slug {
						found = true
						break
					}
				}
				if !found {
					rt.Fatalf("definition %q (threshold %d) missing at value %d", def.Slug, def.Threshold, high)
				}
			}
		}
	})
}

// TestReachedThresholdsZeroProperty checks that a zero counter never
// unlocks anything.
func TestReachedThresholdsZeroProperty(t *testing.T) {
	defs := config.DefaultAchievements()
	for _, counter := range []string{config.CounterVisits, config.CounterPurchases, config.CounterBingo} {
		if reached := ReachedThresholds(defs, counter, 0); len(reached) != 0 {
			t.Fatalf("counter %s at 0 reached %d achievements", counter, len(reached))
		}
	}
}
