// Package insights folds exam grading feedback into the persistent
// weakness/strength profile. MergeInsights is pure: callers persist the
// result themselves.
package insights

import (
	"sort"
	"strings"

	"github.com/vanmaster/vanmaster/internal/ai"
	"github.com/vanmaster/vanmaster/internal/profile"
)

const (
	// ResolveThreshold is the number of consecutive clean submissions
	// required to auto-resolve a tracked weakness.
	ResolveThreshold = 2

	// MaxWeaknesses caps the surfaced weakness list.
	MaxWeaknesses = 5

	// MaxStrengths caps the surfaced strength list.
	MaxStrengths = 4

	// cleanScoreFloor is the minimum 0-10 normalized score for a submission
	// to count as clean evidence.
	cleanScoreFloor = 4.0
)

// ephemeralWeaknessKeys expire after a single clean submission.
var ephemeralWeaknessKeys = map[string]bool{
	"không viết bài":      true,
	"không nộp bài":       true,
	"bức sang không viết": true,
}

// Result is the outcome of merging one grade into a profile.
type Result struct {
	MergedWeaknesses   []string
	ResolvedWeaknesses []string
	MergedStrengths    []string
	CleanStreak        map[string]int
	NewAvg             float64
	NewCount           int
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MergeInsights applies the weakness/strength tracking rules:
//
//   - A submission is clean evidence only with real content and a normalized
//     score >= 4; anything below never advances or clears a streak.
//   - Ephemeral tags ("không viết bài"...) resolve after 1 clean submission,
//     everything else after ResolveThreshold. Reappearing resets the streak.
//   - New weaknesses enter with streak 0. Output capped at MaxWeaknesses,
//     lowest streak (most persistent) first.
//   - Strengths need >= 2 cumulative appearances, and are suppressed when a
//     significant word (length > 3) overlaps a current weakness.
//   - Running average is an incremental mean rounded to 2 decimals.
func MergeInsights(grade *ai.ExamGrade, p *profile.UserProfile) *Result {
	newWeaknessKeys := make(map[string]bool)
	for _, w := range grade.Weaknesses {
		newWeaknessKeys[norm(w)] = true
	}

	cleanStreak := make(map[string]int, len(p.WeaknessCleanStreak))
	for k, v := range p.WeaknessCleanStreak {
		cleanStreak[k] = v
	}

	hasRealContent := grade.Score > 0 || !newWeaknessKeys["không viết bài"]
	scoreOutOf10 := grade.ScoreOutOf10()
	canResolve := hasRealContent && scoreOutOf10 >= cleanScoreFloor

	// Existing weaknesses: resolve, reset, or carry forward.
	var resolved, surviving []string
	for _, w := range p.Weaknesses {
		key := norm(w)
		threshold := ResolveThreshold
		if ephemeralWeaknessKeys[key] {
			threshold = 1
		}

		if newWeaknessKeys[key] {
			cleanStreak[key] = 0
			surviving = append(surviving, w)
			continue
		}

		if !canResolve {
			surviving = append(surviving, w)
			continue
		}

		streak := cleanStreak[key] + 1
		cleanStreak[key] = streak
		if streak >= threshold {
			resolved = append(resolved, w)
			delete(cleanStreak, key)
		} else {
			surviving = append(surviving, w)
		}
	}

	// New weaknesses not already tracked enter with streak 0.
	existingKeys := make(map[string]bool, len(p.Weaknesses))
	for _, w := range p.Weaknesses {
		existingKeys[norm(w)] = true
	}
	for _, w := range grade.Weaknesses {
		key := norm(w)
		if !existingKeys[key] {
			surviving = append(surviving, w)
			cleanStreak[key] = 0
		}
	}

	// Cap, most persistent (lowest streak) first. Stable to keep insertion
	// order among equal streaks.
	sort.SliceStable(surviving, func(i, j int) bool {
		return cleanStreak[norm(surviving[i])] < cleanStreak[norm(surviving[j])]
	})
	if len(surviving) > MaxWeaknesses {
		surviving = surviving[:MaxWeaknesses]
	}

	mergedStrengths := mergeStrengths(grade, p, surviving, hasRealContent)

	prevCount := p.SubmissionCount
	var prevAvg float64
	if p.AvgScore != nil {
		prevAvg = *p.AvgScore
	}
	newCount := prevCount + 1
	newAvg := round2((prevAvg*float64(prevCount) + scoreOutOf10) / float64(newCount))

	if surviving == nil {
		surviving = []string{}
	}
	if resolved == nil {
		resolved = []string{}
	}

	return &Result{
		MergedWeaknesses:   surviving,
		ResolvedWeaknesses: resolved,
		MergedStrengths:    mergedStrengths,
		CleanStreak:        cleanStreak,
		NewAvg:             newAvg,
		NewCount:           newCount,
	}
}

func mergeStrengths(grade *ai.ExamGrade, p *profile.UserProfile, currentWeaknesses []string, hasRealContent bool) []string {
	// Cumulative frequency: strengths already on the profile count as having
	// appeared before; this submission's tags add one more.
	freq := make(map[string]int)
	var order []string
	bump := func(key string, n int) {
		if _, seen := freq[key]; !seen {
			order = append(order, key)
		}
		freq[key] += n
	}
	for _, s := range p.Strengths {
		bump(norm(s), 2)
	}
	for _, s := range grade.Strengths {
		bump(norm(s), 1)
	}

	weaknessWords := make(map[string]bool)
	for _, w := range currentWeaknesses {
		for _, word := range strings.Fields(norm(w)) {
			weaknessWords[word] = true
		}
	}

	var kept []string
	for _, key := range order {
		if freq[key] < 2 {
			continue
		}
		if hasRealContent && ephemeralWeaknessKeys[key] {
			continue
		}
		contradicted := false
		for _, word := range strings.Fields(key) {
			if len([]rune(word)) > 3 && weaknessWords[word] {
				contradicted = true
				break
			}
		}
		if !contradicted {
			kept = append(kept, key)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return freq[kept[i]] > freq[kept[j]] })
	if len(kept) > MaxStrengths {
		kept = kept[:MaxStrengths]
	}

	// Prefer the original casing from the grade or the stored profile.
	out := make([]string, 0, len(kept))
	for _, key := range kept {
		out = append(out, originalCasing(key, grade.Strengths, p.Strengths))
	}
	return out
}

func originalCasing(key string, lists ...[]string) string {
	for _, list := range lists {
		for _, s := range list {
			if norm(s) == key {
				return s
			}
		}
	}
	return key
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
