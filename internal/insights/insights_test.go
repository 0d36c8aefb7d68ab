package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanmaster/vanmaster/internal/ai"
	"github.com/vanmaster/vanmaster/internal/profile"
)

func cleanGrade(weaknesses, strengths []string) *ai.ExamGrade {
	return &ai.ExamGrade{
		Score:      7,
		MaxScore:   10,
		Weaknesses: weaknesses,
		Strengths:  strengths,
	}
}

func baseProfile() *profile.UserProfile {
	p := profile.NewProfile("u1", "Minh", "minh@example.com")
	return p
}

func TestWeaknessResolvesAfterTwoCleanSubmissions(t *testing.T) {
	p := baseProfile()
	p.Weaknesses = []string{"thiếu dẫn chứng"}
	p.WeaknessCleanStreak = map[string]int{"thiếu dẫn chứng": 0}

	r1 := MergeInsights(cleanGrade(nil, nil), p)
	assert.Contains(t, r1.MergedWeaknesses, "thiếu dẫn chứng")
	assert.Equal(t, 1, r1.CleanStreak["thiếu dẫn chứng"])

	p.Weaknesses = r1.MergedWeaknesses
	p.WeaknessCleanStreak = r1.CleanStreak
	r2 := MergeInsights(cleanGrade(nil, nil), p)
	assert.NotContains(t, r2.MergedWeaknesses, "thiếu dẫn chứng")
	assert.Contains(t, r2.ResolvedWeaknesses, "thiếu dẫn chứng")
	assert.NotContains(t, r2.CleanStreak, "thiếu dẫn chứng")
}

func TestWeaknessReappearanceResetsStreak(t *testing.T) {
	p := baseProfile()
	p.Weaknesses = []string{"thiếu dẫn chứng"}
	p.WeaknessCleanStreak = map[string]int{"thiếu dẫn chứng": 1}

	r := MergeInsights(cleanGrade([]string{"Thiếu dẫn chứng"}, nil), p)
	assert.Contains(t, r.MergedWeaknesses, "thiếu dẫn chứng")
	assert.Equal(t, 0, r.CleanStreak["thiếu dẫn chứng"])
	assert.Empty(t, r.ResolvedWeaknesses)
}

func TestLowScoreSubmissionNeverAdvancesStreak(t *testing.T) {
	p := baseProfile()
	p.Weaknesses = []string{"lập luận yếu"}
	p.WeaknessCleanStreak = map[string]int{"lập luận yếu": 1}

	low := &ai.ExamGrade{Score: 2, MaxScore: 10}
	r := MergeInsights(low, p)
	assert.Contains(t, r.MergedWeaknesses, "lập luận yếu")
	assert.Equal(t, 1, r.CleanStreak["lập luận yếu"])
	assert.Empty(t, r.ResolvedWeaknesses)
}

func TestEphemeralWeaknessClearsAfterOneCleanSubmission(t *testing.T) {
	p := baseProfile()
	p.Weaknesses = []string{"không viết bài"}
	p.WeaknessCleanStreak = map[string]int{"không viết bài": 0}

	r := MergeInsights(cleanGrade(nil, nil), p)
	assert.Contains(t, r.ResolvedWeaknesses, "không viết bài")
	assert.NotContains(t, r.MergedWeaknesses, "không viết bài")
}

func TestNewWeaknessesEnterWithZeroStreakAndCap(t *testing.T) {
	p := baseProfile()
	p.Weaknesses = []string{"w1", "w2", "w3"}
	p.WeaknessCleanStreak = map[string]int{"w1": 0, "w2": 0, "w3": 0}

	r := MergeInsights(cleanGrade([]string{"w4", "w5", "w6"}, nil), p)
	require.Len(t, r.MergedWeaknesses, MaxWeaknesses)
	// New tags have streak 0 and therefore sort first; w1/w2/w3 advanced to 1.
	assert.Equal(t, []string{"w4", "w5", "w6"}, r.MergedWeaknesses[:3])
}

func TestStrengthNeedsTwoAppearances(t *testing.T) {
	p := baseProfile()

	r1 := MergeInsights(cleanGrade(nil, []string{"diễn đạt trôi chảy"}), p)
	assert.Empty(t, r1.MergedStrengths)

	p2 := baseProfile()
	p2.Strengths = []string{"diễn đạt trôi chảy"}
	r2 := MergeInsights(cleanGrade(nil, nil), p2)
	assert.Contains(t, r2.MergedStrengths, "diễn đạt trôi chảy")
}

func TestStrengthSuppressedByContradictingWeakness(t *testing.T) {
	p := baseProfile()
	p.Strengths = []string{"dẫn chứng phong phú"}

	r := MergeInsights(cleanGrade([]string{"thiếu dẫn chứng"}, nil), p)
	assert.NotContains(t, r.MergedStrengths, "dẫn chứng phong phú")
}

func TestRunningAverage(t *testing.T) {
	p := baseProfile()
	avg := 6.0
	p.AvgScore = &avg
	p.SubmissionCount = 2

	g := &ai.ExamGrade{Score: 9, MaxScore: 10}
	r := MergeInsights(g, p)
	assert.Equal(t, 3, r.NewCount)
	assert.InDelta(t, 7.0, r.NewAvg, 0.001)
}

func TestFirstSubmissionAverage(t *testing.T) {
	p := baseProfile()
	g := &ai.ExamGrade{Score: 5.5, MaxScore: 10}
	r := MergeInsights(g, p)
	assert.Equal(t, 1, r.NewCount)
	assert.InDelta(t, 5.5, r.NewAvg, 0.001)
}

func TestEmptySubmissionKeepsWeaknessUntouched(t *testing.T) {
	p := baseProfile()
	p.Weaknesses = []string{"lập luận yếu"}
	p.WeaknessCleanStreak = map[string]int{"lập luận yếu": 1}

	empty := &ai.ExamGrade{Score: 0, MaxScore: 10, Weaknesses: []string{"không viết bài"}}
	r := MergeInsights(empty, p)
	assert.Contains(t, r.MergedWeaknesses, "lập luận yếu")
	assert.Equal(t, 1, r.CleanStreak["lập luận yếu"])
	// The ephemeral tag is still recorded as a new weakness.
	assert.Contains(t, r.MergedWeaknesses, "không viết bài")
}
