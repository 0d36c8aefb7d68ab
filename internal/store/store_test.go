package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanmaster/vanmaster/internal/ai"
	"github.com/vanmaster/vanmaster/internal/llm"
	"github.com/vanmaster/vanmaster/internal/profile"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProfileRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := profile.NewProfile("u1", "Minh", "minh@example.com")
	require.NoError(t, s.CreateProfile(ctx, p))

	got, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Minh", got.Name)
	assert.Equal(t, profile.VoiceMale, got.VoiceGender)
	assert.False(t, got.IsOnboarded)
	assert.Nil(t, got.TargetScore)
	assert.Equal(t, "Tân Binh", got.Level)
	assert.Equal(t, 1, got.Streak)
	assert.NotNil(t, got.Weaknesses)
}

func TestGetProfile_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProfile_PartialFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProfile(ctx, profile.NewProfile("u1", "Minh", "")))

	err := s.UpdateProfile(ctx, "u1", map[string]any{
		"targetScore": 8.5,
		"weaknesses":  []string{"thiếu dẫn chứng", "sai chính tả"},
		"weaknessCleanStreak": map[string]int{
			"thiếu dẫn chứng": 1,
		},
	})
	require.NoError(t, err)

	got, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.TargetScore)
	assert.Equal(t, 8.5, *got.TargetScore)
	assert.Equal(t, []string{"thiếu dẫn chứng", "sai chính tả"}, got.Weaknesses)
	assert.Equal(t, 1, got.WeaknessCleanStreak["thiếu dẫn chứng"])
	// Untouched fields keep their values.
	assert.Equal(t, "Minh", got.Name)
}

func TestUpdateProfile_UnknownField(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, profile.NewProfile("u1", "", "")))

	err := s.UpdateProfile(ctx, "u1", map[string]any{"nope": 1})
	assert.Error(t, err)
}

func TestUpdateProfile_MissingUser(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateProfile(context.Background(), "ghost", map[string]any{"xp": 10})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmissionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, profile.NewProfile("u1", "", "")))

	id, err := s.SaveSubmission(ctx, "u1", &profile.Submission{
		ExamID:        3,
		StudentAnswer: "Bài làm của em...",
		Status:        "pending",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	grade := &ai.ExamGrade{Score: 7.5, MaxScore: 10, Feedback: "Khá"}
	require.NoError(t, s.UpdateSubmissionGrade(ctx, "u1", id, grade))

	sub, err := s.GetSubmission(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, "graded", sub.Status)
	require.NotNil(t, sub.Grade)
	assert.Equal(t, 7.5, sub.Grade.Score)
	assert.NotNil(t, sub.GradedAt)
}

func TestBestScores_KeepsBestPerExam(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, profile.NewProfile("u1", "", "")))

	save := func(examID int, score float64) {
		id, err := s.SaveSubmission(ctx, "u1", &profile.Submission{
			ExamID: examID, StudentAnswer: "x", Status: "pending",
		})
		require.NoError(t, err)
		require.NoError(t, s.UpdateSubmissionGrade(ctx, "u1", id,
			&ai.ExamGrade{Score: score, MaxScore: 10}))
	}

	save(1, 5.0)
	save(1, 7.25)
	save(2, 6.0)

	best, err := s.BestScores(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 7.25, best[1])
	assert.Equal(t, 6.0, best[2])
	assert.Len(t, best, 2)
}

func TestBestScores_IgnoresPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, profile.NewProfile("u1", "", "")))

	_, err := s.SaveSubmission(ctx, "u1", &profile.Submission{
		ExamID: 1, StudentAnswer: "x", Status: "pending",
	})
	require.NoError(t, err)

	best, err := s.BestScores(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, best)
}

func TestChatMemory_TrimsToLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, profile.NewProfile("u1", "", "")))

	messages := make([]profile.MemoryMessage, 20)
	for i := range messages {
		messages[i] = profile.MemoryMessage{Role: "user", Content: string(rune('a' + i))}
	}
	require.NoError(t, s.SaveChatMemory(ctx, "u1", messages))

	got, err := s.LoadChatMemory(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, memoryLimit)
	// Trailing messages survive.
	assert.Equal(t, messages[len(messages)-1].Content, got[len(got)-1].Content)
}

func TestChatMemory_EmptyForNewUser(t *testing.T) {
	s := openTestStore(t)
	got, err := s.LoadChatMemory(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpdateLessonProgress(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, profile.NewProfile("u1", "", "")))

	err := s.UpdateLessonProgress(ctx, "u1", "tay-tien", profile.LessonProgress{
		Status: profile.LessonInProgress, SectionsTotal: 4, SectionsDone: 1,
	})
	require.NoError(t, err)

	err = s.UpdateLessonProgress(ctx, "u1", "viet-bac", profile.LessonProgress{
		Status: profile.LessonCompleted, SectionsTotal: 3, SectionsDone: 3,
	})
	require.NoError(t, err)

	got, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, profile.LessonInProgress, got.LessonProgress["tay-tien"].Status)
	assert.Equal(t, profile.LessonCompleted, got.LessonProgress["viet-bac"].Status)
}

func TestRecordLLMCall(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.RecordLLMCall(ctx, llm.CallRecord{
		Provider: "gemini", Model: "gemini-2.5-flash", Purpose: "grading",
		LatencyMs: 1200, Success: true, InputTokens: 500, OutputTokens: 300,
	})
	require.NoError(t, err)

	n, err := s.LLMCallCount(ctx, "grading")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.LLMCallCount(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResetStudyData(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProfile(ctx, profile.NewProfile("u1", "Minh", "")))
	require.NoError(t, s.UpdateProfile(ctx, "u1", map[string]any{
		"targetScore":     8.0,
		"isOnboarded":     true,
		"assessmentDone":  true,
		"diagnosticScore": 7.0,
		"weaknesses":      []string{"mở bài"},
		"xp":              450,
	}))
	_, err := s.SaveSubmission(ctx, "u1", &profile.Submission{ExamID: 1, StudentAnswer: "bài làm"})
	require.NoError(t, err)
	require.NoError(t, s.SaveChatMemory(ctx, "u1", []profile.MemoryMessage{{Role: "user", Content: "chào"}}))

	require.NoError(t, s.ResetStudyData(ctx, "u1"))

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Minh", p.Name, "identity survives")
	assert.Nil(t, p.TargetScore)
	assert.False(t, p.IsOnboarded)
	assert.False(t, p.AssessmentDone)
	assert.Nil(t, p.DiagnosticScore)
	assert.Empty(t, p.Weaknesses)
	assert.Equal(t, 0, p.XP)

	scores, err := s.BestScores(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, scores)

	mem, err := s.LoadChatMemory(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, mem)
}

func TestResetStudyData_MissingUser(t *testing.T) {
	s := openTestStore(t)
	assert.ErrorIs(t, s.ResetStudyData(context.Background(), "ghost"), ErrNotFound)
}

func TestLLMUsageByPurpose(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordLLMCall(ctx, llm.CallRecord{
			Provider: "gemini", Model: "gemini-2.5-flash", Purpose: "chat",
			Success: true, InputTokens: 100, OutputTokens: 50,
		}))
	}
	require.NoError(t, s.RecordLLMCall(ctx, llm.CallRecord{
		Provider: "gemini", Model: "gemini-2.5-flash", Purpose: "grading",
		Success: false, ErrorMessage: "timeout",
	}))

	usage, err := s.LLMUsageByPurpose(ctx)
	require.NoError(t, err)
	require.Len(t, usage, 2)

	assert.Equal(t, "chat", usage[0].Purpose)
	assert.Equal(t, 3, usage[0].Calls)
	assert.Equal(t, 0, usage[0].Failures)
	assert.Equal(t, int64(300), usage[0].InputTokens)
	assert.Equal(t, int64(150), usage[0].OutputTokens)

	assert.Equal(t, "grading", usage[1].Purpose)
	assert.Equal(t, 1, usage[1].Calls)
	assert.Equal(t, 1, usage[1].Failures)
}
