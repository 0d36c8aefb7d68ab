package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vanmaster/vanmaster/internal/profile"
)

// ErrNotFound aliases the storage contract's sentinel so callers can
// check either package.
var ErrNotFound = profile.ErrNotFound

// profileColumns maps partial-update field names to their columns.
// JSON-valued fields are marked so values get marshaled on write.
var profileColumns = map[string]struct {
	column string
	isJSON bool
}{
	"name":                {"name", false},
	"email":               {"email", false},
	"targetScore":         {"target_score", false},
	"voiceGender":         {"voice_gender", false},
	"isOnboarded":         {"is_onboarded", false},
	"assessmentDone":      {"assessment_done", false},
	"diagnosticScore":     {"diagnostic_score", false},
	"avgScore":            {"avg_score", false},
	"submissionCount":     {"submission_count", false},
	"weaknesses":          {"weaknesses_json", true},
	"strengths":           {"strengths_json", true},
	"weaknessCleanStreak": {"clean_streak_json", true},
	"lessonProgress":      {"lesson_progress_json", true},
	"userTraits":          {"traits_json", true},
	"level":               {"level", false},
	"xp":                  {"xp", false},
	"streak":              {"streak", false},
	"progress":            {"progress", false},
}

// GetProfile loads a profile by uid. Returns ErrNotFound for unknown uids.
func (s *Store) GetProfile(ctx context.Context, uid string) (*profile.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uid, name, email, target_score, voice_gender,
		       is_onboarded, assessment_done, diagnostic_score,
		       avg_score, submission_count,
		       weaknesses_json, strengths_json, clean_streak_json,
		       lesson_progress_json, traits_json,
		       level, xp, streak, progress
		FROM users WHERE uid = ?`, uid)

	var p profile.UserProfile
	var targetScore, diagnosticScore, avgScore sql.NullFloat64
	var voiceGender string
	var weaknesses, strengths, cleanStreak, lessonProgress, traits string

	err := row.Scan(
		&p.UID, &p.Name, &p.Email, &targetScore, &voiceGender,
		&p.IsOnboarded, &p.AssessmentDone, &diagnosticScore,
		&avgScore, &p.SubmissionCount,
		&weaknesses, &strengths, &cleanStreak,
		&lessonProgress, &traits,
		&p.Level, &p.XP, &p.Streak, &p.Progress,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	p.VoiceGender = profile.VoiceGender(voiceGender)
	if targetScore.Valid {
		p.TargetScore = &targetScore.Float64
	}
	if diagnosticScore.Valid {
		p.DiagnosticScore = &diagnosticScore.Float64
	}
	if avgScore.Valid {
		p.AvgScore = &avgScore.Float64
	}

	jsonFields := []struct {
		raw string
		dst any
	}{
		{weaknesses, &p.Weaknesses},
		{strengths, &p.Strengths},
		{cleanStreak, &p.WeaknessCleanStreak},
		{lessonProgress, &p.LessonProgress},
		{traits, &p.UserTraits},
	}
	for _, f := range jsonFields {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("decode profile field: %w", err)
		}
	}

	return &p, nil
}

// CreateProfile inserts a new profile row.
func (s *Store) CreateProfile(ctx context.Context, p *profile.UserProfile) error {
	weaknesses, _ := json.Marshal(p.Weaknesses)
	strengths, _ := json.Marshal(p.Strengths)
	cleanStreak, _ := json.Marshal(orEmptyMap(p.WeaknessCleanStreak))
	lessonProgress, _ := json.Marshal(orEmptyLessonMap(p.LessonProgress))
	traits, _ := json.Marshal(orEmptySlice(p.UserTraits))

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (
			uid, name, email, target_score, voice_gender,
			is_onboarded, assessment_done, diagnostic_score,
			avg_score, submission_count,
			weaknesses_json, strengths_json, clean_streak_json,
			lesson_progress_json, traits_json,
			level, xp, streak, progress, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UID, p.Name, p.Email, nullF64(p.TargetScore), string(p.VoiceGender),
		p.IsOnboarded, p.AssessmentDone, nullF64(p.DiagnosticScore),
		nullF64(p.AvgScore), p.SubmissionCount,
		string(weaknesses), string(strengths), string(cleanStreak),
		string(lessonProgress), string(traits),
		p.Level, p.XP, p.Streak, p.Progress, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// UpdateProfile applies only the given fields to the profile row.
// Unknown field names are rejected so typos fail loudly.
func (s *Store) UpdateProfile(ctx context.Context, uid string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)

	for name, value := range fields {
		col, ok := profileColumns[name]
		if !ok {
			return fmt.Errorf("unknown profile field %q", name)
		}
		if col.isJSON {
			encoded, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("encode field %q: %w", name, err)
			}
			value = string(encoded)
		}
		sets = append(sets, col.column+" = ?")
		args = append(args, value)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().Unix(), uid)

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE uid = ?", args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLessonProgress writes progress for a single lesson key without
// touching the rest of the lesson map.
func (s *Store) UpdateLessonProgress(ctx context.Context, uid, lessonKey string, lp profile.LessonProgress) error {
	p, err := s.GetProfile(ctx, uid)
	if err != nil {
		return err
	}
	progress := p.LessonProgress
	if progress == nil {
		progress = map[string]profile.LessonProgress{}
	}
	progress[lessonKey] = lp
	return s.UpdateProfile(ctx, uid, map[string]any{"lessonProgress": progress})
}

func nullF64(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func orEmptyLessonMap(m map[string]profile.LessonProgress) map[string]profile.LessonProgress {
	if m == nil {
		return map[string]profile.LessonProgress{}
	}
	return m
}

// ResetStudyData wipes a student's learning history for a fresh start.
// Submissions, chat memory, and assessment results go; identity and
// voice settings stay.
func (s *Store) ResetStudyData(ctx context.Context, uid string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("delete submissions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_memory WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("delete chat memory: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE users SET
			target_score = NULL,
			is_onboarded = 0,
			assessment_done = 0,
			diagnostic_score = NULL,
			avg_score = NULL,
			submission_count = 0,
			weaknesses_json = '[]',
			strengths_json = '[]',
			clean_streak_json = '{}',
			lesson_progress_json = '{}',
			traits_json = '[]',
			level = 'Tân Binh',
			xp = 0,
			streak = 1,
			progress = 5,
			updated_at = ?
		WHERE uid = ?`, time.Now().Unix(), uid)
	if err != nil {
		return fmt.Errorf("reset profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reset profile: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
