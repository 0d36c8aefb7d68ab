package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vanmaster/vanmaster/internal/ai"
	"github.com/vanmaster/vanmaster/internal/profile"
)

// SaveSubmission inserts an exam attempt and returns its generated ID.
func (s *Store) SaveSubmission(ctx context.Context, uid string, sub *profile.Submission) (string, error) {
	id := sub.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := sub.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var gradeJSON any
	if sub.Grade != nil {
		encoded, err := json.Marshal(sub.Grade)
		if err != nil {
			return "", fmt.Errorf("encode grade: %w", err)
		}
		gradeJSON = string(encoded)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, uid, exam_id, student_answer, cheating, status, grade_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, uid, sub.ExamID, sub.StudentAnswer, sub.Cheating, sub.Status, gradeJSON, createdAt.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert submission: %w", err)
	}

	sub.ID = id
	return id, nil
}

// UpdateSubmissionGrade attaches a grade to a pending submission and
// marks it graded.
func (s *Store) UpdateSubmissionGrade(ctx context.Context, uid, submissionID string, grade *ai.ExamGrade) error {
	encoded, err := json.Marshal(grade)
	if err != nil {
		return fmt.Errorf("encode grade: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET grade_json = ?, status = 'graded', graded_at = ?
		WHERE id = ? AND uid = ?`,
		string(encoded), time.Now().Unix(), submissionID, uid,
	)
	if err != nil {
		return fmt.Errorf("update submission grade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// BestScores returns, per exam ID, the best normalized 0-10 score among
// the user's graded submissions.
func (s *Store) BestScores(ctx context.Context, uid string) (map[int]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT exam_id, grade_json FROM submissions
		WHERE uid = ? AND status = 'graded' AND grade_json IS NOT NULL`, uid)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	best := make(map[int]float64)
	for rows.Next() {
		var examID int
		var gradeJSON string
		if err := rows.Scan(&examID, &gradeJSON); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		var grade ai.ExamGrade
		if err := json.Unmarshal([]byte(gradeJSON), &grade); err != nil {
			continue
		}
		score := grade.ScoreOutOf10()
		if prev, ok := best[examID]; !ok || score > prev {
			best[examID] = score
		}
	}
	return best, rows.Err()
}

// GetSubmission loads one submission by ID.
func (s *Store) GetSubmission(ctx context.Context, uid, submissionID string) (*profile.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, exam_id, student_answer, cheating, status, grade_json, created_at, graded_at
		FROM submissions WHERE id = ? AND uid = ?`, submissionID, uid)

	var sub profile.Submission
	var gradeJSON sql.NullString
	var createdAt int64
	var gradedAt sql.NullInt64

	err := row.Scan(&sub.ID, &sub.ExamID, &sub.StudentAnswer, &sub.Cheating,
		&sub.Status, &gradeJSON, &createdAt, &gradedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan submission: %w", err)
	}

	sub.CreatedAt = time.Unix(createdAt, 0)
	if gradedAt.Valid {
		t := time.Unix(gradedAt.Int64, 0)
		sub.GradedAt = &t
	}
	if gradeJSON.Valid {
		var grade ai.ExamGrade
		if err := json.Unmarshal([]byte(gradeJSON.String), &grade); err != nil {
			return nil, fmt.Errorf("decode grade: %w", err)
		}
		sub.Grade = &grade
	}
	return &sub, nil
}
