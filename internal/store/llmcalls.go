package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vanmaster/vanmaster/internal/llm"
)

// RecordLLMCall appends one LLM request to the call log. Implements
// llm.CallSink.
func (s *Store) RecordLLMCall(ctx context.Context, rec llm.CallRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_calls (
			provider, model, purpose, latency_ms, success,
			input_tokens, output_tokens, request_body, response_body,
			error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Provider, rec.Model, rec.Purpose, rec.LatencyMs, rec.Success,
		rec.InputTokens, rec.OutputTokens, rec.RequestBody, rec.ResponseBody,
		rec.ErrorMessage, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

// LLMCallCount returns how many calls have been logged, optionally
// filtered by purpose ("" counts everything).
func (s *Store) LLMCallCount(ctx context.Context, purpose string) (int, error) {
	var n int
	var err error
	if purpose == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM llm_calls`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM llm_calls WHERE purpose = ?`, purpose).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count llm calls: %w", err)
	}
	return n, nil
}

// LLMUsage aggregates the call log for one purpose.
type LLMUsage struct {
	Purpose      string
	Calls        int
	Failures     int
	InputTokens  int64
	OutputTokens int64
}

// LLMUsageByPurpose summarizes the call log grouped by purpose.
func (s *Store) LLMUsageByPurpose(ctx context.Context) ([]LLMUsage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT purpose,
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0),
		       COALESCE(SUM(input_tokens), 0),
		       COALESCE(SUM(output_tokens), 0)
		FROM llm_calls
		GROUP BY purpose
		ORDER BY purpose`)
	if err != nil {
		return nil, fmt.Errorf("query llm usage: %w", err)
	}
	defer rows.Close()

	var out []LLMUsage
	for rows.Next() {
		var u LLMUsage
		if err := rows.Scan(&u.Purpose, &u.Calls, &u.Failures, &u.InputTokens, &u.OutputTokens); err != nil {
			return nil, fmt.Errorf("scan llm usage: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
