// Package config reads application configuration from a .env file (if
// present) and VANMASTER_* environment variables.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the application-level configuration. LLM provider settings
// live in internal/llm and are resolved separately.
type Config struct {
	// Student identity. A terminal install is single-user; the UID
	// keys every database row so a shared machine can switch users.
	UserID    string
	UserName  string
	UserEmail string

	// Official exam papers and answer keys, one numbered .docx each.
	ExamDir      string
	AnswerKeyDir string

	// Theory lessons as .docx files, laid out per the curriculum.
	LessonDir string

	// Google Cloud Text-to-Speech. Empty disables voice replies.
	TTSAPIKey string

	LogLevel string

	ProactiveDelay time.Duration
}

// Load reads configuration, applying defaults when values are missing.
// A missing .env file is not an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		UserID:         envOr("VANMASTER_USER_ID", "local"),
		UserName:       envOr("VANMASTER_USER_NAME", ""),
		UserEmail:      envOr("VANMASTER_USER_EMAIL", ""),
		ExamDir:        envOr("VANMASTER_EXAM_DIR", "dethi"),
		AnswerKeyDir:   envOr("VANMASTER_KEY_DIR", "huongdancham"),
		LessonDir:      envOr("VANMASTER_LESSON_DIR", "lythuyet"),
		TTSAPIKey:      envOr("VANMASTER_TTS_API_KEY", ""),
		LogLevel:       envOr("VANMASTER_LOG_LEVEL", "INFO"),
		ProactiveDelay: envDurationOr("VANMASTER_PROACTIVE_DELAY", 25*time.Second),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
