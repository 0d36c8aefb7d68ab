package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vanmaster/vanmaster/internal/ai"
	"github.com/vanmaster/vanmaster/internal/app"
	"github.com/vanmaster/vanmaster/internal/chat"
	"github.com/vanmaster/vanmaster/internal/config"
	"github.com/vanmaster/vanmaster/internal/docx"
	"github.com/vanmaster/vanmaster/internal/exam"
	"github.com/vanmaster/vanmaster/internal/llm"
	"github.com/vanmaster/vanmaster/internal/logger"
	chatscr "github.com/vanmaster/vanmaster/internal/screens/chat"
	"github.com/vanmaster/vanmaster/internal/screens/examroom"
	"github.com/vanmaster/vanmaster/internal/speech"
	"github.com/vanmaster/vanmaster/internal/store"
)

// runApp opens the store, builds dependencies, and launches the TUI.
func runApp(cmd *cobra.Command) error {
	ctx := cmd.Context()
	appCfg := config.Load()

	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	// The TUI owns the terminal, so logs go to a file next to the DB.
	log, logClose := openLogger(dbPath, appCfg.LogLevel)
	defer logClose()

	llmCfg := llm.ConfigFromEnv()
	if llmCfg.Validate() != nil {
		if discovered, ok := llm.DiscoverConfig(); ok {
			llmCfg = discovered
		}
	}
	if err := llmCfg.Validate(); err != nil {
		return fmt.Errorf("LLM provider not configured: %w", err)
	}

	provider, err := llm.NewProvider(ctx, llmCfg, st, log)
	if err != nil {
		return fmt.Errorf("create LLM provider: %w", err)
	}
	imageGen, err := llm.NewImageGen(ctx, llmCfg)
	if err != nil {
		log.Warn("image generation unavailable", "err", err)
		imageGen = nil
	}
	aiSvc := ai.NewService(provider, imageGen, log)

	var speaker speech.Synthesizer = speech.NopSynthesizer{}
	if appCfg.TTSAPIKey != "" {
		tts, err := speech.NewGoogleTTS(appCfg.TTSAPIKey, "")
		if err != nil {
			log.Warn("text to speech unavailable", "err", err)
		} else {
			speaker = tts
		}
	}

	catalog := exam.NewCatalog(appCfg.ExamDir, appCfg.AnswerKeyDir)
	notifier := app.NewNotifier()

	session, err := chat.NewSession(ctx, chat.Config{
		UID:            appCfg.UserID,
		Name:           appCfg.UserName,
		Email:          appCfg.UserEmail,
		Store:          st,
		AI:             aiSvc,
		Log:            log,
		ProactiveDelay: appCfg.ProactiveDelay,
		LessonDir:      appCfg.LessonDir,
		Extract:        docx.ExtractFile,
		StartExam: func(diagnostic bool) {
			notifier.Send(examroom.StartMsg{Diagnostic: diagnostic})
		},
		OnUpdate: func() {
			notifier.Send(chatscr.RefreshMsg{})
		},
	})
	if err != nil {
		return fmt.Errorf("start chat session: %w", err)
	}
	defer session.Close(context.Background())

	newProctor := func(diagnostic bool) *exam.Proctor {
		return exam.NewProctor(exam.Config{
			UID:        appCfg.UserID,
			Store:      st,
			Grader:     aiSvc,
			Catalog:    catalog,
			Extract:    docx.ExtractFile,
			Diagnostic: diagnostic,
			OnGraded: func(grade *ai.ExamGrade, resolved []string) {
				session.AddGradeMessage(context.Background(), grade, resolved)
			},
			Log: log,
		})
	}

	return app.Run(app.Options{
		Session:    session,
		Speaker:    speaker,
		NewProctor: newProctor,
		Notifier:   notifier,
	})
}

// openLogger writes logs next to the database file. Falls back to a
// discard logger when the file cannot be opened.
func openLogger(dbPath, level string) (*logger.Logger, func()) {
	path := filepath.Join(filepath.Dir(dbPath), "vanmaster.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return logger.New(logger.WithOutput(nopWriter{}), logger.WithLevel(logger.ParseLevel(level))), func() {}
	}
	log := logger.New(logger.WithOutput(f), logger.WithLevel(logger.ParseLevel(level)))
	logger.SetDefault(log)
	return log, func() { _ = f.Close() }
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
