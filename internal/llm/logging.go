package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vanmaster/vanmaster/internal/logger"
)

// CallRecord describes one completed LLM request for the call log.
type CallRecord struct {
	Provider     string
	Model        string
	Purpose      string
	LatencyMs    int64
	Success      bool
	InputTokens  int
	OutputTokens int
	RequestBody  string
	ResponseBody string
	ErrorMessage string
}

// CallSink persists LLM call records. The store package implements it.
type CallSink interface {
	RecordLLMCall(ctx context.Context, rec CallRecord) error
}

// LoggingProvider is a decorator that records every LLM request.
type LoggingProvider struct {
	inner    Provider
	provider string
	sink     CallSink
	log      *logger.Logger
}

// WithLogging wraps a Provider with call logging. provider is the
// backend name ("gemini", "openai", ...) written to each record. The
// sink may be nil, in which case calls are only written to the
// application log.
func WithLogging(p Provider, provider string, sink CallSink, log *logger.Logger) Provider {
	if log == nil {
		log = logger.Default()
	}
	return &LoggingProvider{inner: p, provider: provider, sink: sink, log: log}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	latencyMs := time.Since(start).Milliseconds()

	rec := CallRecord{
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		LatencyMs:   latencyMs,
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}

	if resp != nil {
		rec.InputTokens = resp.Usage.InputTokens
		rec.OutputTokens = resp.Usage.OutputTokens
		rec.Model = resp.Model
		rec.ResponseBody = string(resp.Content)
	}

	if err != nil {
		rec.ErrorMessage = err.Error()
		l.log.Warn("llm call failed", "purpose", purpose, "model", rec.Model, "latency_ms", latencyMs, "err", err)
	} else {
		l.log.Debug("llm call", "purpose", purpose, "model", rec.Model, "latency_ms", latencyMs,
			"in_tokens", rec.InputTokens, "out_tokens", rec.OutputTokens)
	}

	// Record the call but don't fail the request if persistence fails.
	if l.sink != nil {
		if sinkErr := l.sink.RecordLLMCall(ctx, rec); sinkErr != nil {
			l.log.Warn("failed to record llm call", "err", sinkErr)
		}
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		b.WriteString(fmt.Sprintf("[%s]\n", m.Role))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	if len(req.ImageData) > 0 {
		b.WriteString(fmt.Sprintf("[image: %s, %d bytes]\n", req.ImageMIME, len(req.ImageData)))
	}

	if req.Schema != nil {
		schemaDef, err := json.Marshal(req.Schema.Definition)
		if err == nil {
			b.WriteString(fmt.Sprintf("[schema: %s]\n", req.Schema.Name))
			b.WriteString(string(schemaDef))
			b.WriteString("\n")
		}
	}

	return b.String()
}
