package generation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
)

type runIDKey struct{}

// WithRunID tags ctx with the run a completion belongs to, so recorders
// can correlate call logs with the run row.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func RunIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIDKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// CallRecord captures one model round trip for auditing.
type CallRecord struct {
	Model        string
	Prompt       string
	Response     string
	Success      bool
	Error        string
	InputTokens  int
	OutputTokens int
	DurationMS   int64
}

// CallRecorder receives a record after every completion, success or not.
// Implementations must not block the pipeline; persist asynchronously or
// swallow their own errors.
type CallRecorder interface {
	Record(ctx context.Context, rec CallRecord)
}

type loggedLLM struct {
	inner LLM
	rec   CallRecorder
}

// LogCalls decorates an LLM so every completion is handed to rec.
func LogCalls(inner LLM, rec CallRecorder) LLM {
	if inner == nil || rec == nil {
		return inner
	}
	return &loggedLLM{inner: inner, rec: rec}
}

func (l *loggedLLM) Complete(ctx context.Context, req anthropic.CompletionRequest) (anthropic.Completion, error) {
	start := time.Now()
	out, err := l.inner.Complete(ctx, req)
	rec := CallRecord{
		Model:        out.Model,
		Prompt:       req.System + "\n\n" + req.User,
		Response:     out.Text,
		Success:      err == nil,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
		DurationMS:   time.Since(start).Milliseconds(),
	}
	if rec.Model == "" {
		rec.Model = req.Model
	}
	if err != nil {
		rec.Error = err.Error()
	}
	l.rec.Record(ctx, rec)
	return out, err
}
