package generation

import (
	"context"
	"sync"

	"github.com/deckforge/deckforge-backend/internal/deck"
	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
	"github.com/deckforge/deckforge-backend/internal/platform/logger"
)

// LLM is the completion seam the pipeline depends on. Production wires the
// Anthropic client; tests wire fakes.
type LLM interface {
	Complete(ctx context.Context, req anthropic.CompletionRequest) (anthropic.Completion, error)
}

// Service runs the generation pipeline. A nil llm is valid: every stage
// with a deterministic secondary strategy uses it exclusively.
type Service struct {
	log *logger.Logger
	llm LLM
	cfg deck.PipelineConfig
}

func NewService(log *logger.Logger, llm LLM, cfg deck.PipelineConfig) *Service {
	return &Service{
		log: log.With("service", "GenerationService"),
		llm: llm,
		cfg: cfg.Clamp(),
	}
}

// WithLLM returns a copy of the service bound to a different client.
// Used for the per-request API-key override.
func (s *Service) WithLLM(llm LLM) *Service {
	if llm == nil {
		return s
	}
	return &Service{log: s.log, llm: llm, cfg: s.cfg}
}

// WithConfig returns a copy with per-request config applied over the base.
func (s *Service) WithConfig(override deck.PipelineConfig) *Service {
	return &Service{log: s.log, llm: s.llm, cfg: s.cfg.Merge(override).Clamp()}
}

func (s *Service) Config() deck.PipelineConfig { return s.cfg }

// usageTracker decorates an LLM with token accounting. When the upstream
// response carries no usage metadata it falls back to a character-length
// heuristic (~4 chars per token).
type usageTracker struct {
	llm LLM

	mu     sync.Mutex
	tokens int
}

func (u *usageTracker) Complete(ctx context.Context, req anthropic.CompletionRequest) (anthropic.Completion, error) {
	out, err := u.llm.Complete(ctx, req)
	if err != nil {
		return out, err
	}
	used := out.InputTokens + out.OutputTokens
	if used == 0 {
		used = (len(req.System) + len(req.User) + len(out.Text)) / 4
	}
	u.mu.Lock()
	u.tokens += used
	u.mu.Unlock()
	return out, nil
}

func (u *usageTracker) total() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tokens
}
