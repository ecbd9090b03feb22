package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/llms"
	"github.com/scholarlabs/scholar/pkg/observability"
	"github.com/scholarlabs/scholar/pkg/prompts"
	"github.com/scholarlabs/scholar/pkg/session"
	"github.com/scholarlabs/scholar/pkg/tools"
)

var errEmptyCompletion = errors.New("empty completion")

// Agent is one node of the turn graph. Execute mutates the state it is
// given; routing happens through state.NextAgent.
type Agent interface {
	Name() AgentName
	Execute(ctx context.Context, state *TurnState) error
}

// Services bundles everything the agents and the runner depend on.
type Services struct {
	LLMs     *llms.Registry
	Prompts  prompts.Service
	Tools    *tools.Registry
	Sessions session.Store
	Locker   session.Locker
	Sink     observability.Sink
	Metrics  observability.Metrics
	Config   *config.Config
}

func (s *Services) normalize() {
	if s.Sink == nil {
		s.Sink = observability.NopSink{}
	}
	if s.Metrics == nil {
		s.Metrics = observability.NopMetrics{}
	}
	if s.Locker == nil {
		s.Locker = session.NewKeyedMutex()
	}
}

func (s *Services) provider(name string) (llms.Provider, error) {
	provider, ok := s.LLMs.Get(name)
	if !ok {
		return nil, fmt.Errorf("llm provider %q not registered", name)
	}
	return provider, nil
}

func (s *Services) emit(eventType observability.EventType, sessionID string, attrs map[string]any) {
	s.Sink.Emit(observability.Event{
		Type:      eventType,
		SessionID: sessionID,
		Time:      time.Now(),
		Attrs:     attrs,
	})
}

// generate calls the provider under the configured per-call deadline and
// records the call in metrics.
func (s *Services) generate(ctx context.Context, provider llms.Provider, req *llms.Request) (*llms.Response, error) {
	deadline := time.Duration(s.Config.Runner.LLMDeadlineSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	resp, err := provider.Generate(ctx, req)
	tokens := 0
	if resp != nil {
		tokens = resp.Tokens
	}
	s.Metrics.RecordLLMCall(ctx, provider.GetModelName(), time.Since(start), tokens, err)
	return resp, err
}

func (s *Services) promptLabel() string {
	return s.Config.Prompts.Label
}
