package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/observability"
	"github.com/scholarlabs/scholar/pkg/orchestration"
	"github.com/scholarlabs/scholar/pkg/protocol"
	"github.com/scholarlabs/scholar/pkg/session"
)

// ScenarioResult is the full outcome for one scenario.
type ScenarioResult struct {
	Scenario   string         `json:"scenario"`
	Answer     string         `json:"answer"`
	Confidence *float64       `json:"confidence,omitempty"`
	Workflow   WorkflowResult `json:"workflow"`
	Verdict    *Verdict       `json:"verdict,omitempty"`
	Duration   time.Duration  `json:"duration"`
	Error      string         `json:"error,omitempty"`
}

// Pass reports overall success: workflow assertions held and, when a judge
// ran, no judge error occurred.
func (r *ScenarioResult) Pass() bool {
	return r.Error == "" && r.Workflow.Pass
}

// Evaluator drives scenarios through a runner wired with a RecorderSink.
type Evaluator struct {
	runner   *orchestration.Runner
	recorder *observability.RecorderSink
	sessions session.Store
	judge    *Judge
	cfg      *config.EvaluationConfig
	logger   *slog.Logger
}

// NewEvaluator builds an evaluator. The recorder must be one of the sinks
// the runner emits to, otherwise workflow assertions see nothing. The judge
// may be nil to skip quality scoring.
func NewEvaluator(runner *orchestration.Runner, recorder *observability.RecorderSink, sessions session.Store, judge *Judge, cfg *config.EvaluationConfig) (*Evaluator, error) {
	if runner == nil || recorder == nil || sessions == nil {
		return nil, fmt.Errorf("evaluator: runner, recorder, and sessions are required")
	}
	if cfg == nil {
		cfg = &config.EvaluationConfig{}
	}
	cfg.SetDefaults()
	return &Evaluator{
		runner:   runner,
		recorder: recorder,
		sessions: sessions,
		judge:    judge,
		cfg:      cfg,
		logger:   slog.Default().With("component", "evaluation"),
	}, nil
}

// Run executes all scenarios with bounded concurrency and returns results
// in scenario order. A failing scenario does not stop the batch.
func (e *Evaluator) Run(ctx context.Context, scenarios []*Scenario) ([]*ScenarioResult, error) {
	results := make([]*ScenarioResult, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i, scenario := range scenarios {
		g.Go(func() error {
			results[i] = e.runScenario(ctx, scenario)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Evaluator) runScenario(ctx context.Context, scenario *Scenario) *ScenarioResult {
	start := time.Now()
	result := &ScenarioResult{Scenario: scenario.Name}

	// LoadScenarios validates this, but scenarios can also be built in code.
	if len(scenario.Turns) == 0 {
		result.Error = "scenario has no turns"
		result.Duration = time.Since(start)
		return result
	}

	// A fresh session per scenario keeps runs independent.
	sessionID := fmt.Sprintf("eval-%s", uuid.NewString())
	defer func() {
		_ = e.sessions.Clear(context.Background(), sessionID)
		e.recorder.Reset(sessionID)
		result.Duration = time.Since(start)
	}()

	if scenario.PrimedState != nil {
		if err := e.prime(ctx, sessionID, scenario.PrimedState); err != nil {
			result.Error = fmt.Sprintf("failed to prime session: %v", err)
			return result
		}
	}

	var turnResult *orchestration.TurnResult
	for _, turn := range scenario.Turns {
		// Workflow assertions apply to the final turn only.
		e.recorder.Reset(sessionID)

		var err error
		turnResult, err = e.runner.RunTurn(ctx, sessionID, turn)
		if err != nil {
			result.Error = fmt.Sprintf("turn failed: %v", err)
			return result
		}
	}

	result.Answer = turnResult.Answer
	result.Confidence = turnResult.Confidence
	result.Workflow = checkWorkflow(scenario.Workflow,
		e.recorder.AgentSequence(sessionID),
		e.recorder.ToolSequence(sessionID))

	if e.judge != nil && scenario.ExpectedAnswerCriteria != "" {
		verdict, err := e.judge.Score(ctx,
			scenario.Turns[len(scenario.Turns)-1],
			turnResult.Answer,
			scenario.ExpectedAnswerCriteria)
		if err != nil {
			result.Error = fmt.Sprintf("judge failed: %v", err)
			return result
		}
		result.Verdict = verdict
	}

	e.logger.Info("Scenario finished", "scenario", scenario.Name,
		"pass", result.Pass(), "failures", strings.Join(result.Workflow.Failures, "; "))
	return result
}

func (e *Evaluator) prime(ctx context.Context, sessionID string, primed *PrimedState) error {
	state := &session.State{
		SessionID:          sessionID,
		LastAgent:          primed.LastAgent,
		ClarificationCount: primed.ClarificationCount,
	}
	for _, entry := range primed.History {
		state.Messages = append(state.Messages, &protocol.Message{
			Role:      protocol.Role(entry.Role),
			Content:   entry.Content,
			Timestamp: time.Now(),
		})
	}
	return e.sessions.Save(ctx, state)
}

// Summarize counts passes and failures.
func Summarize(results []*ScenarioResult) (passed, failed int) {
	for _, r := range results {
		if r.Pass() {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}
