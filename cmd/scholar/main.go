// Command scholar runs the research assistant: an HTTP server, a one-shot
// chat mode, corpus ingestion, and scenario evaluation.
//
// Usage:
//
//	scholar serve --config scholar.yaml
//	scholar chat "What accuracy does DAIL-SQL report on Spider?"
//	scholar ingest ./papers
//	scholar eval ./scenarios
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/embedder"
	"github.com/scholarlabs/scholar/pkg/evaluation"
	"github.com/scholarlabs/scholar/pkg/ingest"
	"github.com/scholarlabs/scholar/pkg/llms"
	"github.com/scholarlabs/scholar/pkg/logger"
	"github.com/scholarlabs/scholar/pkg/observability"
	"github.com/scholarlabs/scholar/pkg/orchestration"
	"github.com/scholarlabs/scholar/pkg/prompts"
	"github.com/scholarlabs/scholar/pkg/server"
	"github.com/scholarlabs/scholar/pkg/session"
	"github.com/scholarlabs/scholar/pkg/tools"
	"github.com/scholarlabs/scholar/pkg/vector"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP server."`
	Chat    ChatCmd    `cmd:"" help:"Ask a single question from the terminal."`
	Ingest  IngestCmd  `cmd:"" help:"Index a directory of PDF papers into the vector store."`
	Eval    EvalCmd    `cmd:"" help:"Run evaluation scenarios against the engine."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or json)." default:"simple"`
}

func (c *CLI) loadConfig() (*config.Config, error) {
	if c.Config == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(c.Config)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("scholar %s\n", version)
	return nil
}

// app bundles everything a command needs after wiring: the turn runner, the
// shared config, and the resources that must be released on exit.
type app struct {
	cfg      *config.Config
	runner   *orchestration.Runner
	services *orchestration.Services
	registry *prometheus.Registry
	recorder *observability.RecorderSink
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

type appOptions struct {
	metrics  bool
	recorder bool
	trace    bool
}

// buildApp wires providers, stores, tools, and the runner from config.
func buildApp(cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}

	llmRegistry, err := llms.NewRegistryFromConfig(cfg.LLMs)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM providers: %w", err)
	}
	a.closers = append(a.closers, func() error {
		for _, p := range llmRegistry.List() {
			_ = p.Close()
		}
		return nil
	})

	promptService, closePrompts, err := newPromptService(&cfg.Prompts)
	if err != nil {
		return nil, err
	}
	if closePrompts != nil {
		a.closers = append(a.closers, closePrompts)
	}

	sessions, err := session.NewStoreFromConfig(&cfg.SessionStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}
	a.closers = append(a.closers, sessions.Close)

	toolRegistry, err := buildTools(cfg, a)
	if err != nil {
		return nil, err
	}

	services := &orchestration.Services{
		LLMs:     llmRegistry,
		Prompts:  promptService,
		Tools:    toolRegistry,
		Sessions: sessions,
		Config:   cfg,
	}

	sinks := observability.MultiSink{observability.NewSlogSink(logger.GetLogger())}
	if opts.recorder {
		a.recorder = observability.NewRecorderSink()
		sinks = append(sinks, a.recorder)
	}
	if opts.trace {
		sinks = append(sinks, observability.NewOTelSink(nil))
	}
	services.Sink = sinks

	if opts.metrics {
		metrics, registry, err := observability.InitPrometheusMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		services.Metrics = metrics
		a.registry = registry
	}

	runner, err := orchestration.NewRunner(services)
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	a.runner = runner
	a.services = services
	return a, nil
}

func newPromptService(cfg *config.PromptsConfig) (prompts.Service, func() error, error) {
	if cfg.Source == "file" {
		svc, err := prompts.NewFileService(cfg.Dir, cfg.Watch)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create prompt service: %w", err)
		}
		return svc, svc.Close, nil
	}
	return prompts.NewDefaultService(), nil, nil
}

// buildTools registers the retrieval and web search tools. The vector store
// and embedder opened here are tracked on the app for shutdown.
func buildTools(cfg *config.Config, a *app) (*tools.Registry, error) {
	registry := tools.NewRegistry()

	store, err := vector.NewFromConfig(cfg.VectorStores[cfg.Tools.PDFRetrieval.VectorStore])
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	emb, err := embedder.NewFromConfig(cfg.Embedders[cfg.Tools.PDFRetrieval.Embedder])
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	retrieval, err := tools.NewPDFRetrievalTool(store, emb, &cfg.Tools.PDFRetrieval)
	if err != nil {
		return nil, err
	}
	if err := registry.RegisterTool(retrieval); err != nil {
		return nil, err
	}

	webSearch, err := tools.NewWebSearchTool(&cfg.Tools.WebSearch)
	if err != nil {
		return nil, err
	}
	if err := registry.RegisterTool(webSearch); err != nil {
		return nil, err
	}

	return registry, nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port  int  `help:"Port to listen on (overrides config)."`
	Trace bool `help:"Export turn spans to stdout."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.GetLogger().Info("Shutting down...")
		cancel()
	}()

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	if c.Trace {
		shutdown, err := observability.InitStdoutTracer()
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	a, err := buildApp(cfg, appOptions{metrics: true, trace: c.Trace})
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.New(a.runner, &cfg.Server, a.registry)
	if err != nil {
		return err
	}

	fmt.Printf("scholar listening on %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Chat:    POST /chat\n")
	fmt.Printf("  History: GET /sessions/{id}/history\n")
	fmt.Printf("  Health:  GET /healthz\n")
	fmt.Printf("  Metrics: GET /metrics\n")
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.ListenAndServe(ctx)
}

// ChatCmd runs one turn from the terminal and prints the answer.
type ChatCmd struct {
	Message string `arg:"" help:"The question to ask."`
	Session string `help:"Session ID for follow-up turns (empty = new session)."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := c.Session
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := a.runner.RunTurn(context.Background(), sessionID, c.Message)
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	if result.Confidence != nil {
		fmt.Printf("\n(confidence: %.2f, session: %s)\n", *result.Confidence, result.SessionID)
	} else {
		fmt.Printf("\n(session: %s)\n", result.SessionID)
	}
	return nil
}

// IngestCmd indexes a directory of PDFs.
type IngestCmd struct {
	Dir string `arg:"" help:"Directory containing PDF files." type:"path"`
}

func (c *IngestCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	store, err := vector.NewFromConfig(cfg.VectorStores[cfg.Ingest.VectorStore])
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	defer store.Close()

	emb, err := embedder.NewFromConfig(cfg.Embedders[cfg.Ingest.Embedder])
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	ingestor, err := ingest.NewIngestor(store, emb, &cfg.Ingest)
	if err != nil {
		return err
	}

	report, err := ingestor.IngestDir(context.Background(), c.Dir)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d files (%d pages, %d chunks)\n",
		report.Files, report.Pages, report.Chunks)
	for _, path := range report.Failed {
		fmt.Printf("  failed: %s\n", path)
	}
	if report.Files == 0 && len(report.Failed) == 0 {
		fmt.Println("No PDF files found.")
	}
	return nil
}

// EvalCmd runs evaluation scenarios and reports pass/fail per scenario.
type EvalCmd struct {
	Dir     string `arg:"" help:"Directory containing scenario YAML files." type:"path"`
	NoJudge bool   `help:"Skip LLM answer scoring, check workflows only."`
}

func (c *EvalCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	scenarios, err := evaluation.LoadScenarios(c.Dir)
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, appOptions{recorder: true})
	if err != nil {
		return err
	}
	defer a.Close()

	var judge *evaluation.Judge
	if !c.NoJudge {
		provider, ok := a.services.LLMs.Get(cfg.Evaluation.LLM)
		if !ok {
			return fmt.Errorf("evaluation: unknown llm '%s'", cfg.Evaluation.LLM)
		}
		judge = evaluation.NewJudge(provider, a.services.Prompts,
			cfg.Evaluation.PromptName, cfg.Prompts.Label)
	}

	evaluator, err := evaluation.NewEvaluator(a.runner, a.recorder,
		a.services.Sessions, judge, &cfg.Evaluation)
	if err != nil {
		return err
	}

	results, err := evaluator.Run(context.Background(), scenarios)
	if err != nil {
		return err
	}

	for _, result := range results {
		status := "PASS"
		if !result.Pass() {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s (%.1fs)\n", status, result.Scenario, result.Duration.Seconds())
		if result.Error != "" {
			fmt.Printf("       error: %s\n", result.Error)
		}
		for _, failure := range result.Workflow.Failures {
			fmt.Printf("       workflow: %s\n", failure)
		}
		if result.Verdict != nil {
			fmt.Printf("       quality=%.2f factual=%.2f complete=%.2f\n",
				result.Verdict.AnswerQuality, result.Verdict.FactualCorrectness,
				result.Verdict.Completeness)
		}
	}

	passed, failed := evaluation.Summarize(results)
	fmt.Printf("\n%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		return errors.New("evaluation failed")
	}
	return nil
}

func main() {
	_ = godotenv.Load()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("scholar"),
		kong.Description("scholar - multi-agent research assistant over a paper corpus"),
		kong.UsageOnError(),
	)

	output := os.Stderr
	var cleanup func()
	if cli.LogFile != "" {
		file, c, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		output, cleanup = file, c
		defer cleanup()
	}
	logger.Init(logger.ParseLevel(cli.LogLevel), output, cli.LogFormat)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
