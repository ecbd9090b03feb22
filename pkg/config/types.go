// Package config defines the configuration surface of the engine. Every
// struct follows the SetDefaults/Validate convention and unknown options are
// rejected at load time.
package config

import (
	"fmt"
	"strings"
)

// Agent prompt template names. These must exist in the prompt service.
const (
	PromptOrchestrator  = "agent_orchestrator"
	PromptClarification = "agent_clarification"
	PromptResearch      = "agent_research"
	PromptSynthesis     = "agent_synthesis"
	PromptEvaluation    = "evaluation_quality"
)

// DefaultClarificationFallback is emitted when the Clarification agent's LLM
// call fails.
const DefaultClarificationFallback = "Could you please provide more details about your question?"

type Config struct {
	Global       GlobalConfig                   `yaml:"global"`
	LLMs         map[string]*LLMProviderConfig  `yaml:"llms"`
	Embedders    map[string]*EmbedderConfig     `yaml:"embedders"`
	VectorStores map[string]*VectorStoreConfig  `yaml:"vector_stores"`
	SessionStore SessionStoreConfig             `yaml:"session_store"`
	Prompts      PromptsConfig                  `yaml:"prompts"`
	Agents       AgentsConfig                   `yaml:"agents"`
	Tools        ToolsConfig                    `yaml:"tools"`
	Runner       RunnerConfig                   `yaml:"runner"`
	Server       ServerConfig                   `yaml:"server"`
	Ingest       IngestConfig                   `yaml:"ingest"`
	Evaluation   EvaluationConfig               `yaml:"evaluation"`
}

type GlobalConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Level)] {
		return fmt.Errorf("logging: invalid level '%s'", c.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true, "simple": true}
	if !validFormats[c.Format] {
		return fmt.Errorf("logging: invalid format '%s'", c.Format)
	}
	return nil
}

type LLMProviderConfig struct {
	Type        string  `yaml:"type"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Host        string  `yaml:"host"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     int     `yaml:"timeout"`
	MaxRetries  int     `yaml:"max_retries"`
	RetryDelay  int     `yaml:"retry_delay"`
}

func (c *LLMProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "openai"
	}
	if c.Model == "" {
		switch c.Type {
		case "ollama":
			c.Model = "llama3.1"
		default:
			c.Model = "gpt-4o"
		}
	}
	if c.Host == "" {
		switch c.Type {
		case "ollama":
			c.Host = "http://localhost:11434"
		default:
			c.Host = "https://api.openai.com"
		}
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2
	}
}

func (c *LLMProviderConfig) Validate() error {
	switch c.Type {
	case "openai", "ollama":
	default:
		return fmt.Errorf("llm: unsupported provider type '%s'", c.Type)
	}
	if c.Type == "openai" && c.APIKey == "" {
		return fmt.Errorf("llm: api_key is required for openai provider")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm: temperature must be in [0,2], got %f", c.Temperature)
	}
	return nil
}

type EmbedderConfig struct {
	Type      string `yaml:"type"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	Host      string `yaml:"host"`
	Dimension int    `yaml:"dimension"`
	Timeout   int    `yaml:"timeout"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "openai"
	}
	if c.Model == "" {
		switch c.Type {
		case "ollama":
			c.Model = "nomic-embed-text"
		default:
			c.Model = "text-embedding-3-small"
		}
	}
	if c.Host == "" {
		switch c.Type {
		case "ollama":
			c.Host = "http://localhost:11434"
		default:
			c.Host = "https://api.openai.com"
		}
	}
	if c.Dimension == 0 {
		c.Dimension = 1536
	}
	if c.Timeout == 0 {
		c.Timeout = 15
	}
}

func (c *EmbedderConfig) Validate() error {
	switch c.Type {
	case "openai", "ollama":
	default:
		return fmt.Errorf("embedder: unsupported type '%s'", c.Type)
	}
	if c.Type == "openai" && c.APIKey == "" {
		return fmt.Errorf("embedder: api_key is required for openai embedder")
	}
	return nil
}

type VectorStoreConfig struct {
	Type   string `yaml:"type"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

func (c *VectorStoreConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "qdrant"
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
}

func (c *VectorStoreConfig) Validate() error {
	switch c.Type {
	case "qdrant", "chromem":
	default:
		return fmt.Errorf("vector store: unsupported type '%s'", c.Type)
	}
	return nil
}

type SessionStoreConfig struct {
	Type            string `yaml:"type"`
	TTLSeconds      int    `yaml:"ttl_seconds"`
	CleanupInterval int    `yaml:"cleanup_interval_seconds"`
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
}

func (c *SessionStoreConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "memory"
	}
	if c.TTLSeconds == 0 {
		c.TTLSeconds = 86400
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 300
	}
	if c.Driver == "" {
		c.Driver = "sqlite3"
	}
}

func (c *SessionStoreConfig) Validate() error {
	switch c.Type {
	case "memory", "sql":
	default:
		return fmt.Errorf("session store: unsupported type '%s'", c.Type)
	}
	if c.Type == "sql" {
		switch c.Driver {
		case "sqlite3", "postgres", "mysql":
		default:
			return fmt.Errorf("session store: unsupported driver '%s'", c.Driver)
		}
		if c.DSN == "" {
			return fmt.Errorf("session store: dsn is required for sql store")
		}
	}
	if c.TTLSeconds < 0 {
		return fmt.Errorf("session store: ttl_seconds must be >= 0")
	}
	return nil
}

type PromptsConfig struct {
	Source string `yaml:"source"`
	Dir    string `yaml:"dir"`
	Label  string `yaml:"label"`
	Watch  bool   `yaml:"watch"`
}

func (c *PromptsConfig) SetDefaults() {
	if c.Source == "" {
		c.Source = "static"
	}
	if c.Label == "" {
		c.Label = "dev"
	}
}

func (c *PromptsConfig) Validate() error {
	switch c.Source {
	case "static", "file":
	default:
		return fmt.Errorf("prompts: unsupported source '%s'", c.Source)
	}
	if c.Source == "file" && c.Dir == "" {
		return fmt.Errorf("prompts: dir is required for file source")
	}
	switch c.Label {
	case "dev", "production":
	default:
		return fmt.Errorf("prompts: label must be 'dev' or 'production', got '%s'", c.Label)
	}
	return nil
}

type AgentsConfig struct {
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator"`
	Clarification ClarificationConfig `yaml:"clarification"`
	Research      ResearchConfig      `yaml:"research"`
	Synthesis     SynthesisConfig     `yaml:"synthesis"`
}

type OrchestratorConfig struct {
	LLM               string  `yaml:"llm"`
	Temperature       float64 `yaml:"temperature"`
	MaxHistory        int     `yaml:"max_history"`
	MaxClarifications int     `yaml:"max_clarifications"`
	PromptName        string  `yaml:"prompt_name"`
}

func (c *OrchestratorConfig) SetDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.MaxHistory == 0 {
		c.MaxHistory = 10
	}
	if c.MaxClarifications == 0 {
		c.MaxClarifications = 2
	}
	if c.PromptName == "" {
		c.PromptName = PromptOrchestrator
	}
}

func (c *OrchestratorConfig) Validate() error {
	if c.MaxClarifications < 1 {
		return fmt.Errorf("orchestrator: max_clarifications must be >= 1")
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("orchestrator: max_history must be >= 1")
	}
	return nil
}

type ClarificationConfig struct {
	LLM         string  `yaml:"llm"`
	Temperature float64 `yaml:"temperature"`
	MaxHistory  int     `yaml:"max_history"`
	PromptName  string  `yaml:"prompt_name"`
	Fallback    string  `yaml:"fallback"`
}

func (c *ClarificationConfig) SetDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 0.5
	}
	if c.MaxHistory == 0 {
		c.MaxHistory = 10
	}
	if c.PromptName == "" {
		c.PromptName = PromptClarification
	}
	if c.Fallback == "" {
		c.Fallback = DefaultClarificationFallback
	}
}

func (c *ClarificationConfig) Validate() error {
	if c.MaxHistory < 1 {
		return fmt.Errorf("clarification: max_history must be >= 1")
	}
	return nil
}

type ResearchConfig struct {
	LLM           string  `yaml:"llm"`
	Temperature   float64 `yaml:"temperature"`
	MaxHistory    int     `yaml:"max_history"`
	MaxIterations int     `yaml:"max_iterations"`
	PromptName    string  `yaml:"prompt_name"`
}

func (c *ResearchConfig) SetDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxHistory == 0 {
		c.MaxHistory = 10
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 10
	}
	if c.PromptName == "" {
		c.PromptName = PromptResearch
	}
}

func (c *ResearchConfig) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("research: max_iterations must be >= 1")
	}
	return nil
}

type SynthesisConfig struct {
	LLM         string  `yaml:"llm"`
	Temperature float64 `yaml:"temperature"`
	PromptName  string  `yaml:"prompt_name"`
}

func (c *SynthesisConfig) SetDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.PromptName == "" {
		c.PromptName = PromptSynthesis
	}
}

func (c *SynthesisConfig) Validate() error { return nil }

type ToolsConfig struct {
	PDFRetrieval PDFRetrievalConfig `yaml:"pdf_retrieval"`
	WebSearch    WebSearchConfig    `yaml:"web_search"`
}

type PDFRetrievalConfig struct {
	VectorStore string  `yaml:"vector_store"`
	Embedder    string  `yaml:"embedder"`
	Collection  string  `yaml:"collection"`
	TopK        int     `yaml:"top_k"`
	MinScore    float64 `yaml:"min_score"`
	Timeout     int     `yaml:"timeout"`
}

func (c *PDFRetrievalConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "papers"
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.MinScore == 0 {
		c.MinScore = 0.5
	}
	if c.Timeout == 0 {
		c.Timeout = 5
	}
}

func (c *PDFRetrievalConfig) Validate() error {
	if c.TopK < 1 || c.TopK > 5 {
		return fmt.Errorf("pdf_retrieval: top_k must be in [1,5], got %d", c.TopK)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("pdf_retrieval: min_score must be in [0,1], got %f", c.MinScore)
	}
	return nil
}

type WebSearchConfig struct {
	MaxResults int    `yaml:"max_results"`
	Timeout    int    `yaml:"timeout"`
	Endpoint   string `yaml:"endpoint"`
}

func (c *WebSearchConfig) SetDefaults() {
	if c.MaxResults == 0 {
		c.MaxResults = 5
	}
	if c.Timeout == 0 {
		c.Timeout = 15
	}
	if c.Endpoint == "" {
		c.Endpoint = "https://html.duckduckgo.com/html/"
	}
}

func (c *WebSearchConfig) Validate() error {
	if c.MaxResults < 1 || c.MaxResults > 5 {
		return fmt.Errorf("web_search: max_results must be in [1,5], got %d", c.MaxResults)
	}
	return nil
}

type RunnerConfig struct {
	TurnDeadlineSeconds int `yaml:"turn_deadline_seconds"`
	LLMDeadlineSeconds  int `yaml:"llm_deadline_seconds"`
	MaxAgentInvocations int `yaml:"max_agent_invocations_per_turn"`
}

func (c *RunnerConfig) SetDefaults() {
	if c.TurnDeadlineSeconds == 0 {
		c.TurnDeadlineSeconds = 120
	}
	if c.LLMDeadlineSeconds == 0 {
		c.LLMDeadlineSeconds = 30
	}
	if c.MaxAgentInvocations == 0 {
		c.MaxAgentInvocations = 8
	}
}

func (c *RunnerConfig) Validate() error {
	if c.MaxAgentInvocations < 3 {
		return fmt.Errorf("runner: max_agent_invocations_per_turn must be >= 3")
	}
	return nil
}

type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	MaxInputBytes int    `yaml:"max_input_bytes"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.MaxInputBytes == 0 {
		c.MaxInputBytes = 32 * 1024
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Port)
	}
	return nil
}

type IngestConfig struct {
	VectorStore  string `yaml:"vector_store"`
	Embedder     string `yaml:"embedder"`
	Collection   string `yaml:"collection"`
	ChunkTokens  int    `yaml:"chunk_tokens"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

func (c *IngestConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "papers"
	}
	if c.ChunkTokens == 0 {
		c.ChunkTokens = 512
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 64
	}
}

func (c *IngestConfig) Validate() error {
	if c.ChunkOverlap >= c.ChunkTokens {
		return fmt.Errorf("ingest: chunk_overlap must be smaller than chunk_tokens")
	}
	return nil
}

type EvaluationConfig struct {
	LLM         string `yaml:"llm"`
	PromptName  string `yaml:"prompt_name"`
	Concurrency int    `yaml:"concurrency"`
}

func (c *EvaluationConfig) SetDefaults() {
	if c.PromptName == "" {
		c.PromptName = PromptEvaluation
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
}

func (c *EvaluationConfig) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("evaluation: concurrency must be >= 1")
	}
	return nil
}
