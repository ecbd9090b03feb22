package config

import (
	"fmt"
)

// ProcessConfigPipeline applies defaults then validates the whole tree.
func ProcessConfigPipeline(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: config cannot be nil")
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) SetDefaults() {
	c.Global.Logging.SetDefaults()

	if c.LLMs == nil {
		c.LLMs = make(map[string]*LLMProviderConfig)
	}
	if c.Embedders == nil {
		c.Embedders = make(map[string]*EmbedderConfig)
	}
	if c.VectorStores == nil {
		c.VectorStores = make(map[string]*VectorStoreConfig)
	}

	if len(c.LLMs) == 0 {
		c.LLMs["default"] = &LLMProviderConfig{}
	}
	if len(c.Embedders) == 0 {
		c.Embedders["default"] = &EmbedderConfig{}
	}
	if len(c.VectorStores) == 0 {
		c.VectorStores["default"] = &VectorStoreConfig{}
	}

	for _, llm := range c.LLMs {
		if llm != nil {
			llm.SetDefaults()
		}
	}
	for _, emb := range c.Embedders {
		if emb != nil {
			emb.SetDefaults()
		}
	}
	for _, vs := range c.VectorStores {
		if vs != nil {
			vs.SetDefaults()
		}
	}

	c.SessionStore.SetDefaults()
	c.Prompts.SetDefaults()

	c.Agents.Orchestrator.SetDefaults()
	c.Agents.Clarification.SetDefaults()
	c.Agents.Research.SetDefaults()
	c.Agents.Synthesis.SetDefaults()

	c.Tools.PDFRetrieval.SetDefaults()
	c.Tools.WebSearch.SetDefaults()

	c.Runner.SetDefaults()
	c.Server.SetDefaults()
	c.Ingest.SetDefaults()
	c.Evaluation.SetDefaults()

	// Agent and tool references default to the first configured provider.
	defaultLLM := firstKey(c.LLMs)
	if c.Agents.Orchestrator.LLM == "" {
		c.Agents.Orchestrator.LLM = defaultLLM
	}
	if c.Agents.Clarification.LLM == "" {
		c.Agents.Clarification.LLM = defaultLLM
	}
	if c.Agents.Research.LLM == "" {
		c.Agents.Research.LLM = defaultLLM
	}
	if c.Agents.Synthesis.LLM == "" {
		c.Agents.Synthesis.LLM = defaultLLM
	}
	if c.Evaluation.LLM == "" {
		c.Evaluation.LLM = defaultLLM
	}
	if c.Tools.PDFRetrieval.VectorStore == "" {
		c.Tools.PDFRetrieval.VectorStore = firstKey(c.VectorStores)
	}
	if c.Tools.PDFRetrieval.Embedder == "" {
		c.Tools.PDFRetrieval.Embedder = firstKey(c.Embedders)
	}
	if c.Ingest.VectorStore == "" {
		c.Ingest.VectorStore = firstKey(c.VectorStores)
	}
	if c.Ingest.Embedder == "" {
		c.Ingest.Embedder = firstKey(c.Embedders)
	}
}

func (c *Config) Validate() error {
	if err := c.Global.Logging.Validate(); err != nil {
		return err
	}

	for name, llm := range c.LLMs {
		if llm == nil {
			return fmt.Errorf("llm '%s': config is nil", name)
		}
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("llm '%s': %w", name, err)
		}
	}
	for name, emb := range c.Embedders {
		if emb == nil {
			return fmt.Errorf("embedder '%s': config is nil", name)
		}
		if err := emb.Validate(); err != nil {
			return fmt.Errorf("embedder '%s': %w", name, err)
		}
	}
	for name, vs := range c.VectorStores {
		if vs == nil {
			return fmt.Errorf("vector store '%s': config is nil", name)
		}
		if err := vs.Validate(); err != nil {
			return fmt.Errorf("vector store '%s': %w", name, err)
		}
	}

	if err := c.SessionStore.Validate(); err != nil {
		return err
	}
	if err := c.Prompts.Validate(); err != nil {
		return err
	}

	if err := c.Agents.Orchestrator.Validate(); err != nil {
		return err
	}
	if err := c.Agents.Clarification.Validate(); err != nil {
		return err
	}
	if err := c.Agents.Research.Validate(); err != nil {
		return err
	}
	if err := c.Agents.Synthesis.Validate(); err != nil {
		return err
	}

	if err := c.Tools.PDFRetrieval.Validate(); err != nil {
		return err
	}
	if err := c.Tools.WebSearch.Validate(); err != nil {
		return err
	}

	if err := c.Runner.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Ingest.Validate(); err != nil {
		return err
	}
	if err := c.Evaluation.Validate(); err != nil {
		return err
	}

	// Cross-references must resolve.
	for role, ref := range map[string]string{
		"orchestrator":  c.Agents.Orchestrator.LLM,
		"clarification": c.Agents.Clarification.LLM,
		"research":      c.Agents.Research.LLM,
		"synthesis":     c.Agents.Synthesis.LLM,
		"evaluation":    c.Evaluation.LLM,
	} {
		if _, ok := c.LLMs[ref]; !ok {
			return fmt.Errorf("%s: references unknown llm '%s'", role, ref)
		}
	}
	if _, ok := c.VectorStores[c.Tools.PDFRetrieval.VectorStore]; !ok {
		return fmt.Errorf("pdf_retrieval: references unknown vector store '%s'", c.Tools.PDFRetrieval.VectorStore)
	}
	if _, ok := c.Embedders[c.Tools.PDFRetrieval.Embedder]; !ok {
		return fmt.Errorf("pdf_retrieval: references unknown embedder '%s'", c.Tools.PDFRetrieval.Embedder)
	}

	return nil
}

func firstKey[V any](m map[string]*V) string {
	if _, ok := m["default"]; ok {
		return "default"
	}
	for k := range m {
		return k
	}
	return ""
}
