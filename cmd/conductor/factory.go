package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/conductor-ai/conductor/internal/api"
	"github.com/conductor-ai/conductor/internal/config"
	"github.com/conductor-ai/conductor/internal/orchestrator"
	"github.com/conductor-ai/conductor/internal/state"
)

// newModelClient builds the Anthropic client from configuration, with an
// optional model override.
func newModelClient(cfg *config.Config, modelOverride string) (*api.Client, error) {
	model := cfg.Anthropic.Model
	if modelOverride != "" {
		model = modelOverride
	}

	apiKey := ""
	if !cfg.Anthropic.UseBedrock {
		key, err := cfg.ResolveAPIKey()
		if err != nil {
			return nil, err
		}
		apiKey = key
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(model),
		APIKey:        apiKey,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.BedrockRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// loadSubagentSpecs resolves the delegatable agent types from the flag, the
// config, or the built-in defaults, in that order.
func loadSubagentSpecs(cfg *config.Config, fileOverride string) ([]orchestrator.SubagentSpec, error) {
	path := cfg.Orchestrator.SubagentsFile
	if fileOverride != "" {
		path = fileOverride
	}
	if path == "" {
		return config.DefaultSubagentSpecs(), nil
	}
	return config.LoadSubagentSpecs(path)
}

// openDatabase opens and migrates the task database at the configured path.
func openDatabase(cfg *config.Config) (*state.DB, error) {
	path := cfg.Storage.DBPath
	if path == "" {
		path = state.DefaultDBPath()
	}
	db, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// orchestratorOptions assembles the options shared by serve and run.
func orchestratorOptions(cfg *config.Config, db *state.DB, eventLog *state.EventLog, specs []orchestrator.SubagentSpec) []orchestrator.Option {
	opts := []orchestrator.Option{
		orchestrator.WithSubagents(specs...),
		orchestrator.WithTaskStore(db),
		orchestrator.WithTaskLoader(db),
		orchestrator.WithCheckpointStore(state.NewCheckpointStore(db)),
		orchestrator.WithEventLog(eventLog),
	}
	if cfg.Orchestrator.MaxIterations > 0 {
		opts = append(opts, orchestrator.WithMaxIterations(cfg.Orchestrator.MaxIterations))
	}
	if cfg.Orchestrator.StatusUpdateLimit > 0 {
		opts = append(opts, orchestrator.WithStatusUpdateLimit(cfg.Orchestrator.StatusUpdateLimit))
	}
	if cfg.Orchestrator.SystemPrompt != "" {
		opts = append(opts, orchestrator.WithSystemPrompt(cfg.Orchestrator.SystemPrompt))
	}
	return opts
}
