// Package agents turns workspace data into prompts for the AI service and
// validated results back into workspace types.
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/madhatter5501/WorkOS/agents/provider"
	"github.com/madhatter5501/WorkOS/kanban"
)

const missingKeyMessage = "La clé API (GOOGLE_API_KEY ou API_KEY) est manquante."

// Analyst asks the AI service for project reports and task scores.
type Analyst struct {
	provider provider.Provider
	model    string
	logger   *slog.Logger

	reportSchema *jsonschema.Schema
	scoreSchema  *jsonschema.Schema
}

// NewAnalyst creates an analyst over p. A nil or unavailable provider is allowed:
// reports then fail with a ConfigurationError and scores fall back.
func NewAnalyst(p provider.Provider, model string, logger *slog.Logger) (*Analyst, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = provider.DefaultModel
	}

	reportSchema, err := compileSchema(reportSchemaURL, reportSchema)
	if err != nil {
		return nil, err
	}
	scoreSchema, err := compileSchema(scoreSchemaURL, scoreSchema)
	if err != nil {
		return nil, err
	}

	return &Analyst{
		provider:     p,
		model:        model,
		logger:       logger,
		reportSchema: reportSchema,
		scoreSchema:  scoreSchema,
	}, nil
}

// Available reports whether a credential is configured.
func (a *Analyst) Available() bool {
	return a.provider != nil && a.provider.Available()
}

// Usage returns the provider's token usage.
func (a *Analyst) Usage() provider.TokenUsage {
	if a.provider == nil {
		return provider.TokenUsage{}
	}
	return a.provider.GetUsage()
}

// AnalyzeProjectProgress produces a project report from every task.
func (a *Analyst) AnalyzeProjectProgress(ctx context.Context, tasks []kanban.Task) (kanban.AIAnalysisResult, error) {
	if !a.Available() {
		return kanban.AIAnalysisResult{}, &ConfigurationError{Message: missingKeyMessage}
	}

	prompt, err := ReportPrompt(tasks)
	if err != nil {
		return kanban.AIAnalysisResult{}, err
	}

	start := time.Now()
	text, err := a.generate(ctx, prompt, reportResponseSchema)
	if err != nil {
		a.logger.Error("AI analysis failed", "error", err, "tasks", len(tasks))
		return kanban.AIAnalysisResult{}, err
	}

	var result kanban.AIAnalysisResult
	if err := decodeValidated(text, a.reportSchema, &result); err != nil {
		a.logger.Error("AI analysis failed", "error", err, "tasks", len(tasks))
		return kanban.AIAnalysisResult{}, err
	}

	a.logger.Info("AI analysis completed",
		"tasks", len(tasks),
		"risks", len(result.Risks),
		"duration", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// EvaluateTaskStrategy scores one task. It never fails: any problem, including a
// missing credential, is logged and answered with kanban.FallbackScore.
func (a *Analyst) EvaluateTaskStrategy(ctx context.Context, title, description string) kanban.Score {
	if !a.Available() {
		a.logger.Warn("Strategy evaluation skipped", "title", title, "error", missingKeyMessage)
		return kanban.FallbackScore
	}

	prompt, err := StrategyPrompt(title, description)
	if err != nil {
		a.logger.Error("Strategy evaluation failed", "title", title, "error", err)
		return kanban.FallbackScore
	}

	text, err := a.generate(ctx, prompt, scoreResponseSchema)
	if err != nil {
		a.logger.Error("Strategy evaluation failed", "title", title, "error", err)
		return kanban.FallbackScore
	}

	var score kanban.Score
	if err := decodeValidated(text, a.scoreSchema, &score); err != nil {
		a.logger.Error("Strategy evaluation failed", "title", title, "error", err)
		return kanban.FallbackScore
	}

	a.logger.Debug("Task scored", "title", title, "impact", score.ImpactScore, "effort", score.EffortScore)
	return score
}

// generate sends one JSON-mode request and returns the raw answer text.
func (a *Analyst) generate(ctx context.Context, prompt string, schema map[string]any) (string, error) {
	resp, err := a.provider.CreateMessage(ctx, &provider.MessageRequest{
		Model:            a.model,
		Messages:         []provider.Message{{Role: "user", Content: prompt}},
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		var notAvailable provider.ErrProviderNotAvailable
		if errors.As(err, &notAvailable) {
			return "", &ConfigurationError{Message: missingKeyMessage}
		}
		return "", &AnalysisError{Reason: fmt.Sprintf("appel %s échoué", a.provider.Name()), Err: err}
	}
	return resp.Content, nil
}
