package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"siteforge/engine/models"
	"siteforge/engine/telemetry/circuit"
	"siteforge/engine/telemetry/retry"
)

// ClaudeAdvisor implements AdvisorClient against the Anthropic Messages API,
// the one external network dependency the core's critical loop calls out to
// (SPEC_FULL §4.7). Every call is routed through a shared circuit breaker
// and the same bounded-retry policy every other transient-I/O call site
// uses, concretizing the "Transient I/O" error-kind row (spec.md §7) for
// this collaborator.
type ClaudeAdvisor struct {
	client  anthropic.Client
	model   anthropic.Model
	breaker *gobreaker.CircuitBreaker
	policy  retry.Policy
}

// NewClaudeAdvisor builds an advisor reading its API key from the
// environment (ANTHROPIC_API_KEY), per the SDK's default client
// construction.
func NewClaudeAdvisor(model anthropic.Model, opts ...option.RequestOption) *ClaudeAdvisor {
	return &ClaudeAdvisor{
		client:  anthropic.NewClient(opts...),
		model:   model,
		breaker: circuit.NewBreaker("advisor", 5, 30*time.Second),
		policy:  retry.DefaultPolicy(),
	}
}

const planSystemPrompt = `You are a website performance optimization advisor. Given a crawl
inventory summary and audit scores, respond with ONLY a JSON object representing a sparse
settings patch (dotted paths to override, nested as objects matching the path segments). No
prose, no markdown fences.`

const reviewSystemPrompt = `You are reviewing one optimization iteration's verification results
against prior iteration history. Respond with ONLY a JSON object:
{"shouldRebuild": bool, "settingChanges": <sparse settings patch object>, "overallVerdict":
"pass"|"incomplete"|"failed"}. No prose, no markdown fences.`

// Plan asks the advisor for a settings patch given the crawl inventory and
// any audit scores gathered so far.
func (a *ClaudeAdvisor) Plan(ctx context.Context, inventory *models.SiteInventory, audits map[string]int) (SettingsPatch, error) {
	prompt := fmt.Sprintf("Pages crawled: %d\nAudits: %v\nJQuery in use: %v\n", len(inventory.Pages), audits, inventory.JQueryUsed)

	var raw string
	err := a.call(ctx, planSystemPrompt, prompt, &raw)
	if err != nil {
		return nil, err
	}
	var patch SettingsPatch
	if err := json.Unmarshal([]byte(raw), &patch); err != nil {
		return nil, fmt.Errorf("decode advisor plan response: %w", err)
	}
	return patch, nil
}

// Review asks the advisor to judge one iteration's results against history.
func (a *ClaudeAdvisor) Review(ctx context.Context, iteration models.IterationResult, history []models.IterationResult) (ReviewVerdict, error) {
	body, err := json.Marshal(struct {
		Iteration models.IterationResult   `json:"iteration"`
		History   []models.IterationResult `json:"history"`
	}{iteration, history})
	if err != nil {
		return ReviewVerdict{}, fmt.Errorf("marshal review request: %w", err)
	}

	var raw string
	if err := a.call(ctx, reviewSystemPrompt, string(body), &raw); err != nil {
		return ReviewVerdict{}, err
	}

	var decoded struct {
		ShouldRebuild  bool           `json:"shouldRebuild"`
		SettingChanges SettingsPatch  `json:"settingChanges"`
		OverallVerdict string         `json:"overallVerdict"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return ReviewVerdict{}, fmt.Errorf("decode advisor review response: %w", err)
	}
	return ReviewVerdict{ShouldRebuild: decoded.ShouldRebuild, SettingChanges: decoded.SettingChanges, OverallVerdict: decoded.OverallVerdict}, nil
}

func (a *ClaudeAdvisor) call(ctx context.Context, system, user string, out *string) error {
	return retry.Do(ctx, a.policy, func(attempt int) error {
		result, err := a.breaker.Execute(func() (interface{}, error) {
			msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
				Model:     a.model,
				MaxTokens: 2048,
				System:    []anthropic.TextBlockParam{{Text: system}},
				Messages: []anthropic.MessageParam{
					anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
				},
			})
			if err != nil {
				return nil, err
			}
			return msg.Content, nil
		})
		if err != nil {
			return err
		}
		blocks, _ := result.([]anthropic.ContentBlockUnion)
		for _, b := range blocks {
			if text := b.Text; text != "" {
				*out = text
				return nil
			}
		}
		return fmt.Errorf("advisor response had no text content")
	})
}
