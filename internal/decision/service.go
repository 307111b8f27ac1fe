// Package decision turns an account and research context into a
// buy/sell/hold instruction.
package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// NoDecision is the text reported when the service could not decide. It
// classifies as Hold.
const NoDecision = "error: no decision"

// Decision is the audit pair of a query.
type Decision struct {
	Prompt string
	Text   string
}

// Service is the decision contract consumed by the orchestration loop. On
// failure Text is NoDecision and the error is returned for logging.
type Service interface {
	Decide(ctx context.Context, req Request) (Decision, error)
}

// chatModel is the subset of eino's chat model used here.
type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// LLM asks an OpenAI-compatible chat model for a decision.
type LLM struct {
	model   chatModel
	timeout time.Duration
}

var _ Service = (*LLM)(nil)

// OpenAIConfig configures NewOpenAI.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

func NewOpenAI(ctx context.Context, cfg OpenAIConfig) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key not configured")
	}
	maxTokens := 200
	temperature := float32(0.2)
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return &LLM{model: cm, timeout: cfg.Timeout}, nil
}

func (l *LLM) Decide(ctx context.Context, req Request) (Decision, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return Decision{Text: NoDecision}, err
	}
	d := Decision{Prompt: prompt, Text: NoDecision}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	msg, err := l.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage("You are a disciplined trading assistant. " + Guidance(req.Strategy)),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return d, fmt.Errorf("generate decision: %w", err)
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return d, errors.New("empty decision")
	}
	d.Text = text
	return d, nil
}

// Fixed always answers with the same text. It backs simulations and runs
// without a configured model.
type Fixed string

func (f Fixed) Decide(ctx context.Context, req Request) (Decision, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return Decision{Text: NoDecision}, err
	}
	return Decision{Prompt: prompt, Text: string(f)}, nil
}
