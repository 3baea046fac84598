package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/metrics"
	"github.com/contact-recon/backend/pkg/circuitbreaker"
	"github.com/contact-recon/backend/pkg/logger"
	"github.com/contact-recon/backend/pkg/retry"
)

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(apiKey, model string, temperature float32, maxTokens, timeoutSec int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    2,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized", zap.String("model", model))

	return &Client{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     time.Duration(timeoutSec) * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

// ExtractionInput is the preprocessed record handed to extraction.
type ExtractionInput struct {
	Email                string
	DisplayName          string
	Domain               string
	DomainConventionHint string
}

// RecipientExtraction is the structured result the completion service
// returns for one recipient.
type RecipientExtraction struct {
	Name1      string  `json:"name1"`
	Name2      string  `json:"name2"`
	Genre      *string `json:"genre"`
	IsPersonal bool    `json:"is_personal"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ExtractRecipient asks the completion service for given/family name,
// honorific and personal-vs-service classification of one recipient.
// When deep is true the prompt requires step-by-step reasoning about
// cultural origin and name order before the structured answer.
func (c *Client) ExtractRecipient(ctx context.Context, in ExtractionInput, deep bool) (*RecipientExtraction, error) {
	systemPrompt := extractionSystemPrompt
	if deep {
		systemPrompt = extractionDeepSystemPrompt
	}

	hint := in.DomainConventionHint
	if hint == "" {
		hint = "unknown"
	}

	userPrompt := fmt.Sprintf(`Email: %s
Display name: %s
Domain: %s
Domain naming convention: %s

Return JSON only.`, in.Email, in.DisplayName, in.Domain, hint)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.1,
		MaxTokens:    600,
	})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("extraction", "error").Inc()
		return nil, fmt.Errorf("failed to extract recipient: %w", err)
	}

	var out RecipientExtraction
	if err := decodeJSON(resp.Content, &out); err != nil {
		metrics.LLMCalls.WithLabelValues("extraction", "malformed").Inc()
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	metrics.LLMCalls.WithLabelValues("extraction", "ok").Inc()

	logger.Debug("Recipient extracted",
		zap.String("email", in.Email),
		zap.Float64("confidence", out.Confidence),
		zap.Bool("deep", deep),
	)

	return &out, nil
}

// DomainAnalysis is the convention verdict for a domain.
type DomainAnalysis struct {
	Convention  string  `json:"convention"`
	Confidence  float64 `json:"confidence"`
	CompanyName string  `json:"company_name"`
}

// AnalyzeDomain asks the completion service to infer the email naming
// convention of a domain from sampled email/name pairs.
func (c *Client) AnalyzeDomain(ctx context.Context, domain string, samples []string) (*DomainAnalysis, error) {
	userPrompt := fmt.Sprintf(`Domain: %s

Known identities at this domain (email => full name):
%s

Return JSON only.`, domain, strings.Join(samples, "\n"))

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: domainSystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.1,
		MaxTokens:    300,
	})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("domain_analysis", "error").Inc()
		return nil, fmt.Errorf("failed to analyze domain: %w", err)
	}

	var out DomainAnalysis
	if err := decodeJSON(resp.Content, &out); err != nil {
		metrics.LLMCalls.WithLabelValues("domain_analysis", "malformed").Inc()
		return nil, fmt.Errorf("failed to parse domain analysis: %w", err)
	}
	metrics.LLMCalls.WithLabelValues("domain_analysis", "ok").Inc()

	return &out, nil
}

// MatchVerdict is the arbitration result over ambiguous candidates.
type MatchVerdict struct {
	IdentityID int64   `json:"identity_id"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ArbitrateMatch asks the completion service to pick the best identity
// for a parsed recipient among the scored candidates, or 0 for none.
func (c *Client) ArbitrateMatch(ctx context.Context, recipient string, candidates []string) (*MatchVerdict, error) {
	userPrompt := fmt.Sprintf(`Recipient:
%s

Candidate identities:
%s

Return JSON only.`, recipient, strings.Join(candidates, "\n"))

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: arbitrationSystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.1,
		MaxTokens:    400,
	})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("arbitration", "error").Inc()
		return nil, fmt.Errorf("failed to arbitrate match: %w", err)
	}

	var out MatchVerdict
	if err := decodeJSON(resp.Content, &out); err != nil {
		metrics.LLMCalls.WithLabelValues("arbitration", "malformed").Inc()
		return nil, fmt.Errorf("failed to parse arbitration response: %w", err)
	}
	metrics.LLMCalls.WithLabelValues("arbitration", "ok").Inc()

	return &out, nil
}
