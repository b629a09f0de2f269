// Package gemini implements the AI categorization port over the Google
// Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
)

const (
	DefaultModel = "gemini-2.0-flash"

	// Categorization wants determinism, not creativity.
	DefaultTemperature = 0.2
)

// Client implements the AICategorizer interface.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      *common.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithModel sets the model to use.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) {
		c.temperature = float32(t)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini categorization client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client:      genaiClient,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		logger:      common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// CategorizeBatch assigns categories to a batch of transactions. The
// response is requested as JSON and parsed into per-transaction results.
func (c *Client) CategorizeBatch(
	ctx context.Context,
	transactions []*models.Transaction,
	categories []*models.Category,
	examples []models.SimilarExample,
) ([]models.AIResult, error) {
	if len(transactions) == 0 {
		return nil, nil
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories supplied")
	}

	prompt := buildCategorizationPrompt(transactions, categories, examples)

	c.logger.Debug().
		Str("model", c.model).
		Int("transactions", len(transactions)).
		Int("examples", len(examples)).
		Msg("Categorization request")

	temperature := c.temperature
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("categorization request failed: %w", err)
	}

	text, err := extractText(result)
	if err != nil {
		return nil, err
	}

	return parseResults(text)
}

// extractText collects the text parts of a generate content response.
func extractText(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// parseResults decodes the model's JSON array, tolerating markdown fences
// some models wrap around JSON output.
func parseResults(text string) ([]models.AIResult, error) {
	cleaned := strings.TrimSpace(text)
	if idx := strings.Index(cleaned, "```json"); idx >= 0 {
		cleaned = cleaned[idx+len("```json"):]
		if end := strings.Index(cleaned, "```"); end >= 0 {
			cleaned = cleaned[:end]
		}
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		if end := strings.Index(cleaned, "```"); end >= 0 {
			cleaned = cleaned[:end]
		}
	}

	var results []models.AIResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &results); err != nil {
		return nil, fmt.Errorf("failed to parse categorization response: %w", err)
	}
	return results, nil
}

// buildCategorizationPrompt renders the batch, the category set, and the
// historical context into one instruction.
func buildCategorizationPrompt(
	transactions []*models.Transaction,
	categories []*models.Category,
	examples []models.SimilarExample,
) string {
	var sb strings.Builder

	sb.WriteString("You are a financial transaction categorization system. ")
	sb.WriteString("Assign each transaction below the single most appropriate category from the list.\n\n")

	sb.WriteString("Available categories:\n")
	for _, cat := range categories {
		sb.WriteString(fmt.Sprintf("- %s (id: %s)", cat.Name, cat.ID))
		if cat.Description != "" {
			sb.WriteString(": " + cat.Description)
		}
		if cat.Examples != "" {
			sb.WriteString(" (examples: " + cat.Examples + ")")
		}
		sb.WriteString("\n")
	}

	if len(examples) > 0 {
		sb.WriteString("\nHistorically confirmed categorizations of similar transactions:\n")
		for _, ex := range examples {
			sb.WriteString(fmt.Sprintf("- %q -> %s (id: %s)", ex.Description, ex.CategoryName, ex.CategoryID))
			if ex.WasManualOverride {
				sb.WriteString(" [confirmed by the user]")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("Give extra weight to categories the user confirmed.\n")
	}

	sb.WriteString("\nTransactions to categorize:\n")
	for i, tx := range transactions {
		sb.WriteString(fmt.Sprintf("%d. id: %s\n", i+1, tx.ID))
		sb.WriteString(fmt.Sprintf("   description: %s\n", tx.Description))
		sb.WriteString(fmt.Sprintf("   gbp_amount: %s\n", tx.GBPAmount.StringFixed(2)))
		sb.WriteString(fmt.Sprintf("   date: %s\n", tx.TransactionDate.Format("2006-01-02")))
	}

	sb.WriteString("\nRespond with ONLY a JSON array, one object per transaction:\n")
	sb.WriteString(`[{"transaction_id": "...", "category_id": "...", "category_name": "...", "confidence_score": 0-100}]`)
	sb.WriteString("\nconfidence_score is an integer from 0 to 100. Use only category ids from the list above.")

	return sb.String()
}

// Ensure Client implements AICategorizer.
var _ interfaces.AICategorizer = (*Client)(nil)
