// Package openai is an OpenAI-compatible REST client covering the three
// model operations the pipeline needs: batch embeddings, entity/relation
// extraction and answer completion. Ollama works through the same endpoints
// via its /v1 API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"graphrag/internal/domain"
)

const answerSystemPrompt = "You are a precise assistant. Answer the question using only the provided context. " +
	"If the context does not contain the answer, say that you do not know."

const extractionSystemPrompt = `You extract knowledge graph data from text.
Respond with JSON only, no prose, in exactly this shape:
{"entities": [{"id": "...", "label": "..."}], "relations": [{"subject": "...", "predicate": "...", "object": "..."}]}
The id of an entity is its name as it appears in the text.
Labels must be one of: Person, Organization, Concept, Technology.
Predicates are short uppercase tokens such as IS_A, PART_OF, CEO_OF.
Relation subjects and objects must repeat entity ids exactly.
If you find nothing, return empty lists.`

// Client talks to an OpenAI-compatible API.
type Client struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	chatModel      string
	dimensions     int
	client         *http.Client
	maxRetries     int
}

// Config configures the client. APIKeyEnv may be empty for providers that
// need no key (local Ollama).
type Config struct {
	BaseURL        string
	APIKeyEnv      string
	EmbeddingModel string
	ChatModel      string
	Dimensions     int
	Timeout        time.Duration
}

// NewClient creates a client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         key,
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		dimensions:     cfg.Dimensions,
		client:         &http.Client{Timeout: t},
		maxRetries:     5,
	}, nil
}

// Dimensions returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimensions() int { return c.dimensions }

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := map[string]any{
		"model": c.embeddingModel,
		"input": texts,
	}
	payload, err := c.postJSON(ctx, "/embeddings", body)
	if err != nil {
		return nil, err
	}
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response mismatch: got %d vectors, want %d", len(out.Data), len(texts))
	}
	vectors := make([][]float32, len(texts))
	for i, item := range out.Data {
		idx := item.Index
		if idx < 0 || idx >= len(vectors) {
			idx = i
		}
		if len(item.Embedding) == 0 {
			return nil, errors.New("empty embedding returned")
		}
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		vectors[idx] = vec
	}
	return vectors, nil
}

// Extract asks the chat model for entities and relations in the text and
// parses its JSON reply. A malformed reply surfaces as an error; the caller
// decides whether to substitute an empty result.
func (c *Client) Extract(ctx context.Context, text string) (domain.Extraction, error) {
	raw, err := c.chat(ctx, extractionSystemPrompt, "Text:\n"+text, floatPtr(0))
	if err != nil {
		return domain.Extraction{}, err
	}
	var wire struct {
		Entities []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"entities"`
		Relations []struct {
			Subject   string `json:"subject"`
			Predicate string `json:"predicate"`
			Object    string `json:"object"`
		} `json:"relations"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &wire); err != nil {
		return domain.Extraction{}, fmt.Errorf("parse extraction response: %w", err)
	}
	var result domain.Extraction
	for _, e := range wire.Entities {
		result.Entities = append(result.Entities, domain.Entity{ID: e.ID, Label: e.Label})
	}
	for _, r := range wire.Relations {
		result.Relations = append(result.Relations, domain.Relation{
			Subject:   r.Subject,
			Predicate: r.Predicate,
			Object:    r.Object,
		})
	}
	return result, nil
}

// Complete answers the question from the assembled context.
func (c *Client) Complete(ctx context.Context, question, contextText string) (string, error) {
	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question)
	return c.chat(ctx, answerSystemPrompt, user, nil)
}

func (c *Client) chat(ctx context.Context, system, user string, temperature *float64) (string, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	body := struct {
		Model       string    `json:"model"`
		Messages    []message `json:"messages"`
		Temperature *float64  `json:"temperature,omitempty"`
	}{
		Model: c.chatModel,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
	}
	payload, err := c.postJSON(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no completion returned")
	}
	return out.Choices[0].Message.Content, nil
}

// postJSON sends one JSON request and retries transient failures with
// exponential backoff, honoring Retry-After on 429 and 5xx responses.
func (c *Client) postJSON(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := c.baseURL + path
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < c.maxRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			if attempt < c.maxRetries {
				time.Sleep(delay)
				continue
			}
			return nil, fmt.Errorf("llm request %s failed: %s", path, resp.Status)
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			if attempt < c.maxRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("llm request %s failed: %s", path, resp.Status)
		}
		return payload, nil
	}
	return nil, fmt.Errorf("llm request %s failed after retries", path)
}

// cleanModelJSON strips the markdown code fences models like to wrap JSON in.
func cleanModelJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func floatPtr(v float64) *float64 { return &v }
