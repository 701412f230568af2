// Package translator turns extracted articles into Croatian magazine copy by
// way of an external text-generation service.
package translator

//go:generate mockgen -source=translator.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zaja/magazin-importer/internal/domain"
)

// ErrNotConfigured signals a missing API key. It is a configuration failure
// and is never retried.
var ErrNotConfigured = errors.New("translator: text service not configured")

// TextClient is the outbound contract with the AI text-generation service.
type TextClient interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (text string, tokensUsed int, err error)
}

// Config tunes retry behavior and generation limits.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxTokens      int
	TargetLanguage string
}

func (c *Config) setDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 2 * time.Second
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 8 * time.Second
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = "Croatian"
	}
}

// Translator calls the text service with retry and exponential backoff, and
// parses the structured result. Service errors are transient and retried;
// malformed output is a hard failure for the current article.
type Translator struct {
	client TextClient
	cfg    Config
	logger *slog.Logger
}

// New builds a Translator. Zero config fields fall back to defaults
// (3 attempts, 2s/4s/8s backoff).
func New(client TextClient, cfg Config, logger *slog.Logger) *Translator {
	cfg.setDefaults()
	return &Translator{client: client, cfg: cfg, logger: logger}
}

type resultPayload struct {
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Excerpt         string   `json:"excerpt"`
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
}

// Translate produces a translated and summarized article from src.
func (t *Translator) Translate(ctx context.Context, src *domain.ExtractedArticle) (*domain.TranslatedArticle, error) {
	prompt := t.buildPrompt(src)

	text, tokens, err := t.generateWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var payload resultPayload
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &payload); err != nil {
		return nil, fmt.Errorf("%w: parse generation result: %v", domain.ErrArticleInvalid, err)
	}

	art := &domain.TranslatedArticle{
		Title:           strings.TrimSpace(payload.Title),
		ContentHTML:     strings.TrimSpace(payload.Content),
		Excerpt:         strings.TrimSpace(payload.Excerpt),
		MetaTitle:       strings.TrimSpace(payload.MetaTitle),
		MetaDescription: strings.TrimSpace(payload.MetaDescription),
		Keywords:        payload.Keywords,
		TokensUsed:      tokens,
	}
	if err := art.Validate(); err != nil {
		return nil, fmt.Errorf("generation result: %w", err)
	}
	return art, nil
}

func (t *Translator) generateWithRetry(ctx context.Context, prompt string) (string, int, error) {
	var lastErr error

	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		text, tokens, err := t.client.Generate(ctx, prompt, t.cfg.MaxTokens)
		if err == nil {
			return text, tokens, nil
		}
		if errors.Is(err, ErrNotConfigured) {
			return "", 0, err
		}
		lastErr = err

		if attempt == t.cfg.MaxAttempts {
			break
		}

		backoff := t.backoff(attempt)
		t.logger.Warn("generation failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", 0, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", 0, fmt.Errorf("after %d attempts: %w", t.cfg.MaxAttempts, lastErr)
}

func (t *Translator) backoff(attempt int) time.Duration {
	backoff := t.cfg.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > t.cfg.MaxBackoff {
		backoff = t.cfg.MaxBackoff
	}
	return backoff
}

func (t *Translator) buildPrompt(src *domain.ExtractedArticle) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an editor for a %s lifestyle magazine. ", t.cfg.TargetLanguage)
	fmt.Fprintf(&sb, "Translate the following article into %s, rewrite it in the magazine's editorial voice and condense it where the original rambles.\n\n", t.cfg.TargetLanguage)
	sb.WriteString("Respond with a single JSON object and nothing else, using exactly these keys:\n")
	sb.WriteString(`{"title": "...", "content": "<p>HTML body</p>", "excerpt": "...", "metaTitle": "...", "metaDescription": "...", "keywords": ["..."]}`)
	sb.WriteString("\n\nOriginal title: ")
	sb.WriteString(src.Title)
	if src.Byline != "" {
		sb.WriteString("\nOriginal author: ")
		sb.WriteString(src.Byline)
	}
	sb.WriteString("\n\nOriginal article HTML:\n")
	sb.WriteString(src.ContentHTML)
	return sb.String()
}

// stripCodeFence unwraps ```json ... ``` fences models like to add despite
// instructions.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimSuffix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	}
	return strings.TrimSpace(text)
}
