package distill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mvickers/dossier/internal/config"
)

// distillPrompt instructs the model to return strictly structured JSON.
const distillPrompt = `You compress long-form engineering artifacts for AI agents.
Given the artifact below, respond with a single JSON object and nothing else:
{"summary": "<at most 3 sentences>", "hard_facts": ["<verbatim facts, numbers, paths, constraints>"], "keywords": ["<5-10 terms>"]}

Title: %s

%s`

// ChatSummarizer calls an OpenAI-compatible chat-completion endpoint.
type ChatSummarizer struct {
	url    string
	model  string
	apiKey string
	client *http.Client
}

// NewChatSummarizer builds a summarizer from config. The API key is read
// from the environment variable named in config, never from config itself.
func NewChatSummarizer(cfg *config.Config) *ChatSummarizer {
	apiKey := ""
	if cfg.SummarizerAPIKeyEnv != "" {
		apiKey = os.Getenv(cfg.SummarizerAPIKeyEnv)
	}
	return &ChatSummarizer{
		url:    strings.TrimRight(cfg.SummarizerURL, "/"),
		model:  cfg.SummarizerModel,
		apiKey: apiKey,
		// Per-call deadlines come from the gate's context; no client timeout.
		client: &http.Client{},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Summarize implements Summarizer.
func (s *ChatSummarizer) Summarize(ctx context.Context, artifact SourceArtifact) (Digest, error) {
	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "user", Content: fmt.Sprintf(distillPrompt, artifact.Title, artifact.BodyMD)},
		},
	})
	if err != nil {
		return Digest{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Digest{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Digest{}, fmt.Errorf("summarizer call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Digest{}, fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Digest{}, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return Digest{}, fmt.Errorf("summarizer error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return Digest{}, fmt.Errorf("summarizer returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return Digest{}, fmt.Errorf("summarizer returned no choices")
	}

	return parseDigest(parsed.Choices[0].Message.Content)
}

// parseDigest extracts the JSON digest from model output, tolerating
// markdown code fences around the object.
func parseDigest(content string) (Digest, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var d Digest
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return Digest{}, fmt.Errorf("malformed digest: %w", err)
	}
	if d.Summary == "" {
		return Digest{}, fmt.Errorf("digest missing summary")
	}
	return d, nil
}
