// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
)

// extractionPromptTmpl is the prompt sent to the model for each document.
// It asks for a structured appraisal of the document against the clinical
// question and a JSON-only response.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You are a clinical evidence appraisal system. Read the following article and assess it against the clinical question.

Clinical question:
{{.Query}}

For the article, report:
- relevance: one of "HIGH", "MEDIUM", "LOW", "NOT_RELEVANT"
  - HIGH: directly answers the question
  - MEDIUM: informs the question without answering it directly
  - LOW: tangentially related
  - NOT_RELEVANT: does not bear on the question
- relevance_reasoning: one sentence justifying the relevance tier
- study_type: the study design (e.g. "randomized controlled trial", "cohort study", "meta-analysis"), or "" if not stated
- population: who was studied, or "" if not stated
- intervention: the intervention or exposure, or "" if not stated
- key_findings: up to three findings that bear on the question, in the article's own order
- limitations: stated limitations of the study, or "" if none are stated
- extraction_confidence: a float in (0.0, 1.0] indicating how confident you are in this appraisal

Respond with a single JSON object containing exactly the fields above. Do not include any text outside the JSON object.

Example response:
{"relevance": "HIGH", "relevance_reasoning": "Reports cardiovascular outcomes for the asked intervention.", "study_type": "randomized controlled trial", "population": "4,321 adults with type 2 diabetes", "intervention": "metformin 2000mg daily vs placebo", "key_findings": ["Major adverse cardiac events were reduced by 18%.", "No significant difference in all-cause mortality."], "limitations": "Open-label design; follow-up limited to 3 years.", "extraction_confidence": 0.9}

Article (title: {{.Title}}):
{{.Content}}
`))

// renderPrompt executes the extraction prompt template for one document.
func renderPrompt(query, title, content string) (string, error) {
	var buf bytes.Buffer
	err := extractionPromptTmpl.Execute(&buf, struct {
		Query, Title, Content string
	}{Query: query, Title: title, Content: content})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ModelBackend abstracts the Generative AI API so tests can supply a mock.
// Complete returns the raw model text for one prompt; the extractor parses
// the JSON object out of it.
type ModelBackend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// ClaudeBackend calls the Claude Messages API.
type ClaudeBackend struct {
	APIKey string
	Model  string
	Client *http.Client
}

// claudeRequest is the request body for the Claude Messages API.
// Temperature is pinned low so repeated extractions of the same document
// stay consistent.
type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends one extraction prompt and returns the concatenated text blocks.
func (c *ClaudeBackend) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := claudeRequest{
		Model:       c.Model,
		MaxTokens:   1024,
		Temperature: 0.0,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	var parts []string
	for _, block := range cResp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text content in Claude API response")
	}
	return strings.Join(parts, "\n"), nil
}

// ollamaAPIURL is the local Ollama endpoint. Package-level var for test substitution.
var ollamaAPIURL = "http://localhost:11434/api/generate"

// OllamaBackend calls a locally hosted model through the Ollama generate
// API. It needs no API key.
type OllamaBackend struct {
	Model  string
	Client *http.Client
}

// ollamaRequest is the request body for the Ollama generate API.
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

// ollamaOptions carries sampling parameters.
type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

// ollamaResponse is the non-streaming response body.
type ollamaResponse struct {
	Response string `json:"response"`
}

// Complete sends one extraction prompt to the local model.
func (o *OllamaBackend) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaRequest{
		Model:   o.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: ollamaOptions{Temperature: 0.0},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ollamaAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Ollama API returned %d: %s", resp.StatusCode, string(body))
	}

	var oResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return "", fmt.Errorf("decoding Ollama response: %w", err)
	}
	if oResp.Response == "" {
		return "", fmt.Errorf("empty response from Ollama API")
	}
	return oResp.Response, nil
}
