package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const visionAnalysisPrompt = `You are an experienced hair-care expert analyzing the following photo.

Describe the hair in the image covering these aspects in as much detail as the photo allows:

1. **Hair type**: straight, wavy, curly or coily
2. **Texture**: fine, medium or thick
3. **Condition**: healthy, dry, damaged, brittle, etc.
4. **Color**: natural or treated, which shades
5. **Visible concerns**: split ends, frizz, breakage, dry scalp, dandruff, thinning, etc.
6. **Length and cut**: short, medium, long; layers, bangs, etc.
7. **Styling state**: freshly washed, styled, natural, visible heat damage, etc.

Return the analysis in a structured format. Be honest but considerate.`

// VisionClient is a client for a vision-capable chat completions API.
// It shares the OpenAI-compatible wire format with Client but sends the
// multimodal message shape (text part + image_url part).
type VisionClient struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

// NewVisionClient creates a new vision client.
func NewVisionClient(baseURL, apiKey, model string) *VisionClient {
	return &VisionClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		client:  http.DefaultClient,
	}
}

// visionContentPart is one element of a multimodal message content array.
type visionContentPart struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	ImageURL *visionImagePart `json:"image_url,omitempty"`
}

type visionImagePart struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type visionMessage struct {
	Role    string              `json:"role"`
	Content []visionContentPart `json:"content"`
}

type visionRequest struct {
	Model     string          `json:"model"`
	Messages  []visionMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

// AnalyzeImage analyzes a hair photo and returns the analysis text.
// imageURL may be a public URL or a base64 data URI. userHint is optional
// extra context from the user about their hair.
func (c *VisionClient) AnalyzeImage(ctx context.Context, imageURL, userHint string) (string, error) {
	prompt := visionAnalysisPrompt
	if userHint != "" {
		prompt = fmt.Sprintf("%s\n\nAdditional context from the user: %s", prompt, userHint)
	}

	payload := visionRequest{
		Model: c.Model,
		Messages: []visionMessage{
			{
				Role: "user",
				Content: []visionContentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &visionImagePart{URL: imageURL, Detail: "high"}},
				},
			},
		},
		MaxTokens: 1000,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no analysis returned from vision model")
	}

	return chatResp.Choices[0].Message.Content, nil
}
