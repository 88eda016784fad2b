// OpenAI chat-completions client.
//
// Request/response types based on https://platform.openai.com/docs/api-reference/chat
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/ketchalegend/vibeflow/internal/shared"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// searchFunctionName is the single function the model may call.
const searchFunctionName = "search_spotify_tracks"

// chatMessage is one message of the conversation payload.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// functionDef declares a callable function with a JSON-schema parameter block.
type functionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// toolDef wraps a function definition in the tools envelope.
type toolDef struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

// chatRequest is the chat-completions request payload.
type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []toolDef     `json:"tools,omitempty"`
	ToolChoice string        `json:"tool_choice,omitempty"`
}

// toolCall is one function invocation elected by the model. Arguments arrive
// as a JSON-encoded string, not an object.
type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// chatResponse is the chat-completions response payload.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// CompletionService implements [Completer] against the OpenAI
// chat-completions API.
type CompletionService struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *log.Logger
}

// NewCompletionService creates the completion service from app credentials.
func NewCompletionService(cfg shared.OpenAIConfig, client *http.Client, logger *log.Logger) (*CompletionService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api_key is required", shared.ErrMissingCredentials)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &CompletionService{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

var _ Completer = (*CompletionService)(nil)

// searchTool declares the one function the model is allowed to call.
func searchTool() toolDef {
	return toolDef{
		Type: "function",
		Function: functionDef{
			Name:        searchFunctionName,
			Description: "Search for tracks on Spotify",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query for Spotify tracks",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// DecideSearch asks the model whether to search the provider and with what
// query. One request/response cycle; the model's refusal to call the function
// is a valid outcome, not an error.
func (s *CompletionService) DecideSearch(ctx context.Context, systemPrompt, userPrompt string) (SearchDecision, error) {
	payload := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Tools:      []toolDef{searchTool()},
		ToolChoice: "auto",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return SearchDecision{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return SearchDecision{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return SearchDecision{}, fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		s.logger.Error("completion request failed", "status", resp.StatusCode)
		return SearchDecision{}, &shared.UpstreamError{
			Endpoint: s.baseURL + "/chat/completions",
			Status:   resp.StatusCode,
			Body:     string(respBody),
		}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return SearchDecision{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(cr.Choices) == 0 {
		return SearchDecision{}, nil
	}

	for _, call := range cr.Choices[0].Message.ToolCalls {
		if call.Function.Name != searchFunctionName {
			continue
		}

		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return SearchDecision{}, fmt.Errorf("failed to decode function arguments: %w", err)
		}

		s.logger.Debug("model elected search", "query", args.Query)
		return SearchDecision{Call: true, Query: args.Query}, nil
	}

	return SearchDecision{}, nil
}
