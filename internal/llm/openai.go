package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lumenos/lumen/internal/domain"
)

const systemPrompt = "You are an assistant operating a user's workspace. " +
	"Accomplish the user's goal by calling the provided tools. Call one tool " +
	"at a time and wait for its result. When the goal is complete, reply with " +
	"a short confirmation message instead of a tool call."

// OpenAIProvider backs conversations with the OpenAI chat-completions API
// using function calling.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider builds a provider for the given credential and model.
// baseURL may be empty for the default endpoint.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *OpenAIProvider) NewConversation() Conversation {
	return &openAIConversation{
		client: p.client,
		model:  p.model,
		messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		},
	}
}

type openAIConversation struct {
	client   *openai.Client
	model    string
	messages []openai.ChatCompletionMessage
	tools    []openai.Tool
	pending  *openai.ToolCall
}

func (c *openAIConversation) SendIntent(ctx context.Context, intent string, tools []domain.ToolDescriptor) (*Turn, error) {
	c.tools = convertTools(tools)
	c.messages = append(c.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: intent,
	})

	turn, err := c.complete(ctx)
	if err != nil {
		return nil, fmt.Errorf("llm.openAIConversation.SendIntent: %w", err)
	}
	return turn, nil
}

func (c *openAIConversation) SendToolResult(ctx context.Context, toolName string, payload any) (*Turn, error) {
	if c.pending == nil {
		return nil, fmt.Errorf("llm.openAIConversation.SendToolResult(%q): %w", toolName, ErrNoPendingCall)
	}

	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm.openAIConversation.SendToolResult: marshal: %w", err)
	}

	c.messages = append(c.messages, openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    string(content),
		Name:       toolName,
		ToolCallID: c.pending.ID,
	})
	c.pending = nil

	turn, err := c.complete(ctx)
	if err != nil {
		return nil, fmt.Errorf("llm.openAIConversation.SendToolResult: %w", err)
	}
	return turn, nil
}

func (c *openAIConversation) SendText(ctx context.Context, text string) (*Turn, error) {
	// An abandoned tool call would make the transcript invalid; drop it.
	c.pending = nil
	c.messages = append(c.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	turn, err := c.complete(ctx)
	if err != nil {
		return nil, fmt.Errorf("llm.openAIConversation.SendText: %w", err)
	}
	return turn, nil
}

// complete performs one model turn and appends the reply to the history.
func (c *openAIConversation) complete(ctx context.Context) (*Turn, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: c.messages,
		Tools:    c.tools,
	})
	if err != nil {
		return nil, classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("empty completion response")
	}

	msg := resp.Choices[0].Message
	c.messages = append(c.messages, msg)

	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		c.pending = &tc

		var args map[string]any
		if tc.Function.Arguments != "" {
			if unmarshalErr := json.Unmarshal([]byte(tc.Function.Arguments), &args); unmarshalErr != nil {
				return nil, fmt.Errorf("decode tool arguments for %q: %w", tc.Function.Name, unmarshalErr)
			}
		}

		return &Turn{ToolCall: &ToolCall{
			ID:       tc.ID,
			Name:     tc.Function.Name,
			Args:     args,
			Thinking: msg.Content,
		}}, nil
	}

	return &Turn{Text: msg.Content}, nil
}

func convertTools(tools []domain.ToolDescriptor) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden) {
		return fmt.Errorf("%w: %s", ErrInvalidCredential, apiErr.Message)
	}
	return err
}
