package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

func (a *Adapter) openAIClient() openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(a.cfg.OpenAIKey),
		option.WithMaxRetries(0),
	}
	if a.cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.cfg.OpenAIBaseURL))
	}
	if a.cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(a.cfg.HTTPClient))
	}
	return openai.NewClient(opts...)
}

func (a *Adapter) callOpenAI(ctx context.Context, model string, messages []ChatMessage, onDelta func(string), o callOptions) (*ModelResponse, error) {
	client := a.openAIClient()
	params := openAIParams(model, messages, o)

	var completion openai.ChatCompletion
	if onDelta == nil {
		resp, err := client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("openai request failed: %w", err)
		}
		completion = *resp
	} else {
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
		stream := client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()
		acc := openai.ChatCompletionAccumulator{}
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				onDelta(chunk.Choices[0].Delta.Content)
			}
		}
		if err := stream.Err(); err != nil {
			return nil, fmt.Errorf("openai stream failed: %w", err)
		}
		completion = acc.ChatCompletion
	}

	resp := &ModelResponse{}
	maxTokensHit := false
	if len(completion.Choices) > 0 {
		choice := completion.Choices[0]
		resp.Content = choice.Message.Content
		resp.ToolCalls = openAIToolCalls(choice.Message.ToolCalls)
		maxTokensHit = choice.FinishReason == "length"
	}
	return finalize(resp, messages, int(completion.Usage.PromptTokens), int(completion.Usage.CompletionTokens), maxTokensHit), nil
}

// tokenLimitField names the request field that carries the output limit for
// an OpenAI model, or "" when no limit is set.
func tokenLimitField(model string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if strings.HasPrefix(model, "gpt-5") {
		return "max_completion_tokens"
	}
	return "max_tokens"
}

func openAIParams(model string, messages []ChatMessage, o callOptions) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: openAIMessages(messages),
	}
	switch tokenLimitField(model, o.maxTokens) {
	case "max_completion_tokens":
		params.MaxCompletionTokens = openai.Int(int64(o.maxTokens))
	case "max_tokens":
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}
	for _, def := range o.tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(def.Parameters),
			},
		})
	}
	return params
}

// openAIMessages keeps system turns as system messages and expands each run
// of tool messages into an assistant tool_calls turn plus one tool message per result.
func openAIMessages(messages []ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case RoleAssistant:
			// Intermediate text directly before tool results is merged into the tool-call turn.
			if i+1 < len(messages) && messages[i+1].Role == RoleTool {
				continue
			}
			out = append(out, openai.AssistantMessage(msg.Content))
		case RoleTool:
			assistant := &openai.ChatCompletionAssistantMessageParam{}
			if i > 0 && messages[i-1].Role == RoleAssistant && messages[i-1].Content != "" {
				assistant.Content.OfString = openai.String(messages[i-1].Content)
			}
			j := i
			var results []openai.ChatCompletionMessageParamUnion
			for ; j < len(messages) && messages[j].Role == RoleTool; j++ {
				tm := messages[j]
				args := tm.ToolInput
				if args == nil {
					args = map[string]any{}
				}
				encoded, err := json.Marshal(args)
				if err != nil {
					encoded = []byte("{}")
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tm.ToolCallID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tm.ToolName,
						Arguments: string(encoded),
					},
				})
				results = append(results, openai.ToolMessage(tm.Content, tm.ToolCallID))
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
			out = append(out, results...)
			i = j - 1
		}
	}
	return out
}

func openAIToolCalls(calls []openai.ChatCompletionMessageToolCall) []ToolCall {
	var out []ToolCall
	for _, call := range calls {
		if call.ID == "" || call.Function.Name == "" {
			continue
		}
		out = append(out, ToolCall{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: parseArguments([]byte(call.Function.Arguments)),
		})
	}
	return out
}
