// Package gemini implements the streaming LLM contract on top of the Google
// Gemini API.
package gemini

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/Priya-Diwakar/nova-voice-assistant/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

const defaultModel = "gemini-1.5-flash"

type Client struct {
	apiKey string
	model  string
}

type Option func(*Client)

// WithModel overrides the default generation model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// NewClient creates a Gemini streaming client. A missing key is not an error
// here: it surfaces as [llms.ErrMissingCredential] when a reply is requested,
// so a conversation without a configured model stays alive and simply fails
// each reply.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{apiKey: apiKey, model: defaultModel}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) PromptWithStream(_ context.Context, prompt string, opts ...llms.PromptOption) llms.Stream {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &stream{
		apiKey:  c.apiKey,
		model:   c.model,
		prompt:  prompt,
		options: options,
	}
}

type stream struct {
	apiKey  string
	model   string
	prompt  string
	options llms.PromptOptions
}

func (s *stream) Chunks(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.model))

		if strings.TrimSpace(s.apiKey) == "" {
			span.RecordError(llms.ErrMissingCredential)
			span.SetStatus(codes.Error, llms.ErrMissingCredential.Error())
			yield("", llms.ErrMissingCredential)
			return
		}

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  s.apiKey,
			Backend: genai.BackendGeminiAPI,
			HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
					return operationName + " " + request.URL.Path
				}),
			)},
		})
		if err != nil {
			err = fmt.Errorf("failed to create gemini client: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield("", err)
			return
		}

		var generateConfig *genai.GenerateContentConfig
		if s.options.Instructions != "" {
			generateConfig = &genai.GenerateContentConfig{
				SystemInstruction: &genai.Content{
					Parts: []*genai.Part{{Text: s.options.Instructions}},
				},
			}
		}

		chat, err := client.Chats.Create(ctx, s.model, generateConfig, toContents(s.options.Turns))
		if err != nil {
			err = fmt.Errorf("failed to start gemini chat: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield("", err)
			return
		}

		chunkCount := 0
		defer func() { span.SetAttributes(attribute.Int("response.chunks", chunkCount)) }()

		for response, err := range chat.SendMessageStream(ctx, genai.Part{Text: s.prompt}) {
			if err != nil {
				err = fmt.Errorf("failed to stream gemini response: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				yield("", err)
				return
			}

			text := response.Text()
			if text == "" {
				continue
			}

			chunkCount++
			if !yield(text, nil) {
				return
			}
		}
	}
}

// toContents converts conversation history into the request wire shape.
func toContents(turns []llms.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		role := string(genai.RoleUser)
		if turn.Role == llms.RoleModel {
			role = string(genai.RoleModel)
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Content}},
		})
	}
	return contents
}
