// Package genai provides GenAI-enhanced operations using OpenAI API.

package genai

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Generation defaults. Replies stay short and close to the grounding context
// supplied by the caller.
const (
	// DefaultTemperature keeps replies close to the supplied context.
	DefaultTemperature = 0.3
	// DefaultMaxCompletionTokens bounds reply length.
	DefaultMaxCompletionTokens = 300
)

// ErrNoChoicesReturned indicates the completion API returned an empty choice
// list.
var ErrNoChoicesReturned = errors.New("no choices returned")

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// embeddingService defines minimal interface for text embeddings.
type embeddingService interface {
	Create(ctx context.Context, params openai.EmbeddingNewParams) (openai.CreateEmbeddingResponse, error)
}

// openaiChatService adapts the official completion service to chatService.
type openaiChatService struct {
	svc openai.ChatCompletionService
}

func (s openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// openaiEmbeddingService adapts the official embedding service to
// embeddingService.
type openaiEmbeddingService struct {
	svc openai.EmbeddingService
}

func (s openaiEmbeddingService) Create(ctx context.Context, params openai.EmbeddingNewParams) (openai.CreateEmbeddingResponse, error) {
	resp, err := s.svc.New(ctx, params)
	if err != nil {
		return openai.CreateEmbeddingResponse{}, err
	}
	return *resp, nil
}

// ClientInterface is the generation boundary used by the chat and behavior
// modules. Implementations must honor the context deadline.
type ClientInterface interface {
	// GeneratePromptWithContext generates a reply from a system prompt and a
	// user prompt.
	GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Client wraps the OpenAI completion and embedding services.
type Client struct {
	chat                chatService
	embeddings          embeddingService
	model               openai.ChatModel
	embeddingModel      openai.EmbeddingModel
	temperature         float64
	maxCompletionTokens int64
}

// Opts holds configuration options for GenAI client construction.
type Opts struct {
	APIKey         string
	BaseURL        string
	Model          openai.ChatModel
	EmbeddingModel openai.EmbeddingModel
}

// Option defines a configuration option for GenAI client construction.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the OpenAI API base URL. Useful for proxies and
// compatible servers.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel sets the chat completion model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// WithEmbeddingModel sets the embedding model.
func WithEmbeddingModel(model openai.EmbeddingModel) Option {
	return func(o *Opts) { o.EmbeddingModel = model }
}

// NewClient initializes a new GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not set via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = openai.EmbeddingModelTextEmbedding3Small
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	return &Client{
		chat:                openaiChatService{svc: cli.Chat.Completions},
		embeddings:          openaiEmbeddingService{svc: cli.Embeddings},
		model:               cfg.Model,
		embeddingModel:      cfg.EmbeddingModel,
		temperature:         DefaultTemperature,
		maxCompletionTokens: DefaultMaxCompletionTokens,
	}, nil
}

// GeneratePromptWithContext generates a reply based on the provided system
// and user prompts.
func (c *Client) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature:         openai.Float(c.temperature),
		MaxCompletionTokens: openai.Int(c.maxCompletionTokens),
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: c.embeddingModel,
	}
	resp, err := c.embeddings.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}
