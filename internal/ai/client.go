package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"taskflow-backend/internal/tasks"
)

// Model is the part of llms.Model the generator needs.
type Model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewOpenAIModel builds the langchaingo OpenAI client.
func NewOpenAIModel(cfg Config) (Model, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return llm, nil
}

// Generator asks the model for drafts. It never writes to the store and never
// retries; the caller's context bounds every call.
type Generator struct {
	model   Model
	metrics *tasks.Metrics
	log     *zap.Logger
}

func New(model Model, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		model:   model,
		metrics: tasks.NewMetrics(),
		log:     log.Named("ai"),
	}
}

func (g *Generator) GenerateMainTask(ctx context.Context, activeTitles []string) (draft tasks.MainTaskDraft, err error) {
	defer func() { g.metrics.GenerationOps.WithLabelValues("main_task", metricResult(err)).Inc() }()

	text, err := g.complete(ctx, llms.TextParts(schema.ChatMessageTypeHuman, BuildMainTaskPrompt(activeTitles)))
	if err != nil {
		return tasks.MainTaskDraft{}, g.fail("main_task", err)
	}
	draft, err = ParseMainTask(text)
	if err != nil {
		return tasks.MainTaskDraft{}, g.fail("main_task", err)
	}
	return draft, nil
}

// GenerateSubtasks returns an empty result without calling the model when the
// request has neither a title nor an image.
func (g *Generator) GenerateSubtasks(ctx context.Context, req tasks.SubtaskRequest) (drafts tasks.SubtaskDrafts, err error) {
	if req.Empty() {
		return tasks.SubtaskDrafts{Subtasks: []tasks.SubtaskDraft{}}, nil
	}
	defer func() { g.metrics.GenerationOps.WithLabelValues("subtasks", metricResult(err)).Inc() }()

	parts := []llms.ContentPart{
		llms.TextContent{Text: BuildSubtasksPrompt(req.Title, len(req.Image) > 0, req.ExistingTitles)},
	}
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, llms.BinaryPart(mime, req.Image))
	}

	text, err := g.complete(ctx, llms.MessageContent{Role: schema.ChatMessageTypeHuman, Parts: parts})
	if err != nil {
		return tasks.SubtaskDrafts{}, g.fail("subtasks", err)
	}
	drafts, err = ParseSubtasks(text)
	if err != nil {
		return tasks.SubtaskDrafts{}, g.fail("subtasks", err)
	}
	return drafts, nil
}

func (g *Generator) complete(ctx context.Context, prompt llms.MessageContent) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		prompt,
	}
	resp, err := g.model.GenerateContent(ctx, messages)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func (g *Generator) fail(kind string, err error) error {
	g.log.Warn("generation failed", zap.String("kind", kind), zap.Error(err))
	return &tasks.GenerationError{Kind: kind, Err: err}
}

func metricResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
