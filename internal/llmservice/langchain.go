package llmservice

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/config"
)

// LangchainStreamer generates through the langchaingo Ollama client.
type LangchainStreamer struct {
	llm  *ollama.LLM
	opts []llms.CallOption
}

func NewLangchainStreamer(cfg *config.OllamaConfig) (*LangchainStreamer, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Initializing langchain ollama client")

	llmOpts := []ollama.Option{
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	}
	if cfg.Options.NumCtx > 0 {
		llmOpts = append(llmOpts, ollama.WithRunnerNumCtx(cfg.Options.NumCtx))
	}
	llm, err := ollama.New(llmOpts...)
	if err != nil {
		return nil, err
	}

	opts := []llms.CallOption{
		llms.WithTemperature(cfg.Options.Temperature),
		llms.WithTopP(cfg.Options.TopP),
		llms.WithRepetitionPenalty(cfg.Options.RepeatPenalty),
	}
	if cfg.Options.NumPredict != 0 {
		opts = append(opts, llms.WithMaxTokens(cfg.Options.NumPredict))
	}
	return &LangchainStreamer{llm: llm, opts: opts}, nil
}

func (s *LangchainStreamer) Stream(ctx context.Context, prompt string) (string, error) {
	var streamed strings.Builder
	opts := append(append([]llms.CallOption(nil), s.opts...),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			streamed.Write(chunk)
			return nil
		}),
	)
	out, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt, opts...)
	if err != nil {
		return "", err
	}
	if streamed.Len() > 0 {
		return streamed.String(), nil
	}
	return out, nil
}
