package llmservice

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/config"
)

// StatusError is a non-2xx answer from the generation endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed: %d, %s", e.Code, e.Body)
}

type generateRequest struct {
	Model   string                   `json:"model"`
	Prompt  string                   `json:"prompt"`
	Stream  bool                     `json:"stream"`
	Options config.GenerationOptions `json:"options"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// HTTPStreamer talks to the /api/generate endpoint and reads its newline-delimited JSON stream.
type HTTPStreamer struct {
	hc      *http.Client
	url     string
	model   string
	options config.GenerationOptions
}

func NewHTTPStreamer(cfg *config.OllamaConfig) *HTTPStreamer {
	return &HTTPStreamer{
		// per-attempt deadlines come from the context
		hc:      &http.Client{},
		url:     strings.TrimRight(cfg.BaseURL, "/") + "/api/generate",
		model:   cfg.Model,
		options: cfg.Options,
	}
}

func (s *HTTPStreamer) Stream(ctx context.Context, prompt string) (string, error) {
	jsonData, err := json.Marshal(generateRequest{
		Model:   s.model,
		Prompt:  prompt,
		Stream:  true,
		Options: s.options,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := s.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var response strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		line, readErr := reader.ReadString('\n')
		if chunk, ok := decodeChunk(line); ok {
			if chunk.Error != "" {
				return "", fmt.Errorf("ollama stream error: %s", chunk.Error)
			}
			response.WriteString(chunk.Response)
			if chunk.Done {
				break
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return "", readErr
		}
	}
	return response.String(), nil
}

// decodeChunk parses one stream line. Blank and malformed lines report false.
func decodeChunk(line string) (generateChunk, bool) {
	var chunk generateChunk
	line = strings.TrimSpace(line)
	if line == "" {
		return chunk, false
	}
	if err := json.Unmarshal([]byte(line), &chunk); err != nil {
		return chunk, false
	}
	return chunk, true
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Ping checks that the service answers on /api/tags and returns the names of the pulled models.
func Ping(ctx context.Context, baseURL string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		// reachable is all that matters here
		return nil, nil
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// HasModel reports whether model is among names; an untagged model matches ":latest".
func HasModel(names []string, model string) bool {
	for _, n := range names {
		if n == model || (!strings.Contains(model, ":") && n == model+":latest") {
			return true
		}
	}
	return false
}
