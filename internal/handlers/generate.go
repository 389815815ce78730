package handlers

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/mckdm/transformer-serverless/internal/metrics"
	"github.com/mckdm/transformer-serverless/internal/model"
	"github.com/mckdm/transformer-serverless/internal/tokenizer"
)

// ModelSource yields the process-cached model and tokenizer. The returned
// duration is non-zero only when this call performed the cold-start load.
// *artifact.Loader is the production implementation.
type ModelSource interface {
	Load(ctx context.Context) (*model.Model, *tokenizer.Tokenizer, time.Duration, error)
}

// Generation defaults when the request omits a field.
const (
	defaultPrompt      = "Once upon a time"
	defaultMaxTokens   = 50
	defaultTemperature = 0.8
	defaultTopK        = 40
	maxTokensLimit     = 512
)

// GenerateRequest is the POST body for the text-generation endpoint.
// max_length is an accepted alias for max_tokens kept for older clients.
type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   *int     `json:"max_tokens"`
	MaxLength   *int     `json:"max_length"`
	Temperature *float64 `json:"temperature"`
	TopK        *int     `json:"top_k"`
}

// GenerateResponse is the success body for the text-generation endpoint.
type GenerateResponse struct {
	GeneratedText string `json:"generated_text"`
	Prompt        string `json:"prompt"`
	TokenCount    int    `json:"token_count"`
	DurationMS    int64  `json:"duration_ms"`
}

// GenerateHandler serves text generation requests.
type GenerateHandler struct {
	source  ModelSource
	metrics *metrics.Publisher
	rng     *rand.Rand
}

// NewGenerateHandler creates a handler. pub may be nil to disable metric
// publication.
func NewGenerateHandler(source ModelSource, pub *metrics.Publisher) *GenerateHandler {
	return &GenerateHandler{
		source:  source,
		metrics: pub,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Handle implements the Lambda handler signature for the generation endpoint.
func (h *GenerateHandler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req GenerateRequest
	if event.Body != "" {
		if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
			return errorResponse(400, "invalid request body: %v", err)
		}
	}

	if req.Prompt == "" {
		req.Prompt = defaultPrompt
	}

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	} else if req.MaxLength != nil {
		maxTokens = *req.MaxLength
	}
	if maxTokens <= 0 || maxTokens > maxTokensLimit {
		return errorResponse(400, "max_tokens must be in [1, %d], got %d", maxTokensLimit, maxTokens)
	}

	sampleCfg := model.SampleConfig{Temperature: defaultTemperature, TopK: defaultTopK}
	if req.Temperature != nil {
		sampleCfg.Temperature = *req.Temperature
	}
	if req.TopK != nil {
		sampleCfg.TopK = *req.TopK
	}
	if sampleCfg.Temperature < 0 {
		return errorResponse(400, "temperature must be >= 0, got %g", sampleCfg.Temperature)
	}
	if sampleCfg.TopK < 0 {
		return errorResponse(400, "top_k must be >= 0, got %d", sampleCfg.TopK)
	}

	m, tok, loadTime, err := h.source.Load(ctx)
	if err != nil {
		log.Printf("ERROR failed to load model artifacts: %v", err)
		return errorResponse(500, "model unavailable")
	}
	if loadTime > 0 {
		h.metrics.ModelLoadTime(loadTime)
	}

	// The prompt opens with BOS but is not closed with EOS; generation
	// continues the sequence rather than starting after a terminator.
	ids := append([]int{tokenizer.BosID}, tok.Encode(req.Prompt, false)...)
	if len(ids) >= m.Config().MaxSeqLen {
		return errorResponse(400, "prompt is longer than the %d-token context window", m.Config().MaxSeqLen)
	}

	start := time.Now()
	out, err := m.Generate(ids, maxTokens, sampleCfg, h.rng)
	if err != nil {
		log.Printf("ERROR generation failed: %v", err)
		return errorResponse(500, "generation failed")
	}
	elapsed := time.Since(start)

	generated := len(out) - len(ids)
	log.Printf("generated %d tokens in %s (prompt tokens=%d)", generated, elapsed, len(ids))

	h.metrics.InferenceLatency(elapsed)
	h.metrics.TokensGenerated(generated)

	return jsonResponse(200, GenerateResponse{
		GeneratedText: tok.Decode(out, true),
		Prompt:        req.Prompt,
		TokenCount:    generated,
		DurationMS:    elapsed.Milliseconds(),
	})
}
