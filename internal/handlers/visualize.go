package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/mckdm/transformer-serverless/internal/heatmap"
	"github.com/mckdm/transformer-serverless/internal/metrics"
)

const defaultVisualizationText = "The quick brown fox jumps over the lazy dog."

// VisualizeRequest is the POST body for the attention-visualization
// endpoint. head selects a single head; heads selects several. When both
// are absent every head of the layer is rendered.
type VisualizeRequest struct {
	Text  string `json:"text"`
	Layer int    `json:"layer"`
	Head  *int   `json:"head"`
	Heads []int  `json:"heads"`
}

// HeadImage is one rendered attention heatmap.
type HeadImage struct {
	Head int `json:"head"`
	// PNG is the base64-encoded image.
	PNG string `json:"image"`
}

// VisualizeResponse is the success body for the visualization endpoint.
type VisualizeResponse struct {
	Tokens     []string    `json:"tokens"`
	Layer      int         `json:"layer"`
	Images     []HeadImage `json:"images"`
	DurationMS int64       `json:"duration_ms"`
}

// VisualizeHandler serves attention-heatmap requests.
type VisualizeHandler struct {
	source  ModelSource
	metrics *metrics.Publisher
}

// NewVisualizeHandler creates a handler. pub may be nil to disable metric
// publication.
func NewVisualizeHandler(source ModelSource, pub *metrics.Publisher) *VisualizeHandler {
	return &VisualizeHandler{source: source, metrics: pub}
}

// Handle implements the Lambda handler signature for the visualization
// endpoint.
func (h *VisualizeHandler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req VisualizeRequest
	if event.Body != "" {
		if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
			return errorResponse(400, "invalid request body: %v", err)
		}
	}

	if req.Text == "" {
		req.Text = defaultVisualizationText
	}

	m, tok, loadTime, err := h.source.Load(ctx)
	if err != nil {
		log.Printf("ERROR failed to load model artifacts: %v", err)
		return errorResponse(500, "model unavailable")
	}
	if loadTime > 0 {
		h.metrics.ModelLoadTime(loadTime)
	}

	cfg := m.Config()
	if req.Layer < 0 || req.Layer >= cfg.NumLayers {
		return errorResponse(400, "layer must be in [0, %d), got %d", cfg.NumLayers, req.Layer)
	}

	heads := req.Heads
	if len(heads) == 0 {
		if req.Head != nil {
			heads = []int{*req.Head}
		} else {
			for i := 0; i < cfg.NumHeads; i++ {
				heads = append(heads, i)
			}
		}
	}
	for _, head := range heads {
		if head < 0 || head >= cfg.NumHeads {
			return errorResponse(400, "head must be in [0, %d), got %d", cfg.NumHeads, head)
		}
	}

	ids := tok.Encode(req.Text, true)
	if len(ids) > cfg.MaxSeqLen {
		return errorResponse(400, "text is longer than the %d-token context window", cfg.MaxSeqLen)
	}

	// Per-position labels for the heatmap axes, special tokens included.
	labels := make([]string, len(ids))
	for i, id := range ids {
		labels[i] = tok.Decode([]int{id}, false)
	}

	start := time.Now()
	_, attentions, err := m.Forward(ids)
	if err != nil {
		log.Printf("ERROR forward pass failed: %v", err)
		return errorResponse(500, "visualization failed")
	}

	images := make([]HeadImage, 0, len(heads))
	for _, head := range heads {
		png, err := heatmap.Render(attentions[req.Layer][head], labels, req.Layer, head)
		if err != nil {
			log.Printf("ERROR heatmap rendering failed: %v", err)
			return errorResponse(500, "visualization failed")
		}
		images = append(images, HeadImage{
			Head: head,
			PNG:  base64.StdEncoding.EncodeToString(png),
		})
	}
	elapsed := time.Since(start)

	log.Printf("rendered %d heatmaps for layer %d in %s (tokens=%d)",
		len(images), req.Layer, elapsed, len(ids))
	h.metrics.VisualizationLatency(elapsed)

	return jsonResponse(200, VisualizeResponse{
		Tokens:     labels,
		Layer:      req.Layer,
		Images:     images,
		DurationMS: elapsed.Milliseconds(),
	})
}
