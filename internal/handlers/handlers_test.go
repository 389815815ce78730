package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/mckdm/transformer-serverless/internal/model"
	"github.com/mckdm/transformer-serverless/internal/tokenizer"
)

// stubSource serves fixed artifacts without S3.
type stubSource struct {
	m        *model.Model
	tok      *tokenizer.Tokenizer
	loadTime time.Duration
	err      error
}

func (s stubSource) Load(context.Context) (*model.Model, *tokenizer.Tokenizer, time.Duration, error) {
	return s.m, s.tok, s.loadTime, s.err
}

func newStubSource(t *testing.T) stubSource {
	t.Helper()

	tok, err := tokenizer.New(30)
	if err != nil {
		t.Fatalf("tokenizer.New failed: %v", err)
	}
	tok.BuildVocab([]string{
		"the quick brown fox jumps over the lazy dog .",
		"once upon a time there was a fox .",
	})

	cfg := model.Config{VocabSize: 30, DModel: 8, NumLayers: 2, NumHeads: 2, DFF: 16, MaxSeqLen: 32}
	m, err := model.New(cfg, 42)
	if err != nil {
		t.Fatalf("model.New failed: %v", err)
	}

	return stubSource{m: m, tok: tok}
}

func request(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{Body: body}
}

func TestGenerateHappyPath(t *testing.T) {
	h := NewGenerateHandler(newStubSource(t), nil)

	resp, err := h.Handle(context.Background(), request(`{"prompt":"the quick fox","max_tokens":5}`))
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}
	if resp.Headers["Access-Control-Allow-Origin"] != "*" {
		t.Error("missing CORS header")
	}

	var body GenerateResponse
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Prompt != "the quick fox" {
		t.Errorf("prompt = %q", body.Prompt)
	}
	if body.GeneratedText == "" {
		t.Error("empty generated_text")
	}
	if body.TokenCount < 0 || body.TokenCount > 5 {
		t.Errorf("token_count = %d, want within [0, 5]", body.TokenCount)
	}
}

func TestGenerateEmptyBodyUsesDefaults(t *testing.T) {
	h := NewGenerateHandler(newStubSource(t), nil)

	resp, err := h.Handle(context.Background(), request(""))
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}

	var body GenerateResponse
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatal(err)
	}
	if body.Prompt != defaultPrompt {
		t.Errorf("prompt = %q, want default %q", body.Prompt, defaultPrompt)
	}
}

func TestGenerateMaxLengthAlias(t *testing.T) {
	h := NewGenerateHandler(newStubSource(t), nil)

	resp, err := h.Handle(context.Background(), request(`{"prompt":"the dog","max_length":3}`))
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}

	var body GenerateResponse
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatal(err)
	}
	if body.TokenCount > 3 {
		t.Errorf("token_count = %d exceeds max_length 3", body.TokenCount)
	}
}

func TestGenerateRejectsMalformedJSON(t *testing.T) {
	h := NewGenerateHandler(newStubSource(t), nil)

	resp, _ := h.Handle(context.Background(), request(`{"prompt": nope}`))
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateRejectsBadParameters(t *testing.T) {
	h := NewGenerateHandler(newStubSource(t), nil)

	cases := []string{
		`{"max_tokens":0}`,
		`{"max_tokens":-3}`,
		`{"max_tokens":100000}`,
		`{"temperature":-1}`,
		`{"top_k":-1}`,
	}
	for _, body := range cases {
		resp, _ := h.Handle(context.Background(), request(body))
		if resp.StatusCode != 400 {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestGenerateModelUnavailable(t *testing.T) {
	h := NewGenerateHandler(stubSource{err: errors.New("s3 down")}, nil)

	resp, _ := h.Handle(context.Background(), request(`{"prompt":"hi"}`))
	if resp.StatusCode != 500 {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] == "" {
		t.Error("missing error message")
	}
}

func TestVisualizeHappyPath(t *testing.T) {
	h := NewVisualizeHandler(newStubSource(t), nil)

	resp, err := h.Handle(context.Background(), request(`{"text":"the quick fox","layer":1,"head":0}`))
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}

	var body VisualizeResponse
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Layer != 1 {
		t.Errorf("layer = %d, want 1", body.Layer)
	}
	if len(body.Images) != 1 || body.Images[0].Head != 0 {
		t.Fatalf("images = %+v, want one image for head 0", body.Images)
	}

	// Tokens include BOS/EOS wrapping.
	if body.Tokens[0] != tokenizer.BosToken || body.Tokens[len(body.Tokens)-1] != tokenizer.EosToken {
		t.Errorf("tokens = %v, want BOS...EOS wrapping", body.Tokens)
	}

	raw, err := base64.StdEncoding.DecodeString(body.Images[0].PNG)
	if err != nil {
		t.Fatalf("image is not valid base64: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
		t.Fatalf("image is not valid PNG: %v", err)
	}
}

func TestVisualizeDefaultsToAllHeads(t *testing.T) {
	src := newStubSource(t)
	h := NewVisualizeHandler(src, nil)

	resp, err := h.Handle(context.Background(), request(`{"text":"the dog"}`))
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}

	var body VisualizeResponse
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Images) != src.m.Config().NumHeads {
		t.Errorf("got %d images, want one per head (%d)", len(body.Images), src.m.Config().NumHeads)
	}
}

func TestVisualizeRejectsOutOfRangeSelection(t *testing.T) {
	h := NewVisualizeHandler(newStubSource(t), nil)

	cases := []string{
		`{"layer":99}`,
		`{"layer":-1}`,
		`{"head":99}`,
		`{"heads":[0,99]}`,
	}
	for _, body := range cases {
		resp, _ := h.Handle(context.Background(), request(body))
		if resp.StatusCode != 400 {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestVisualizeRejectsMalformedJSON(t *testing.T) {
	h := NewVisualizeHandler(newStubSource(t), nil)

	resp, _ := h.Handle(context.Background(), request(`{`))
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
