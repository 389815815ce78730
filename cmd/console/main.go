// Command console serves a small local web UI for trying the deployed
// endpoints: a text generation form and an attention heatmap viewer. It
// proxies browser requests to the API so the endpoint URLs and any future
// auth stay server-side.
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mckdm/transformer-serverless/internal/config"
)

func main() {
	cfg := config.Load()
	if cfg.GenerateURL == "" || cfg.AttentionURL == "" {
		log.Fatal("GENERATE_URL and ATTENTION_URL must be set")
	}

	client := &http.Client{Timeout: cfg.HTTPTimeout}

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
	})
	r.POST("/api/generate", proxy(client, cfg.GenerateURL))
	r.POST("/api/attention", proxy(client, cfg.AttentionURL))

	fmt.Printf("Console listening on %s\n", cfg.ConsoleAddr)
	if err := r.Run(cfg.ConsoleAddr); err != nil {
		log.Fatalf("console server failed: %v", err)
	}
}

// proxy forwards the request body to the upstream endpoint and relays the
// response, preserving the upstream status code.
func proxy(client *http.Client, url string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := client.Do(req)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("upstream request failed: %v", err)})
			return
		}
		defer resp.Body.Close()

		out, err := io.ReadAll(resp.Body)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to read upstream response"})
			return
		}
		log.Printf("%s -> %d (%.2fs)", url, resp.StatusCode, time.Since(start).Seconds())
		c.Data(resp.StatusCode, "application/json", out)
	}
}
