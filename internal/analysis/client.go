package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/marketlens/marketlens/internal/models"
)

// Client calls the AI analysis backend. The backend returns opaque text that
// usually carries an embedded JSON object matching the analysis type's
// schema; the client extracts it best-effort and keeps the raw text either way.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type backendResponse struct {
	Response string `json:"response"`
	Content  string `json:"content"`
}

// Analyze posts the request and decodes the result. Non-2xx responses and
// transport failures are returned as plain errors for the caller to surface.
func (c *Client) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("analysis backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analysis backend returned status %d", resp.StatusCode)
	}

	var br backendResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return nil, fmt.Errorf("malformed analysis response: %w", err)
	}
	text := br.Response
	if text == "" {
		text = br.Content
	}

	result := &models.AnalysisResult{Text: text}
	embedded, ok := extractJSON(text)
	if !ok {
		c.logger.Info("analysis response carried no embedded JSON", "analysis_type", req.AnalysisType)
		return result, nil
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(embedded), &fields); err != nil {
		c.logger.Error("failed to decode embedded analysis JSON", "error", err)
		return result, nil
	}
	result.Fields = fields

	if req.AnalysisType == models.AnalysisSEO {
		var seo models.SEOAnalysis
		if err := json.Unmarshal([]byte(embedded), &seo); err == nil {
			result.SEO = &seo
		}
	}
	return result, nil
}

// extractJSON returns the first balanced top-level JSON object in text.
func extractJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
