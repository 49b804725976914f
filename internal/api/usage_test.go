package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/auth"
	"github.com/marketlens/marketlens/internal/models"
)

func TestHandleUsageStatus(t *testing.T) {
	server, _, _ := setupTestServer(t)
	token := signupAndToken(t, server, "demo@example.com")

	resp := doJSON(t, server, "GET", "/api/usage/keywordsAnalyzed", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		UsageType string `json:"usage_type"`
		Status    struct {
			Allowed   bool `json:"allowed"`
			Current   int  `json:"current"`
			Limit     int  `json:"limit"`
			Remaining int  `json:"remaining"`
		} `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "keywordsAnalyzed", result.UsageType)
	assert.True(t, result.Status.Allowed)
	assert.Equal(t, 100, result.Status.Limit)
	assert.Equal(t, 100, result.Status.Remaining)
}

func TestHandleUsageStatusUnknownType(t *testing.T) {
	server, _, _ := setupTestServer(t)
	token := signupAndToken(t, server, "demo@example.com")

	resp := doJSON(t, server, "GET", "/api/usage/somethingElse", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleAnalyze(t *testing.T) {
	server, authCtx, events := setupTestServer(t)
	token := signupAndToken(t, server, "demo@example.com")

	resp := doJSON(t, server, "POST", "/api/analyze", token, models.AnalysisRequest{
		Message:      "analyze example.com",
		AnalysisType: models.AnalysisSEO,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Result struct {
			Fields map[string]interface{} `json:"fields"`
		} `json:"result"`
		Usage struct {
			Current int `json:"current"`
		} `json:"usage"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "ok", result.Result.Fields["summary"])
	assert.Equal(t, 1, result.Usage.Current)

	// The successful call was metered and reported.
	assert.Equal(t, 1, authCtx.Current().Usage(models.UsageKeywordsAnalyzed))
	assert.Len(t, events.Events, 1)
}

func TestHandleAnalyzeQuotaExceeded(t *testing.T) {
	server, authCtx, _ := setupTestServer(t)
	token := signupAndToken(t, server, "demo@example.com")

	// Exhaust the keyword quota directly.
	_, err := authCtx.UpdateProfile(context.Background(), auth.ProfilePatch{
		MonthlyUsage: map[models.UsageType]int{models.UsageKeywordsAnalyzed: 100},
	})
	require.NoError(t, err)

	resp := doJSON(t, server, "POST", "/api/analyze", token, models.AnalysisRequest{
		Message:      "analyze example.com",
		AnalysisType: models.AnalysisSEO,
	})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var result struct {
		Error           string `json:"error"`
		Current         int    `json:"current"`
		Limit           int    `json:"limit"`
		RecommendedTier string `json:"recommended_tier"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 100, result.Current)
	assert.Equal(t, 100, result.Limit)
	assert.Equal(t, "professional", result.RecommendedTier)
}

func TestHandleAnalyzeUnknownType(t *testing.T) {
	server, _, _ := setupTestServer(t)
	token := signupAndToken(t, server, "demo@example.com")

	resp := doJSON(t, server, "POST", "/api/analyze", token, models.AnalysisRequest{
		Message:      "analyze",
		AnalysisType: "horoscope",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
