package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-moderation/pkg/simplemoderation"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/api"
	queuememory "github.com/tendant/simple-moderation/pkg/simplemoderation/queue/memory"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/repo/memory"
)

func setupServer(t *testing.T) (*httptest.Server, simplemoderation.Service) {
	queue := queuememory.New()
	t.Cleanup(func() { queue.Close() })

	svc, err := simplemoderation.New(
		simplemoderation.WithRepository(memory.New()),
		simplemoderation.WithQueue(queue),
	)
	require.NoError(t, err)

	handler := api.NewModerationHandler(svc)
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	return server, svc
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestSubmitContentEndpoint(t *testing.T) {
	server, _ := setupServer(t)

	t.Run("valid submission returns 201", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, server.URL+"/contents", api.SubmitContentRequest{
			Text:     "hello world",
			Language: "en",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		body := decodeBody(t, resp)

		// data is the bare content row, message its top-level sibling.
		data, ok := body["data"].(map[string]interface{})
		require.True(t, ok)
		assert.NotEmpty(t, data["id"])
		assert.Equal(t, "hello world", data["text"])
		assert.Equal(t, "web", data["source"])
		assert.NotEmpty(t, body["message"])
	})

	t.Run("invalid submission returns field errors", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, server.URL+"/contents", api.SubmitContentRequest{
			Text:     "",
			Language: "toolong",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.NotEmpty(t, body["error"])

		fields, ok := body["fields"].([]interface{})
		require.True(t, ok)
		assert.Len(t, fields, 2)
	})

	t.Run("malformed json returns 400", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/contents", "application/json", strings.NewReader("{not json"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetContentEndpoint(t *testing.T) {
	server, svc := setupServer(t)
	ctx := context.Background()

	content, err := svc.SubmitContent(ctx, simplemoderation.SubmitContentRequest{
		Text:     "fetch me",
		Language: "en",
	})
	require.NoError(t, err)

	t.Run("existing content joined with moderation", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/contents/" + content.ID.String())
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, content.ID.String(), data["id"])
		assert.Nil(t, data["moderation"])
	})

	t.Run("unknown id returns 404", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/contents/" + uuid.NewString())
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/contents/not-a-uuid")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestListContentEndpoint(t *testing.T) {
	server, svc := setupServer(t)
	ctx := context.Background()

	_, err := svc.SubmitContent(ctx, simplemoderation.SubmitContentRequest{Text: "one", Language: "en"})
	require.NoError(t, err)
	second, err := svc.SubmitContent(ctx, simplemoderation.SubmitContentRequest{Text: "deux", Language: "fr"})
	require.NoError(t, err)

	_, err = svc.ApplyModeration(ctx, second.ID, simplemoderation.ApplyModerationRequest{
		Status: simplemoderation.StatusApproved,
	})
	require.NoError(t, err)

	t.Run("unfiltered list", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/contents")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		data := body["data"].([]interface{})
		assert.Len(t, data, 2)
	})

	t.Run("language filter", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/contents?language=fr")
		require.NoError(t, err)
		body := decodeBody(t, resp)
		data := body["data"].([]interface{})
		require.Len(t, data, 1)

		item := data[0].(map[string]interface{})
		assert.Equal(t, "deux", item["text"])
		moderation := item["moderation"].(map[string]interface{})
		assert.Equal(t, "approved", moderation["status"])
	})

	t.Run("status filter", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/contents?status=pending")
		require.NoError(t, err)
		body := decodeBody(t, resp)
		data := body["data"].([]interface{})
		require.Len(t, data, 1)
		item := data[0].(map[string]interface{})
		assert.Equal(t, "one", item["text"])
	})

	t.Run("invalid status filter returns 400", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/contents?status=banana")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestUpdateContentEndpoint(t *testing.T) {
	server, svc := setupServer(t)
	ctx := context.Background()

	content, err := svc.SubmitContent(ctx, simplemoderation.SubmitContentRequest{
		Text:     "before",
		Language: "en",
	})
	require.NoError(t, err)

	t.Run("partial update", func(t *testing.T) {
		newText := "after"
		resp := doJSON(t, http.MethodPatch, server.URL+"/contents/"+content.ID.String(), api.UpdateContentRequest{
			Text: &newText,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "after", data["text"])
		assert.Equal(t, "en", data["language"])
	})

	t.Run("unknown id returns 404", func(t *testing.T) {
		newText := "nope"
		resp := doJSON(t, http.MethodPatch, server.URL+"/contents/"+uuid.NewString(), api.UpdateContentRequest{
			Text: &newText,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestDeleteContentEndpoint(t *testing.T) {
	server, svc := setupServer(t)
	ctx := context.Background()

	content, err := svc.SubmitContent(ctx, simplemoderation.SubmitContentRequest{
		Text:     "short lived",
		Language: "en",
	})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodDelete, server.URL+"/contents/"+content.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "short lived", data["text"])

	resp = doJSON(t, http.MethodDelete, server.URL+"/contents/"+content.ID.String(), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApplyModerationEndpoint(t *testing.T) {
	server, svc := setupServer(t)
	ctx := context.Background()

	content, err := svc.SubmitContent(ctx, simplemoderation.SubmitContentRequest{
		Text:     "judge me",
		Language: "en",
	})
	require.NoError(t, err)

	moderationURL := server.URL + "/contents/" + content.ID.String() + "/moderation"

	t.Run("first decision returns 201", func(t *testing.T) {
		confidence := 75
		resp := doJSON(t, http.MethodPost, moderationURL, api.ApplyModerationRequest{
			Status:     "rejected",
			Categories: []string{"spam"},
			Confidence: &confidence,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		body := decodeBody(t, resp)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "rejected", data["status"])
		assert.Equal(t, float64(75), data["confidence"])
		assert.NotEmpty(t, body["message"])
	})

	t.Run("second decision upserts", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, moderationURL, api.ApplyModerationRequest{
			Status: "approved",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()

		result, err := svc.GetModeration(ctx, content.ID)
		require.NoError(t, err)
		assert.Equal(t, simplemoderation.StatusApproved, result.Status)

		stats, err := svc.ModerationStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Total)
	})

	t.Run("invalid status returns 400", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, moderationURL, api.ApplyModerationRequest{
			Status: "banana",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown content returns 404", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, server.URL+"/contents/"+uuid.NewString()+"/moderation", api.ApplyModerationRequest{
			Status: "approved",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestModerationStatsEndpoint(t *testing.T) {
	server, svc := setupServer(t)
	ctx := context.Background()

	content, err := svc.SubmitContent(ctx, simplemoderation.SubmitContentRequest{
		Text:     "counted",
		Language: "en",
	})
	require.NoError(t, err)

	confidence := 50
	_, err = svc.ApplyModeration(ctx, content.ID, simplemoderation.ApplyModerationRequest{
		Status:     simplemoderation.StatusApproved,
		Confidence: &confidence,
	})
	require.NoError(t, err)

	resp, err := http.Get(server.URL + "/moderation/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(1), data["approved"])
	assert.Equal(t, float64(50), data["average_confidence"])
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := setupServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
}
