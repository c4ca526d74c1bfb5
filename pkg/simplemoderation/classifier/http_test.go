package classifier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-moderation/pkg/simplemoderation"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/classifier"
)

func TestClassifySuccess(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/moderate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":            "rejected",
			"categories":        []string{"spam", "scam"},
			"confidence":        95,
			"language_detected": "en",
		})
	}))
	defer server.Close()

	c := classifier.New(server.URL)
	verdict, err := c.Classify(context.Background(), "buy now!!!", "en")
	require.NoError(t, err)

	assert.Equal(t, "buy now!!!", gotBody["text"])
	assert.Equal(t, "en", gotBody["language"])

	assert.Equal(t, simplemoderation.StatusRejected, verdict.Status)
	assert.Equal(t, []string{"spam", "scam"}, verdict.Categories)
	assert.Equal(t, 95, verdict.Confidence)
	assert.Equal(t, "en", verdict.LanguageDetected)
	assert.Equal(t, int64(0), c.FailureCount())
}

func TestClassifyNilCategoriesBecomeEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":     "approved",
			"confidence": 80,
		})
	}))
	defer server.Close()

	c := classifier.New(server.URL)
	verdict, err := c.Classify(context.Background(), "fine", "en")
	require.NoError(t, err)

	assert.NotNil(t, verdict.Categories)
	assert.Empty(t, verdict.Categories)
}

func TestClassifyDegradesOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "remote error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
		{
			name: "unknown status value",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{"status": "banana"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := classifier.New(server.URL)
			verdict, err := c.Classify(context.Background(), "some text", "fr")

			// Failures degrade instead of propagating.
			require.NoError(t, err)
			require.NotNil(t, verdict)
			assert.Equal(t, simplemoderation.StatusNeedsReview, verdict.Status)
			assert.Empty(t, verdict.Categories)
			assert.Equal(t, 0, verdict.Confidence)
			assert.Equal(t, "fr", verdict.LanguageDetected)
			assert.Equal(t, int64(1), c.FailureCount())
		})
	}
}

func TestClassifyDegradesWhenUnreachable(t *testing.T) {
	// Point at a server that is already gone.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := classifier.New(server.URL)

	verdict, err := c.Classify(context.Background(), "some text", "en")
	require.NoError(t, err)
	assert.Equal(t, simplemoderation.StatusNeedsReview, verdict.Status)

	_, err = c.Classify(context.Background(), "more text", "en")
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.FailureCount())
}

func TestHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := classifier.New(server.URL)
	assert.True(t, c.Healthy(context.Background()))

	server.Close()
	assert.False(t, c.Healthy(context.Background()))
}
