package vidcap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchCaption(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/youtube/caption", r.URL.Path)
		assert.Equal(t, "https://youtu.be/abc123", r.URL.Query().Get("url"))
		assert.Equal(t, "ko", r.URL.Query().Get("locale"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"content":"transcript text"}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key", "")
	caption, err := client.FetchCaption(context.Background(), "https://youtu.be/abc123")
	require.NoError(t, err)
	assert.Equal(t, "transcript text", caption)
}

func TestFetchCaptionEmptyContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"content":""}}`))
	}))
	defer ts.Close()

	// Absent captions are not an error
	client := NewClient(ts.URL, "", "en")
	caption, err := client.FetchCaption(context.Background(), "https://youtu.be/none")
	require.NoError(t, err)
	assert.Empty(t, caption)
}

func TestFetchCaptionServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", "")
	_, err := client.FetchCaption(context.Background(), "https://youtu.be/abc")
	assert.ErrorContains(t, err, "status 500")
}
