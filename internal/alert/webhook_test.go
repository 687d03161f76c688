package alert

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSinkPostsFormData(t *testing.T) {
	var gotChatID, gotText, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotChatID = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, 5*time.Second)
	require.NoError(t, sink.Send(context.Background(), "ops-room", "[WARNING] disk full"))

	assert.Equal(t, "ops-room", gotChatID)
	assert.Equal(t, "[WARNING] disk full", gotText)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
}

func TestWebhookSinkNonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "chat not found", http.StatusNotFound)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, 5*time.Second)
	err := sink.Send(context.Background(), "ops-room", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "chat not found")
}

func TestWebhookSinkTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, 50*time.Millisecond)
	err := sink.Send(context.Background(), "ops-room", "hello")
	assert.Error(t, err)
}
