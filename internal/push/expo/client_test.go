package expo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/saferoute/internal/push"
	"github.com/saferoute/saferoute/internal/push/expo"
)

func newTestClient(baseURL string) *expo.Client {
	return expo.NewClient(expo.ClientConfig{
		AccessToken: "test-token",
		BaseURL:     baseURL,
		Logger:      zerolog.Nop(),
	})
}

func TestSendBatch_EmptyInputIsNoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty batch")
	}))
	defer server.Close()

	receipts, err := newTestClient(server.URL).SendBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, receipts)
}

func TestSendBatch_SendsMessagesAndDecodesTickets(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotMessages []push.Message

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotMessages))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"status":"ok"},{"status":"error","message":"DeviceNotRegistered"}]}`))
	}))
	defer server.Close()

	messages := []push.Message{
		{To: "ExponentPushToken[a]", Title: "t1", Body: "b1", Priority: "high"},
		{To: "ExponentPushToken[b]", Title: "t2", Body: "b2", Priority: "default"},
	}

	receipts, err := newTestClient(server.URL).SendBatch(context.Background(), messages)
	require.NoError(t, err)

	assert.Equal(t, "/push/send", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, messages, gotMessages)

	require.Len(t, receipts, 2)
	assert.Equal(t, push.DeliveryOK, receipts[0].Status)
	assert.Equal(t, push.DeliveryError, receipts[1].Status)
	assert.Equal(t, "DeviceNotRegistered", receipts[1].Message)
}

func TestSendBatch_NoAuthorizationWithoutToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":[{"status":"ok"}]}`))
	}))
	defer server.Close()

	client := expo.NewClient(expo.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	_, err := client.SendBatch(context.Background(), []push.Message{{To: "ExponentPushToken[a]"}})
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestSendBatch_UnexpectedStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	receipts, err := newTestClient(server.URL).SendBatch(context.Background(), []push.Message{{To: "ExponentPushToken[a]"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 400")
	assert.Nil(t, receipts)
}

func TestSendBatch_MalformedResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).SendBatch(context.Background(), []push.Message{{To: "ExponentPushToken[a]"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}
