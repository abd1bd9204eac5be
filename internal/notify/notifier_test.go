package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudAPINotifier_Send(t *testing.T) {
	var got textMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1234/messages", r.URL.Path)
		assert.Equal(t, "Bearer wa-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.1"}]}`))
	}))
	defer server.Close()

	n, err := NewCloudAPINotifier(CloudAPIConfig{
		Token: "wa-token", PhoneNumberID: "1234", BaseURL: server.URL, HTTPClient: server.Client(),
	}, nil)
	require.NoError(t, err)

	require.NoError(t, n.Send(context.Background(), "6281234567890", "Pesanan dikirim"))
	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "6281234567890", got.To)
	assert.Equal(t, "Pesanan dikirim", got.Text.Body)
}

func TestCloudAPINotifier_Errors(t *testing.T) {
	_, err := NewCloudAPINotifier(CloudAPIConfig{Token: "x"}, nil)
	assert.Error(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Recipient phone number not in allowed list"}}`))
	}))
	defer server.Close()

	n, err := NewCloudAPINotifier(CloudAPIConfig{
		Token: "wa-token", PhoneNumberID: "1234", BaseURL: server.URL, HTTPClient: server.Client(),
	}, nil)
	require.NoError(t, err)
	err = n.Send(context.Background(), "6281234567890", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed list")
}

func TestLinkNotifier_NeverFails(t *testing.T) {
	assert.NoError(t, NewLinkNotifier(nil).Send(context.Background(), "6281234567890", "hi"))
}
