package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConf(t *testing.T, baseURL string) *Conf {
	t.Helper()
	conf, err := NewConf("test-token", "robynandgold", "website", "src/data/products.json", "main")
	require.NoError(t, err)
	return conf.WithBaseURL(baseURL)
}

func TestNewConf_Validation(t *testing.T) {
	_, err := NewConf("", "owner", "repo", "path", "main")
	require.Error(t, err)

	_, err = NewConf("token", "", "repo", "path", "main")
	require.Error(t, err)

	conf, err := NewConf("token", "owner", "repo", "path", "")
	require.NoError(t, err)
	assert.Equal(t, "main", conf.branch)
}

func TestGetFile(t *testing.T) {
	content := []byte(`[{"id": "A"}]`)
	// The API wraps base64 payloads with newlines every 60 chars; use an
	// embedded newline to make sure decoding strips it.
	encoded := base64.StdEncoding.EncodeToString(content)
	wrapped := encoded[:8] + "\n" + encoded[8:] + "\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/repos/robynandgold/website/contents/src/data/products.json", r.URL.Path)
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))

		json.NewEncoder(w).Encode(map[string]string{
			"content": wrapped,
			"sha":     "abc123",
		})
	}))
	defer server.Close()

	conf := newTestConf(t, server.URL)
	got, sha, err := conf.GetFile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, "abc123", sha)
}

func TestGetFile_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))
	defer server.Close()

	conf := newTestConf(t, server.URL)
	_, _, err := conf.GetFile(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not Found")
}

func TestPutFile(t *testing.T) {
	content := []byte(`[{"id": "A", "available": false}]`)

	var got putRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	conf := newTestConf(t, server.URL)
	err := conf.PutFile(context.Background(), content, "abc123", "Mark products as sold: A")

	require.NoError(t, err)
	assert.Equal(t, "Mark products as sold: A", got.Message)
	assert.Equal(t, "abc123", got.SHA)
	assert.Equal(t, "main", got.Branch)

	decoded, err := base64.StdEncoding.DecodeString(got.Content)
	require.NoError(t, err)
	assert.Equal(t, content, decoded)
}

func TestPutFile_StaleSHAIsConflict(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusUnprocessableEntity} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"message": "is at abc but expected def"}`)
		}))

		conf := newTestConf(t, server.URL)
		err := conf.PutFile(context.Background(), []byte("[]"), "stale", "msg")

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConflict)
		server.Close()
	}
}

func TestPutFile_OtherErrorIsNotConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "Bad credentials"}`)
	}))
	defer server.Close()

	conf := newTestConf(t, server.URL)
	err := conf.PutFile(context.Background(), []byte("[]"), "abc", "msg")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "Bad credentials")
}
