package utils

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"crm-backoffice/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestR2Storage_Put(t *testing.T) {
	var gotPath, gotMethod, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewR2Storage(context.Background(), config.R2Config{
		AccountID:       "acct",
		AccessKeyID:     "key",
		AccessKeySecret: "secret",
		Bucket:          "crm",
		CDNBaseURL:      "https://cdn.example.com",
	}, srv.URL)
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "exports/ada/wal_1.csv", "text/csv", []byte("a,b\n"))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/crm/exports/ada/wal_1.csv", gotPath)
	assert.Equal(t, "text/csv", gotType)
	assert.Equal(t, "a,b\n", string(gotBody))
	assert.Equal(t, "https://cdn.example.com/exports/ada/wal_1.csv", url)
}

func TestR2Storage_PutSurfacesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	store, err := NewR2Storage(context.Background(), config.R2Config{
		AccessKeyID: "key", AccessKeySecret: "secret", Bucket: "crm",
	}, srv.URL)
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "k", "text/csv", []byte("x"))
	assert.ErrorContains(t, err, "failed to upload to R2")
}
