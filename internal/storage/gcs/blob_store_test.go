package gcs_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/bing-daily-crawler/internal/storage/gcs"
)

func newTestClient(t *testing.T, handler http.Handler) *storage.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidation(t *testing.T) {
	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	assert.Error(t, err)

	client := newTestClient(t, http.NotFoundHandler())
	_, err = gcs.New(client, gcs.Config{})
	assert.Error(t, err)
}

func TestPutObject(t *testing.T) {
	objectData := []byte("jpeg-data")
	var gotName, gotUploadType string
	var gotBody []byte

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotName = r.URL.Query().Get("name")
		gotUploadType = r.URL.Query().Get("uploadType")
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprintln(w, `{ "name": "`+gotName+`" }`)
	}))

	store, err := gcs.New(client, gcs.Config{Bucket: "test-bucket", Prefix: "bing"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "img/latest/UHD.jpg", "image/jpeg", bytes.NewReader(objectData))
	require.NoError(t, err)
	assert.Equal(t, "gs://test-bucket/bing/img/latest/UHD.jpg", uri)
	assert.Equal(t, "bing/img/latest/UHD.jpg", gotName)
	assert.Equal(t, "multipart", gotUploadType)
	assert.Contains(t, string(gotBody), string(objectData))
	assert.Contains(t, string(gotBody), "image/jpeg")
}

func TestPutObjectServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	store, err := gcs.New(client, gcs.Config{Bucket: "test-bucket"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "img/x.jpg", "image/jpeg", bytes.NewReader([]byte("x")))
	assert.Error(t, err)
}

func TestPutObjectEmptyPath(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())
	store, err := gcs.New(client, gcs.Config{Bucket: "test-bucket"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), " ", "", bytes.NewReader(nil))
	assert.Error(t, err)
}
