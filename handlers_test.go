package main

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newUploadRequest(t *testing.T, filename string, body []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", filename)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/fingerprint", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(maxUploadSize))
	return req
}

func TestSaveUploadUsesClientFilenameAsStableKey(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.MkdirAll(uploadsDir, 0o755))

	req := newUploadRequest(t, "song.wav", []byte("first version"))
	path, storedName, err := saveUpload(req)
	require.NoError(t, err)
	require.Equal(t, "song.wav", storedName)
	require.Equal(t, filepath.Join(uploadsDir, "song.wav"), path)

	entries, err := os.ReadDir(uploadsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestSaveUploadReplacesExistingFileOnReupload locks in the fix for uploads
// of the same filename colliding on the same catalog key: re-uploading
// "song.wav" must overwrite the stored file in place rather than mint a
// fresh name, so store.Enroll's upsert-by-filename semantics see the same
// key both times.
func TestSaveUploadReplacesExistingFileOnReupload(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.MkdirAll(uploadsDir, 0o755))

	first := newUploadRequest(t, "song.wav", []byte("first version"))
	path1, storedName1, err := saveUpload(first)
	require.NoError(t, err)

	second := newUploadRequest(t, "song.wav", []byte("second, different version"))
	path2, storedName2, err := saveUpload(second)
	require.NoError(t, err)

	require.Equal(t, storedName1, storedName2)
	require.Equal(t, path1, path2)

	entries, err := os.ReadDir(uploadsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "re-upload under the same filename must not create a second stored file")

	contents, err := os.ReadFile(path2)
	require.NoError(t, err)
	require.Equal(t, "second, different version", string(contents))
}

func TestSaveUploadSanitizesPathTraversalInFilename(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.MkdirAll(uploadsDir, 0o755))

	req := newUploadRequest(t, "../../etc/song.wav", []byte("data"))
	path, storedName, err := saveUpload(req)
	require.NoError(t, err)
	require.Equal(t, "song.wav", storedName)
	require.Equal(t, filepath.Join(uploadsDir, "song.wav"), path)
}
