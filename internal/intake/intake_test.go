package intake

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		MaxFileBytes: 1 << 20,
		MaxFiles:     5,
		SpoolDir:     t.TempDir(),
	}
}

func multipartRequest(t *testing.T, build func(w *multipart.Writer)) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	build(w)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/contact", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func writeFile(t *testing.T, w *multipart.Writer, field, name string, content []byte) {
	t.Helper()
	fw, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
}

func spoolCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestIngestNormalizesRepeatedFields(t *testing.T) {
	req := multipartRequest(t, func(w *multipart.Writer) {
		w.WriteField(FieldFirstName, "  Alice ")
		w.WriteField(FieldFirstName, "Bob")
		w.WriteField(FieldEmail, "a@example.com")
	})

	sub, err := Ingest(req, testOptions(t))
	require.NoError(t, err)

	assert.Equal(t, "Alice", sub.Get(FieldFirstName), "first value wins, trimmed")
	assert.Equal(t, "a@example.com", sub.Get(FieldEmail))
	assert.Empty(t, sub.Attachments)
}

func TestIngestMergesSingularAndPluralFileFields(t *testing.T) {
	opts := testOptions(t)
	req := multipartRequest(t, func(w *multipart.Writer) {
		writeFile(t, w, "image", "cuisine.JPG", []byte("first"))
		writeFile(t, w, "images", "salle-de-bain.png", []byte("second!"))
	})

	sub, err := Ingest(req, opts)
	require.NoError(t, err)
	require.Len(t, sub.Attachments, 2)

	assert.Equal(t, "cuisine.JPG", sub.Attachments[0].OriginalName)
	assert.Equal(t, "salle-de-bain.png", sub.Attachments[1].OriginalName)
	assert.Equal(t, int64(5), sub.Attachments[0].Size)
	assert.Equal(t, int64(7), sub.Attachments[1].Size)
	assert.True(t, strings.HasSuffix(sub.Attachments[0].Path, ".jpg"), "spool name keeps lowercased extension")

	// Spool paths are unique and actually on disk.
	assert.NotEqual(t, sub.Attachments[0].Path, sub.Attachments[1].Path)
	for _, att := range sub.Attachments {
		content, err := os.ReadFile(att.Path)
		require.NoError(t, err)
		assert.Equal(t, att.Size, int64(len(content)))
	}
}

func TestIngestRejectsOversizedTextField(t *testing.T) {
	req := multipartRequest(t, func(w *multipart.Writer) {
		w.WriteField(FieldFirstName, "Alice")
		w.WriteField(FieldMessage, string(bytes.Repeat([]byte("m"), maxFieldBytes+1)))
	})

	sub, err := Ingest(req, testOptions(t))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	require.NotNil(t, sub, "partial submission returned for reaping")
}

func TestIngestEnforcesPerFileCap(t *testing.T) {
	opts := testOptions(t)
	opts.MaxFileBytes = 100

	req := multipartRequest(t, func(w *multipart.Writer) {
		writeFile(t, w, "image", "small.jpg", bytes.Repeat([]byte("a"), 50))
		writeFile(t, w, "image", "big.jpg", bytes.Repeat([]byte("b"), 101))
	})

	sub, err := Ingest(req, opts)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	require.NotNil(t, sub, "partial submission returned for reaping")
	require.Len(t, sub.Attachments, 1, "only the in-cap file was spooled")

	// The oversized file's partial spool was removed immediately; the
	// caller reaps the rest.
	assert.Equal(t, 1, spoolCount(t, opts.SpoolDir))
	Reap(sub.Paths())
	assert.Equal(t, 0, spoolCount(t, opts.SpoolDir))
}

func TestIngestDropsUnusableFileParts(t *testing.T) {
	opts := testOptions(t)
	req := multipartRequest(t, func(w *multipart.Writer) {
		writeFile(t, w, "image", "", []byte("no filename"))
		writeFile(t, w, "unexpected", "x.bin", []byte("wrong field"))
		writeFile(t, w, "images", "ok.png", []byte("keep"))
		w.WriteField(FieldMessage, "hello")
	})

	sub, err := Ingest(req, opts)
	require.NoError(t, err)
	require.Len(t, sub.Attachments, 1)
	assert.Equal(t, "ok.png", sub.Attachments[0].OriginalName)
	assert.Equal(t, "hello", sub.Get(FieldMessage))
	assert.Equal(t, 1, spoolCount(t, opts.SpoolDir), "dropped parts never touch the spool")
}

func TestIngestDropsFilesBeyondLimit(t *testing.T) {
	opts := testOptions(t)
	opts.MaxFiles = 2

	req := multipartRequest(t, func(w *multipart.Writer) {
		writeFile(t, w, "image", "1.jpg", []byte("one"))
		writeFile(t, w, "image", "2.jpg", []byte("two"))
		writeFile(t, w, "image", "3.jpg", []byte("three"))
	})

	sub, err := Ingest(req, opts)
	require.NoError(t, err)
	require.Len(t, sub.Attachments, 2)
	assert.Equal(t, "1.jpg", sub.Attachments[0].OriginalName)
	assert.Equal(t, "2.jpg", sub.Attachments[1].OriginalName)
	assert.Equal(t, 2, spoolCount(t, opts.SpoolDir))
}

func TestIngestMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")

	sub, err := Ingest(req, testOptions(t))
	assert.ErrorIs(t, err, ErrMalformedBody)
	assert.Nil(t, sub)
}

func TestIngestTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField(FieldFirstName, "Alice")
	// Deliberately not closed: missing terminal boundary.
	body := buf.String()

	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	req.Header.Set("Content-Type", w.FormDataContentType())

	_, err := Ingest(req, testOptions(t))
	assert.ErrorIs(t, err, ErrMalformedBody)
}

func TestMissingFields(t *testing.T) {
	sub := &Submission{Fields: map[string]string{
		FieldFirstName: "Alice",
		FieldLastName:  "   ",
		FieldEmail:     "a@example.com",
	}}

	missing := sub.MissingFields()
	assert.Equal(t, []string{FieldLastName, FieldMessage}, missing)

	sub.Fields[FieldLastName] = "Doe"
	sub.Fields[FieldMessage] = "Need a quote"
	assert.Empty(t, sub.MissingFields())
}

func TestReapIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spool-file.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	Reap([]string{path, "", filepath.Join(dir, "never-existed")})
	assert.NoFileExists(t, path)

	// Second reap of the same set must not escalate.
	Reap([]string{path})
}

func TestSafeExt(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"photo.JPG", ".jpg"},
		{"archive.tar.gz", ".gz"},
		{"noext", ""},
		{"weird.j p g", ""},
		{"dotfile.", ""},
		{"x.verylongextension", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, safeExt(tc.name), "safeExt(%q)", tc.name)
	}
}
