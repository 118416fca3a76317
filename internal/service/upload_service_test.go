package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/textproto"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steinsgo/personal-site/internal/tasks"
)

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func fileInput(data []byte, contentType string) UploadInput {
	header := &multipart.FileHeader{
		Filename: "pic",
		Header:   textproto.MIMEHeader{},
		Size:     int64(len(data)),
	}
	if contentType != "" {
		header.Header.Set("Content-Type", contentType)
	}
	return UploadInput{User: author, File: memFile{bytes.NewReader(data)}, Header: header}
}

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 64)...)

func newUploadFixture(maxBytes int64) (*UploadService, *fakeUploads, *fakeBlobs, *fakeQueue) {
	records := newFakeUploads()
	blobs := newFakeBlobs()
	queue := &fakeQueue{}
	svc := NewUploadService(records, blobs, queue, "/uploads/", maxBytes, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }
	return svc, records, blobs, queue
}

func TestUploadStoresImage(t *testing.T) {
	svc, records, blobs, queue := newUploadFixture(1024)
	ctx := context.Background()

	res, err := svc.Upload(ctx, fileInput(pngBytes, "image/png"))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^/uploads/2025/03/01/[0-9A-Za-z]{27}\.png$`), res.URL)
	assert.Equal(t, "image/png", res.Upload.MIME)
	assert.Equal(t, int64(len(pngBytes)), res.Upload.SizeBytes)
	assert.Len(t, res.Upload.Checksum, 32)
	assert.Contains(t, blobs.objects, res.Upload.ObjectKey)
	assert.Contains(t, records.uploads, res.Upload.ID)
	assert.Equal(t, []tasks.Task{{Type: tasks.TypeUploadCheck, UploadID: res.Upload.ID}}, queue.tasks)

	body, info, err := svc.Open(ctx, res.Upload.ObjectKey)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
	assert.Equal(t, "image/png", info.ContentType)
}

func TestUploadRejects(t *testing.T) {
	svc, records, _, _ := newUploadFixture(32)
	ctx := context.Background()

	cases := map[string]UploadInput{
		"too large": fileInput(pngBytes, "image/png"),
		"empty":     fileInput(nil, ""),
		"not image": fileInput([]byte("%PDF-1.7 hello"), "application/pdf"),
		"svg":       fileInput([]byte("<svg></svg>"), "image/svg+xml"),
		"mismatch":  fileInput([]byte("GIF89a\x01\x00\x01\x00"), "image/png"),
		"missing":   {User: author},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Upload(ctx, input)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "file", verr.Field)
		})
	}
	assert.Empty(t, records.uploads)
}

func TestUploadOpenRejectsTraversal(t *testing.T) {
	svc, _, _, _ := newUploadFixture(1024)
	ctx := context.Background()

	for _, key := range []string{"", "/", "../etc/passwd", "a/../../b", "a//b", "missing.png"} {
		_, _, err := svc.Open(ctx, key)
		assert.ErrorIs(t, err, ErrNotFound, key)
	}
}

func TestUploadVerify(t *testing.T) {
	svc, records, blobs, _ := newUploadFixture(1024)
	ctx := context.Background()

	res, err := svc.Upload(ctx, fileInput(pngBytes, ""))
	require.NoError(t, err)

	require.NoError(t, svc.Verify(ctx, res.Upload.ID))
	assert.Contains(t, records.uploads, res.Upload.ID)

	delete(blobs.objects, res.Upload.ObjectKey)
	require.NoError(t, svc.Verify(ctx, res.Upload.ID))
	assert.NotContains(t, records.uploads, res.Upload.ID)

	assert.NoError(t, svc.Verify(ctx, "unknown"))
}
