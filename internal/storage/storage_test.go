package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/llmarxiv/internal/arxiv"
	"github.com/local/llmarxiv/internal/assembler"
)

type memS3 struct {
	objects map[string][]byte
	meta    map[string]map[string]string
	headErr error
}

func newMemS3() *memS3 {
	return &memS3{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (m *memS3) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Key)] = b
	m.meta[aws.ToString(in.Key)] = in.Metadata
	return &manager.UploadOutput{}, nil
}

func (m *memS3) Download(_ context.Context, w io.WriterAt, in *s3.GetObjectInput, _ ...func(*manager.Downloader)) (int64, error) {
	b, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return 0, errors.New("NoSuchKey")
	}
	n, err := w.WriteAt(b, 0)
	return int64(n), err
}

func (m *memS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, m.headErr
}

func TestSealOpenRoundTrip(t *testing.T) {
	plain := []byte("# Mistral 7B\n\n[IMAGE: 2310.06825/page_1_img_1]")
	enc, err := Seal(plain, "hunter2")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(enc))
	assert.Len(t, enc, headerSize+len(plain)+tagSize)
	assert.NotContains(t, string(enc), "Mistral")

	got, err := Open(enc, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	_, err = Open(enc, "wrong")
	assert.Error(t, err)

	_, err = Open(plain, "hunter2")
	assert.ErrorIs(t, err, ErrNotEncrypted)

	_, err = Open([]byte(gcmMagic+"short"), "hunter2")
	assert.Error(t, err)

	_, err = Seal(plain, "")
	assert.Error(t, err)
}

func TestSealUsesFreshNonce(t *testing.T) {
	a, err := Seal([]byte("same"), "pw")
	require.NoError(t, err)
	b, err := Seal([]byte("same"), "pw")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func sampleDoc() (*arxiv.Paper, *assembler.Document) {
	paper := &arxiv.Paper{ID: "cs.CL/0101001", Title: "Old paper"}
	doc := &assembler.Document{
		Text:   "text [IMAGE: cs.CL/0101001/page_1_img_1]",
		Source: "http://arxiv.org/abs/cs.CL/0101001",
		Attachments: []assembler.Attachment{{
			Placeholder: "[IMAGE: cs.CL/0101001/page_1_img_1]",
			Name:        "page_1_img_1.png",
			MediaType:   "image/png",
			Data:        []byte("png-bytes"),
			GlobalIndex: 1,
			Page:        1,
		}},
		Stats: assembler.Stats{Pages: 1, Discovered: 1, Selected: 1, Kept: 1},
	}
	return paper, doc
}

func TestExportLayout(t *testing.T) {
	mem := newMemS3()
	e := newExporter(Options{Bucket: "b", Prefix: "/exports/"}, mem, mem, mem)
	paper, doc := sampleDoc()

	key, err := e.Export(context.Background(), "run-1", paper, doc)
	require.NoError(t, err)
	assert.Equal(t, "exports/cs.CL_0101001/run-1/manifest.json", key)
	assert.Equal(t, []byte(doc.Text), mem.objects["exports/cs.CL_0101001/run-1/document.md"])
	assert.Equal(t, []byte("png-bytes"), mem.objects["exports/cs.CL_0101001/run-1/images/page_1_img_1.png"])

	var m Manifest
	require.NoError(t, json.Unmarshal(mem.objects[key], &m))
	assert.Equal(t, "cs.CL/0101001", m.PaperID)
	assert.False(t, m.Encrypted)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, ContentID([]byte("png-bytes")), m.Attachments[0].ContentID)
	assert.Len(t, m.Attachments[0].ContentID, 32)
	assert.Equal(t, 1, m.Stats.Kept)
}

func TestExportEncryptedAndFetch(t *testing.T) {
	mem := newMemS3()
	e := newExporter(Options{Bucket: "b", Password: "pw"}, mem, mem, mem)
	paper, doc := sampleDoc()

	key, err := e.Export(context.Background(), "run-2", paper, doc)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(mem.objects[key]))
	assert.Equal(t, "true", mem.meta[key]["encrypted"])

	raw, err := e.Fetch(context.Background(), key)
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.True(t, m.Encrypted)
	assert.Equal(t, "llm-arxiv/cs.CL_0101001/run-2/document.md", m.Document)

	text, err := e.Fetch(context.Background(), m.Document)
	require.NoError(t, err)
	assert.Equal(t, doc.Text, string(text))

	noPw := newExporter(Options{Bucket: "b"}, mem, mem, mem)
	_, err = noPw.Fetch(context.Background(), key)
	assert.ErrorContains(t, err, "no password")
}

func TestFetchPlainAndMissing(t *testing.T) {
	mem := newMemS3()
	mem.objects["k"] = []byte("plain")
	e := newExporter(Options{Bucket: "b", Password: "pw"}, mem, mem, mem)

	got, err := e.Fetch(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("plain"), got))

	_, err = e.Fetch(context.Background(), "missing")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	mem := newMemS3()
	e := newExporter(Options{Bucket: "b"}, mem, mem, mem)
	assert.NoError(t, e.Ping(context.Background()))
	mem.headErr = errors.New("forbidden")
	assert.Error(t, e.Ping(context.Background()))
	assert.Equal(t, "b", e.Bucket())
}

func TestNewExporterRequiresBucket(t *testing.T) {
	_, err := NewExporter(context.Background(), Options{})
	assert.Error(t, err)
}
