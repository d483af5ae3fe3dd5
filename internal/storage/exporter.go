// Package storage exports assembled documents to S3 and reads them back.
package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"

	"github.com/local/llmarxiv/internal/arxiv"
	"github.com/local/llmarxiv/internal/assembler"
)

// DefaultPrefix is the key prefix for exports.
const DefaultPrefix = "llm-arxiv"

// Options configures the exporter.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
	Prefix    string
	// Password enables AES-GCM encryption of every object when set.
	Password  string
	AccessKey string
	SecretKey string
}

type uploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type downloadAPI interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

type bucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Exporter writes documents under <prefix>/<paper>/<run>/.
type Exporter struct {
	bucket   string
	prefix   string
	password string
	up       uploadAPI
	down     downloadAPI
	head     bucketAPI
}

// NewExporter builds an S3 client from the default AWS config chain, with
// optional static credentials and a custom endpoint for S3-compatible stores.
func NewExporter(ctx context.Context, o Options) (*Exporter, error) {
	if o.Bucket == "" {
		return nil, errors.New("export bucket is not configured")
	}
	var loadOpts []func(*awscfg.LoadOptions) error
	if o.Region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(o.Region))
	}
	if o.AccessKey != "" && o.SecretKey != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
		}
		so.UsePathStyle = o.PathStyle
	})
	return newExporter(o, manager.NewUploader(client), manager.NewDownloader(client), client), nil
}

func newExporter(o Options, up uploadAPI, down downloadAPI, head bucketAPI) *Exporter {
	prefix := strings.Trim(o.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Exporter{bucket: o.Bucket, prefix: prefix, password: o.Password, up: up, down: down, head: head}
}

// Bucket returns the configured bucket name.
func (e *Exporter) Bucket() string { return e.bucket }

// Encrypted reports whether exports are encrypted.
func (e *Exporter) Encrypted() bool { return e.password != "" }

// Ping checks that the bucket exists and is reachable.
func (e *Exporter) Ping(ctx context.Context) error {
	_, err := e.head.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(e.bucket)})
	return err
}

// Manifest lists what an export contains.
type Manifest struct {
	PaperID     string          `json:"paper_id"`
	RunID       string          `json:"run_id"`
	Title       string          `json:"title,omitempty"`
	Source      string          `json:"source"`
	Document    string          `json:"document"`
	Encrypted   bool            `json:"encrypted"`
	CreatedAt   time.Time       `json:"created_at"`
	Stats       assembler.Stats `json:"stats"`
	Attachments []ManifestEntry `json:"attachments"`
}

// ManifestEntry describes one exported attachment.
type ManifestEntry struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
	MediaType   string `json:"media_type"`
	ContentID   string `json:"content_id"`
	Size        int    `json:"size"`
	GlobalIndex int    `json:"global_index"`
	Page        int    `json:"page"`
}

// ContentID is a short content hash used to identify attachment bytes.
func ContentID(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

func (e *Exporter) runPrefix(paperID, runID string) string {
	return path.Join(e.prefix, strings.ReplaceAll(paperID, "/", "_"), runID)
}

// Export uploads the document text, its attachments and a manifest. It
// returns the manifest key.
func (e *Exporter) Export(ctx context.Context, runID string, paper *arxiv.Paper, doc *assembler.Document) (string, error) {
	base := e.runPrefix(paper.ID, runID)
	m := Manifest{
		PaperID:   paper.ID,
		RunID:     runID,
		Title:     paper.Title,
		Source:    doc.Source,
		Document:  path.Join(base, "document.md"),
		Encrypted: e.Encrypted(),
		CreatedAt: time.Now().UTC(),
		Stats:     doc.Stats,
	}

	if err := e.put(ctx, m.Document, "text/markdown; charset=utf-8", []byte(doc.Text)); err != nil {
		return "", err
	}
	for _, a := range doc.Attachments {
		entry := ManifestEntry{
			Key:         path.Join(base, "images", a.Name),
			Name:        a.Name,
			Placeholder: a.Placeholder,
			MediaType:   a.MediaType,
			ContentID:   ContentID(a.Data),
			Size:        len(a.Data),
			GlobalIndex: a.GlobalIndex,
			Page:        a.Page,
		}
		if err := e.put(ctx, entry.Key, a.MediaType, a.Data); err != nil {
			return "", err
		}
		m.Attachments = append(m.Attachments, entry)
	}

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	key := path.Join(base, "manifest.json")
	if err := e.put(ctx, key, "application/json", raw); err != nil {
		return "", err
	}

	log.Info().
		Str("bucket", e.bucket).
		Str("key", key).
		Int("attachments", len(m.Attachments)).
		Bool("encrypted", m.Encrypted).
		Msg("exported document")
	return key, nil
}

func (e *Exporter) put(ctx context.Context, key, contentType string, data []byte) error {
	meta := map[string]string{"content-type": contentType}
	body := data
	if e.Encrypted() {
		enc, err := Seal(data, e.password)
		if err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", key, err)
		}
		body = enc
		meta["encrypted"] = "true"
		meta["encryption-format"] = gcmMagic
		contentType = "application/octet-stream"
	}
	_, err := e.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	log.Debug().Str("key", key).Int("size", len(body)).Msg("uploaded object")
	return nil
}

// Fetch downloads key and decrypts it when it carries the GCM header.
func (e *Exporter) Fetch(ctx context.Context, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	if _, err := e.down.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	data := buf.Bytes()
	if !IsEncrypted(data) {
		return data, nil
	}
	if e.password == "" {
		return nil, fmt.Errorf("object %s is encrypted and no password is configured", key)
	}
	plain, err := Open(data, e.password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	return plain, nil
}
