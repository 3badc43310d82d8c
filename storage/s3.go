package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3Params sind die Zugangsdaten für einen S3-kompatiblen Speicher.
type S3Params struct {
	URL    string
	Region string
	Key    string
	Secret string
}

// NewS3Client erstellt einen S3-Client für einen S3-kompatiblen Anbieter (z.B. Strato HiDrive).
// Ohne URL wird der Standard-Endpunkt von AWS verwendet.
func NewS3Client(ctx context.Context, p S3Params) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(p.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(p.Key, p.Secret, "")),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if p.URL != "" {
			o.BaseEndpoint = aws.String(p.URL)
			o.UsePathStyle = true
		}
	}), nil
}

// ObjectPutter ist der Teil des S3-Clients, den das Archiv braucht.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// UploadFile lädt Daten ins S3 hoch und gibt den Link zurück.
func UploadFile(ctx context.Context, client ObjectPutter, baseURL, bucket, key, contentType string, data []byte) (string, error) {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(baseURL, "/"), bucket, key), nil
}

// RunArchive legt für jeden Sync-Lauf eine JSON-Zusammenfassung im Bucket ab.
type RunArchive struct {
	Client  ObjectPutter
	BaseURL string
	Bucket  string
	Logger  *zap.Logger
	now     func() time.Time
}

// NewRunArchive erstellt ein Archiv für Sync-Läufe.
func NewRunArchive(client ObjectPutter, baseURL, bucket string, logger *zap.Logger) *RunArchive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunArchive{Client: client, BaseURL: baseURL, Bucket: bucket, Logger: logger, now: time.Now}
}

// ArchiveKey gibt den Objektschlüssel eines Laufs zurück: sync-runs/<yyyy>/<mm>/<run-id>.json
func ArchiveKey(at time.Time, runID string) string {
	at = at.UTC()
	return fmt.Sprintf("sync-runs/%04d/%02d/%s.json", at.Year(), int(at.Month()), runID)
}

// Archive serialisiert snapshot als JSON und lädt ihn hoch.
func (a *RunArchive) Archive(ctx context.Context, runID string, snapshot interface{}) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run snapshot: %w", err)
	}
	key := ArchiveKey(a.now(), runID)
	link, err := UploadFile(ctx, a.Client, a.BaseURL, a.Bucket, key, "application/json", data)
	if err != nil {
		return fmt.Errorf("uploading run snapshot %s: %w", key, err)
	}
	a.Logger.Info("Sync-Lauf archiviert", zap.String("run_id", runID), zap.String("link", link))
	return nil
}
