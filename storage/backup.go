package storage

import (
	"context"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// BackupBucket ist der Teil des S3-Clients, den die Backup-Rotation braucht.
type BackupBucket interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ExpiredBackups gibt die Objekte zurück, die über die keep neuesten hinausgehen.
func ExpiredBackups(objects []types.Object, keep int) []types.Object {
	if keep < 0 {
		keep = 0
	}
	if len(objects) <= keep {
		return nil
	}
	sorted := append([]types.Object(nil), objects...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].LastModified, sorted[j].LastModified
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})
	return sorted[keep:]
}

// RotateBackups löscht alte Backups mit dem Präfix, die neuesten keep bleiben erhalten.
// Fehler beim Löschen einzelner Objekte werden nur protokolliert.
func RotateBackups(ctx context.Context, client BackupBucket, bucket, prefix string, keep int, logger *zap.Logger) (int, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []types.Object
	for {
		output, err := client.ListObjectsV2(ctx, input)
		if err != nil {
			return 0, err
		}
		for _, obj := range output.Contents {
			if obj.Key != nil && strings.HasPrefix(*obj.Key, prefix) {
				objects = append(objects, obj)
			}
		}
		if output.IsTruncated == nil || !*output.IsTruncated || output.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = output.NextContinuationToken
	}

	expired := ExpiredBackups(objects, keep)
	if len(expired) == 0 {
		logger.Info("Keine Rotation nötig", zap.Int("backups", len(objects)), zap.Int("keep", keep))
		return 0, nil
	}

	deleted := 0
	for _, obj := range expired {
		logger.Info("Lösche altes Backup", zap.String("key", *obj.Key))
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    obj.Key,
		})
		if err != nil {
			logger.Warn("Fehler beim Löschen", zap.String("key", *obj.Key), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}
