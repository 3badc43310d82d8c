package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"deal-hand/storage"
)

const backupPrefix = "backup-"

type BackupConfig struct {
	PostgresHost     string `envconfig:"DB_HOST" required:"true"`
	PostgresPort     int    `envconfig:"DB_PORT" default:"5432"`
	PostgresUser     string `envconfig:"DB_USER" required:"true"`
	PostgresPassword string `envconfig:"DB_PASSWORD" required:"true"`
	PostgresDB       string `envconfig:"DB_NAME" required:"true"`
	BackupBucket     string `envconfig:"BACKUP_S3_BUCKET" required:"true"`
	BackupEndpoint   string `envconfig:"BACKUP_S3_ENDPOINT" required:"true"`
	BackupAccessKey  string `envconfig:"BACKUP_S3_ACCESS_KEY" required:"true"`
	BackupSecretKey  string `envconfig:"BACKUP_S3_SECRET_KEY" required:"true"`
	BackupRegion     string `envconfig:"BACKUP_S3_REGION" required:"true"`
	KeepBackups      int    `envconfig:"KEEP_BACKUPS" default:"4"`
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	logging.Info("Starte Backup-Prozess...")

	_ = godotenv.Load()
	var cfg BackupConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logging.Fatal("Fehler beim Laden der Konfiguration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	// 1. Datenbank-Dump erstellen
	dumpData, err := createDump(ctx, cfg)
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des DB-Dumps", zap.Error(err))
	}

	// 2. S3-Client erstellen
	s3Client, err := storage.NewS3Client(ctx, storage.S3Params{
		URL:    cfg.BackupEndpoint,
		Region: cfg.BackupRegion,
		Key:    cfg.BackupAccessKey,
		Secret: cfg.BackupSecretKey,
	})
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des S3-Clients", zap.Error(err))
	}

	// 3. Backup nach S3 hochladen
	fileName := fmt.Sprintf("%s%s.sql.gz", backupPrefix, time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	link, err := storage.UploadFile(ctx, s3Client, cfg.BackupEndpoint, cfg.BackupBucket, fileName, "application/gzip", dumpData)
	if err != nil {
		logging.Fatal("Fehler beim Hochladen nach S3", zap.Error(err))
	}
	logging.Info("Backup erfolgreich hochgeladen", zap.String("link", link), zap.Int("bytes", len(dumpData)))

	// 4. Alte Backups rotieren
	deleted, err := storage.RotateBackups(ctx, s3Client, cfg.BackupBucket, backupPrefix, cfg.KeepBackups, logging)
	if err != nil {
		logging.Fatal("Fehler bei der Rotation alter Backups", zap.Error(err))
	}

	logging.Info("Backup-Prozess erfolgreich abgeschlossen.", zap.Int("deleted", deleted))
}

func createDump(ctx context.Context, cfg BackupConfig) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.PostgresHost,
		"-p", fmt.Sprintf("%d", cfg.PostgresPort),
		"-U", cfg.PostgresUser,
		"-d", cfg.PostgresDB,
		"-w", // Passwort wird über PGPASSWORD bereitgestellt
	)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", cfg.PostgresPassword))
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if _, err := io.Copy(gzipWriter, stdout); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
