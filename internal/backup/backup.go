package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sethvargo/go-retry"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration. Backups are disabled unless
// the bucket, credentials, and passphrase are all set.
type Config struct {
	S3            S3Config
	DBPath        string
	Passphrase    string
	Prefix        string        // object key prefix, default "cairn"
	Interval      time.Duration // default 24h
	RetentionDays int           // default 30
}

// Manager takes encrypted snapshots of the hub database and uploads them to
// S3-compatible storage on a fixed interval.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	db     *sql.DB
	client s3Client
	logger *slog.Logger

	lastBackup time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewManager creates a new backup manager. A nil-configured manager is
// valid: Start and RunNow become no-ops or errors rather than panics.
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	if cfg.Prefix == "" {
		cfg.Prefix = "cairn"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}

	m := &Manager{cfg: cfg, db: db, logger: logger}
	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether the manager has storage and a passphrase.
func (m *Manager) Enabled() bool {
	return m.client != nil
}

// LastBackup returns the completion time of the most recent successful backup.
func (m *Manager) LastBackup() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBackup
}

// Start begins the scheduled backup loop.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		m.logger.Info("backups disabled")
		return
	}

	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
				if err := m.Cleanup(ctx); err != nil {
					m.logger.Error("backup cleanup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunNow snapshots, encrypts, and uploads the database immediately.
func (m *Manager) RunNow(ctx context.Context) error {
	if !m.Enabled() {
		return fmt.Errorf("backup not configured")
	}

	snapshot := filepath.Join(os.TempDir(), fmt.Sprintf("cairn-backup-%d.db", time.Now().UnixNano()))
	defer os.Remove(snapshot)

	// VACUUM INTO writes a consistent snapshot without blocking writers.
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return err
	}
	encrypted, err := Encrypt(plaintext, m.cfg.Passphrase, salt)
	if err != nil {
		return fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := fmt.Sprintf("%s/backup-%s.db.enc", m.cfg.Prefix, time.Now().UTC().Format("2006-01-02T150405Z"))

	backoff := retry.WithMaxRetries(3, retry.NewExponential(2*time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(m.cfg.S3.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(encrypted),
			ContentLength: aws.Int64(int64(len(encrypted))),
		})
		if err != nil {
			return retry.RetryableError(fmt.Errorf("upload to s3: %w", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.lastBackup = time.Now().UTC()
	m.mu.Unlock()

	m.logger.Info("backup uploaded", "key", key, "size", len(encrypted))
	return nil
}

// Cleanup deletes uploaded backups older than the retention period.
func (m *Manager) Cleanup(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -m.cfg.RetentionDays)

	var token *string
	for {
		out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.cfg.S3.Bucket),
			Prefix:            aws.String(m.cfg.Prefix + "/"),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("list backups: %w", err)
		}

		for _, obj := range out.Contents {
			if !m.expired(obj, cutoff) {
				continue
			}
			if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(m.cfg.S3.Bucket),
				Key:    obj.Key,
			}); err != nil {
				m.logger.Warn("delete old backup", "key", aws.ToString(obj.Key), "error", err)
			}
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			return nil
		}
		token = out.NextContinuationToken
	}
}

func (m *Manager) expired(obj types.Object, cutoff time.Time) bool {
	if obj.LastModified == nil {
		return false
	}
	return obj.LastModified.Before(cutoff)
}
