package storage

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/shaiso/Lakerunner/internal/domain"
)

// Lake — клиент областей data lake.
type Lake struct {
	client *minio.Client
	cfg    Config
}

// NewLake создаёт клиент хранилища по конфигурации.
func NewLake(cfg Config) (*Lake, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("new minio client: %w", err)
	}
	return &Lake{client: client, cfg: cfg}, nil
}

// Bucket возвращает имя bucket для стадии lake.
func (l *Lake) Bucket(stage domain.Stage) (string, error) {
	switch stage {
	case domain.StageRaw:
		return l.cfg.BucketRaw, nil
	case domain.StageCleaned:
		return l.cfg.BucketCleaned, nil
	case domain.StageCurated:
		return l.cfg.BucketCurated, nil
	default:
		return "", fmt.Errorf("unknown stage: %s", stage)
	}
}

// EnsureAreas создаёт buckets областей, если их ещё нет.
func (l *Lake) EnsureAreas(ctx context.Context) error {
	for _, bucket := range []string{l.cfg.BucketRaw, l.cfg.BucketCleaned, l.cfg.BucketCurated} {
		if err := l.ensureBucket(ctx, bucket); err != nil {
			return fmt.Errorf("ensure bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// HasData проверяет, есть ли хотя бы один объект в области.
// Используется как guard перед стартом run: пустой raw означает,
// что трансформациям нечего обрабатывать.
func (l *Lake) HasData(ctx context.Context, stage domain.Stage) (bool, error) {
	bucket, err := l.Bucket(stage)
	if err != nil {
		return false, err
	}

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := l.client.ListObjects(listCtx, bucket, minio.ListObjectsOptions{
		Recursive: true,
		MaxKeys:   1,
	})
	for obj := range objects {
		if obj.Err != nil {
			return false, fmt.Errorf("list %s: %w", bucket, obj.Err)
		}
		return true, nil
	}
	return false, nil
}

func (l *Lake) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := l.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return l.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: l.cfg.Region})
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
