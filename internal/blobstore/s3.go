// Пакет blobstore — работа с S3-совместимым хранилищем файлов.
// Сервис не проксирует содержимое файлов: клиент загружает напрямую
// по presigned PUT URL, сервис только выписывает URL и удаляет объекты.
package blobstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/arturkryukov/clientportal/internal/config"
)

// Store — интерфейс blob-хранилища для сервисного слоя.
type Store interface {
	// PresignPut выписывает presigned PUT URL для загрузки объекта.
	PresignPut(ctx context.Context, userID, fileHash string) (url string, expiresAt time.Time, err error)
	// Delete удаляет объект. Отсутствующий объект не считается ошибкой.
	Delete(ctx context.Context, userID, fileHash string) error
	// ObjectKey возвращает ключ объекта для пары (пользователь, хэш).
	ObjectKey(userID, fileHash string) string
}

// S3Store — реализация Store поверх aws-sdk-go-v2.
type S3Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	endpoint      string
	presignExpiry time.Duration
	logger        *slog.Logger
}

// New создаёт S3-клиент со статическими учётными данными
// и кастомным endpoint (MinIO и совместимые).
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации AWS SDK: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		// MinIO не поддерживает virtual-hosted style
		o.UsePathStyle = true
	})

	return &S3Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.S3Bucket,
		endpoint:      cfg.S3Endpoint,
		presignExpiry: cfg.S3PresignExpiry,
		logger:        logger.With(slog.String("component", "blobstore")),
	}, nil
}

// ObjectKey — ключ объекта: users/{userID}/uploads/{fileHash}.
func (s *S3Store) ObjectKey(userID, fileHash string) string {
	return fmt.Sprintf("users/%s/uploads/%s", userID, fileHash)
}

func (s *S3Store) PresignPut(ctx context.Context, userID, fileHash string) (string, time.Time, error) {
	key := s.ObjectKey(userID, fileHash)

	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignExpiry))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка создания presigned URL: %w", err)
	}

	expiresAt := time.Now().Add(s.presignExpiry)

	s.logger.Debug("Выписан presigned PUT URL",
		slog.String("key", key),
		slog.Time("expires_at", expiresAt),
	)

	return req.URL, expiresAt, nil
}

func (s *S3Store) Delete(ctx context.Context, userID, fileHash string) error {
	key := s.ObjectKey(userID, fileHash)

	// DeleteObject в S3 идемпотентен: удаление отсутствующего
	// объекта возвращает успех.
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}

	s.logger.Debug("Объект удалён из blob-хранилища", slog.String("key", key))
	return nil
}

// ReadinessChecker — проверка доступности S3 endpoint для health endpoint.
type ReadinessChecker struct {
	endpoint string
	client   *http.Client
}

// NewReadinessChecker создаёт проверку доступности S3.
func NewReadinessChecker(endpoint string) *ReadinessChecker {
	return &ReadinessChecker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 3 * time.Second},
	}
}

// CheckReady проверяет, что S3 endpoint отвечает на HTTP-запрос.
// Код ответа не важен: MinIO отвечает 403 на анонимный GET.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	resp, err := c.client.Get(c.endpoint)
	if err != nil {
		return "fail", fmt.Sprintf("S3 недоступен: %v", err)
	}
	defer resp.Body.Close()
	return "ok", "endpoint отвечает"
}
