package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"scoop_backend/internal/config"
	"scoop_backend/internal/model"
)

// PresignExpiry is how long an upload URL stays valid.
const PresignExpiry = 15 * time.Minute

// ObjectStore is the media bucket as seen by the services.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, size int64, expires time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

type s3API interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// R2ObjectStore talks to Cloudflare R2 through its S3-compatible API.
type R2ObjectStore struct {
	client    s3API
	presigner *s3.PresignClient
	bucket    string
	publicURL string
}

// NewR2ObjectStore constructs an S3-compatible client for Cloudflare R2.
func NewR2ObjectStore(ctx context.Context, cfg *config.Config) (*R2ObjectStore, error) {
	if !cfg.MediaEnabled() {
		return nil, fmt.Errorf("missing Cloudflare R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2ObjectStore{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.R2BucketName,
		publicURL: strings.TrimSuffix(cfg.R2PublicURL, "/"),
	}, nil
}

func (s *R2ObjectStore) PresignPut(ctx context.Context, key, contentType string, size int64, expires time.Duration) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	req, err := s.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign r2 upload: %w", err)
	}
	return req.URL, nil
}

// Delete removes an object by key. Empty keys and absolute URLs (legacy
// avatars hosted elsewhere) are ignored.
func (s *R2ObjectStore) Delete(ctx context.Context, key string) error {
	if key == "" || strings.Contains(key, "://") {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from r2: %w", err)
	}
	return nil
}

func (s *R2ObjectStore) PublicURL(key string) string {
	if key == "" || strings.Contains(key, "://") || s.publicURL == "" {
		return key
	}
	return s.publicURL + "/" + key
}

var mediaFolders = map[string]string{
	model.MediaPurposePost:   "posts",
	model.MediaPurposeAvatar: "avatars",
	model.MediaPurposeScoop:  strings.TrimSuffix(ScoopKeyPrefix, "/"),
}

// MediaService hands out presigned upload URLs. Clients upload straight to
// the bucket and then reference the returned key.
type MediaService struct {
	objects ObjectStore // nil when R2 is not configured
	logger  *zap.Logger
}

func NewMediaService(objects ObjectStore, logger *zap.Logger) *MediaService {
	return &MediaService{objects: objects, logger: logger.Named("media")}
}

// Presign validates the upload and returns a PUT URL for a fresh key under
// the purpose's folder. Videos are accepted for scoops only.
func (s *MediaService) Presign(ctx context.Context, userID string, req model.PresignRequest) (*model.PresignResponse, error) {
	if s.objects == nil {
		return nil, model.ErrMediaNotEnabled
	}
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	if i := strings.Index(contentType, ";"); i != -1 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	ext, ok := model.ExtensionFor(contentType)
	if !ok {
		return nil, model.ErrInvalidMediaType
	}
	folder, ok := mediaFolders[req.Purpose]
	if !ok {
		return nil, model.Validationf("unknown upload purpose %q", req.Purpose)
	}
	if model.IsVideoType(contentType) && req.Purpose != model.MediaPurposeScoop {
		return nil, model.ErrInvalidMediaType
	}
	if req.FileSize > model.MaxUploadSize {
		return nil, model.ErrFileTooLarge
	}

	key := fmt.Sprintf("%s/%s/%s%s", folder, userID, uuid.NewString(), ext)
	url, err := s.objects.PresignPut(ctx, key, contentType, req.FileSize, PresignExpiry)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("upload presigned", zap.String("user_id", userID), zap.String("key", key))
	return &model.PresignResponse{
		UploadURL:  url,
		Key:        key,
		PublicURL:  s.objects.PublicURL(key),
		ExpiresInS: int(PresignExpiry / time.Second),
	}, nil
}
