package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	appconfig "github.com/EduBridge-2025/advisory-service/internal/config"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	maxDocumentSize = 10 << 20 // 10 MB
	maxImageSize    = 5 << 20  // 5 MB
	uploadTimeout   = 120 * time.Second
)

var documentFormats = map[string]bool{
	"pdf": true, "doc": true, "docx": true, "txt": true, "rtf": true,
	"xls": true, "xlsx": true,
}

var imageFormats = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "webp": true, "gif": true,
}

type UploadKind string

const (
	UploadDocument UploadKind = "document"
	UploadImage    UploadKind = "image"
)

// UploadService stores user files in object storage and hands back the
// reference embedded into cases, tasks and applications.
type UploadService interface {
	Upload(ctx context.Context, actor *auth.Actor, req UploadRequest) (*models.FileRef, error)
	UploadMany(ctx context.Context, actor *auth.Actor, reqs []UploadRequest) ([]models.FileRef, error)
	Delete(ctx context.Context, actor *auth.Actor, publicID string) error
	PresignUpload(ctx context.Context, actor *auth.Actor, req PresignUploadRequest) (*PresignedUpload, error)
	PresignDownload(ctx context.Context, publicID string) (string, error)
}

type UploadRequest struct {
	FileName    string
	ContentType string
	Data        []byte
	Kind        UploadKind
	Folder      string
}

type PresignUploadRequest struct {
	FileName    string
	ContentType string
	Kind        UploadKind
	Folder      string
}

// PresignedUpload lets a browser PUT the object directly. The key must be
// echoed back when attaching the file to an entity.
type PresignedUpload struct {
	URL       string    `json:"url"`
	PublicID  string    `json:"publicId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type uploadService struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	endpoint string
	audit    AuditService
	logger   utils.Logger
}

func NewUploadService(ctx context.Context, cfg *appconfig.Config, audit AuditService, logger utils.Logger) (UploadService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &uploadService{
		client:   client,
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.S3Bucket,
		endpoint: cfg.S3Endpoint,
		audit:    audit,
		logger:   logger,
	}, nil
}

func (s *uploadService) Upload(ctx context.Context, actor *auth.Actor, req UploadRequest) (*models.FileRef, error) {
	format, err := validateUpload(req)
	if err != nil {
		return nil, err
	}

	key := buildObjectKey(req.Folder, format)

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(req.Data),
		ContentType: aws.String(req.ContentType),
		Metadata: map[string]string{
			"original-name": req.FileName,
			"uploaded-by":   actor.ID(),
		},
	})
	if err != nil {
		s.logger.Error("object upload failed", "key", key, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrFileUploadFailed, err)
	}

	ref := &models.FileRef{
		URL:          s.objectURL(key),
		PublicID:     key,
		OriginalName: req.FileName,
		Format:       format,
		Size:         int64(len(req.Data)),
		UploadedBy:   actor.ID(),
		UploadedAt:   time.Now(),
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditFileUploaded,
		EntityType: "file",
		EntityID:   key,
		Details:    req.FileName,
	})

	return ref, nil
}

func (s *uploadService) UploadMany(ctx context.Context, actor *auth.Actor, reqs []UploadRequest) ([]models.FileRef, error) {
	refs := make([]models.FileRef, 0, len(reqs))
	for _, req := range reqs {
		ref, err := s.Upload(ctx, actor, req)
		if err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", req.FileName, err)
		}
		refs = append(refs, *ref)
	}
	return refs, nil
}

func (s *uploadService) Delete(ctx context.Context, actor *auth.Actor, publicID string) error {
	if !actor.IsSuperAdmin() {
		return ErrForbidden
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditFileDeleted,
		EntityType: "file",
		EntityID:   publicID,
	})
	return nil
}

func (s *uploadService) PresignUpload(ctx context.Context, actor *auth.Actor, req PresignUploadRequest) (*PresignedUpload, error) {
	format, err := validateFormat(req.FileName, req.Kind)
	if err != nil {
		return nil, err
	}

	key := buildObjectKey(req.Folder, format)
	expiry := 15 * time.Minute

	out, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(req.ContentType),
		Metadata: map[string]string{
			"original-name": req.FileName,
			"uploaded-by":   actor.ID(),
		},
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &PresignedUpload{
		URL:       out.URL,
		PublicID:  key,
		ExpiresAt: time.Now().Add(expiry),
	}, nil
}

func (s *uploadService) PresignDownload(ctx context.Context, publicID string) (string, error) {
	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return out.URL, nil
}

// ===== VALIDATION =====

func validateUpload(req UploadRequest) (string, error) {
	format, err := validateFormat(req.FileName, req.Kind)
	if err != nil {
		return "", err
	}

	if req.Kind == UploadImage {
		if int64(len(req.Data)) > maxImageSize {
			return "", fmt.Errorf("%w: images are limited to %d MB", ErrFileTooLarge, maxImageSize>>20)
		}
	} else if int64(len(req.Data)) > maxDocumentSize {
		return "", fmt.Errorf("%w: documents are limited to %d MB", ErrFileTooLarge, maxDocumentSize>>20)
	}
	return format, nil
}

func validateFormat(fileName string, kind UploadKind) (string, error) {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if format == "" {
		return "", fmt.Errorf("%w: missing file extension", ErrUnsupportedFormat)
	}

	switch kind {
	case UploadImage:
		if !imageFormats[format] {
			return "", fmt.Errorf("%w: .%s is not an accepted image format", ErrUnsupportedFormat, format)
		}
	default:
		if !documentFormats[format] && !imageFormats[format] {
			return "", fmt.Errorf("%w: .%s is not an accepted document format", ErrUnsupportedFormat, format)
		}
	}
	return format, nil
}

func buildObjectKey(folder, format string) string {
	if folder == "" {
		folder = "uploads"
	}
	return fmt.Sprintf("%s/%s.%s", strings.Trim(folder, "/"), uuid.NewString(), format)
}

func (s *uploadService) objectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.endpoint, "/"), s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}
