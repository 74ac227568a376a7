package upload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nutriplan/nutriplan-api/internal/repository"
	"github.com/nutriplan/nutriplan-api/internal/storage"
	apperrors "github.com/nutriplan/nutriplan-api/pkg/errors"
	"github.com/nutriplan/nutriplan-api/pkg/logger"
)

var pdfContentTypes = map[string]bool{
	"application/pdf": true,
}

var photoContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// UploadTicket is a presigned upload slot: the client PUTs the file bytes to
// URL, then the object lives under Key.
type UploadTicket struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Servicer hands out presigned object storage URLs for diet PDFs and progress
// photos and records the resulting object keys. Every operation takes the
// calling nutritionist's id; objects belonging to another nutritionist's
// patient read as not-found.
type Servicer interface {
	RequestDietPDFUpload(ctx context.Context, nutritionistID, dietID uuid.UUID, contentType string) (*UploadTicket, error)
	RequestProgressPhotoUpload(ctx context.Context, nutritionistID, recordID uuid.UUID, contentType string) (*UploadTicket, error)
	DownloadURL(ctx context.Context, nutritionistID uuid.UUID, objectKey string) (string, error)
}

type Service struct {
	store    storage.FileStorage
	diets    repository.DietRepository
	progress repository.ProgressRepository
	patients repository.PatientRepository
	logger   *logger.Logger
}

func NewService(
	store storage.FileStorage,
	diets repository.DietRepository,
	progress repository.ProgressRepository,
	patients repository.PatientRepository,
	logger *logger.Logger,
) *Service {
	return &Service{store: store, diets: diets, progress: progress, patients: patients, logger: logger}
}

// RequestDietPDFUpload presigns an upload slot for a diet plan PDF and stores
// the object key on the diet row. The client may retry the PUT against the
// same key until the URL expires.
func (s *Service) RequestDietPDFUpload(ctx context.Context, nutritionistID, dietID uuid.UUID, contentType string) (*UploadTicket, error) {
	if !pdfContentTypes[contentType] {
		return nil, apperrors.NewBadRequest("unsupported content type for diet pdf", nil)
	}
	if err := s.authorizeDiet(ctx, nutritionistID, dietID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("diet-pdfs/%s/%s.pdf", dietID, uuid.New())
	url, err := s.store.GeneratePresignedUploadURL(ctx, key, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}
	if err := s.diets.SetPDFKey(ctx, dietID, key); err != nil {
		return nil, fmt.Errorf("failed to store pdf key: %w", err)
	}
	return &UploadTicket{Key: key, URL: url}, nil
}

// RequestProgressPhotoUpload presigns an upload slot for a progress photo and
// stores the object key on the record.
func (s *Service) RequestProgressPhotoUpload(ctx context.Context, nutritionistID, recordID uuid.UUID, contentType string) (*UploadTicket, error) {
	if !photoContentTypes[contentType] {
		return nil, apperrors.NewBadRequest("unsupported content type for progress photo", nil)
	}
	if err := s.authorizeRecord(ctx, nutritionistID, recordID); err != nil {
		return nil, err
	}

	ext := extensionFor(contentType)
	key := fmt.Sprintf("progress-photos/%s/%s%s", recordID, uuid.New(), ext)
	url, err := s.store.GeneratePresignedUploadURL(ctx, key, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}
	if err := s.progress.SetPhotoKey(ctx, recordID, key); err != nil {
		return nil, fmt.Errorf("failed to store photo key: %w", err)
	}
	return &UploadTicket{Key: key, URL: url}, nil
}

// DownloadURL presigns a short-lived download link for a stored object. The
// owning resource is resolved from the key and checked against the caller.
func (s *Service) DownloadURL(ctx context.Context, nutritionistID uuid.UUID, objectKey string) (string, error) {
	prefix, resourceID, err := parseObjectKey(objectKey)
	if err != nil {
		return "", err
	}

	switch prefix {
	case "diet-pdfs":
		if err := s.authorizeDiet(ctx, nutritionistID, resourceID); err != nil {
			return "", err
		}
	case "progress-photos":
		if err := s.authorizeRecord(ctx, nutritionistID, resourceID); err != nil {
			return "", err
		}
	}

	url, err := s.store.GeneratePresignedDownloadURL(ctx, objectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return url, nil
}

// parseObjectKey splits "<prefix>/<resource-uuid>/<file>" and rejects keys
// outside the known prefixes.
func parseObjectKey(objectKey string) (string, uuid.UUID, error) {
	parts := strings.SplitN(objectKey, "/", 3)
	if len(parts) != 3 || (parts[0] != "diet-pdfs" && parts[0] != "progress-photos") {
		return "", uuid.Nil, apperrors.NewBadRequest("unknown object key prefix", nil)
	}
	resourceID, err := uuid.Parse(parts[1])
	if err != nil {
		return "", uuid.Nil, apperrors.NewBadRequest("malformed object key", err)
	}
	return parts[0], resourceID, nil
}

func (s *Service) authorizeDiet(ctx context.Context, nutritionistID, dietID uuid.UUID) error {
	diet, err := s.diets.Get(ctx, dietID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("diet", err)
		}
		return fmt.Errorf("failed to get diet: %w", err)
	}
	return s.checkOwnership(ctx, nutritionistID, diet.PatientID, "diet")
}

func (s *Service) authorizeRecord(ctx context.Context, nutritionistID, recordID uuid.UUID) error {
	record, err := s.progress.Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("progress record", err)
		}
		return fmt.Errorf("failed to get progress record: %w", err)
	}
	return s.checkOwnership(ctx, nutritionistID, record.PatientID, "progress record")
}

func (s *Service) checkOwnership(ctx context.Context, nutritionistID, patientID uuid.UUID, resource string) error {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound(resource, err)
		}
		return fmt.Errorf("failed to get patient: %w", err)
	}
	if patient.NutritionistID != nutritionistID {
		return apperrors.NewNotFound(resource, nil)
	}
	return nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
