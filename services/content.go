package services

import (
	"context"
	"fmt"
	"io"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/services/repositories"
	"github.com/folio-gate/gate_api/shared"
)

// ContentService loads the site content the assistant may draw on. Rows hold
// inline text; document-backed sources are hydrated from object storage on
// read. A failing document never takes down the whole listing.
type ContentService struct {
	appContext.DefaultService

	repo     *repositories.ContentRepository
	minioSvc *MinIOService
}

const CONTENT_SVC = "content_svc"

const documentReadTimeout = 5 * time.Second

func (svc ContentService) Id() string {
	return CONTENT_SVC
}

func (svc *ContentService) Configure(ctx *appContext.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *ContentService) Start() error {
	sqlSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.repo = sqlSvc.Content()

	if minioSvc, ok := svc.Service(MINIO_SVC).(*MinIOService); ok {
		svc.minioSvc = minioSvc
	}

	return nil
}

// GetActiveSources returns active content ordered by priority, with
// document-backed bodies hydrated. A source whose document fails to load is
// kept with its inline summary so one bad object cannot empty the context.
func (svc *ContentService) GetActiveSources(ctx context.Context, types []string) ([]model.ContentSource, error) {
	sources, err := svc.repo.ListActive(types)
	if err != nil {
		return nil, err
	}

	for i := range sources {
		if sources[i].DocumentKey == "" || sources[i].Content != "" {
			continue
		}

		body, err := svc.loadDocument(ctx, sources[i].DocumentKey)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"source_id":    sources[i].ID,
				"document_key": sources[i].DocumentKey,
			}).Warn("Failed to load content document, falling back to summary")
			continue
		}

		sources[i].Content = body
	}

	return sources, nil
}

func (svc *ContentService) loadDocument(ctx context.Context, key string) (string, error) {
	if svc.minioSvc == nil {
		return "", fmt.Errorf("object storage not available")
	}

	readCtx, cancel := context.WithTimeout(ctx, documentReadTimeout)
	defer cancel()

	data, err := svc.minioSvc.ReadDocument(readCtx, key)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// ==================== ADMIN OPERATIONS ====================

func (svc *ContentService) GetSource(id string) (*model.ContentSource, error) {
	source, err := svc.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, shared.NewNotFoundError(fmt.Errorf("content source not found: %s", id), "Content source not found")
	}
	return source, nil
}

func (svc *ContentService) ListSources() ([]model.ContentSource, error) {
	return svc.repo.List()
}

func (svc *ContentService) CreateSource(req dto.CreateContentSourceRequest) (*model.ContentSource, error) {
	source := &model.ContentSource{
		Type:        req.Type,
		Title:       req.Title,
		Summary:     req.Summary,
		Content:     req.Content,
		DocumentKey: req.DocumentKey,
		Keywords:    req.Keywords,
		Priority:    req.Priority,
		IsActive:    true,
	}

	if err := svc.repo.Create(source); err != nil {
		return nil, err
	}

	return source, nil
}

func (svc *ContentService) UpdateSource(id string, req dto.UpdateContentSourceRequest) (*model.ContentSource, error) {
	fields := map[string]interface{}{}

	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Summary != nil {
		fields["summary"] = *req.Summary
	}
	if req.Content != nil {
		fields["content"] = *req.Content
	}
	if req.DocumentKey != nil {
		fields["document_key"] = *req.DocumentKey
	}
	if req.Keywords != nil {
		fields["keywords"] = *req.Keywords
	}
	if req.Priority != nil {
		fields["priority"] = *req.Priority
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}

	if len(fields) > 0 {
		if err := svc.repo.Update(id, fields); err != nil {
			return nil, err
		}
	}

	return svc.repo.Get(id)
}

func (svc *ContentService) DeleteSource(id string) error {
	return svc.repo.Delete(id)
}

// ==================== DOCUMENTS ====================

const documentURLExpiry = 15 * time.Minute

func (svc *ContentService) UploadDocument(key string, reader io.Reader, size int64, contentType string) (*dto.DocumentInfo, error) {
	if svc.minioSvc == nil {
		return nil, shared.NewInternalError(fmt.Errorf("object storage not available"), "Document storage is not configured")
	}

	info, err := svc.minioSvc.UploadDocument(key, reader, size, contentType)
	if err != nil {
		return nil, err
	}

	return &dto.DocumentInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  contentType,
		LastModified: time.Now(),
	}, nil
}

func (svc *ContentService) ListDocuments(prefix string) ([]dto.DocumentInfo, error) {
	if svc.minioSvc == nil {
		return nil, shared.NewInternalError(fmt.Errorf("object storage not available"), "Document storage is not configured")
	}

	objects, err := svc.minioSvc.ListDocuments(prefix)
	if err != nil {
		return nil, err
	}

	docs := make([]dto.DocumentInfo, 0, len(objects))
	for _, obj := range objects {
		docs = append(docs, dto.DocumentInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		})
	}
	return docs, nil
}

func (svc *ContentService) DeleteDocument(key string) error {
	if svc.minioSvc == nil {
		return shared.NewInternalError(fmt.Errorf("object storage not available"), "Document storage is not configured")
	}
	return svc.minioSvc.DeleteDocument(key)
}

// DocumentURL returns a presigned, time-limited download link.
func (svc *ContentService) DocumentURL(key string) (string, error) {
	if svc.minioSvc == nil {
		return "", shared.NewInternalError(fmt.Errorf("object storage not available"), "Document storage is not configured")
	}
	return svc.minioSvc.GetDocumentURL(key, documentURLExpiry)
}
