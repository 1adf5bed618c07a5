package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/domain/library"
	"github.com/yungbote/studyhub-backend/internal/domain/social"
	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/gcp"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

const maxMaterialBytes = 25 << 20

type MaterialInput struct {
	SubjectID   *uuid.UUID `json:"subject_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	Visibility  string     `json:"visibility"`
}

// MaterialUpload carries a multipart file in place of MaterialInput.URL.
type MaterialUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type MaterialPatch struct {
	SubjectID    *uuid.UUID `json:"subject_id"`
	ClearSubject bool       `json:"clear_subject"`
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Visibility   *string    `json:"visibility"`
}

type MaterialQuery struct {
	SubjectID *uuid.UUID
	Query     string
	Mine      bool
	Limit     int
	Offset    int
}

type LibraryService interface {
	// Create stores a link, or an uploaded file when upload is non-nil.
	Create(ctx context.Context, in MaterialInput, upload *MaterialUpload) (*types.LibraryMaterial, error)
	Get(ctx context.Context, id uuid.UUID) (*types.LibraryMaterial, error)
	List(ctx context.Context, q MaterialQuery) ([]*types.LibraryMaterial, error)
	Update(ctx context.Context, id uuid.UUID, in MaterialPatch) (*types.LibraryMaterial, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type libraryService struct {
	db         *gorm.DB
	log        *logger.Logger
	materials  repos.LibraryMaterialRepo
	subjects   repos.SubjectRepo
	activities repos.ActivityRepo
	bucket     gcp.BucketService
	now        Clock
}

func NewLibraryService(
	db *gorm.DB,
	baseLog *logger.Logger,
	materials repos.LibraryMaterialRepo,
	subjects repos.SubjectRepo,
	activities repos.ActivityRepo,
	bucket gcp.BucketService,
	now Clock,
) LibraryService {
	return &libraryService{
		db:         db,
		log:        baseLog.With("service", "LibraryService"),
		materials:  materials,
		subjects:   subjects,
		activities: activities,
		bucket:     bucket,
		now:        orClock(now),
	}
}

func validateVisibility(v string) (string, error) {
	switch v {
	case "":
		return library.VisibilityPrivate, nil
	case library.VisibilityPublic, library.VisibilityPrivate:
		return v, nil
	}
	return "", apierr.BadRequest("invalid_visibility", "visibility must be public or private")
}

func validateLink(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apierr.BadRequest("invalid_url", "url must be an http(s) link")
	}
	return nil
}

func (s *libraryService) sharedActivity(dbc dbctx.Context, m *types.LibraryMaterial) error {
	a := &types.Activity{
		UserID:     m.UserID,
		Type:       social.ActivityMaterialShared,
		Visibility: social.VisibilityPublic,
		Content:    "Shared " + m.Title + " in the library",
		SubjectID:  m.SubjectID,
		Metadata:   datatypes.JSONMap{"material_id": m.ID.String()},
		CreatedAt:  s.now(),
	}
	if m.SubjectID != nil {
		if subj, err := s.subjects.GetForUser(dbc, m.UserID, *m.SubjectID); err == nil {
			a.SubjectName = subj.Name
		}
	}
	if _, err := s.activities.Create(dbc, []*types.Activity{a}); err != nil {
		return fmt.Errorf("record material activity: %w", err)
	}
	return nil
}

func (s *libraryService) removeObject(ctx context.Context, key string) {
	if key == "" || s.bucket == nil {
		return
	}
	if err := s.bucket.DeleteFile(ctx, gcp.BucketCategoryMaterial, key); err != nil && !errors.Is(err, gcp.ErrStorageDisabled) {
		s.log.Warn("Failed to delete material object", "key", key, "error", err)
	}
}

func (s *libraryService) Create(ctx context.Context, in MaterialInput, upload *MaterialUpload) (*types.LibraryMaterial, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	m := &types.LibraryMaterial{
		UserID:      userID,
		Title:       clean(in.Title),
		Description: clean(in.Description),
	}
	if m.Visibility, err = validateVisibility(clean(in.Visibility)); err != nil {
		return nil, err
	}
	if m.Title == "" && upload != nil {
		m.Title = clean(upload.Filename)
	}
	if err := requireLength("title", m.Title, 1, 200); err != nil {
		return nil, err
	}
	if err := requireLength("description", m.Description, 0, 2000); err != nil {
		return nil, err
	}

	if upload == nil {
		m.URL = clean(in.URL)
		if err := validateLink(m.URL); err != nil {
			return nil, err
		}
	} else {
		if s.bucket == nil || !s.bucket.Enabled() {
			return nil, apierr.Unavailable("storage_disabled", "file uploads are not configured")
		}
		if upload.Size > maxMaterialBytes {
			return nil, apierr.BadRequest("file_too_large", "files must be at most 25 MB")
		}
		m.MimeType = strings.ToLower(clean(upload.ContentType))
		if m.MimeType == "" || m.MimeType == "application/octet-stream" {
			m.MimeType = gcp.ContentTypeForKey(upload.Filename)
		}
		m.BucketKey = gcp.ObjectKey(userID, upload.Filename)
		n, err := s.bucket.UploadFile(ctx, gcp.BucketCategoryMaterial, m.BucketKey, m.MimeType, io.LimitReader(upload.Body, maxMaterialBytes+1))
		if err != nil {
			return nil, fmt.Errorf("upload material: %w", err)
		}
		if n > maxMaterialBytes {
			s.removeObject(ctx, m.BucketKey)
			return nil, apierr.BadRequest("file_too_large", "files must be at most 25 MB")
		}
		m.SizeBytes = n
		m.URL = s.bucket.GetPublicURL(gcp.BucketCategoryMaterial, m.BucketKey)
	}

	err = inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		if in.SubjectID != nil && *in.SubjectID != uuid.Nil {
			if _, err := s.subjects.GetForUser(inner, userID, *in.SubjectID); err != nil {
				return notFound(err, "subject_not_found", "subject not found")
			}
			m.SubjectID = in.SubjectID
		}
		if _, err := s.materials.Create(inner, []*types.LibraryMaterial{m}); err != nil {
			return fmt.Errorf("create material: %w", err)
		}
		if m.Visibility == library.VisibilityPublic {
			return s.sharedActivity(inner, m)
		}
		return nil
	})
	if err != nil {
		s.removeObject(ctx, m.BucketKey)
		return nil, err
	}
	return m, nil
}

func (s *libraryService) Get(ctx context.Context, id uuid.UUID) (*types.LibraryMaterial, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.materials.GetVisible(dbctx.Context{Ctx: ctx}, userID, id)
	if err != nil {
		return nil, notFound(err, "material_not_found", "material not found")
	}
	return m, nil
}

func (s *libraryService) List(ctx context.Context, q MaterialQuery) ([]*types.LibraryMaterial, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return s.materials.ListVisible(dbctx.Context{Ctx: ctx}, userID, repos.LibraryMaterialFilter{
		SubjectID: q.SubjectID,
		Query:     q.Query,
		OnlyMine:  q.Mine,
		Limit:     clampLimit(q.Limit, 50, 100),
		Offset:    q.Offset,
	})
}

func (s *libraryService) Update(ctx context.Context, id uuid.UUID, in MaterialPatch) (*types.LibraryMaterial, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Title != nil {
		v := clean(*in.Title)
		if err := requireLength("title", v, 1, 200); err != nil {
			return nil, err
		}
		updates["title"] = v
	}
	if in.Description != nil {
		v := clean(*in.Description)
		if err := requireLength("description", v, 0, 2000); err != nil {
			return nil, err
		}
		updates["description"] = v
	}
	if in.Visibility != nil {
		v := clean(*in.Visibility)
		if v == "" {
			return nil, apierr.BadRequest("invalid_visibility", "visibility must be public or private")
		}
		if _, err := validateVisibility(v); err != nil {
			return nil, err
		}
		updates["visibility"] = v
	}

	var out *types.LibraryMaterial
	err = inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		before, err := s.materials.GetForUser(inner, userID, id)
		if err != nil {
			return notFound(err, "material_not_found", "material not found")
		}
		switch {
		case in.ClearSubject:
			updates["subject_id"] = nil
		case in.SubjectID != nil:
			if _, err := s.subjects.GetForUser(inner, userID, *in.SubjectID); err != nil {
				return notFound(err, "subject_not_found", "subject not found")
			}
			updates["subject_id"] = *in.SubjectID
		}
		if len(updates) > 0 {
			if err := s.materials.UpdateFields(inner, userID, id, updates); err != nil {
				return notFound(err, "material_not_found", "material not found")
			}
		}
		if out, err = s.materials.GetForUser(inner, userID, id); err != nil {
			return err
		}
		if before.Visibility != library.VisibilityPublic && out.Visibility == library.VisibilityPublic {
			return s.sharedActivity(inner, out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *libraryService) Delete(ctx context.Context, id uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	dbc := dbctx.Context{Ctx: ctx}
	m, err := s.materials.GetForUser(dbc, userID, id)
	if err != nil {
		return notFound(err, "material_not_found", "material not found")
	}
	if err := s.materials.Delete(dbc, userID, id); err != nil {
		return notFound(err, "material_not_found", "material not found")
	}
	s.removeObject(ctx, m.BucketKey)
	return nil
}
