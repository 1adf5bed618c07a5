package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

// maxUploadMemory is how much of a multipart body gin buffers in memory before
// spilling to temp files.
const maxUploadMemory = 8 << 20

type LibraryHandler struct {
	log     *logger.Logger
	library services.LibraryService
}

func NewLibraryHandler(log *logger.Logger, library services.LibraryService) *LibraryHandler {
	return &LibraryHandler{log: log.With("handler", "LibraryHandler"), library: library}
}

// GET /api/library?subject_id=&query=&mine=&limit=&offset=
func (h *LibraryHandler) List(c *gin.Context) {
	subjectID, ok := queryUUID(c, "subject_id")
	if !ok {
		return
	}
	mine, ok := queryBool(c, "mine")
	if !ok {
		return
	}
	out, err := h.library.List(c.Request.Context(), services.MaterialQuery{
		SubjectID: subjectID,
		Query:     c.Query("query"),
		Mine:      mine != nil && *mine,
		Limit:     queryInt(c, "limit", 50),
		Offset:    queryInt(c, "offset", 0),
	})
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"materials": out})
}

// POST /api/library
// JSON bodies register a link; multipart bodies upload the "file" field.
func (h *LibraryHandler) Create(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		h.createUpload(c)
		return
	}
	var req services.MaterialInput
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.library.Create(c.Request.Context(), req, nil)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"material": m})
}

func (h *LibraryHandler) createUpload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_multipart", err)
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", errors.New("multipart field \"file\" is required"))
		return
	}
	in := services.MaterialInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Visibility:  c.PostForm("visibility"),
	}
	if raw := strings.TrimSpace(c.PostForm("subject_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_subject_id", errors.New("subject_id must be a uuid"))
			return
		}
		in.SubjectID = &id
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return
	}
	defer f.Close()

	m, err := h.library.Create(c.Request.Context(), in, &services.MaterialUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"material": m})
}

// GET /api/library/:id
func (h *LibraryHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "invalid_material_id")
	if !ok {
		return
	}
	m, err := h.library.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"material": m})
}

// PATCH /api/library/:id
func (h *LibraryHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "invalid_material_id")
	if !ok {
		return
	}
	var req services.MaterialPatch
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.library.Update(c.Request.Context(), id, req)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"material": m})
}

// DELETE /api/library/:id
func (h *LibraryHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "invalid_material_id")
	if !ok {
		return
	}
	if err := h.library.Delete(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}
