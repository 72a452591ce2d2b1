package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/services"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	BaseHandler
	uploads         services.UploadService
	tasks           services.TaskService
	serviceRequests services.ServiceRequestService
}

func NewUploadHandler(
	uploads services.UploadService,
	tasks services.TaskService,
	serviceRequests services.ServiceRequestService,
	logger utils.Logger,
) *UploadHandler {
	return &UploadHandler{
		BaseHandler:     NewBaseHandler(logger),
		uploads:         uploads,
		tasks:           tasks,
		serviceRequests: serviceRequests,
	}
}

// UploadFile stores a single multipart file
// @Summary Upload file
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File"
// @Success 201 {object} models.FileRef
// @Failure 400 {object} ErrorResponse
// @Router /uploads/file [post]
func (h *UploadHandler) UploadFile(c *gin.Context) {
	actor := auth.CurrentActor(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing file",
			Details: err.Error(),
		})
		return
	}

	req, err := readUpload(fileHeader, c.PostForm("kind"), c.PostForm("folder"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Unreadable file", Details: err.Error()})
		return
	}

	ref, err := h.uploads.Upload(c.Request.Context(), actor, *req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ref)
}

// UploadFiles stores a batch of multipart files
// @Summary Upload files
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /uploads/files [post]
func (h *UploadHandler) UploadFiles(c *gin.Context) {
	actor := auth.CurrentActor(c)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid multipart form", Details: err.Error()})
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Missing files"})
		return
	}

	reqs := make([]services.UploadRequest, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		req, err := readUpload(fh, c.PostForm("kind"), c.PostForm("folder"))
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Unreadable file", Details: err.Error()})
			return
		}
		reqs = append(reqs, *req)
	}

	refs, err := h.uploads.UploadMany(c.Request.Context(), actor, reqs)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"files": refs})
}

// UploadForTask stores a file under the task's folder. The caller must be
// able to read the task.
// @Summary Upload file for a task
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param taskId path string true "Task ID"
// @Success 201 {object} models.FileRef
// @Failure 403 {object} ErrorResponse
// @Router /upload/task/{taskId} [post]
func (h *UploadHandler) UploadForTask(c *gin.Context) {
	actor := auth.CurrentActor(c)
	taskID := ParseStringIDParam(c, "taskId")
	if taskID == "" {
		return
	}

	task, err := h.tasks.Get(c.Request.Context(), actor, taskID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Missing file", Details: err.Error()})
		return
	}
	req, err := readUpload(fileHeader, c.PostForm("kind"), "tasks/"+task.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Unreadable file", Details: err.Error()})
		return
	}

	ref, err := h.uploads.Upload(c.Request.Context(), actor, *req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ref)
}

// UploadForServiceRequest stores a file and attaches it to the case's
// document list in one call.
// @Summary Upload file for a case
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param srId path string true "Service request ID"
// @Success 201 {object} models.ServiceRequest
// @Failure 403 {object} ErrorResponse
// @Router /upload/service-request/{srId} [post]
func (h *UploadHandler) UploadForServiceRequest(c *gin.Context) {
	actor := auth.CurrentActor(c)
	srID := ParseStringIDParam(c, "srId")
	if srID == "" {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Missing file", Details: err.Error()})
		return
	}
	req, err := readUpload(fileHeader, c.PostForm("kind"), "service-requests/"+srID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Unreadable file", Details: err.Error()})
		return
	}

	ref, err := h.uploads.Upload(c.Request.Context(), actor, *req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	sr, err := h.serviceRequests.AttachDocument(c.Request.Context(), actor, srID, *ref)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"file": ref, "service_request": sr})
}

type presignUploadRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType"`
	Kind        string `json:"kind"`
	Folder      string `json:"folder"`
}

// PresignUpload issues a short-lived PUT URL for direct browser uploads
// @Summary Presign upload
// @Tags uploads
// @Accept json
// @Produce json
// @Success 200 {object} services.PresignedUpload
// @Failure 400 {object} ErrorResponse
// @Router /uploads/presign [post]
func (h *UploadHandler) PresignUpload(c *gin.Context) {
	actor := auth.CurrentActor(c)

	var req presignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body", Details: err.Error()})
		return
	}

	presigned, err := h.uploads.PresignUpload(c.Request.Context(), actor, services.PresignUploadRequest{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Kind:        services.UploadKind(req.Kind),
		Folder:      req.Folder,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, presigned)
}

// PresignDownload returns a short-lived download URL
// @Summary Presign download
// @Tags uploads
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /uploads/presign [get]
func (h *UploadHandler) PresignDownload(c *gin.Context) {
	publicID := c.Query("public_id")
	if publicID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Missing public_id"})
		return
	}

	url, err := h.uploads.PresignDownload(c.Request.Context(), publicID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Delete removes a stored object
// @Summary Delete file
// @Tags admin
// @Success 200 {object} SuccessResponse
// @Router /admin/uploads/{public_id} [delete]
func (h *UploadHandler) Delete(c *gin.Context) {
	actor := auth.CurrentActor(c)
	publicID := strings.TrimPrefix(c.Param("public_id"), "/")
	if publicID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Missing public_id"})
		return
	}

	if err := h.uploads.Delete(c.Request.Context(), actor, publicID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "file deleted"})
}

func readUpload(fh *multipart.FileHeader, kind, folder string) (*services.UploadRequest, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	return &services.UploadRequest{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
		Kind:        services.UploadKind(kind),
		Folder:      folder,
	}, nil
}
