package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"honestlens/config"
	"honestlens/lifecycle"
	"honestlens/storage"
	"honestlens/types"
)

type handler struct {
	svc    Service
	images storage.ImageStore
	logger *zap.Logger
}

func registerVerificationRoutes(r *gin.Engine, h *handler) {
	g := r.Group("/api/verification")
	g.POST("/verify-url", h.verifyURL)
	g.POST("/verify-text", h.verifyText)
	g.POST("/verify-image", h.verifyImage)
	g.GET("/result/:requestId", h.result)
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// VerifyURLRequest is the body of POST /verify-url.
type VerifyURLRequest struct {
	URL      string `json:"url"`
	Priority string `json:"priority"`
}

// VerifyTextRequest is the body of POST /verify-text.
type VerifyTextRequest struct {
	Text     string `json:"text"`
	Priority string `json:"priority"`
}

// VerifyImageRequest is the JSON body of POST /verify-image when the image is
// already stored.
type VerifyImageRequest struct {
	ImageRef string `json:"imageRef"`
	Priority string `json:"priority"`
}

// SubmitData is returned for an accepted submission.
type SubmitData struct {
	RequestID string                    `json:"requestId"`
	Status    types.State               `json:"status"`
	Result    *types.VerificationResult `json:"result,omitempty"`
}

// ResultData is returned by GET /result/:requestId. Result is null until completed.
type ResultData struct {
	Request *types.VerificationRequest `json:"request"`
	Result  *types.VerificationResult  `json:"result"`
}

var allowedImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func (h *handler) verifyURL(c *gin.Context) {
	var req VerifyURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err)
		return
	}
	id, ok := h.submit(c, types.KindURL, req.URL, req.Priority)
	if !ok {
		return
	}

	stored, res, err := h.svc.GetResult(c.Request.Context(), id)
	if err == nil && stored.State == types.StateCompleted && res != nil {
		c.JSON(http.StatusOK, Response{
			Success: true,
			Message: "URL already verified",
			Data:    SubmitData{RequestID: id, Status: types.StateCompleted, Result: res},
		})
		return
	}
	submitted(c, "URL verification request submitted", id)
}

func (h *handler) verifyText(c *gin.Context) {
	var req VerifyTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err)
		return
	}
	if id, ok := h.submit(c, types.KindText, req.Text, req.Priority); ok {
		submitted(c, "Text verification request submitted", id)
	}
}

func (h *handler) verifyImage(c *gin.Context) {
	var ref, priority string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		stored, err := h.storeUpload(c)
		if err != nil {
			if errors.Is(err, types.ErrInvalidInput) {
				validationFailed(c, err)
				return
			}
			h.internalError(c, "store uploaded image", err)
			return
		}
		ref, priority = stored, c.PostForm("priority")
	} else {
		var req VerifyImageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			validationFailed(c, err)
			return
		}
		ref, priority = req.ImageRef, req.Priority
	}

	if id, ok := h.submit(c, types.KindImage, ref, priority); ok {
		submitted(c, "Image verification request submitted", id)
	}
}

// storeUpload validates the "image" form file and writes it to image storage.
func (h *handler) storeUpload(c *gin.Context) (string, error) {
	if h.images == nil {
		return "", errors.New("image storage not configured")
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return "", fmt.Errorf("%w: no image file provided", types.ErrInvalidInput)
	}
	if fh.Size > config.MaxImageBytes {
		return "", fmt.Errorf("%w: image exceeds %d bytes", types.ErrInvalidInput, config.MaxImageBytes)
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	contentType, ok := allowedImageTypes[ext]
	if !ok || !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return "", fmt.Errorf("%w: only image files are allowed", types.ErrInvalidInput)
	}

	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, config.MaxImageBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > config.MaxImageBytes {
		return "", fmt.Errorf("%w: image exceeds %d bytes", types.ErrInvalidInput, config.MaxImageBytes)
	}

	name := "verification-" + uuid.NewString() + ext
	return h.images.Put(c.Request.Context(), name, data, contentType)
}

func (h *handler) result(c *gin.Context) {
	id := c.Param("requestId")
	req, res, err := h.svc.GetResult(c.Request.Context(), id)
	if errors.Is(err, types.ErrNotFound) {
		c.JSON(http.StatusNotFound, Response{Success: false, Message: "Verification request not found"})
		return
	}
	if err != nil {
		h.internalError(c, "get verification result", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: ResultData{Request: req, Result: res}})
}

// submit forwards to the service and writes the error response itself when it fails.
func (h *handler) submit(c *gin.Context, kind types.Kind, payload, priority string) (string, bool) {
	id, err := h.svc.Submit(c.Request.Context(), kind, payload, types.Priority(priority))
	switch {
	case err == nil:
		return id, true
	case errors.Is(err, types.ErrInvalidInput):
		validationFailed(c, err)
	case errors.Is(err, lifecycle.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Message: "Service is shutting down"})
	default:
		h.internalError(c, "submit verification", err)
	}
	return "", false
}

func submitted(c *gin.Context, message, id string) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Message: message,
		Data:    SubmitData{RequestID: id, Status: types.StateProcessing},
	})
}

func validationFailed(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Message: "Validation failed",
		Errors:  []string{err.Error()},
	})
}

func (h *handler) internalError(c *gin.Context, op string, err error) {
	h.logger.Error(op+" failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, Response{Success: false, Message: "Internal server error"})
}
