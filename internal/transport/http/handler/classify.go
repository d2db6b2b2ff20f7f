package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fruitfresh/internal/app"
	"fruitfresh/internal/transport/http/middleware"
	"fruitfresh/internal/transport/http/response"
	"fruitfresh/internal/vision"
)

// multipart framing allowance on top of the image itself.
const multipartOverhead = 1 << 20

type Classifier interface {
	ClassifyWithID(ctx context.Context, requestID string, upload app.Upload) (*app.ClassificationResult, error)
}

type ClassifyHandler struct {
	classifier Classifier
	maxBytes   int64
}

func NewClassifyHandler(classifier Classifier, maxBytes int64) *ClassifyHandler {
	return &ClassifyHandler{classifier: classifier, maxBytes: maxBytes}
}

// Classify accepts a multipart form with the image in field "image".
func (h *ClassifyHandler) Classify(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)

	file, err := c.FormFile("image")
	if err != nil {
		if isBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, "image too large")
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing image file (form field 'image')")
		return
	}
	if file.Size > h.maxBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, "image too large")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to open uploaded file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to read image")
		return
	}
	if int64(len(data)) > h.maxBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, "image too large")
		return
	}

	result, err := h.classifier.ClassifyWithID(c.Request.Context(), middleware.GetRequestID(c), app.Upload{
		Filename: file.Filename,
		Data:     data,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEmptyUpload):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "uploaded file is empty")
		case errors.Is(err, vision.ErrUnsupportedInput):
			response.Error(c, http.StatusUnsupportedMediaType, response.CodeUnsupportedMedia, "unsupported image: upload a JPEG or PNG file")
		case errors.Is(err, vision.ErrModelFileNotFound):
			response.Error(c, http.StatusServiceUnavailable, response.CodeModelNotFound, "model weights not found; deploy the ONNX file configured at model.path")
		case errors.Is(err, vision.ErrRuntimeUnavailable):
			response.Error(c, http.StatusServiceUnavailable, response.CodeRuntimeUnavailable, "ONNX Runtime library not available; set MODEL_ONNX_LIB to libonnxruntime")
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "classification failed")
		}
		return
	}

	response.OK(c, result)
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
