package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steinsgo/personal-site/internal/middleware"
	"github.com/steinsgo/personal-site/internal/service"
)

// multipartSlack covers form boundaries and headers around the file part.
const multipartSlack = 64 << 10

func (h HandlerSet) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Upload.MaxBytes+multipartSlack)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
			return
		}
		h.writeError(c, &service.ValidationError{Field: "file", Message: "is required"})
		return
	}
	defer file.Close()

	user, _ := middleware.CurrentUser(c)
	result, err := h.uploads.Upload(c.Request.Context(), service.UploadInput{
		User:   user,
		File:   file,
		Header: header,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": result.URL})
}

func (h HandlerSet) ServeUpload(c *gin.Context) {
	body, info, err := h.uploads.Open(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer body.Close()

	headers := map[string]string{"Cache-Control": "public, max-age=31536000, immutable"}
	if info.ETag != "" {
		headers["ETag"] = `"` + info.ETag + `"`
	}
	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, body, headers)
}
