package handler

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"voice-relay/constant"
	"voice-relay/dto"
	"voice-relay/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RecordingHandler struct {
	service service.RecordingService
	baseURL string
}

func NewRecordingHandler(s service.RecordingService, baseURL string) *RecordingHandler {
	return &RecordingHandler{service: s, baseURL: baseURL}
}

// Upload accepts either a multipart "file" field or a raw binary body.
func (h *RecordingHandler) Upload(c *gin.Context) {
	in, ok := h.readUpload(c, false)
	if !ok {
		return
	}

	rec, err := h.service.Upload(c.Request.Context(), UserId(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "recording": rec})
}

// UploadResponse accepts the AI pipeline's reply: multipart only, with an
// optional transcript field.
func (h *RecordingHandler) UploadResponse(c *gin.Context) {
	if c.ContentType() != "multipart/form-data" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content-Type must be multipart/form-data"})
		return
	}
	in, ok := h.readUpload(c, true)
	if !ok {
		return
	}

	rec, err := h.service.UploadResponse(c.Request.Context(), UserId(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "recording": rec})
}

func (h *RecordingHandler) readUpload(c *gin.Context, withTranscript bool) (service.UploadInput, bool) {
	var in service.UploadInput

	if c.ContentType() == "multipart/form-data" {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
			return in, false
		}
		f, err := fileHeader.Open()
		if err != nil {
			writeError(c, err)
			return in, false
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			writeError(c, err)
			return in, false
		}
		in.Data = data
		in.Filename = fileHeader.Filename
		in.ContentType = fileHeader.Header.Get("Content-Type")
		if withTranscript {
			if transcript := c.PostForm("transcript"); transcript != "" {
				in.Transcript = &transcript
			}
		}
		return in, true
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, err)
		return in, false
	}
	in.Data = data
	in.ContentType = c.ContentType()
	return in, true
}

func (h *RecordingHandler) List(c *gin.Context) {
	filter := dto.RecordingFilter{}
	if s := c.Query("sender"); s != "" {
		sender := constant.Sender(s)
		filter.Sender = &sender
	}
	if p := c.Query("played"); p != "" {
		played := p == "true"
		filter.Played = &played
	}
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			filter.Limit = n
		}
	}
	if o := c.Query("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil {
			filter.Offset = n
		}
	}

	resp, err := h.service.List(c.Request.Context(), UserId(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RecordingHandler) Get(c *gin.Context) {
	id, ok := queryId(c)
	if !ok {
		return
	}

	rec, err := h.service.Get(c.Request.Context(), UserId(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recording":    rec,
		"download_url": fmt.Sprintf("%s/download-recording?id=%s", h.baseURL, rec.ID),
	})
}

func (h *RecordingHandler) Update(c *gin.Context) {
	id, ok := queryId(c)
	if !ok {
		return
	}

	var patch dto.UpdateRecordingRequest
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	rec, err := h.service.Update(c.Request.Context(), UserId(c), id, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recording": rec})
}

func (h *RecordingHandler) MarkPlayed(c *gin.Context) {
	var req dto.MarkPlayedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing id in request body"})
		return
	}
	id, err := uuid.Parse(req.Id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recording not found"})
		return
	}

	rec, err := h.service.MarkPlayed(c.Request.Context(), UserId(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recording": rec})
}

// Download streams the raw audio. API-key authenticated; no ownership
// scoping on this path.
func (h *RecordingHandler) Download(c *gin.Context) {
	id, ok := queryId(c)
	if !ok {
		return
	}

	rec, rc, size, err := h.service.Download(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	defer rc.Close()

	filename := path.Base(rec.FilePath)
	c.DataFromReader(http.StatusOK, size, "audio/mpeg", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filename),
	})
}

// queryId parses the id query parameter. A missing id is a 400; a malformed
// one is reported as not found, the same as an unknown id.
func queryId(c *gin.Context) (uuid.UUID, bool) {
	raw := strings.TrimSpace(c.Query("id"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing id parameter"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recording not found"})
		return uuid.Nil, false
	}
	return id, true
}
