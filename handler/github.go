package handler

import (
	"errors"
	"net/http"
	"voice-relay/dto"
	"voice-relay/pkg/github"
	"voice-relay/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type GithubHandler struct {
	service service.GithubService
	baseURL string
}

func NewGithubHandler(s service.GithubService, baseURL string) *GithubHandler {
	return &GithubHandler{service: s, baseURL: baseURL}
}

func (h *GithubHandler) Authorize(c *gin.Context) {
	url, err := h.service.AuthorizeURL(UserId(c), h.baseURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// Callback completes the OAuth exchange. Failures redirect back to the app
// with an error code in the query string rather than failing the request.
func (h *GithubHandler) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		c.Redirect(http.StatusFound, h.baseURL+"/?github_error="+errParam)
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.Redirect(http.StatusFound, h.baseURL+"/?github_error=missing_params")
		return
	}

	userId := UserId(c)
	if state != userId.String() {
		c.Redirect(http.StatusFound, h.baseURL+"/login?error=auth_mismatch")
		return
	}

	if err := h.service.HandleCallback(c.Request.Context(), userId, code); err != nil {
		var oauthErr *github.OAuthError
		switch {
		case errors.As(err, &oauthErr):
			c.Redirect(http.StatusFound, h.baseURL+"/?github_error="+oauthErr.Code)
		case errors.Is(err, service.ErrNotConfigured):
			c.Redirect(http.StatusFound, h.baseURL+"/?github_error=not_configured")
		default:
			c.Redirect(http.StatusFound, h.baseURL+"/?github_error=storage_failed")
		}
		return
	}

	c.Redirect(http.StatusFound, h.baseURL+"/?github_linked=true")
}

func (h *GithubHandler) Repos(c *gin.Context) {
	repos, err := h.service.ListRepos(c.Request.Context(), UserId(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if repos == nil {
		repos = []github.Repo{}
	}
	c.JSON(http.StatusOK, gin.H{"repos": repos})
}

func (h *GithubHandler) SelectRepo(c *gin.Context) {
	var req dto.SelectRepoRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Repo == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "repo is required"})
		return
	}

	if err := h.service.SelectRepo(c.Request.Context(), UserId(c), req.Repo); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *GithubHandler) Unlink(c *gin.Context) {
	if err := h.service.Unlink(c.Request.Context(), UserId(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *GithubHandler) TriggerWorkflow(c *gin.Context) {
	var req dto.TriggerWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RecordingId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recording_id is required"})
		return
	}
	recordingId, err := uuid.Parse(req.RecordingId)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recording not found"})
		return
	}

	if err := h.service.TriggerWorkflow(c.Request.Context(), UserId(c), recordingId); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
