package server

import (
	"net/http"
	"voice-relay/config"
	"voice-relay/handler"
	"voice-relay/repository"
	"voice-relay/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Dependencies struct {
	Repo         repository.Repository
	Recordings   service.RecordingService
	Github       service.GithubService
	DeviceTokens service.DeviceTokenService
	Auth         config.Auth
	BaseURL      string
}

// NewRouter builds the full HTTP surface. Kept separate from RunHttp so
// tests can drive the real routes and middleware in memory.
func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(func(c *gin.Context) {
		// Attach the process logger so zerolog.Ctx works downstream.
		c.Request = c.Request.WithContext(log.Logger.WithContext(c.Request.Context()))
		c.Next()
	})
	r.Use(gin.CustomRecovery(func(c *gin.Context, _ interface{}) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "x-device-token", "x-api-key"},
	}))

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	addHealth(r)

	recordings := handler.NewRecordingHandler(deps.Recordings, deps.BaseURL)
	githubHandler := handler.NewGithubHandler(deps.Github, deps.BaseURL)
	deviceTokens := handler.NewDeviceTokenHandler(deps.DeviceTokens)

	device := r.Group("/")
	device.Use(handler.DeviceAuth(deps.Repo))
	device.POST("/upload-recording", recordings.Upload)
	device.POST("/upload-response", recordings.UploadResponse)
	device.GET("/list-recordings", recordings.List)
	device.GET("/get-recording", recordings.Get)
	device.PATCH("/update-recording", recordings.Update)
	device.POST("/mark-played", recordings.MarkPlayed)

	r.GET("/download-recording", handler.APIKeyAuth(deps.Auth.UploadAPIKey), recordings.Download)

	api := r.Group("/api")
	api.Use(handler.SessionAuth(deps.Auth.JWTSecret))
	api.GET("/github/authorize", githubHandler.Authorize)
	api.GET("/github/callback", githubHandler.Callback)
	api.GET("/github/repos", githubHandler.Repos)
	api.POST("/github/select-repo", githubHandler.SelectRepo)
	api.POST("/github/unlink", githubHandler.Unlink)
	api.POST("/trigger-workflow", githubHandler.TriggerWorkflow)
	api.POST("/device-tokens", deviceTokens.Create)
	api.GET("/device-tokens", deviceTokens.List)
	api.DELETE("/device-tokens/:id", deviceTokens.Revoke)

	return r
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}
