package router

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/adythan1/Tax-Returns/config"
	"github.com/adythan1/Tax-Returns/handler"
	"github.com/adythan1/Tax-Returns/middleware"
	"github.com/adythan1/Tax-Returns/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// loginRate caps login attempts per client per minute
const loginRate = 10

// Services are the wired components the HTTP surface exposes
type Services struct {
	Backend service.Backend
	Intake  *service.IntakeService
	Admin   *service.AdminService
}

// New builds the gin engine with middleware and every route
func New(cfg *config.Config, svc *Services) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = cfg.Server.MaxMultipartMemory

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))
	r.Use(middleware.NoCache())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"storage":   svc.Backend.Kind(),
		})
	})

	authHandler := handler.NewAuthHandler(cfg)
	intakeHandler := handler.NewIntakeHandler(svc.Intake, &cfg.Intake)
	adminHandler := handler.NewAdminHandler(svc.Admin)

	// Public routes
	api := r.Group("/api")
	{
		api.POST("/submit-portal", middleware.RateLimit(cfg.Server.RateLimit, time.Minute, "Too many submissions. Please try again later."), intakeHandler.Submit)
		api.POST("/admin/login", middleware.RateLimit(loginRate, time.Minute, "Too many login attempts. Please try again later."), authHandler.Login)
	}

	// Protected routes
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		admin.GET("/me", authHandler.GetCurrentUser)
		admin.GET("/submissions", adminHandler.List)
		admin.GET("/submissions/:folder", adminHandler.Get)
		admin.GET("/stats", adminHandler.Stats)
		admin.GET("/download", adminHandler.Download)
		admin.GET("/download-zip", adminHandler.DownloadZip)
		admin.POST("/update-status", adminHandler.UpdateStatus)
	}

	r.NoRoute(staticFallback(cfg.Server.StaticDir))
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AddAllowHeaders("Authorization", middleware.RequestIDHeader)
	c.AddExposeHeaders(middleware.RequestIDHeader, "Content-Disposition")
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}

// staticFallback serves the compiled web client from dir. Unknown paths
// get index.html so client side routes load; /api paths always 404.
func staticFallback(dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if dir == "" || strings.HasPrefix(p, "/api/") || c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Not found", "reason": "not_found"})
			return
		}

		// path.Clean on a rooted path cannot climb above dir
		file := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+p)))
		if st, err := os.Stat(file); err == nil && !st.IsDir() {
			c.File(file)
			return
		}
		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Not found", "reason": "not_found"})
			return
		}
		c.File(index)
	}
}
