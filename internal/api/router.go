package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"cimars/catalog/internal/api/handlers"
	"cimars/catalog/internal/api/middleware"
	"cimars/catalog/internal/config"
	"cimars/catalog/internal/email"
	"cimars/catalog/internal/models"
	"cimars/catalog/internal/services"
	"cimars/catalog/internal/storage"
)

// Dependencies are the services the public router dispatches to.
type Dependencies struct {
	Listings    services.IListingService
	Mail        services.IMailService
	Enquiries   services.IEnquiryService
	Media       storage.IMediaStore
	RateLimiter *middleware.RateLimiter
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.CorsOrigins))

	listingHandler := handlers.NewListingHandler(deps.Listings)
	adminHandler := handlers.NewAdminHandler(cfg, deps.Listings)
	mediaHandler := handlers.NewMediaHandler(cfg, deps.Listings, deps.Media)
	mailHandler := handlers.NewMailHandler(deps.Mail, deps.Enquiries)

	readLimit := deps.RateLimiter.Limit(middleware.ReadTier(cfg))
	mailLimit := deps.RateLimiter.Limit(middleware.MailTier(cfg))

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		public := v1.Group("/", readLimit)
		{
			public.GET("/properties", listingHandler.SearchListings)
			public.GET("/properties/featured", listingHandler.GetFeatured)
			public.GET("/properties/constructions", listingHandler.List(models.KindConstruction))
			public.GET("/properties/constructions/:id", listingHandler.Get(models.KindConstruction))
			public.GET("/properties/lands", listingHandler.List(models.KindLand))
			public.GET("/properties/lands/:id", listingHandler.Get(models.KindLand))
			public.GET("/properties/:id", listingHandler.Get(""))
			public.GET("/images/properties/:code", mediaHandler.ListImages)
		}

		v1.POST("/mail/contact", mailLimit, mailHandler.Contact)
		v1.POST("/admin/login", mailLimit, adminHandler.Login)

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			admin.GET("/properties/:id", adminHandler.GetRaw)
			admin.POST("/properties/:id/images", mediaHandler.UploadImages)
			for segment, kind := range map[string]models.ListingKind{
				"constructions": models.KindConstruction,
				"lands":         models.KindLand,
			} {
				admin.POST("/properties/"+segment, adminHandler.Create(kind))
				admin.PATCH("/properties/"+segment+"/:id", adminHandler.Update(kind))
				admin.DELETE("/properties/"+segment+"/:id", adminHandler.Delete(kind))
			}
			admin.GET("/enquiries", mailHandler.ListEnquiries)
			admin.POST("/mail/welcome", mailHandler.Welcome)
			admin.POST("/mail/send", mailHandler.Send)
		}
	}

	return r
}

type serviceRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments"`
}

// SetupServiceRouter configures the internal service API. rdb may be nil
// when Redis is not configured; getTestEmail then reports an error.
func SetupServiceRouter(rdb *redis.Client, counters services.ICounterStore, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req serviceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			slog.Info("shutdown requested via service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				slog.Warn("shutdown already signaled")
			}

		case "getTestEmail":
			// arguments: [template, email]
			var args []string
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [template, email]"})
				return
			}
			if rdb == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Redis not configured"})
				return
			}
			msg, err := pollMockEmail(c.Request.Context(), rdb, args[1], args[0])
			if errors.Is(err, email.ErrNoMockEmail) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("No test email for %s (%s)", args[1], args[0])})
				return
			}
			if err != nil {
				slog.Error("service API getTestEmail", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": msg})

		case "counter":
			// arguments: [prefix]
			var args []string
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 1 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [prefix]"})
				return
			}
			seq, err := counters.Current(c.Request.Context(), args[0])
			if err != nil {
				slog.Error("service API counter", "prefix", args[0], "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Counter store error"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "result": seq})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// pollMockEmail polls ten times, 200ms apart and within a 5s deadline, for
// the worker to deliver, then consumes the stored message.
func pollMockEmail(ctx context.Context, rdb *redis.Client, to, template string) (*email.MockEmail, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for i := 0; i < 10; i++ {
		msg, err := email.ReadMockEmail(ctx, rdb, to, template)
		if err == nil {
			rdb.Del(ctx, email.MockEmailKey(to, template))
			return msg, nil
		}
		if !errors.Is(err, email.ErrNoMockEmail) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return nil, email.ErrNoMockEmail
}
