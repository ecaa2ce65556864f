// Package httpapi wires the HTTP transport (Gin) to the chat services,
// middleware and route handlers. It owns the cross-cutting concerns: tracing,
// correlation IDs, access logs, panic recovery, metrics, CORS, security
// headers, identity, idempotency and rate limiting.
//
//	@title						Group Chat API
//	@version					1.0
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/group-chat-backend/docs"
	"github.com/tbourn/group-chat-backend/internal/config"
	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/http/handlers"
	"github.com/tbourn/group-chat-backend/internal/http/middleware"
	"github.com/tbourn/group-chat-backend/internal/push"
	"github.com/tbourn/group-chat-backend/internal/queue"
	"github.com/tbourn/group-chat-backend/internal/repo"
	"github.com/tbourn/group-chat-backend/internal/services"
)

// chatRepoShim adapts the repository free functions to services.ChatRepo.
type chatRepoShim struct{}

func (chatRepoShim) CreateChatRoom(ctx context.Context, db *gorm.DB, title, slug, creatorID string) (*domain.ChatRoom, error) {
	return repo.CreateChatRoom(ctx, db, title, slug, creatorID)
}

func (chatRepoShim) SlugsWithPrefix(ctx context.Context, db *gorm.DB, base string) ([]string, error) {
	return repo.SlugsWithPrefix(ctx, db, base)
}

func (chatRepoShim) GetChatRoom(ctx context.Context, db *gorm.DB, id string) (*domain.ChatRoom, error) {
	return repo.GetChatRoom(ctx, db, id)
}

func (chatRepoShim) GetChatRoomBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.ChatRoom, error) {
	return repo.GetChatRoomBySlug(ctx, db, slug)
}

func (chatRepoShim) CountMemberChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountMemberChats(ctx, db, userID)
}

func (chatRepoShim) ListMemberChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ChatRoom, error) {
	return repo.ListMemberChatsPage(ctx, db, userID, offset, limit)
}

func (chatRepoShim) SetChatRoomActive(ctx context.Context, db *gorm.DB, id string, active bool) error {
	return repo.SetChatRoomActive(ctx, db, id, active)
}

func (chatRepoShim) AddMember(ctx context.Context, db *gorm.DB, chatID, userID string) (bool, error) {
	return repo.AddMember(ctx, db, chatID, userID)
}

func (chatRepoShim) RemoveMember(ctx context.Context, db *gorm.DB, chatID, userID string) (bool, error) {
	return repo.RemoveMember(ctx, db, chatID, userID)
}

func (chatRepoShim) IsMember(ctx context.Context, db *gorm.DB, chatID, userID string) (bool, error) {
	return repo.IsMember(ctx, db, chatID, userID)
}

// Deps are the process-level dependencies the routes are built from.
type Deps struct {
	DB     *gorm.DB
	Config config.Config
	// Queue receives a fan-out job per stored message. Nil disables fan-out.
	Queue queue.Queue
	Log   zerolog.Logger
}

var corsAllowHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
	"X-User-ID", "X-User-Name", middleware.HeaderIdempotencyKey,
}

var corsExposeHeaders = []string{
	"X-Request-ID", "Content-Length", "ETag", "Location", "Retry-After", "Idempotency-Replayed",
}

// RegisterRoutes attaches all middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. AccessLog: structured logs with redaction
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. gzip, CORS and security headers
//
// The API group then adds Identity, the idempotency validator (before the
// rate limiter so replays bypass it) and the per-user rate limiter.
func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(middleware.AccessLogOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     corsAllowHeaders,
			ExposeHeaders:    corsExposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     corsAllowHeaders,
			ExposeHeaders:    corsExposeHeaders,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", healthHandler(d.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(newHandlerDeps(d))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.Identity(middleware.IdentityOptions{
		JWTSecret: cfg.JWTSecret,
		Upsert: func(ctx context.Context, id, name string) error {
			return repo.UpsertUser(ctx, d.DB, id, name)
		},
	}))
	api.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(d.DB)))
	api.Use(rl.Handler())
	{
		api.POST("/chats", h.CreateChat)
		api.GET("/chats", h.ListChats)
		api.GET("/chats/by-slug/:slug", h.GetChatBySlug)
		api.GET("/chats/:id", h.GetChat)
		api.POST("/chats/:id/join", h.JoinChat)
		api.DELETE("/chats/:id/members/me", h.LeaveChat)
		api.POST("/chats/:id/deactivate", h.DeactivateChat)

		api.GET("/chats/:id/messages", h.ListMessages)
		api.POST("/chats/:id/messages", h.PostMessage)

		notif := api.Group("/notifications", middleware.NoStore())
		notif.GET("", h.ListNotifications)
		notif.GET("/unread-count", h.UnreadCount)
		notif.POST("/:id/read", h.MarkNotificationRead)
		notif.POST("/read-all", h.MarkAllNotificationsRead)

		pg := api.Group("/push", middleware.NoStore())
		pg.GET("/vapid-public-key", h.VAPIDPublicKey)
		pg.GET("/subscriptions", h.ListSubscriptions)
		pg.POST("/subscriptions", h.Subscribe)
		pg.DELETE("/subscriptions", h.Unsubscribe)
	}
}

// newHandlerDeps builds the services behind the handlers.
func newHandlerDeps(d Deps) handlers.Deps {
	msgSvc := services.NewMessageService(d.DB, d.Queue, d.Log)
	if d.Config.IdempotencyTTL > 0 {
		msgSvc.IdempotencyTTL = d.Config.IdempotencyTTL
	}
	return handlers.Deps{
		Chats:           services.NewChatService(d.DB, chatRepoShim{}),
		Messages:        msgSvc,
		Notifications:   services.NewNotificationService(d.DB),
		Push:            push.NewRegistry(d.DB, d.Log),
		VAPIDPublicKey:  d.Config.Push.VAPIDPublicKey,
		MaxContentRunes: msgSvc.MaxContentRunes,
	}
}

// idempotencyLookup reports stored, unexpired keys to the validator.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, chatID, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, chatID, key, now)
		if err != nil || rec == nil {
			return false, nil
		}
		return true, nil
	}
}

// healthHandler reports 503 when the database does not answer a ping.
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err = sqlDB.PingContext(ctx)
			cancel()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// limitBody caps request bodies at maxBytes; reads past the cap fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
