package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/devhub/internal/auth"
	"github.com/geocoder89/devhub/internal/cache"
	"github.com/geocoder89/devhub/internal/github"
	"github.com/geocoder89/devhub/internal/http/handlers"
	"github.com/geocoder89/devhub/internal/http/middlewares"
	"github.com/geocoder89/devhub/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// TokenManager issues tokens at register/login and verifies them on every
// authenticated route.
type TokenManager interface {
	Issue(userID string) (string, error)
	Verify(token string) (*auth.Claims, error)
}

// Deps are the collaborators the API needs. Cache, Prom and Metrics may be nil.
type Deps struct {
	Users    handlers.UsersRepository
	Profiles handlers.ProfilesRepository
	Accounts handlers.AccountsRepository
	Posts    handlers.PostsRepository
	GitHub   github.ReposFetcher
	Cache    cache.Store
	Tokens   TokenManager

	Prom    *observability.Prom
	Metrics http.Handler

	// readiness checks by dependency name
	Checks map[string]handlers.Pinger
}

type Options struct {
	Env            string
	ServiceName    string
	CORSOrigins    []string
	AuthRateLimit  int
	AuthRateWindow time.Duration
	MaxBodyBytes   int64
}

func NewRouter(log *slog.Logger, deps Deps, opts Options) *gin.Engine {
	if opts.Env != "dev" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "devhub-api"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"http://localhost:3000"}
	}
	if opts.AuthRateLimit <= 0 {
		opts.AuthRateLimit = 20
	}
	if opts.AuthRateWindow <= 0 {
		opts.AuthRateWindow = time.Minute
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(opts.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(opts.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(opts.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	health := handlers.NewHealthHandler(deps.Checks)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	authMW := middlewares.NewAuthMiddleware(deps.Tokens)
	requireAuth := authMW.RequireAuth()

	authLimiter := middlewares.NewRateLimiter(opts.AuthRateLimit, opts.AuthRateWindow)
	limitByIP := authLimiter.RateLimiterMiddleware(middlewares.KeyByIP)

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Tokens)
	profileHandler := handlers.NewProfileHandler(deps.Profiles, deps.Accounts, deps.GitHub, deps.Cache, deps.Prom)
	postHandler := handlers.NewPostHandler(deps.Posts, deps.Users)

	api := r.Group("/api")

	// accounts
	api.POST("/users", limitByIP, authHandler.Register)
	api.POST("/auth", limitByIP, authHandler.Login)
	api.GET("/auth", requireAuth, authHandler.Me)

	// profiles
	profiles := api.Group("/profile")
	profiles.GET("/all", profileHandler.List)
	profiles.GET("/user/:id", profileHandler.GetByUser)
	profiles.GET("/github/:username", profileHandler.GitHubRepos)

	myProfile := profiles.Group("", requireAuth)
	myProfile.GET("/me", profileHandler.Me)
	myProfile.POST("", profileHandler.Upsert)
	myProfile.DELETE("", profileHandler.DeleteAccount)
	myProfile.PUT("/experience", profileHandler.AddExperience)
	myProfile.DELETE("/experience/:id", profileHandler.RemoveExperience)
	myProfile.PUT("/education", profileHandler.AddEducation)
	myProfile.DELETE("/education/:id", profileHandler.RemoveEducation)

	// posts
	posts := api.Group("/posts", requireAuth)
	posts.POST("", postHandler.Create)
	posts.GET("", postHandler.List)
	posts.GET("/:id", postHandler.GetByID)
	posts.DELETE("/:id", postHandler.Delete)
	posts.PUT("/like/:id", postHandler.Like)
	posts.PUT("/unlike/:id", postHandler.Unlike)
	posts.POST("/comment/:id", postHandler.AddComment)
	posts.DELETE("/comment/:post_id/:comment_id", postHandler.RemoveComment)

	return r
}
