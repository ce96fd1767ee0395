package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	apirest "dsdungeon/api/rest"
	"dsdungeon/cache"
	"dsdungeon/config"
	dbadapter "dsdungeon/db"
	"dsdungeon/game/question"
	mw "dsdungeon/middleware"
	"dsdungeon/model"
	"dsdungeon/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Security.JWTSecret == "" {
		logger.Warn("security.jwt_secret is not set; sessions will not survive restarts safely")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Cache ----
	c, err := cache.New(cache.Config{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Handlers ----
	userH := apirest.NewUserHandler(db, c, cfg.Security)
	progressH := apirest.NewProgressHandler(db)
	questionH := apirest.NewQuestionHandler(db, logger)
	boardH := apirest.NewLeaderboardHandler(db, c, cfg.Game.LeaderboardSize, logger)

	if err := questionH.SeedCatalog(question.MustBank()); err != nil {
		log.Fatalf("question seed: %v", err)
	}

	// Keep cached ranks tracking recent saves.
	sched.Every("leaderboard-refresh", time.Duration(cfg.Game.RefreshRankingS)*time.Second, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		boardH.Refresh(ctx)
	})

	// ---- Gin HTTP server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger, "/health"), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	auth := mw.Auth(cfg.Security, c)
	authOpt := mw.AuthOptional(cfg.Security, c)

	api := r.Group("/api")
	{
		usersG := api.Group("/users")
		usersG.POST("/register", userH.Register)
		usersG.POST("/login", userH.Login)
		usersG.POST("/logout", auth, userH.Logout)
		usersG.GET("/profile", auth, userH.Profile)
		usersG.GET("/check", auth, userH.Check)

		progressG := api.Group("/progress")
		progressG.Use(auth)
		progressG.GET("", progressH.Get)
		progressG.POST("", progressH.Create)
		progressG.PUT("", progressH.Update)
		progressG.DELETE("", progressH.Delete)

		questionsG := api.Group("/questions")
		questionsG.GET("/by-room-chest", authOpt, questionH.ByRoomChest)
		questionsG.GET("/random", authOpt, questionH.Random)
		questionsG.GET("/stats", authOpt, questionH.Stats)
		questionsG.POST("/answered", auth, questionH.RecordAnswered)
		questionsG.GET("/answered", auth, questionH.ListAnswered)

		api.GET("/leaderboard", boardH.Get)
	}

	// ---- Browser client static files ----
	if cfg.Server.WebDir != "" {
		r.Static("/static", cfg.Server.WebDir)
		r.StaticFile("/", cfg.Server.WebDir+"/index.html")
		r.NoRoute(func(c *gin.Context) {
			path := cfg.Server.WebDir + c.Request.URL.Path
			if _, err := os.Stat(path); err == nil {
				c.File(path)
				return
			}
			c.JSON(404, gin.H{"error": "not found"})
		})
		logger.Info("Serving web client", zap.String("dir", cfg.Server.WebDir))
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
