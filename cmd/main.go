package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"WarRoster/config"
	"WarRoster/internal/admin"
	"WarRoster/internal/identity"
	"WarRoster/internal/linebot"
	"WarRoster/internal/middleware"
	"WarRoster/internal/roster"
	"WarRoster/internal/scheduler"
	"WarRoster/internal/storage"
	"WarRoster/internal/utils"
	"WarRoster/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"google.golang.org/api/sheets/v4"
)

func main() {
	cfgPath := os.Getenv("WARROSTER_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	if err := config.Load(cfgPath); err != nil {
		utils.Print.Fatal("config load failed", "err", err)
	}
	utils.Init(config.C.Log.Level)
	logger := utils.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	names := roster.ListNamesFrom(config.C.Roster.Lists)

	//-------------------------------------------------------
	// 1. Redis（可选：名单存储 / 显示名称缓存）
	//-------------------------------------------------------
	if config.C.Redis.Addr != "" {
		if err := storage.InitRedis(config.C.Redis.Addr, config.C.Redis.Password, config.C.Redis.DB); err != nil {
			if config.C.Store.Driver == "redis" {
				logger.Fatal("redis init failed", "err", err)
			}
			logger.Warn("redis unavailable, name cache disabled", "err", err)
			storage.Rdb = nil
		}
	}

	//-------------------------------------------------------
	// 2. Google Sheets（名单存储 / 名称对照表）
	//-------------------------------------------------------
	var sheetsSvc *sheets.Service
	if config.C.Sheets.SpreadsheetID != "" &&
		(config.C.Sheets.CredentialsJSON != "" || config.C.Sheets.CredentialsFile != "") {
		svc, err := storage.NewSheets(ctx, config.C.Sheets.CredentialsJSON, config.C.Sheets.CredentialsFile)
		if err != nil {
			logger.Fatal("sheets init failed", "err", err)
		}
		sheetsSvc = svc
	}

	//-------------------------------------------------------
	// 3. 名单存储
	//-------------------------------------------------------
	var repo roster.Repo
	switch config.C.Store.Driver {
	case "memory":
		repo = roster.NewMemoryRepo()
	case "redis":
		repo = roster.NewRedisRepo(storage.Rdb, names)
	case "sheets":
		repo = roster.NewSheetsRepo(sheetsSvc, config.C.Sheets.SpreadsheetID, names)
	case "postgres", "sqlite":
		if err := storage.InitSQL(config.C.Store.Driver, config.C.Store.DSN); err != nil {
			logger.Fatal("sql init failed", "driver", config.C.Store.Driver, "err", err)
		}
		defer storage.DB.Close()
		dialect := roster.Postgres
		if config.C.Store.Driver == "sqlite" {
			dialect = roster.SQLite
		}
		r, err := roster.NewSQLRepo(ctx, storage.DB, dialect, names)
		if err != nil {
			logger.Fatal("sql migrate failed", "err", err)
		}
		repo = r
	}
	logger.Info("roster store ready", "driver", config.C.Store.Driver)

	svc := roster.NewService(repo, utils.Component("roster"))

	//-------------------------------------------------------
	// 4. 成员身份：LINE 显示名称 -> (缓存) -> 对照表
	//-------------------------------------------------------
	lineAPI, err := storage.NewLineAPI(config.C.Line.APIBase, config.C.Line.ChannelToken)
	if err != nil {
		logger.Fatal("line client init failed", "err", err)
	}
	var resolver identity.Resolver = identity.NewLineProfiles(lineAPI)
	if storage.Rdb != nil {
		ttl := time.Duration(config.C.Roster.CacheTTL) * time.Second
		resolver = identity.NewCachedResolver(resolver, storage.Rdb, ttl)
	}
	var mapper identity.Mapper = identity.NewStaticMapper(config.C.Roster.Aliases)
	if sheetsSvc != nil && config.C.Sheets.MappingRange != "" {
		mapper = identity.NewSheetsMapper(sheetsSvc, config.C.Sheets.SpreadsheetID, config.C.Sheets.MappingRange)
	}
	members := identity.NewChain(resolver, mapper, utils.Component("identity"))

	//-------------------------------------------------------
	// 5. 名单实时推送 Hub
	//-------------------------------------------------------
	hub := websocket.NewHub(names, utils.Component("feed"))
	go hub.Run()
	defer hub.Close()

	// 💡 每次变更后推送最新名单
	svc.OnChange = hub.BroadcastRoster

	//-------------------------------------------------------
	// 6. 定时清空
	//-------------------------------------------------------
	if config.C.Roster.ClearAt != "" {
		sched, err := scheduler.New(config.C.Roster.ClearAt, svc, utils.Component("scheduler"))
		if err != nil {
			logger.Fatal("scheduler init failed", "err", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	//-------------------------------------------------------
	// 7. Gin + CORS + 路由
	//-------------------------------------------------------
	if config.C.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "gate": svc.Stats()})
	})

	bot := linebot.NewHandler(svc, members, linebot.NewLineReplier(lineAPI),
		linebot.Options{
			ChannelSecret: config.C.Line.ChannelSecret,
			Names:         names,
			AllowedGroups: config.C.Line.AllowedGroups,
			BotName:       config.C.Line.BotName,
			FriendURL:     config.C.Line.FriendURL,
			Logger:        utils.Component("linebot"),
		})
	// webhook 全部来自 LINE 平台的少数 IP，按 IP 限流会误伤，这里只靠签名校验
	if config.C.Line.ChannelSecret != "" {
		r.POST("/webhook", bot.Webhook)
	} else {
		logger.Warn("line.channel_secret empty, webhook disabled")
	}

	limit := middleware.RateLimit(config.C.Server.RateLimit, config.C.Server.Burst)
	r.GET("/ws", limit, websocket.ServeWS(hub, svc))

	if config.C.JWT.Secret != "" {
		ah := admin.NewHandler(svc)
		adminGroup := r.Group("/admin", limit, middleware.JwtAuthMiddleware([]byte(config.C.JWT.Secret)))
		{
			adminGroup.GET("/roster", ah.Roster)
			adminGroup.GET("/stats", ah.Stats)
			adminGroup.POST("/clear", ah.Clear)
			adminGroup.POST("/remove", ah.Remove)
		}
	} else {
		logger.Warn("jwt.secret empty, admin routes disabled")
	}

	//-------------------------------------------------------
	// 8. 启动服务器
	//-------------------------------------------------------
	srv := &http.Server{Addr: config.C.Server.Port, Handler: r}
	go func() {
		logger.Info("server running", "addr", config.C.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
}
