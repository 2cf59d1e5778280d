package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/text/language"

	"github.com/jengzang/walkaround-go/internal/analysis"
	"github.com/jengzang/walkaround-go/internal/api"
	"github.com/jengzang/walkaround-go/internal/config"
	"github.com/jengzang/walkaround-go/internal/database"
	"github.com/jengzang/walkaround-go/internal/geocode"
	"github.com/jengzang/walkaround-go/internal/handler"
	"github.com/jengzang/walkaround-go/internal/middleware"
	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/monitoring"
	"github.com/jengzang/walkaround-go/internal/repository"
	"github.com/jengzang/walkaround-go/internal/service"
	"github.com/jengzang/walkaround-go/internal/tracking"
)

var (
	serverLog     = monitoring.Component("Server")
	breakpointLog = monitoring.Component("Breakpoint")
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化数据库
	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	store := repository.NewStore(db)
	settings := config.NewStoredSettings(store.Settings)

	// 逆地理编码
	locale, err := language.Parse(cfg.DefaultLocale)
	if err != nil {
		serverLog.Printf("Invalid DEFAULT_LOCALE %q, using en: %v", cfg.DefaultLocale, err)
		locale = language.English
	}
	provider := geocode.NewNominatim(geocode.NominatimConfig{
		BaseURL:   cfg.GeocoderURL,
		UserAgent: cfg.GeocoderUserAgent,
		Timeout:   cfg.GeocoderTimeout,
	}, nil)
	resolver := geocode.NewResolver(provider, geocode.NewLocaleCache(store.Settings), geocode.ResolverConfig{
		DefaultLocale: locale,
		Timeout:       cfg.GeocoderTimeout,
	})

	// 记录会话
	locations := tracking.NewPushLocationSource(256)
	steps := tracking.NewPushStepSource(tracking.ParseStepMode(cfg.StepSource), 256)
	tracker := tracking.NewTracker(store, resolver, settings, locations, steps, tracking.Options{
		OnBreakpoint: func(rec models.AddressRecord, initial bool) {
			if city, ok := rec.CityDisplayWithFeature(); ok {
				breakpointLog.Printf("section %d: %s (initial=%v)", *rec.SectionID, city, initial)
			}
		},
	})

	segmenter := analysis.NewSegmenter(store, resolver, settings)
	sessionService := service.NewSessionService(tracker, locations, steps, resolver, nil)
	sectionService := service.NewSectionService(store, resolver, settings, segmenter, tracker)
	settingsService := service.NewSettingsService(store.Settings)

	// 初始化路由
	router := api.SetupRouter(cfg, api.Handlers{
		Session:  handler.NewSessionHandler(sessionService),
		Sections: handler.NewSectionHandler(sectionService, nil),
		Settings: handler.NewSettingsHandler(settingsService),
		Ingest:   middleware.NewRateLimiter(cfg.IngestRateLimit, time.Minute, nil),
		DB:       db,
	})

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	go func() {
		serverLog.Printf("Server starting on port %s (steps=%s)", cfg.Port, steps.Mode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	serverLog.Printf("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 正在记录的会话先收尾
	if summary, err := tracker.Stop(ctx); err != nil {
		serverLog.Printf("Failed to stop session cleanly: %v", err)
	} else if summary != nil {
		serverLog.Printf("Closed section %d (%d steps)", summary.SectionID, summary.Steps)
	}

	if err := srv.Shutdown(ctx); err != nil {
		serverLog.Printf("Server shutdown error: %v", err)
	}
}
