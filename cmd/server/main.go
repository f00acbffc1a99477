package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/lingyuqian0301/ev-stage-2/internal/chain"
	"github.com/lingyuqian0301/ev-stage-2/internal/config"
	"github.com/lingyuqian0301/ev-stage-2/internal/ledger"
	"github.com/lingyuqian0301/ev-stage-2/internal/logger"
	"github.com/lingyuqian0301/ev-stage-2/internal/repository"
	"github.com/lingyuqian0301/ev-stage-2/internal/router"
	"github.com/lingyuqian0301/ev-stage-2/internal/scheduler"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化数据库，memory 模式下 db 为空
	db, err := repository.Open(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// 回放事件日志重建账本
	var l *ledger.Ledger
	if db != nil {
		store := repository.NewStore(db)
		events, err := store.LoadEvents(ctx)
		if err != nil {
			logger.Fatal("Failed to load ledger journal: %v", err)
		}
		l = ledger.New(store)
		if err := l.Replay(events); err != nil {
			logger.Fatal("Failed to replay ledger journal: %v", err)
		}
	} else {
		logger.Warn("Running with in-memory journal, state is lost on restart")
		l = ledger.New(ledger.NewMemoryJournal())
	}

	// 初始化付款账户
	var payer scheduler.Payer
	if cfg.Chain.Enabled {
		manager, err := chain.NewManager(ctx, cfg.Chain)
		if err != nil {
			logger.Fatal("Failed to initialize chain client: %v", err)
		}
		defer manager.Close()
		payer = manager
	}

	// 启动定时任务
	tasks, err := scheduler.NewManager(l, db, payer, cfg)
	if err != nil {
		logger.Fatal("Failed to create task manager: %v", err)
	}
	if err := tasks.Start(); err != nil {
		logger.Fatal("Failed to start task manager: %v", err)
	}
	defer tasks.Stop()

	// 初始化路由
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Setup(l, db, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
}
