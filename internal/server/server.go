package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"komaokuri/internal/config"
	"komaokuri/internal/presenter"
	"komaokuri/internal/session"
)

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	engine     *gin.Engine
	httpServer *http.Server

	// サーバーの寿命。Shutdown でキャンセルされる
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, sess *session.Session, pres *presenter.Presenter) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:     cfg,
		engine:     gin.Default(),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.engine.MaxMultipartMemory = cfg.Server.MaxMultipartBytes
	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      s.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}

	s.setupRoutes(&KomaokuriHandler{
		config:    cfg,
		session:   sess,
		presenter: pres,
		server:    s,
	})
	return s
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes(h *KomaokuriHandler) {
	r := s.engine

	// ヘルスチェックエンドポイント
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	{
		api.GET("/status", h.GetStatus)
		api.GET("/openapi.yaml", h.GetOpenAPI)

		api.POST("/images", h.PostImages)
		api.DELETE("/images", h.DeleteImages)

		api.POST("/playback/play", h.Play)
		api.POST("/playback/pause", h.Pause)
		api.POST("/playback/next", h.Next)
		api.POST("/playback/previous", h.Previous)
		api.POST("/playback/seek", h.Seek)
		api.PUT("/playback/speed", h.PutSpeed)

		api.GET("/frame", h.GetFrame)
		api.POST("/fullscreen", h.PostFullscreen)

		api.POST("/export", h.PostExport)
		api.GET("/export", h.GetExport)
		api.GET("/export/download", h.DownloadExport)

		api.GET("/events", h.Events)
	}

	// Web UI
	r.GET("/", h.GetIndex)
	r.StaticFileFS("/favicon.svg", "favicon.svg", GetStaticFS())
	r.StaticFS("/assets", GetAssetsFS())
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		log.Printf("HTTPサーバーを起動しています: %s", s.config.ServerAddress())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		s.cancelBase()
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	// SSE とエクスポートを終了させる
	s.cancelBase()

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}
