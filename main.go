// Package main はKomaokuriサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"komaokuri/internal/config"
	"komaokuri/internal/export"
	"komaokuri/internal/imageset"
	"komaokuri/internal/playback"
	"komaokuri/internal/presenter"
	"komaokuri/internal/server"
	"komaokuri/internal/session"
)

func main() {
	// コマンドラインオプション
	var (
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		dir        = flag.String("dir", "", "起動時に読み込むJPEG画像のディレクトリ")
		configPath = flag.String("config", os.Getenv(config.ConfigFileEnv), "設定ファイル (YAML)")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("Komaokuri")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  komaokuri [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dir != "" {
		cfg.Playback.Dir = *dir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定が不正です: %v", err)
	}

	controller := playback.NewController(cfg.Playback.Interval)
	encoder := export.NewFFmpegEncoder(cfg.Export.FFmpegPath, cfg.Export.TempDir)
	sess := session.New(controller, encoder, cfg.Export.Options)
	pres := presenter.New(controller)

	if cfg.Playback.Dir != "" {
		images, err := imageset.LoadDir(cfg.Playback.Dir)
		if err != nil {
			log.Fatalf("画像の読み込みに失敗しました: %v", err)
		}
		if err := sess.Load(images); err != nil {
			log.Fatalf("画像の読み込みに失敗しました: %v", err)
		}
	}

	// ffmpeg が無くても再生はできる
	if err := encoder.Validate(context.Background()); err != nil {
		log.Printf("警告: %v", err)
	}

	srv := server.New(cfg, sess, pres)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pres.Run(gctx)
		return nil
	})
	g.Go(func() error {
		// サーバーが止まったら他も止める
		defer cancel()
		log.Printf("Komaokuri サーバーを起動します: %s", cfg.ServerAddress())
		return srv.Start(gctx)
	})

	err = g.Wait()

	// 後片付け
	controller.Close()
	sess.Wait()

	if err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
