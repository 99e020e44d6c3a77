package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"komaokuri/internal/export"
	"komaokuri/internal/playback"
)

// ConfigFileEnv は設定ファイルのパスを指定する環境変数
const ConfigFileEnv = "KOMAOKURI_CONFIG"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Playback PlaybackConfig `yaml:"playback"`
	Export   ExportConfig   `yaml:"export"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`                 // リッスンするホスト
	Port int    `yaml:"port" validate:"required,min=1,max=65535"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"min=0"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"min=0"` // 書き込みタイムアウト (SSE用に0で無効)

	// アップロードの上限
	MaxUploadBytes    int64 `yaml:"max_upload_bytes" validate:"min=1"`    // リクエスト全体
	MaxMultipartBytes int64 `yaml:"max_multipart_bytes" validate:"min=1"` // メモリに保持する量。超えた分は一時ファイル
}

// PlaybackConfig は再生の設定
type PlaybackConfig struct {
	Interval time.Duration `yaml:"interval" validate:"required"` // 初期の再生間隔
	Dir      string        `yaml:"dir"`                          // 起動時に読み込む画像ディレクトリ
}

// ExportConfig は動画エクスポートの設定
type ExportConfig struct {
	FFmpegPath string         `yaml:"ffmpeg_path" validate:"required"` // ffmpeg の実行ファイル
	TempDir    string         `yaml:"temp_dir"`                        // 作業ディレクトリの親 (空ならOS既定)
	Options    export.Options `yaml:"options"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化

			MaxUploadBytes:    512 << 20,
			MaxMultipartBytes: 32 << 20,
		},
		Playback: PlaybackConfig{
			Interval: playback.DefaultInterval,
		},
		Export: ExportConfig{
			FFmpegPath: "ffmpeg",
			Options:    export.DefaultOptions(),
		},
	}
}

// Load は設定を読み込む
// 設定ファイルは環境変数 KOMAOKURI_CONFIG で指定する
func Load() (*Config, error) {
	return LoadFrom(os.Getenv(ConfigFileEnv))
}

// LoadFrom は path の設定ファイルを使って設定を読み込む
// デフォルト値、設定ファイル、環境変数の順に上書きする。path が空なら設定ファイルは読まない
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsIntOrDefault("PORT", cfg.Server.Port)
	cfg.Export.FFmpegPath = getEnvOrDefault("FFMPEG_PATH", cfg.Export.FFmpegPath)

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// LoadFile はYAMLファイルの内容で設定を上書きする
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗 (%s): %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("無効な設定 %s: %v (%s)", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return err
	}

	// 再生間隔は再生コントローラの範囲内
	if c.Playback.Interval < playback.MinInterval || c.Playback.Interval > playback.MaxInterval {
		return fmt.Errorf("無効な再生間隔: %s (%s〜%s)", c.Playback.Interval, playback.MinInterval, playback.MaxInterval)
	}

	if q := c.Export.Options.Quality; q < 1 || q > 5 {
		return fmt.Errorf("無効な品質設定: %d (1〜5)", q)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
