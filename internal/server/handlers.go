package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"komaokuri/internal/config"
	"komaokuri/internal/export"
	"komaokuri/internal/imageset"
	"komaokuri/internal/playback"
	"komaokuri/internal/presenter"
	"komaokuri/internal/session"
)

// ErrorResponse はエラー時のレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerInfo はサーバー情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status    string         `json:"status"`
	Server    ServerInfo     `json:"server"`
	View      presenter.View `json:"view"`
	Export    export.Info    `json:"export"`
	Timestamp time.Time      `json:"timestamp"`
}

// SeekRequest はシーク要求
// fraction か x/width のどちらかを指定する
type SeekRequest struct {
	Fraction *float64 `json:"fraction"`
	X        *float64 `json:"x"`
	Width    *float64 `json:"width"`
}

// SpeedRequest は速度スライダーの値
type SpeedRequest struct {
	Value int `json:"value" binding:"required,min=100,max=2000"`
}

// FullscreenRequest は全画面状態の通知
type FullscreenRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// KomaokuriHandler はHTTPリクエストを処理する
type KomaokuriHandler struct {
	config    *config.Config
	session   *session.Session
	presenter *presenter.Presenter
	server    *Server
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *KomaokuriHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *KomaokuriHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
		},
		View:      h.presenter.View(),
		Export:    h.exportInfo(),
		Timestamp: time.Now(),
	})
}

// PostImages はドロップされたファイルで画像集合を置き換える
func (h *KomaokuriHandler) PostImages(c *gin.Context) {
	limit := h.config.Server.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	form, err := c.MultipartForm()
	if isTooLarge(err) {
		abortWithError(c, http.StatusRequestEntityTooLarge, "too_large",
			fmt.Sprintf("アップロードは %d バイトまでです", limit), nil)
		return
	}
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "multipart/form-data で送信してください", err)
		return
	}

	headers := form.File["files"]
	dropped := make([]imageset.DroppedFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid_request", "ファイルを読み込めません", err)
			return
		}
		dropped = append(dropped, imageset.DroppedFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	images := imageset.FromDrop(dropped)
	if err := h.session.Load(images); err != nil {
		h.sessionError(c, err)
		return
	}
	if skipped := len(dropped) - images.Len(); skipped > 0 {
		log.Printf("JPEG以外の %d 件を除外しました", skipped)
	}

	c.JSON(http.StatusOK, h.presenter.View())
}

// DeleteImages は画像集合を空にする
func (h *KomaokuriHandler) DeleteImages(c *gin.Context) {
	if err := h.session.Clear(); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.presenter.View())
}

// Play は再生を開始する
func (h *KomaokuriHandler) Play(c *gin.Context) {
	h.session.Controller().Play()
	c.JSON(http.StatusOK, h.presenter.View())
}

// Pause は再生を一時停止する
func (h *KomaokuriHandler) Pause(c *gin.Context) {
	h.session.Controller().Pause()
	c.JSON(http.StatusOK, h.presenter.View())
}

// Next は次の画像に進む
func (h *KomaokuriHandler) Next(c *gin.Context) {
	h.session.Controller().Next()
	c.JSON(http.StatusOK, h.presenter.View())
}

// Previous は前の画像に戻る
func (h *KomaokuriHandler) Previous(c *gin.Context) {
	h.session.Controller().Previous()
	c.JSON(http.StatusOK, h.presenter.View())
}

// Seek はプログレスバー上の位置に移動する
func (h *KomaokuriHandler) Seek(c *gin.Context) {
	var req SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "リクエストが不正です", err)
		return
	}

	fraction, err := req.resolve()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "シーク位置が不正です", err)
		return
	}

	h.session.Controller().Seek(fraction)
	c.JSON(http.StatusOK, h.presenter.View())
}

func (r SeekRequest) resolve() (float64, error) {
	if r.Fraction != nil {
		return *r.Fraction, nil
	}
	if r.X == nil || r.Width == nil {
		return 0, errors.New("fraction または x と width を指定してください")
	}
	if *r.Width <= 0 || math.IsNaN(*r.Width) {
		return 0, fmt.Errorf("width は正の値が必要です: %v", *r.Width)
	}
	return *r.X / *r.Width, nil
}

// PutSpeed は速度スライダーの値から再生間隔を設定する
func (h *KomaokuriHandler) PutSpeed(c *gin.Context) {
	var req SpeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "速度は 100〜2000 で指定してください", err)
		return
	}

	h.session.Controller().SetSpeed(playback.IntervalFromSlider(req.Value))
	c.JSON(http.StatusOK, h.presenter.View())
}

// GetFrame は表示中の画像を返す
func (h *KomaokuriHandler) GetFrame(c *gin.Context) {
	width := 0
	if raw := c.Query("width"); raw != "" {
		w, err := strconv.Atoi(raw)
		if err != nil || w < 0 {
			abortWithError(c, http.StatusBadRequest, "invalid_request", "width は0以上の整数で指定してください", err)
			return
		}
		width = w
	}

	frame, err := h.presenter.Frame(width)
	if errors.Is(err, presenter.ErrNoImage) {
		abortWithError(c, http.StatusNotFound, "no_image", "表示する画像がありません", nil)
		return
	}
	if err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, "invalid_image", "画像を変換できません", err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("X-Image-Id", frame.ID)
	c.Data(http.StatusOK, frame.MIMEType, frame.Data)
}

// PostFullscreen は表示面からの全画面状態の通知を反映する
func (h *KomaokuriHandler) PostFullscreen(c *gin.Context) {
	var req FullscreenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "active を指定してください", err)
		return
	}

	var view presenter.View
	if *req.Active {
		view = h.presenter.RequestFullscreen()
	} else {
		view = h.presenter.ExitFullscreen()
	}
	c.JSON(http.StatusOK, view)
}

// PostExport はエクスポートを開始する
func (h *KomaokuriHandler) PostExport(c *gin.Context) {
	// リクエストではなくサーバーの寿命に紐づける
	info, err := h.session.StartExport(h.server.baseCtx)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, info)
}

// GetExport は最後のエクスポートの状態を返す
func (h *KomaokuriHandler) GetExport(c *gin.Context) {
	c.JSON(http.StatusOK, h.exportInfo())
}

// DownloadExport は最後に成功したエクスポートの動画を返す
func (h *KomaokuriHandler) DownloadExport(c *gin.Context) {
	artifact, err := h.session.Artifact()
	if err != nil {
		abortWithError(c, http.StatusNotFound, "no_artifact", "ダウンロードできる動画がありません", nil)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, artifact.Filename))
	c.Data(http.StatusOK, artifact.MIMEType, artifact.Data)
}

// Events はビューの変化を Server-Sent Events で配信する
func (h *KomaokuriHandler) Events(c *gin.Context) {
	views, cancel := h.presenter.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()
	serverDone := h.server.baseCtx.Done()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case <-serverDone:
			return false
		case view := <-views:
			c.SSEvent("view", view)
			return true
		}
	})
}

// GetOpenAPI はAPI定義を返す
func (h *KomaokuriHandler) GetOpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", openAPISpec)
}

// GetIndex はWeb UIを返す
func (h *KomaokuriHandler) GetIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", getIndexHTML())
}

// ヘルパー関数

func (h *KomaokuriHandler) exportInfo() export.Info {
	info, err := h.session.Export()
	if err != nil {
		return export.Info{Status: export.StatusNotStarted}
	}
	return info
}

// sessionError はセッションのエラーをHTTPステータスに変換する
func (h *KomaokuriHandler) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrExportRunning):
		abortWithError(c, http.StatusConflict, "export_running", "エクスポート実行中です", nil)
	case errors.Is(err, export.ErrEmptyInput):
		abortWithError(c, http.StatusUnprocessableEntity, "empty_input", "画像が読み込まれていません", nil)
	default:
		abortWithError(c, http.StatusInternalServerError, "internal_error", "内部エラーが発生しました", err)
	}
}

// abortWithError はエラーレスポンスを返して処理を中断する
func abortWithError(c *gin.Context, status int, code, message string, err error) {
	resp := ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	}
	if err != nil {
		resp.Details = stringPtr(err.Error())
	}
	c.AbortWithStatusJSON(status, resp)
}

// isTooLarge はリクエストボディが上限を超えたエラーかを判定する
func isTooLarge(err error) bool {
	if err == nil {
		return false
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	// multipart のパース途中のエラーはラップされないことがある
	return strings.Contains(err.Error(), "request body too large")
}

// readPart はアップロードされたファイルを読み込む
func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("ファイルを開けません (%s): %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("ファイルの読み込みに失敗 (%s): %w", fh.Filename, err)
	}
	return data, nil
}

// stringPtr は文字列のポインタを返すヘルパー関数
func stringPtr(s string) *string {
	return &s
}
