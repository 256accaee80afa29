package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"shutterbox/internal/repository/sqlite"
	"shutterbox/internal/session"
	"shutterbox/internal/settings"
)

// Controller は撮影・録画の操作を提供する
type Controller interface {
	Status() session.StatusInfo
	StartCapture(delaySeconds float64, shotCount int) (string, error)
	StartCaptureWithDefaults() (string, error)
	CancelCapture() error
	StartRecording(durationSeconds float64) (string, error)
	StartRecordingWithDefaults() (string, error)
	StopRecording() error
	SetOutputRoot(path string) (string, error)
	Subscribe() (<-chan session.Event, func())
}

// SettingsReader は撮影設定を読み込む
type SettingsReader interface {
	Load() (settings.Settings, error)
}

// HistoryReader はセッション履歴を参照する
type HistoryReader interface {
	List(ctx context.Context, limit int) ([]session.Report, error)
	Get(ctx context.Context, id string) (session.Report, error)
}

// Dependencies はハンドラが使う部品
type Dependencies struct {
	Controller Controller
	Settings   SettingsReader
	History    HistoryReader // nil なら履歴APIは空を返す
}

// Handler はAPIハンドラ
type Handler struct {
	deps     Dependencies
	upgrader websocket.Upgrader
	closing  <-chan struct{}
}

// NewHandler は新しいHandlerを作成する
func NewHandler(deps Dependencies, closing <-chan struct{}) *Handler {
	return &Handler{
		deps:    deps,
		closing: closing,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ErrorResponse はエラー応答
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CaptureRequest は撮影開始リクエスト。省略した項目は保存済みの既定値を使う
type CaptureRequest struct {
	DelaySeconds *float64 `json:"delay_seconds" binding:"omitempty,min=0,max=3600"`
	ShotCount    *int     `json:"shot_count" binding:"omitempty,min=1,max=100"`
}

// RecordingRequest は録画開始リクエスト
type RecordingRequest struct {
	DurationSeconds *float64 `json:"duration_seconds" binding:"omitempty,gt=0,max=86400"`
}

// OutputRootRequest は保存先変更リクエスト
type OutputRootRequest struct {
	Path string `json:"path" binding:"required"`
}

// SessionStartedResponse はセッション開始の応答
type SessionStartedResponse struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *Handler) GetStatus(c *gin.Context) {
	response := gin.H{
		"status":    h.deps.Controller.Status(),
		"timestamp": time.Now(),
	}
	if s, err := h.deps.Settings.Load(); err == nil {
		response["settings"] = s
	}
	c.JSON(http.StatusOK, response)
}

// StartCapture は撮影開始エンドポイントの実装
func (h *Handler) StartCapture(c *gin.Context) {
	var req CaptureRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	var (
		id  string
		err error
	)
	if req.DelaySeconds == nil && req.ShotCount == nil {
		id, err = h.deps.Controller.StartCaptureWithDefaults()
	} else {
		defaults, loadErr := h.deps.Settings.Load()
		if loadErr != nil {
			h.respondError(c, loadErr)
			return
		}
		delay, count := defaults.CaptureDelay, defaults.BurstCount
		if req.DelaySeconds != nil {
			delay = *req.DelaySeconds
		}
		if req.ShotCount != nil {
			count = *req.ShotCount
		}
		id, err = h.deps.Controller.StartCapture(delay, count)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, SessionStartedResponse{SessionID: id, Kind: string(session.KindCapture)})
}

// CancelCapture は撮影中止エンドポイントの実装
func (h *Handler) CancelCapture(c *gin.Context) {
	if err := h.deps.Controller.CancelCapture(); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StartRecording は録画開始エンドポイントの実装
func (h *Handler) StartRecording(c *gin.Context) {
	var req RecordingRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	var (
		id  string
		err error
	)
	if req.DurationSeconds == nil {
		id, err = h.deps.Controller.StartRecordingWithDefaults()
	} else {
		id, err = h.deps.Controller.StartRecording(*req.DurationSeconds)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, SessionStartedResponse{SessionID: id, Kind: string(session.KindRecording)})
}

// StopRecording は録画停止エンドポイントの実装
func (h *Handler) StopRecording(c *gin.Context) {
	if err := h.deps.Controller.StopRecording(); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSettings は撮影設定取得エンドポイントの実装
func (h *Handler) GetSettings(c *gin.Context) {
	s, err := h.deps.Settings.Load()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// SetOutputRoot は保存先変更エンドポイントの実装
func (h *Handler) SetOutputRoot(c *gin.Context) {
	var req OutputRootRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	path, err := h.deps.Controller.SetOutputRoot(req.Path)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"output_directory": path})
}

// ListSessions はセッション履歴一覧エンドポイントの実装
func (h *Handler) ListSessions(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, newErrorResponse("invalid_parameter", "limit は1から1000の整数で指定してください"))
			return
		}
		limit = n
	}

	if h.deps.History == nil {
		c.JSON(http.StatusOK, gin.H{"sessions": []session.Report{}})
		return
	}

	reports, err := h.deps.History.List(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": reports})
}

// GetSession はセッション履歴取得エンドポイントの実装
func (h *Handler) GetSession(c *gin.Context) {
	if h.deps.History == nil {
		c.JSON(http.StatusNotFound, newErrorResponse("session_not_found", "指定されたセッションが見つかりません"))
		return
	}

	report, err := h.deps.History.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// bindOptionalJSON は本文がある場合だけJSONを読み込む
func (h *Handler) bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		h.respondBindError(c, err)
		return false
	}
	return true
}

func (h *Handler) respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, newErrorResponse("invalid_parameter", err.Error()))
}

// respondError はエラーの種類に応じたステータスコードで応答する
func (h *Handler) respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"

	switch {
	case errors.Is(err, session.ErrInvalidParameter):
		status, code = http.StatusBadRequest, "invalid_parameter"
	case errors.Is(err, session.ErrSessionBusy):
		status, code = http.StatusConflict, "session_busy"
	case errors.Is(err, session.ErrNoSession):
		status, code = http.StatusConflict, "no_active_session"
	case errors.Is(err, session.ErrSourceLost):
		status, code = http.StatusServiceUnavailable, "source_unavailable"
	case errors.Is(err, session.ErrStorageUnavailable):
		status, code = http.StatusInsufficientStorage, "storage_unavailable"
	case errors.Is(err, sqlite.ErrNotFound):
		status, code = http.StatusNotFound, "session_not_found"
	}

	if status == http.StatusInternalServerError {
		log.Printf("APIエラー: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, newErrorResponse(code, err.Error()))
}

func newErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	}
}
