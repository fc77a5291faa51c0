package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"docqa-go/internal/service"
	"docqa-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// 单次请求（含首次入库）的最长处理时间。
const runTimeout = 10 * time.Minute

// QAHandler 负责处理文档问答请求。
type QAHandler struct {
	qaService service.QAService
	maxBytes  int64
}

// NewQAHandler 创建一个新的 QAHandler 实例。
func NewQAHandler(qaService service.QAService, maxBytes int64) *QAHandler {
	return &QAHandler{qaService: qaService, maxBytes: maxBytes}
}

// Run 处理同步问答请求，按问题顺序返回全部回答。
func (h *QAHandler) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "invalid request body: " + err.Error()})
		return
	}
	in, err := req.ToInput(h.maxBytes)
	if err != nil {
		writeRunError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), runTimeout)
	defer cancel()

	answers, err := h.qaService.Run(ctx, in)
	if err != nil {
		writeRunError(c, err)
		return
	}
	c.JSON(http.StatusOK, RunResponse{Answers: answers})
}

func writeRunError(c *gin.Context, err error) {
	if service.IsInvalidInput(err) {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error()})
		return
	}
	log.Error("[QAHandler] 处理问答请求失败", err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "internal server error"})
}

// streamMessage 是 WebSocket 上发送的消息。
type streamMessage struct {
	Type    string `json:"type"`
	Index   *int   `json:"index,omitempty"`
	Chunk   string `json:"chunk,omitempty"`
	Answer  string `json:"answer,omitempty"`
	Message string `json:"message,omitempty"`
}

// wsSink 把回答增量写入 WebSocket 连接。
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) send(msg streamMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *wsSink) Chunk(index int, chunk string) error {
	return s.send(streamMessage{Type: "chunk", Index: &index, Chunk: chunk})
}

func (s *wsSink) Answer(index int, answer string) error {
	return s.send(streamMessage{Type: "answer", Index: &index, Answer: answer})
}

// Stream 处理 WebSocket 流式问答：客户端发送一条 RunRequest，服务端逐个问题推送增量与完整回答。
func (h *QAHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("[QAHandler] WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	sink := &wsSink{conn: conn}
	_, message, err := conn.ReadMessage()
	if err != nil {
		log.Warnf("[QAHandler] 从 WebSocket 读取请求失败: %v", err)
		return
	}

	var req RunRequest
	if err := json.Unmarshal(message, &req); err != nil {
		_ = sink.send(streamMessage{Type: "error", Message: "invalid request body: " + err.Error()})
		return
	}
	in, err := req.ToInput(h.maxBytes)
	if err != nil {
		_ = sink.send(streamMessage{Type: "error", Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), runTimeout)
	defer cancel()

	log.Infof("[QAHandler] 开始流式问答, 问题数: %d", len(in.Questions))
	if err := h.qaService.Stream(ctx, in, sink); err != nil {
		msg := "internal server error"
		if service.IsInvalidInput(err) {
			msg = err.Error()
		} else {
			log.Error("[QAHandler] 流式问答失败", err)
		}
		_ = sink.send(streamMessage{Type: "error", Message: msg})
		return
	}
	_ = sink.send(streamMessage{Type: "completion"})
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
