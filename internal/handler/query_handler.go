package handler

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"doc-theme-go/internal/service"
	"doc-theme-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// QueryHandler 负责处理查询管线相关的 API 请求。
type QueryHandler struct {
	queryService service.QueryService
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(queryService service.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// queryRequest 是 POST /query 的请求体。
type queryRequest struct {
	Query  string   `json:"query" binding:"required"`
	DocIDs []string `json:"doc_ids"`
}

// Query 执行完整的查询管线。
// 模型降级不算失败：即使综合回答里带着 error 字段也返回 200，
// 只有文档清单不可读时才报 5xx。
func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体缺少 query 字段"})
		return
	}

	result, err := h.queryService.Query(c.Request.Context(), req.Query, req.DocIDs)
	if err != nil {
		log.Error("Query: 查询管线失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "文档清单不可用"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// progressEvent 是 WebSocket 流上的一条进度消息。
type progressEvent struct {
	Type    string      `json:"type"`
	Stage   string      `json:"stage,omitempty"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// QueryStream 通过 WebSocket 执行查询管线并推送各阶段进度，
// 最后推送完整结果。
func (h *QueryHandler) QueryStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("QueryStream: WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	var req queryRequest
	if err := conn.ReadJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		_ = conn.WriteJSON(progressEvent{Type: "error", Error: "首条消息必须是包含 query 字段的 JSON"})
		return
	}

	// 逐文档进度来自并发 worker，写连接需要串行化
	var writeMu sync.Mutex
	progress := func(stage, message string) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(progressEvent{Type: "progress", Stage: stage, Message: message}); err != nil {
			log.Warnf("QueryStream: 推送进度失败: %v", err)
		}
	}

	result, err := h.queryService.QueryWithProgress(c.Request.Context(), req.Query, req.DocIDs, progress)
	if err != nil {
		_ = conn.WriteJSON(progressEvent{Type: "error", Error: "文档清单不可用"})
		return
	}
	_ = conn.WriteJSON(progressEvent{Type: "result", Result: result})
}

// RecentQueries 返回最近的查询历史。
func (h *QueryHandler) RecentQueries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	entries, err := h.queryService.RecentQueries(c.Request.Context(), limit)
	if err != nil {
		log.Error("RecentQueries: 读取查询历史失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取查询历史失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queries": entries})
}

// Search 对索引执行分块级检索，返回相关度排序的分块匹配。
func (h *QueryHandler) Search(c *gin.Context) {
	text := c.Query("q")
	if strings.TrimSpace(text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少检索词 q"})
		return
	}

	var docIDs []string
	if raw := c.Query("doc_ids"); raw != "" {
		docIDs = strings.Split(raw, ",")
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	matches := h.queryService.Search(c.Request.Context(), text, docIDs, limit)
	c.JSON(http.StatusOK, gin.H{
		"matches": matches,
		"count":   len(matches),
	})
}
