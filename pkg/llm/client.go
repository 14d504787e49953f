// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"doc-theme-go/internal/config"
	"doc-theme-go/pkg/log"
)

// 错误分类。调用方通过 errors.Is 区分降级路径。
var (
	// ErrConnectivity 表示网络/超时类故障，下游应走预览降级路径。
	ErrConnectivity = errors.New("llm: connectivity failure")
	// ErrRateLimited 表示限流或载荷过大，下游应走固定提示降级路径。
	ErrRateLimited = errors.New("llm: rate limited or payload too large")
)

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options 控制单次补全的生成行为。
type Options struct {
	Temperature float64
	JSONMode    bool
	MaxTokens   int
}

// Client defines the interface for an LLM client.
type Client interface {
	// Complete 以 role-based 消息调用聊天接口，返回完整文本负载。
	// 模型输出一律视为不可信数据，由调用方防御式解析。
	Complete(ctx context.Context, messages []Message, opts *Options) (string, error)
}

type openAICompatibleClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client based on the config.
func NewClient(cfg config.LLMConfig) Client {
	return &openAICompatibleClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete calls the OpenAI-compatible chat completions API and returns the full payload.
func (c *openAICompatibleClient) Complete(ctx context.Context, messages []Message, opts *Options) (string, error) {
	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
	}
	if opts != nil {
		if opts.Temperature > 0 {
			t := opts.Temperature
			reqBody.Temperature = &t
		}
		if opts.JSONMode {
			reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
		}
		if opts.MaxTokens > 0 {
			m := opts.MaxTokens
			reqBody.MaxTokens = &m
		}
	}
	if reqBody.MaxTokens == nil && c.cfg.MaxTokens > 0 {
		m := c.cfg.MaxTokens
		reqBody.MaxTokens = &m
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		// 传输层故障（含超时）统一归类为连接错误
		log.Errorf("[LLMClient] 调用 Chat API 失败: %v", err)
		return "", fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		log.Errorf("[LLMClient] Chat API 返回非 200 状态码: %s, body: %s", resp.Status, string(bodyBytes))
		return "", classifyStatus(resp.StatusCode, resp.Status)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// classifyStatus 将 HTTP 状态码映射到错误分类。
func classifyStatus(code int, status string) error {
	switch code {
	case http.StatusTooManyRequests, http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %s", ErrRateLimited, status)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ErrConnectivity, status)
	default:
		return fmt.Errorf("chat api returned non-200 status: %s", status)
	}
}

// IsConnectivityError 判断一个错误是否属于连接类故障。
// 除了客户端自身标注的 ErrConnectivity，也识别裸的网络错误与超时。
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectivity) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
