// Package genai 提供了文本生成服务的网关客户端。
// 它封装一组按优先级排列的远端模型：配额耗尽时顺延到下一个模型，
// 请求本身有缺陷或认证失败时立即失败，不做无意义的重试。
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"shop-assist-go/internal/config"
	"shop-assist-go/pkg/log"
)

// 网关的错误分类。调用方依赖这些哨兵区分“换个说法重试”与“配置有问题”。
var (
	// ErrInvalidRequest 表示 prompt 本身被上游判定为非法（HTTP 400）。
	// 换模型重试只会掩盖 bug，所以立即失败。
	ErrInvalidRequest = errors.New("genai: invalid request")
	// ErrAuthFailed 表示认证失败（HTTP 401/403），属于配置级的致命错误。
	ErrAuthFailed = errors.New("genai: authentication failed")
	// ErrAllModelsExhausted 表示所有模型都因配额耗尽（或超时）而不可用。
	ErrAllModelsExhausted = errors.New("genai: all models exhausted")
)

// Client 定义了文本生成网关的接口。
type Client interface {
	// Generate 用给定 prompt 生成一段回复文本。
	Generate(ctx context.Context, prompt string) (string, error)
}

type httpClient struct {
	cfg    config.GenAIConfig
	client *http.Client
}

// NewClient 创建一个新的生成网关实例。调用间不保留任何状态。
func NewClient(cfg config.GenAIConfig) Client {
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// 与 Gemini generateContent 兼容的请求/响应结构。
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate 按优先级顺序逐个尝试配置的模型。
// 配额耗尽（429）与单次尝试超时都只是“这个模型暂时不可用”，记录后换下一个；
// 其余错误立即向调用方返回。全部模型耗尽后返回 ErrAllModelsExhausted。
func (c *httpClient) Generate(ctx context.Context, prompt string) (string, error) {
	if len(c.cfg.Models) == 0 {
		return "", fmt.Errorf("genai: no models configured: %w", ErrAllModelsExhausted)
	}

	attemptTimeout := time.Duration(c.cfg.AttemptTimeoutSeconds) * time.Second

	for _, model := range c.cfg.Models {
		text, err := c.generateWithModel(ctx, model, prompt, attemptTimeout)
		if err == nil {
			return text, nil
		}

		if errors.Is(err, errQuotaExceeded) {
			log.Warnf("[GenAI] 模型 %s 配额耗尽，尝试下一个模型", model)
			continue
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			// 单次尝试超时但整体请求还活着：与配额耗尽同样处理
			log.Warnf("[GenAI] 模型 %s 调用超时，尝试下一个模型", model)
			continue
		}
		if errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrAuthFailed) {
			log.Errorf("[GenAI] 模型 %s 调用被拒绝: %v", model, err)
			return "", err
		}
		return "", fmt.Errorf("genai: model %s: %w", model, err)
	}

	return "", ErrAllModelsExhausted
}

// errQuotaExceeded 仅在包内使用：单个模型配额耗尽，外部只会看到
// ErrAllModelsExhausted。
var errQuotaExceeded = errors.New("genai: quota exceeded")

func (c *httpClient) generateWithModel(ctx context.Context, model, prompt string, timeout time.Duration) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(attemptCtx, "POST", url, bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fallthrough to decode
	case http.StatusTooManyRequests:
		return "", errQuotaExceeded
	case http.StatusBadRequest:
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: %s", ErrInvalidRequest, string(body))
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", ErrAuthFailed
	default:
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generate api returned non-200 status: %s, body: %s", resp.Status, string(body))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("received empty candidates from model %s", model)
	}
	return genResp.Candidates[0].Content.Parts[0].Text, nil
}
