package lmstudio

/*
				Porter LM Studio Client
	Thin HTTP client for an OpenAI-compatible local inference server
	(LM Studio, llama.cpp server, vLLM in OpenAI mode). The transport is
	tuned for token streaming: keep-alives to avoid reconnection churn,
	Nagle disabled so tokens leave as soon as they're generated, and no
	compression since it only adds latency on a loopback link.
*/

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/thushan/porter/internal/config"
	"github.com/thushan/porter/internal/core/domain"
	"github.com/thushan/porter/internal/logger"
)

const (
	modelsPath          = "/v1/models"
	chatCompletionsPath = "/v1/chat/completions"

	DefaultKeepAlive           = 60 * time.Second
	DefaultMaxIdleConns        = 20
	DefaultMaxIdleConnsPerHost = 5
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second

	errorBodyLimit = 4 * 1024
)

type Client struct {
	httpClient *http.Client
	logger     *logger.StyledLogger
	baseURL    string
}

func New(cfg config.UpstreamConfig, logger *logger.StyledLogger) *Client {
	transport := &http.Transport{
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		DisableCompression:    true,
		ResponseHeaderTimeout: cfg.ConnectionTimeout,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{
				Timeout:   cfg.ConnectionTimeout,
				KeepAlive: DefaultKeepAlive,
			}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// disable nagle's algorithm so tokens are sent immediately
			// rather than waiting to fill tcp segments
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				if terr := tcpConn.SetNoDelay(true); terr != nil {
					logger.Warn("failed to set NoDelay", "error", terr)
				}
			}
			return conn, nil
		},
	}

	return &Client{
		baseURL: cfg.BaseURL,
		// no Client.Timeout here - it would cut off long generations
		// mid-stream; per-request contexts bound the overall lifetime
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}
}

type modelsResponse struct {
	Data []domain.ModelInfo `json:"data"`
}

// ListModels asks the upstream which models it can serve
func (c *Client) ListModels(ctx context.Context) ([]domain.ModelInfo, error) {
	url := c.baseURL + modelsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewUpstreamError("list models", url, 0, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewUpstreamError("list models", url, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewUpstreamError("list models", url, resp.StatusCode,
			fmt.Errorf("unexpected status: %s", readErrorBody(resp.Body)))
	}

	var models modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, domain.NewUpstreamError("list models", url, resp.StatusCode, err)
	}

	return models.Data, nil
}

type chatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature *float64             `json:"temperature,omitempty"`
	TopP        *float64             `json:"top_p,omitempty"`
	MaxTokens   *int                 `json:"max_tokens,omitempty"`
	Stream      bool                 `json:"stream"`
}

// StreamChatCompletion starts a streaming completion and hands back the
// raw response body. The caller owns the body and must close it; porter's
// relay wraps it and does exactly that on teardown.
func (c *Client) StreamChatCompletion(ctx context.Context, req domain.ChatRequest) (io.ReadCloser, error) {
	url := c.baseURL + chatCompletionsPath

	payload := chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.NewUpstreamError("chat completion", url, 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewUpstreamError("chat completion", url, 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("dispatching chat completion", "model", req.Model, "messages", len(req.Messages))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewUpstreamError("chat completion", url, 0, err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := readErrorBody(resp.Body)
		resp.Body.Close()
		return nil, domain.NewUpstreamError("chat completion", url, resp.StatusCode,
			fmt.Errorf("unexpected status: %s", detail))
	}

	return resp.Body, nil
}

func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	if err != nil || len(b) == 0 {
		return "(no response body)"
	}
	return string(b)
}
