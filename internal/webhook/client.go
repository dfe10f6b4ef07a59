package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// StatusKind は送信結果の分類。
type StatusKind int

const (
	// StatusSuccess は受理された送信。
	StatusSuccess StatusKind = iota
	// StatusInvalid は存在しない・無効なエンドポイントへの送信。
	StatusInvalid
	// StatusRateLimit はレート制限による拒否。
	StatusRateLimit
	// StatusUnknown は上記以外の失敗。
	StatusUnknown
)

// Status は1回の送信試行の結果。
// RetryAfterはレート制限時のみ、応答に含まれていれば秒数が入る。
type Status struct {
	Kind       StatusKind
	RetryAfter *float64
}

// rateLimitBody はレート制限応答のボディ。
type rateLimitBody struct {
	RetryAfter *float64 `json:"retry_after"`
}

// Client はWebhookエンドポイントへの送信クライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientを生成する。
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Send はメッセージを1回送信し、結果を分類して返す。
// 再試行はしない。呼び出し側が結果に応じて判断する。
func (c *Client) Send(ctx context.Context, url string, msg *Message) Status {
	body, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to encode webhook message", slog.String("error", err.Error()))
		return Status{Kind: StatusUnknown}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to create webhook request", slog.String("error", err.Error()))
		return Status{Kind: StatusUnknown}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("webhook request failed", slog.String("error", err.Error()))
		return Status{Kind: StatusUnknown}
	}
	defer resp.Body.Close()

	return classify(resp)
}

// classify は応答ステータスを送信結果に対応付ける。
// 201は成功系のコードだが、Webhookの仕様上は正しい応答では
// ないため無効として扱う。
func classify(resp *http.Response) Status {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return Status{Kind: StatusSuccess}
	case http.StatusCreated, http.StatusNotFound:
		return Status{Kind: StatusInvalid}
	case http.StatusTooManyRequests:
		return Status{Kind: StatusRateLimit, RetryAfter: decodeRetryAfter(resp.Body)}
	default:
		return Status{Kind: StatusUnknown}
	}
}

// decodeRetryAfter はレート制限応答のボディから待機秒数を読む。
// 読めなければnilを返し、呼び出し側に再試行させない。
func decodeRetryAfter(r io.Reader) *float64 {
	var body rateLimitBody
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil
	}
	return body.RetryAfter
}

// String はログ出力用の表記。
func (k StatusKind) String() string {
	switch k {
	case StatusSuccess:
		return "success"
	case StatusInvalid:
		return "invalid"
	case StatusRateLimit:
		return "rate_limit"
	case StatusUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("StatusKind(%d)", int(k))
	}
}
