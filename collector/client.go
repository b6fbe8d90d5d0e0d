package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/postflow/internal/tlsutil"
	"github.com/BaSui01/postflow/llm/retry"
	"go.uber.org/zap"
)

// DefaultBaseURL HackerNews Firebase API
const DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"

// ErrItemNotFound 帖子不存在或已删除
var ErrItemNotFound = errors.New("item not found")

// maxErrorBody 错误响应最多读取的字节数
const maxErrorBody = 4 << 10

// Item HackerNews 帖子
type Item struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	By      string `json:"by"`
	Score   int    `json:"score"`
	Time    int64  `json:"time"`
	Deleted bool   `json:"deleted"`
	Dead    bool   `json:"dead"`
}

// CreatedAt 返回发帖时间
func (i *Item) CreatedAt() time.Time { return time.Unix(i.Time, 0) }

// StatusError 非 2xx 响应
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Temporary 5xx 与 429 可重试
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Config 客户端配置
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
}

// Client HackerNews API 客户端，可并发使用
type Client struct {
	baseURL string
	http    *http.Client
	retryer retry.Retryer
	logger  *zap.Logger
}

// Option 调整 Client
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client（测试中使用 httptest）
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithRetryPolicy 替换重试策略，ShouldRetry 会被覆盖为 IsTemporary
func WithRetryPolicy(p *retry.RetryPolicy) Option {
	return func(cl *Client) {
		p.ShouldRetry = IsTemporary
		cl.retryer = retry.NewBackoffRetryer(p, cl.logger)
	}
}

// NewClient 创建客户端
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "postflow-collector"
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    tlsutil.SecureHTTPClient(cfg.Timeout, tlsutil.WithUserAgent(cfg.UserAgent)),
		logger:  logger.With(zap.String("component", "collector")),
	}

	policy := retry.PolicyWithRetries(cfg.MaxRetries)
	policy.InitialDelay = 500 * time.Millisecond
	policy.MaxDelay = 5 * time.Second
	policy.ShouldRetry = IsTemporary
	c.retryer = retry.NewBackoffRetryer(policy, c.logger)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TopStories 返回热门帖子 ID，按热度排序
func (c *Client) TopStories(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := c.getJSON(ctx, "/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("fetch top stories: %w", err)
	}
	c.logger.Debug("top stories fetched", zap.Int("count", len(ids)))
	return ids, nil
}

// Item 返回帖子详情；不存在或已删除时返回 ErrItemNotFound
func (c *Client) Item(ctx context.Context, id int64) (*Item, error) {
	var item *Item
	if err := c.getJSON(ctx, fmt.Sprintf("/item/%d.json", id), &item); err != nil {
		return nil, fmt.Errorf("fetch item %d: %w", id, err)
	}
	if item == nil || item.Deleted || item.Dead {
		return nil, fmt.Errorf("item %d: %w", id, ErrItemNotFound)
	}
	return item, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	url := c.baseURL + path
	return c.retryer.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &transportError{err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &StatusError{StatusCode: resp.StatusCode, URL: url, Body: strings.TrimSpace(string(body))}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", url, err)
		}
		return nil
	})
}

// transportError 网络层错误，可重试
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// IsTemporary 报告 err 是否为可重试的网络错误或 5xx/429 响应
func IsTemporary(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Temporary()
}
