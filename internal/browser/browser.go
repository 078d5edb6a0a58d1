package browser

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/HMasataka/novavault/pkg/retry"
	"github.com/pkg/browser"
)

// Opener は既定のブラウザでURLを開く
//
//go:generate mockgen -source browser.go -destination mock/browser.go
type Opener interface {
	Open(url string) error
}

// SystemOpener は OS の既定ブラウザを起動する
type SystemOpener struct{}

var _ Opener = (*SystemOpener)(nil)

func NewSystemOpener() *SystemOpener {
	// xdg-open などの出力がバナーに混ざらないようにする
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	return &SystemOpener{}
}

func (o *SystemOpener) Open(url string) error {
	return browser.OpenURL(url)
}

// LaunchOptions configures the readiness probe that runs before the browser is opened
type LaunchOptions struct {
	Retry        retry.Config
	ProbeTimeout time.Duration
}

// DefaultLaunchOptions returns the options used by the launcher
func DefaultLaunchOptions() LaunchOptions {
	return LaunchOptions{
		Retry:        retry.DefaultConfig(),
		ProbeTimeout: time.Second,
	}
}

// Launch はサーバーが応答するまで待ってからブラウザを開く。
// 失敗はデバッグログに残すだけで呼び出し元には返さない。
func Launch(ctx context.Context, opener Opener, url string, options LaunchOptions) bool {
	p := &probe{
		url: url,
		client: &http.Client{
			Timeout:   options.ProbeTimeout,
			Transport: &http.Transport{DisableKeepAlives: true},
		},
	}
	defer p.client.CloseIdleConnections()

	if !retry.Run(ctx, options.Retry, p) {
		slog.Debug("server did not become ready, browser not opened", slog.String("url", url))
		return false
	}

	if err := opener.Open(url); err != nil {
		slog.Debug("failed to open browser", slog.String("url", url), slog.String("error", err.Error()))
		return false
	}

	return true
}

// probe は HEAD リクエストでサーバーの応答を確認する retry.Executor
type probe struct {
	url    string
	client *http.Client
	failed bool
}

var _ retry.Executor = (*probe)(nil)

func (p *probe) DetermineAction() retry.Action {
	if p.failed {
		p.failed = false
		return retry.Wait
	}
	return retry.Execute
}

func (p *probe) Execute(ctx context.Context, attempt int) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Debug("readiness probe failed", slog.Int("attempt", attempt), slog.String("error", err.Error()))
		p.failed = true
		return false
	}
	resp.Body.Close()

	// どのステータスでもHTTPで応答していれば準備完了とみなす
	return true
}
