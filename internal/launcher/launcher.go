package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/HMasataka/novavault/internal/browser"
	"github.com/HMasataka/novavault/internal/config"
	"github.com/HMasataka/novavault/internal/fileserver"
	"github.com/HMasataka/novavault/pkg/retry"
)

var (
	ErrPortInUse     = errors.New("port already in use")
	errResolveRoot   = errors.New("failed to resolve root directory")
	errChangeDir     = errors.New("failed to change working directory")
	errServerStopped = errors.New("server stopped unexpectedly")
)

// Options configures a Launcher
type Options struct {
	// Root は配信するディレクトリ。空の場合は実行ファイルのディレクトリ
	Root string
	// Output はバナーや終了メッセージの出力先
	Output io.Writer
}

// DefaultOptions returns options that serve the executable's directory and print to stdout
func DefaultOptions() Options {
	return Options{
		Output: os.Stdout,
	}
}

// Launcher は静的ファイルサーバーを起動し、割り込みまで配信を続ける
type Launcher struct {
	config  config.Config
	opener  browser.Opener
	options Options
}

func New(cfg config.Config, opener browser.Opener, options Options) *Launcher {
	if options.Output == nil {
		options.Output = io.Discard
	}

	return &Launcher{
		config:  cfg,
		opener:  opener,
		options: options,
	}
}

// Start はルートディレクトリへ移動してポートを確保し、ctx が終了するまで配信する。
// ctx の終了による停止は正常終了として nil を返す。
func (l *Launcher) Start(ctx context.Context) error {
	root, err := l.root()
	if err != nil {
		return l.fail(fmt.Errorf("%w: %w", errResolveRoot, err))
	}

	if err := os.Chdir(root); err != nil {
		return l.fail(fmt.Errorf("%w: %w", errChangeDir, err))
	}

	ln, err := listen(ctx, l.config.Server.Addr())
	if err != nil {
		if isAddrInUse(err) {
			fmt.Fprintf(l.options.Output, "❌ Port %d is already in use. Try a different port or stop the existing server.\n", l.config.Server.Port)
			slog.Error("failed to bind", slog.String("addr", l.config.Server.Addr()), slog.String("error", err.Error()))
			return fmt.Errorf("%w: %w", ErrPortInUse, err)
		}
		return l.fail(err)
	}
	defer ln.Close()

	handler := fileserver.New(".", fileserver.Options{
		Workers: l.config.Server.Workers,
		MIME:    l.config.MIME,
	})
	server := &http.Server{
		Handler: handler,
	}

	url := fmt.Sprintf("http://localhost:%d", ln.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(l.options.Output, "🚀 %s server running on %s\n", l.config.Site.Name, url)
	fmt.Fprintln(l.options.Output, "📱 Open this URL in your browser to view the page")
	fmt.Fprintln(l.options.Output, "🛑 Press Ctrl+C to stop the server")
	slog.Info("server started", slog.String("addr", ln.Addr().String()), slog.String("root", root))

	browserCtx, cancelBrowser := context.WithCancel(ctx)
	browserDone := make(chan struct{})
	go func() {
		defer close(browserDone)
		l.openBrowser(browserCtx, url)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		cancelBrowser()
		<-browserDone
		l.shutdown(server, handler)
		<-serveErr

		fmt.Fprintln(l.options.Output, "\n⏹️  Server stopped")
		slog.Info("server stopped")
		return nil
	case err := <-serveErr:
		cancelBrowser()
		<-browserDone
		server.Close()
		handler.Close()

		if err == nil {
			err = errServerStopped
		}
		return l.fail(err)
	}
}

func (l *Launcher) root() (string, error) {
	if l.options.Root != "" {
		return filepath.Abs(l.options.Root)
	}
	return ExecutableDir()
}

func (l *Launcher) openBrowser(ctx context.Context, url string) {
	if !l.config.Browser.Open || l.opener == nil {
		return
	}

	browser.Launch(ctx, l.opener, url, browser.LaunchOptions{
		Retry: retry.Config{
			Attempts:     l.config.Browser.ProbeAttempts,
			BaseInterval: l.config.Browser.ProbeIntervalDuration(),
			MaxBackoff:   l.config.Browser.ProbeMaxBackoffDuration(),
		},
		ProbeTimeout: time.Second,
	})
}

func (l *Launcher) shutdown(server *http.Server, handler *fileserver.Handler) {
	ctx, cancel := context.WithTimeout(context.Background(), l.config.Server.ShutdownTimeoutDuration())
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("graceful shutdown failed, closing connections", slog.String("error", err.Error()))
		server.Close()
	}

	handler.Close()
}

func (l *Launcher) fail(err error) error {
	fmt.Fprintf(l.options.Output, "❌ Error starting server: %v\n", err)
	slog.Error("server error", slog.String("error", err.Error()))
	return err
}

// ExecutableDir は実行中のバイナリが置かれたディレクトリを返す
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	return filepath.Dir(exe), nil
}
