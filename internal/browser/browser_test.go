package browser_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HMasataka/novavault/internal/browser"
	mock_browser "github.com/HMasataka/novavault/internal/browser/mock"
	"github.com/HMasataka/novavault/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func fastOptions() browser.LaunchOptions {
	return browser.LaunchOptions{
		Retry: retry.Config{
			Attempts:     6,
			BaseInterval: time.Millisecond,
			MaxBackoff:   5 * time.Millisecond,
		},
		ProbeTimeout: time.Second,
	}
}

// closedURL は誰も待ち受けていないポートのURLを返す
func closedURL(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	return "http://" + addr
}

func TestLaunch(t *testing.T) {
	t.Run("サーバー応答後にブラウザを開く", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			assert.Equal(t, http.MethodHead, r.Method)
		}))
		defer srv.Close()

		opener := mock_browser.NewMockOpener(ctrl)
		opener.EXPECT().Open(srv.URL).Return(nil).Times(1)

		assert.True(t, browser.Launch(context.Background(), opener, srv.URL, fastOptions()))
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("404でも準備完了とみなす", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		opener := mock_browser.NewMockOpener(ctrl)
		opener.EXPECT().Open(srv.URL).Return(nil)

		assert.True(t, browser.Launch(context.Background(), opener, srv.URL, fastOptions()))
	})

	t.Run("Openの失敗は報告しない", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		opener := mock_browser.NewMockOpener(ctrl)
		opener.EXPECT().Open(srv.URL).Return(errors.New("no browser"))

		assert.False(t, browser.Launch(context.Background(), opener, srv.URL, fastOptions()))
	})

	t.Run("応答しないサーバーではブラウザを開かない", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		opener := mock_browser.NewMockOpener(ctrl)
		opener.EXPECT().Open(gomock.Any()).Times(0)

		assert.False(t, browser.Launch(context.Background(), opener, closedURL(t), fastOptions()))
	})

	t.Run("キャンセル済みのコンテキスト", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		opener := mock_browser.NewMockOpener(ctrl)
		opener.EXPECT().Open(gomock.Any()).Times(0)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.False(t, browser.Launch(ctx, opener, srv.URL, fastOptions()))
	})
}

func TestDefaultLaunchOptions(t *testing.T) {
	options := browser.DefaultLaunchOptions()
	assert.Equal(t, retry.DefaultConfig(), options.Retry)
	assert.Equal(t, time.Second, options.ProbeTimeout)
}

func TestSystemOpenerImplementsOpener(t *testing.T) {
	var opener browser.Opener = browser.NewSystemOpener()
	assert.NotNil(t, opener)
}
