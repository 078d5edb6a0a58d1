//go:build windows

package launcher

import (
	"context"
	"errors"
	"net"

	"golang.org/x/sys/windows"
)

// Windows の SO_REUSEADDR は使用中のポートを奪えてしまうため設定しない
func listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, windows.WSAEADDRINUSE)
}
