//go:build !unix && !windows

package launcher

import (
	"context"
	"net"
	"strings"
)

func listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}

func isAddrInUse(err error) bool {
	return strings.Contains(err.Error(), "address already in use")
}
