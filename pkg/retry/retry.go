package retry

import (
	"context"
	"math/rand"
	"time"
)

// Action はリトライループで取るべきアクションを表す
type Action int

const (
	Abort   Action = iota // 処理を中止
	Wait                  // 待機して再試行
	Execute               // 処理を実行
)

// Config はリトライの設定を保持する
type Config struct {
	Attempts     int
	BaseInterval time.Duration
	MaxBackoff   time.Duration
}

// DefaultConfig はデフォルトのリトライ設定を返す
func DefaultConfig() Config {
	return Config{
		Attempts:     6,
		BaseInterval: 20 * time.Millisecond,
		MaxBackoff:   500 * time.Millisecond,
	}
}

// Backoff は指数バックオフ + ジッターを計算する
func Backoff(attempt int, baseInterval, maxBackoff time.Duration) time.Duration {
	d := maxBackoff
	if attempt < 63 && baseInterval <= maxBackoff>>attempt {
		d = baseInterval << attempt
	}
	// +/-10% jitter
	return time.Duration(int64(d) * int64(9+rand.Intn(3)) / 10)
}

// Executor はリトライ可能な処理を実行するインターフェース
type Executor interface {
	// DetermineAction は次に取るべきアクションを決定する
	DetermineAction() Action
	// Execute は処理を実行し、成功した場合trueを返す
	Execute(ctx context.Context, attempt int) bool
}

// Run はExecutorを使用してリトライループを実行する。
// Execute が成功した場合のみtrueを返す。待機中に ctx が終了した場合は即座に中止する。
func Run(ctx context.Context, cfg Config, executor Executor) bool {
	for i := 0; i < cfg.Attempts; i++ {
		if ctx.Err() != nil {
			return false
		}

		switch executor.DetermineAction() {
		case Abort:
			return false
		case Wait:
			timer := time.NewTimer(Backoff(i, cfg.BaseInterval, cfg.MaxBackoff))
			select {
			case <-ctx.Done():
				timer.Stop()
				return false
			case <-timer.C:
			}
		case Execute:
			if executor.Execute(ctx, i) {
				return true
			}
		}
	}

	return false
}
