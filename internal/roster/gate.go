package roster

import (
	"context"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"
)

// Gate 保证同一时刻最多只有一个写名单的操作在执行。
// 被占用时新的请求直接丢弃而不是排队。
type Gate struct {
	sem      *semaphore.Weighted
	logger   *log.Logger
	admitted atomic.Int64
	dropped  atomic.Int64
}

func NewGate(logger *log.Logger) *Gate {
	if logger == nil {
		logger = log.Default()
	}
	return &Gate{sem: semaphore.NewWeighted(1), logger: logger}
}

// TryRun 在获得准入时执行 fn 并返回 (true, fn 的错误)；
// 否则立即返回 (false, nil)。fn 出错或 panic 时准入同样会被释放。
func (g *Gate) TryRun(ctx context.Context, op string, fn func(ctx context.Context) error) (bool, error) {
	if !g.sem.TryAcquire(1) {
		g.dropped.Add(1)
		g.logger.Warn("roster is busy, skipping request", "op", op)
		return false, nil
	}
	defer g.sem.Release(1)
	g.admitted.Add(1)
	return true, fn(ctx)
}

type GateStats struct {
	Admitted int64 `json:"admitted"`
	Dropped  int64 `json:"dropped"`
}

func (g *Gate) Stats() GateStats {
	return GateStats{Admitted: g.admitted.Load(), Dropped: g.dropped.Load()}
}
