package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"WarRoster/internal/roster"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// Clearer 是定时清空需要的接口，*roster.Service 满足。
type Clearer interface {
	ClearAll(ctx context.Context) error
}

// Scheduler 按 cron 表达式定期清空所有名单（每周重置）。
type Scheduler struct {
	cron    *cron.Cron
	svc     Clearer
	logger  *log.Logger
	timeout time.Duration
	entry   cron.EntryID
}

func New(spec string, svc Clearer, logger *log.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		svc:     svc,
		logger:  logger,
		timeout: 30 * time.Second,
	}
	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return nil, fmt.Errorf("invalid clear schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("clear scheduler started", "next", s.Next().Format(time.DateTime))
}

// Stop 等待正在执行的任务结束。
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("clear scheduler stopped")
}

func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.svc.ClearAll(ctx)
	switch {
	case err == nil:
		s.logger.Info("scheduled clear done")
	case errors.Is(err, roster.ErrBusy):
		// 与用户操作撞上，本轮放弃
		s.logger.Warn("scheduled clear dropped, roster busy")
	default:
		s.logger.Error("scheduled clear failed", "err", err)
	}
}
