package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

var ErrEmptyName = errors.New("empty member name")

type Service struct {
	repo   Repo
	gate   *Gate
	logger *log.Logger
	// OnChange 在每次成功修改名单后以最新快照调用（异步）。
	// 快照按 Version 递增送达，较旧的快照直接丢弃。
	OnChange func(Listing)

	// version 只在 Gate 内递增，每次写入成功加一
	version   atomic.Uint64
	pubMu     sync.Mutex
	published uint64
}

func NewService(repo Repo, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{repo: repo, gate: NewGate(logger), logger: logger}
}

func (s *Service) Stats() GateStats {
	return s.gate.Stats()
}

// TryAdd 报名：检查本名单与所有互斥名单后追加。
// 策略拒绝通过 Result 返回；存储失败返回 error；被丢弃返回 ErrBusy。
func (s *Service) TryAdd(ctx context.Context, c Category, name string, count int) (Result, error) {
	res := Result{Category: c}
	name = strings.TrimSpace(name)
	if name == "" {
		return res, ErrEmptyName
	}
	// 请假只接受 +1
	if count < MinCount || count > MaxCount || (c.Policy() == MatchExact && count != MinCount) {
		res.Outcome = InvalidCount
		return res, nil
	}
	res.Entry = FormatEntry(c, name, count)
	res.Count = count

	admitted, err := s.gate.TryRun(ctx, "add", func(ctx context.Context) error {
		siblings := c.Siblings()
		lists, err := s.readLists(ctx, append([]Category{c}, siblings...))
		if err != nil {
			return err
		}
		if containsMatch(c, lists[c], name) {
			res.Outcome = AlreadyRegistered
			return nil
		}
		for _, other := range siblings {
			if containsMatch(other, lists[other], name) {
				res.Outcome = ConflictInOtherCategory
				res.Conflict = other
				return nil
			}
		}
		if err := s.repo.Append(ctx, c, res.Entry); err != nil {
			return fmt.Errorf("append to %s: %w", c, err)
		}
		s.version.Add(1)
		res.Outcome = Accepted
		return nil
	})
	if err != nil {
		return Result{Category: c}, err
	}
	if !admitted {
		return Result{Category: c}, ErrBusy
	}

	if res.Outcome == Accepted {
		s.logger.Info("entry added", "category", c, "entry", res.Entry)
		s.notify()
	}
	return res, nil
}

// RemoveAll 删除名单中所有匹配 name 的行，并整体重写名单。
func (s *Service) RemoveAll(ctx context.Context, c Category, name string) (Result, error) {
	res := Result{Category: c}
	name = strings.TrimSpace(name)
	if name == "" {
		return res, ErrEmptyName
	}

	admitted, err := s.gate.TryRun(ctx, "remove", func(ctx context.Context) error {
		rows, err := s.repo.ReadAll(ctx, c)
		if err != nil {
			return fmt.Errorf("read %s: %w", c, err)
		}
		kept := make([]string, 0, len(rows))
		for _, row := range rows {
			if c.Matches(row, name) {
				continue
			}
			kept = append(kept, row)
		}
		if len(kept) == len(rows) {
			res.Outcome = NotFound
			return nil
		}
		if err := s.repo.ReplaceAll(ctx, c, kept); err != nil {
			return fmt.Errorf("rewrite %s: %w", c, err)
		}
		s.version.Add(1)
		res.Outcome = Removed
		res.Removed = len(rows) - len(kept)
		return nil
	})
	if err != nil {
		return Result{Category: c}, err
	}
	if !admitted {
		return Result{Category: c}, ErrBusy
	}

	if res.Outcome == Removed {
		s.logger.Info("entries removed", "category", c, "name", name, "count", res.Removed)
		s.notify()
	}
	return res, nil
}

// ClearAll 清空所有名单。
func (s *Service) ClearAll(ctx context.Context) error {
	changed := false
	admitted, err := s.gate.TryRun(ctx, "clear", func(ctx context.Context) error {
		for _, c := range categories {
			if err := s.repo.ReplaceAll(ctx, c, nil); err != nil {
				return fmt.Errorf("clear %s: %w", c, err)
			}
			if !changed {
				changed = true
				s.version.Add(1)
			}
		}
		return nil
	})
	if err != nil {
		// 部分名单已清空，观看端仍需看到
		if changed {
			s.notify()
		}
		return err
	}
	if !admitted {
		return ErrBusy
	}
	s.logger.Info("all lists cleared")
	s.notify()
	return nil
}

// List 只读，不经过 Gate；可能看到进行中写操作之前或之后的状态。
func (s *Service) List(ctx context.Context, c Category) ([]string, error) {
	rows, err := s.repo.ReadAll(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c, err)
	}
	return rows, nil
}

// ListAll 读取所有名单。Version 在读取前取得，快照至少包含该版本及之前的全部写入。
func (s *Service) ListAll(ctx context.Context) (Listing, error) {
	version := s.version.Load()
	lists, err := s.readLists(ctx, categories)
	if err != nil {
		return Listing{}, err
	}
	l := Listing{Version: version, Sections: make([]Section, 0, len(categories))}
	for _, c := range categories {
		l.Sections = append(l.Sections, Section{Category: c, Entries: lists[c]})
	}
	return l, nil
}

func (s *Service) readLists(ctx context.Context, cats []Category) (map[Category][]string, error) {
	rows := make([][]string, len(cats))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range cats {
		g.Go(func() error {
			r, err := s.repo.ReadAll(gctx, c)
			if err != nil {
				return fmt.Errorf("read %s: %w", c, err)
			}
			rows[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[Category][]string, len(cats))
	for i, c := range cats {
		out[c] = rows[i]
	}
	return out, nil
}

func (s *Service) notify() {
	if s.OnChange == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		l, err := s.ListAll(ctx)
		if err != nil {
			s.logger.Error("snapshot for feed failed", "err", err)
			return
		}
		s.publish(l)
	}()
}

// publish 保证 OnChange 看到的 Version 严格递增。
func (s *Service) publish(l Listing) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if l.Version <= s.published {
		s.logger.Debug("stale snapshot dropped", "version", l.Version, "published", s.published)
		return
	}
	s.published = l.Version
	s.OnChange(l)
}

func containsMatch(c Category, rows []string, name string) bool {
	for _, row := range rows {
		if c.Matches(row, name) {
			return true
		}
	}
	return false
}
