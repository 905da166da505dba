// Package identity resolves chat members to the names used on the roster.
// Lookup failures never abort a command; they only degrade the name.
package identity

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
)

// Resolver 把平台成员 ID 解析为显示名称，可能因网络或权限失败。
type Resolver interface {
	DisplayName(ctx context.Context, memberID string) (string, error)
}

// Mapper 把显示名称翻译为游戏内名称；没有对照不是错误。
type Mapper interface {
	Map(ctx context.Context, display string) (preferred string, ok bool, err error)
}

type Member struct {
	ID        string
	Display   string
	Preferred string
	// Degraded 为 true 时 Display 是成员 ID 本身
	Degraded bool
}

// EntryName 是写入名单的名称：优先游戏名称。
func (m Member) EntryName() string {
	if m.Preferred != "" {
		return m.Preferred
	}
	return m.Display
}

type Chain struct {
	names  Resolver
	mapper Mapper
	logger *log.Logger
}

// NewChain mapper 可以为 nil。
func NewChain(names Resolver, mapper Mapper, logger *log.Logger) *Chain {
	if logger == nil {
		logger = log.Default()
	}
	return &Chain{names: names, mapper: mapper, logger: logger}
}

func (c *Chain) Lookup(ctx context.Context, memberID string) Member {
	m := Member{ID: memberID}

	name, err := c.names.DisplayName(ctx, memberID)
	name = strings.TrimSpace(name)
	if err != nil || name == "" {
		c.logger.Warn("display name unavailable, using member id", "member", memberID, "err", err)
		m.Display = memberID
		m.Degraded = true
		return m
	}
	m.Display = name

	if c.mapper == nil {
		return m
	}
	preferred, ok, err := c.mapper.Map(ctx, name)
	if err != nil {
		c.logger.Warn("name mapping lookup failed", "name", name, "err", err)
		return m
	}
	if ok {
		m.Preferred = strings.TrimSpace(preferred)
	}
	return m
}
