package linebot

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"WarRoster/internal/identity"
	"WarRoster/internal/roster"
)

// RosterService 是 Handler 需要的名单操作。
type RosterService interface {
	TryAdd(ctx context.Context, c roster.Category, name string, count int) (roster.Result, error)
	RemoveAll(ctx context.Context, c roster.Category, name string) (roster.Result, error)
	ListAll(ctx context.Context) (roster.Listing, error)
}

type MemberLookup interface {
	Lookup(ctx context.Context, memberID string) identity.Member
}

type Handler struct {
	svc     RosterService
	members MemberLookup
	replier Replier
	parser  *Parser
	format  *Formatter
	allowed map[string]bool
	secret  string
	logger  *log.Logger
}

type Options struct {
	// ChannelSecret 用于校验 x-line-signature
	ChannelSecret string
	Names         roster.ListNames
	AllowedGroups []string
	BotName       string
	FriendURL     string
	Logger        *log.Logger
}

func NewHandler(svc RosterService, members MemberLookup, replier Replier, opts Options) *Handler {
	allowed := make(map[string]bool, len(opts.AllowedGroups))
	for _, g := range opts.AllowedGroups {
		allowed[g] = true
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		svc:     svc,
		members: members,
		replier: replier,
		parser:  NewParser(opts.Names),
		format:  NewFormatter(opts.Names, opts.BotName, opts.FriendURL),
		allowed: allowed,
		secret:  opts.ChannelSecret,
		logger:  logger,
	}
}

// POST /webhook  校验签名后先回 200，事件在后台处理
func (h *Handler) Webhook(c *gin.Context) {
	if h.secret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook not configured"})
		return
	}
	cb, err := webhook.ParseRequest(h.secret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	for _, ev := range cb.Events {
		if me, ok := ev.(webhook.MessageEvent); ok {
			go h.Dispatch(ctx, me)
		}
	}
	c.String(http.StatusOK, "OK")
}

// groupSource 只接受群组消息，返回群组 ID 与发送者 ID。
func groupSource(src webhook.SourceInterface) (string, string, bool) {
	if g, ok := src.(webhook.GroupSource); ok && g.GroupId != "" {
		return g.GroupId, g.UserId, true
	}
	return "", "", false
}

// Dispatch 处理单个文字消息并回复；被 Gate 丢弃的请求不回复。
func (h *Handler) Dispatch(ctx context.Context, ev webhook.MessageEvent) {
	msg, ok := ev.Message.(webhook.TextMessageContent)
	if !ok || ev.ReplyToken == "" {
		return
	}
	group, userID, ok := groupSource(ev.Source)
	if !ok {
		return
	}
	cmd := h.parser.Parse(msg.Text)
	if cmd.Kind == Unknown {
		return
	}

	// 查ID 不受白名单限制，方便管理员设置 allowed_groups
	if cmd.Kind == ShowGroupID {
		h.reply(ctx, ev.ReplyToken, h.format.GroupID(group))
		return
	}
	if !h.allowed[group] {
		h.logger.Debug("ignoring message from unlisted group", "group", group)
		return
	}

	text, ok := h.execute(ctx, cmd, userID)
	if !ok {
		return
	}
	h.reply(ctx, ev.ReplyToken, text)
}

func (h *Handler) execute(ctx context.Context, cmd Command, userID string) (string, bool) {
	if cmd.Kind == List {
		l, err := h.svc.ListAll(ctx)
		if err != nil {
			h.logger.Error("list roster failed", "err", err)
			return storeFailureText, true
		}
		return h.format.Listing(l), true
	}

	// 名称解析在 Gate 之外完成
	member := h.members.Lookup(ctx, userID)

	var (
		res roster.Result
		err error
	)
	switch cmd.Kind {
	case Join:
		res, err = h.svc.TryAdd(ctx, cmd.Category, member.EntryName(), cmd.Count)
	case Cancel:
		res, err = h.svc.RemoveAll(ctx, cmd.Category, member.EntryName())
	default:
		return "", false
	}
	switch {
	case errors.Is(err, roster.ErrBusy):
		return "", false
	case err != nil:
		h.logger.Error("roster mutation failed", "category", cmd.Category, "member", userID, "err", err)
		return storeFailureText, true
	}
	if res.Rejected() {
		h.logger.Debug("request rejected", "category", cmd.Category, "member", userID, "outcome", res.Outcome)
	}
	return h.format.Result(member, res), true
}

func (h *Handler) reply(ctx context.Context, token, text string) {
	if err := h.replier.Reply(ctx, token, text); err != nil {
		h.logger.Error("reply failed", "err", err)
	}
}
