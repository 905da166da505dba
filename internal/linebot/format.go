package linebot

import (
	"fmt"
	"strings"

	"WarRoster/internal/identity"
	"WarRoster/internal/roster"
)

// Formatter 把结构化结果渲染成回复文字，核心逻辑从不接触这里的文案。
type Formatter struct {
	names     roster.ListNames
	botName   string
	friendURL string
}

func NewFormatter(names roster.ListNames, botName, friendURL string) *Formatter {
	return &Formatter{names: names, botName: botName, friendURL: friendURL}
}

const (
	storeFailureText = "⚠️ 名單暫時無法存取，請稍後再試"
	emptyListText    = "（無）"
)

var sectionMarks = map[roster.Category]string{
	roster.War:    "🟩",
	roster.Attack: "🟥",
	roster.Leave:  "🟨",
}

func (f *Formatter) label(c roster.Category) string {
	return f.names.Name(c)
}

// Degraded 提示成员先加机器人好友，并附上 ID 方便管理员对照。
func (f *Formatter) Degraded(m identity.Member) string {
	return fmt.Sprintf("❗ 請先私訊 %s 啟用暱稱功能 👇\n%s\n（ID: %s）", f.botName, f.friendURL, m.ID)
}

func (f *Formatter) GroupID(groupID string) string {
	return fmt.Sprintf("👁️ 群組 ID：%s", groupID)
}

func (f *Formatter) Result(m identity.Member, res roster.Result) string {
	show := m.EntryName()
	label := f.label(res.Category)

	var text string
	switch res.Outcome {
	case roster.Accepted:
		if m.Degraded {
			// 名单仍以 ID 记录，但回复改为提示
			return f.Degraded(m)
		}
		if res.Category.Policy() == roster.MatchExact {
			text = fmt.Sprintf("✅ %s 已%s", show, label)
		} else {
			text = fmt.Sprintf("✅ %s 已加入%s（共 %d 名）", show, label, res.Count)
		}
	case roster.AlreadyRegistered:
		text = fmt.Sprintf("⚠️ %s 已在%s名單中，不能重複報名", show, label)
	case roster.ConflictInOtherCategory:
		text = fmt.Sprintf("⚠️ %s 已在%s名單中，請先取消", show, f.label(res.Conflict))
	case roster.InvalidCount:
		if res.Category.Policy() == roster.MatchExact {
			text = fmt.Sprintf("⚠️ %s只能 +%d", label, roster.MinCount)
		} else {
			text = fmt.Sprintf("⚠️ 報名數量需介於 %d~%d 之間", roster.MinCount, roster.MaxCount)
		}
	case roster.Removed:
		text = fmt.Sprintf("🗑️ %s 的%s紀錄已取消", show, label)
	case roster.NotFound:
		text = fmt.Sprintf("⚠️ %s 沒有在%s名單中", show, label)
	}
	if m.Degraded {
		text += "\n\n" + f.Degraded(m)
	}
	return text
}

func (f *Formatter) Listing(l roster.Listing) string {
	var b strings.Builder
	b.WriteString("📋 報名名單")
	for _, sec := range l.Sections {
		fmt.Fprintf(&b, "\n\n%s %s：\n", sectionMarks[sec.Category], f.label(sec.Category))
		if len(sec.Entries) == 0 {
			b.WriteString(emptyListText)
			continue
		}
		for i, e := range sec.Entries {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("🔸 " + e)
		}
	}
	return b.String()
}
