package roster

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Policy 决定某个名单中一行记录如何与成员名称匹配。
type Policy int

const (
	// MatchExact 单一状态（请假）：整行等于名称。
	MatchExact Policy = iota
	// MatchCounted 计数状态（国战、攻城）：行以 "名称(" 开头，计数后缀总是存在。
	MatchCounted
)

// Category 是一个互斥的报名名单。
type Category string

const (
	War    Category = "war"
	Attack Category = "attack"
	Leave  Category = "leave"
)

const (
	MinCount = 1
	MaxCount = 12
)

var ErrUnknownCategory = errors.New("unknown category")

var categories = []Category{War, Attack, Leave}

// Categories 返回固定顺序的全部名单，彼此互斥。
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) Policy() Policy {
	if c == Leave {
		return MatchExact
	}
	return MatchCounted
}

// Siblings 返回除自身以外的所有名单。
func (c Category) Siblings() []Category {
	out := make([]Category, 0, len(categories)-1)
	for _, other := range categories {
		if other != c {
			out = append(out, other)
		}
	}
	return out
}

// Matches 判断已存储的 row 是否属于 name 对应的成员。
func (c Category) Matches(row, name string) bool {
	rowKey, nameKey := NormalizeKey(row), NormalizeKey(name)
	if nameKey == "" {
		return false
	}
	switch c.Policy() {
	case MatchCounted:
		return strings.HasPrefix(rowKey, nameKey+"(")
	default:
		return rowKey == nameKey
	}
}

// NormalizeKey 去掉首尾空白并做 Unicode 大小写折叠；所有比较都基于它。
func NormalizeKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// FormatEntry 计数名单总是带后缀（含 N=1），单一状态名单只存名称。
func FormatEntry(c Category, name string, count int) string {
	name = strings.TrimSpace(name)
	if c.Policy() == MatchExact {
		return name
	}
	return fmt.Sprintf("%s(%d)", name, count)
}
