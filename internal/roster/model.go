package roster

import "errors"

// ErrBusy 表示另一个写操作正在进行，本次请求被丢弃（不排队）。
var ErrBusy = errors.New("roster busy: mutation dropped")

type Outcome int

const (
	Accepted Outcome = iota
	AlreadyRegistered
	ConflictInOtherCategory
	InvalidCount
	Removed
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case AlreadyRegistered:
		return "already_registered"
	case ConflictInOtherCategory:
		return "conflict"
	case InvalidCount:
		return "invalid_count"
	case Removed:
		return "removed"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// Result 是一次报名或取消的结构化结果，回复文案由调用方决定。
type Result struct {
	Outcome  Outcome  `json:"outcome"`
	Category Category `json:"category"`
	Entry    string   `json:"entry,omitempty"`
	Count    int      `json:"count,omitempty"`
	// Conflict 仅在 ConflictInOtherCategory 时有值
	Conflict Category `json:"conflict,omitempty"`
	// Removed 仅在 Removed 时有值
	Removed int `json:"removed,omitempty"`
}

// Rejected 为策略拒绝（非错误）。
func (r Result) Rejected() bool {
	switch r.Outcome {
	case AlreadyRegistered, ConflictInOtherCategory, InvalidCount:
		return true
	}
	return false
}

// Section 是单个名单的快照。
type Section struct {
	Category Category `json:"category"`
	Entries  []string `json:"entries"`
}

// Listing 按 Categories() 顺序保存所有名单的快照。
type Listing struct {
	// Version 随每次成功写入递增，用来丢弃过期快照
	Version  uint64    `json:"version"`
	Sections []Section `json:"sections"`
}

func (l Listing) Entries(c Category) []string {
	for _, s := range l.Sections {
		if s.Category == c {
			return s.Entries
		}
	}
	return nil
}
