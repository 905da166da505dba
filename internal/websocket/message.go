package websocket

import "WarRoster/internal/roster"

const (
	EventRoster  = "roster"
	EventRefresh = "refresh"
)

type OutgoingMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`

	// 名单版本，Hub 据此跳过比客户端已收到的更旧的快照
	version uint64
}

type IncomingMessage struct {
	From  string `json:"from"`
	Event string `json:"event"`
}

type SectionView struct {
	Category string   `json:"category"`
	List     string   `json:"list"`
	Entries  []string `json:"entries"`
}

type RosterView struct {
	Version  uint64        `json:"version"`
	Sections []SectionView `json:"sections"`
	At       int64         `json:"at"`
}

// NewRosterView 把 Listing 转成前端用的结构，空名单输出 [] 而不是 null。
func NewRosterView(l roster.Listing, names roster.ListNames, at int64) RosterView {
	v := RosterView{Version: l.Version, Sections: make([]SectionView, 0, len(l.Sections)), At: at}
	for _, s := range l.Sections {
		entries := s.Entries
		if entries == nil {
			entries = []string{}
		}
		v.Sections = append(v.Sections, SectionView{
			Category: string(s.Category),
			List:     names.Name(s.Category),
			Entries:  entries,
		})
	}
	return v
}

func rosterMessage(l roster.Listing, names roster.ListNames, at int64) OutgoingMessage {
	return OutgoingMessage{Event: EventRoster, Data: NewRosterView(l, names, at), version: l.Version}
}
