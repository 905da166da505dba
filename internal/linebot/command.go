package linebot

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"

	"WarRoster/internal/roster"
)

type Kind int

const (
	Unknown Kind = iota
	Join
	Cancel
	List
	ShowGroupID
)

type Command struct {
	Kind     Kind
	Category roster.Category
	Count    int
}

// Parser 的指令关键字来自名单名称：「國戰+3」「請假+1」「國戰取消」「國戰名單」。
type Parser struct {
	names roster.ListNames
}

func NewParser(names roster.ListNames) *Parser {
	return &Parser{names: names}
}

// canonical 全形转半形并去掉所有空白，「國戰 ＋３」与「國戰+3」等价。
func canonical(text string) string {
	text = width.Fold.String(text)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}

func (p *Parser) Parse(text string) Command {
	t := canonical(text)
	if t == "" {
		return Command{}
	}
	if strings.EqualFold(t, "查ID") {
		return Command{Kind: ShowGroupID}
	}
	if t == "名單" || t == "名单" {
		return Command{Kind: List}
	}

	for _, c := range roster.Categories() {
		label := canonical(p.names.Name(c))
		switch {
		case t == label+"名單" || t == label+"名单":
			return Command{Kind: List}
		case t == label+"取消":
			return Command{Kind: Cancel, Category: c}
		case strings.HasPrefix(t, label+"+"):
			digits := strings.TrimPrefix(t, label+"+")
			n, err := strconv.Atoi(digits)
			if err != nil || strings.HasPrefix(digits, "+") || strings.HasPrefix(digits, "-") {
				return Command{}
			}
			return Command{Kind: Join, Category: c, Count: n}
		}
	}
	return Command{}
}
