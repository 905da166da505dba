package identity

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/sheets/v4"

	"WarRoster/internal/roster"
)

// SheetsMapper 读取对照表分页：A 列为 LINE 名称，B 列为游戏名称。
type SheetsMapper struct {
	svc           *sheets.Service
	spreadsheetID string
	rng           string
}

func NewSheetsMapper(svc *sheets.Service, spreadsheetID, rng string) *SheetsMapper {
	return &SheetsMapper{svc: svc, spreadsheetID: spreadsheetID, rng: rng}
}

func (m *SheetsMapper) Map(ctx context.Context, display string) (string, bool, error) {
	resp, err := m.svc.Spreadsheets.Values.Get(m.spreadsheetID, m.rng).Context(ctx).Do()
	if err != nil {
		return "", false, fmt.Errorf("read name mapping: %w", err)
	}
	target := roster.NormalizeKey(display)
	for _, row := range resp.Values {
		if len(row) == 0 || roster.NormalizeKey(fmt.Sprint(row[0])) != target {
			continue
		}
		// B 列为空时沿用原名称
		if len(row) > 1 {
			if v := strings.TrimSpace(fmt.Sprint(row[1])); v != "" {
				return v, true, nil
			}
		}
		return display, true, nil
	}
	return "", false, nil
}

// StaticMapper 来自配置文件的对照表。
type StaticMapper map[string]string

func NewStaticMapper(aliases map[string]string) StaticMapper {
	m := make(StaticMapper, len(aliases))
	for k, v := range aliases {
		m[roster.NormalizeKey(k)] = strings.TrimSpace(v)
	}
	return m
}

func (m StaticMapper) Map(_ context.Context, display string) (string, bool, error) {
	v, ok := m[roster.NormalizeKey(display)]
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}
