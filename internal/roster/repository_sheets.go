package roster

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/sheets/v4"
)

// sheetsRepo 每个名单对应试算表中的一个分页，只使用 A 列。
type sheetsRepo struct {
	svc           *sheets.Service
	spreadsheetID string
	names         ListNames
}

func NewSheetsRepo(svc *sheets.Service, spreadsheetID string, names ListNames) Repo {
	return &sheetsRepo{svc: svc, spreadsheetID: spreadsheetID, names: names}
}

// tabRange 生成 A1 表示法，分页名含空白或引号时需要加单引号。
func tabRange(tab, cells string) string {
	if strings.ContainsAny(tab, " '!") {
		tab = "'" + strings.ReplaceAll(tab, "'", "''") + "'"
	}
	return tab + "!" + cells
}

func (r *sheetsRepo) ReadAll(ctx context.Context, c Category) ([]string, error) {
	resp, err := r.svc.Spreadsheets.Values.
		Get(r.spreadsheetID, tabRange(r.names.Name(c), "A:A")).
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		cell := fmt.Sprint(row[0])
		if cell == "" {
			continue
		}
		out = append(out, cell)
	}
	return out, nil
}

func (r *sheetsRepo) Append(ctx context.Context, c Category, entry string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{{entry}}}
	_, err := r.svc.Spreadsheets.Values.
		Append(r.spreadsheetID, tabRange(r.names.Name(c), "A:A"), vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return err
}

// ReplaceAll 先把新内容覆盖写到 A1:An，再清掉 n 行以后的旧数据。
// 两次调用之间崩溃只会留下多余的旧行，而不会留下空名单。
func (r *sheetsRepo) ReplaceAll(ctx context.Context, c Category, entries []string) error {
	tab := r.names.Name(c)
	if len(entries) > 0 {
		values := make([][]interface{}, len(entries))
		for i, e := range entries {
			values[i] = []interface{}{e}
		}
		_, err := r.svc.Spreadsheets.Values.
			Update(r.spreadsheetID, tabRange(tab, fmt.Sprintf("A1:A%d", len(entries))), &sheets.ValueRange{Values: values}).
			ValueInputOption("RAW").
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
	}

	_, err := r.svc.Spreadsheets.Values.
		Clear(r.spreadsheetID, tabRange(tab, fmt.Sprintf("A%d:A", len(entries)+1)), &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear stale rows: %w", err)
	}
	return nil
}
