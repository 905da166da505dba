package storage

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// NewSheets 用服务账号凭证创建 Sheets 客户端，credentialsJSON 优先于文件路径。
func NewSheets(ctx context.Context, credentialsJSON, credentialsFile string) (*sheets.Service, error) {
	var opt option.ClientOption
	switch {
	case credentialsJSON != "":
		opt = option.WithAuthCredentialsJSON(option.ServiceAccount, []byte(credentialsJSON))
	case credentialsFile != "":
		opt = option.WithAuthCredentialsFile(option.ServiceAccount, credentialsFile)
	default:
		return nil, fmt.Errorf("no google credentials configured")
	}
	svc, err := sheets.NewService(ctx, opt, option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return svc, nil
}
