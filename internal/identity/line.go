package identity

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// LineProfiles 通过 LINE Messaging API 查询用户资料。
// 用户必须先加机器人为好友，否则返回 404。
type LineProfiles struct {
	api *messaging_api.MessagingApiAPI
}

func NewLineProfiles(api *messaging_api.MessagingApiAPI) *LineProfiles {
	return &LineProfiles{api: api}
}

func (p *LineProfiles) DisplayName(ctx context.Context, memberID string) (string, error) {
	prof, err := p.api.WithContext(ctx).GetProfile(memberID)
	if err != nil {
		return "", fmt.Errorf("line profile %s: %w", memberID, err)
	}
	if prof.DisplayName == "" {
		return "", fmt.Errorf("line profile %s: empty display name", memberID)
	}
	return prof.DisplayName, nil
}
