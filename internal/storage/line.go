package storage

import (
	"fmt"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// NewLineAPI 创建 Messaging API 客户端，base 为空时使用 SDK 默认的 api.line.me。
func NewLineAPI(base, channelToken string) (*messaging_api.MessagingApiAPI, error) {
	opts := []messaging_api.MessagingApiAPIOption{
		messaging_api.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
	}
	if base != "" {
		opts = append(opts, messaging_api.WithEndpoint(base))
	}
	api, err := messaging_api.NewMessagingApiAPI(channelToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create line client: %w", err)
	}
	return api, nil
}
