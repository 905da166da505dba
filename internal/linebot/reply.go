package linebot

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// LineReplier 调用 LINE reply API。
type LineReplier struct {
	api *messaging_api.MessagingApiAPI
}

func NewLineReplier(api *messaging_api.MessagingApiAPI) *LineReplier {
	return &LineReplier{api: api}
}

func (r *LineReplier) Reply(ctx context.Context, replyToken, text string) error {
	_, err := r.api.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: text},
		},
	})
	if err != nil {
		return fmt.Errorf("line reply: %w", err)
	}
	return nil
}
