package feishu

import (
	"strconv"
	"time"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

// senderTypeApp marks messages sent by an app, including the bot itself
const senderTypeApp = "app"

// ConvertEvent turns an SDK message event into a RawEvent. It returns nil
// for events without a message body and for messages sent by apps, which
// would otherwise loop the bot's own replies back in.
func ConvertEvent(accountID string, event *larkim.P2MessageReceiveV1) *domain.RawEvent {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil
	}
	msg := event.Event.Message
	sender := event.Event.Sender

	ev := &domain.RawEvent{
		AccountID: accountID,
		MessageID: deref(msg.MessageId),
		ChatID:    deref(msg.ChatId),
		ChatType:  domain.ParseChatType(deref(msg.ChatType)),
		MsgType:   domain.ParseMsgType(deref(msg.MessageType)),
		Content:   deref(msg.Content),
		RootID:    deref(msg.RootId),
		ParentID:  deref(msg.ParentId),
	}

	if sender != nil {
		ev.SenderType = deref(sender.SenderType)
		if sender.SenderId != nil {
			ev.SenderID = deref(sender.SenderId.OpenId)
		}
	}
	if ev.SenderType == senderTypeApp {
		return nil
	}

	if ms, err := strconv.ParseInt(deref(msg.CreateTime), 10, 64); err == nil {
		ev.CreateTime = time.UnixMilli(ms)
	}

	for _, m := range msg.Mentions {
		if m == nil {
			continue
		}
		mention := domain.Mention{Key: deref(m.Key), Name: deref(m.Name)}
		if m.Id != nil {
			mention.OpenID = deref(m.Id.OpenId)
		}
		ev.Mentions = append(ev.Mentions, mention)
	}
	return ev
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
