package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

// ParseContent parses the raw content blob of an event.
// Unsupported subtypes parse to an empty message; malformed JSON is an error.
func ParseContent(ev *domain.RawEvent) (*domain.InboundMessage, error) {
	msg := &domain.InboundMessage{Event: ev}

	switch ev.MsgType {
	case domain.MsgTypeText:
		var parsed struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(ev.Content), &parsed); err != nil {
			return nil, fmt.Errorf("parse text content: %w", err)
		}
		msg.Text = strings.TrimSpace(parsed.Text)

	case domain.MsgTypeImage:
		var parsed struct {
			ImageKey string `json:"image_key"`
		}
		if err := json.Unmarshal([]byte(ev.Content), &parsed); err != nil {
			return nil, fmt.Errorf("parse image content: %w", err)
		}
		if parsed.ImageKey == "" {
			return nil, fmt.Errorf("parse image content: missing image_key")
		}
		msg.ImageKeys = []string{parsed.ImageKey}

	case domain.MsgTypePost:
		text, keys, err := parsePost(ev.Content)
		if err != nil {
			return nil, err
		}
		msg.Text = text
		msg.ImageKeys = keys
	}

	return msg, nil
}

// parsePost extracts text and image keys from a rich text message.
// Received posts are flat; sent posts are wrapped in a locale map.
func parsePost(content string) (string, []string, error) {
	var flat PostBody
	if err := json.Unmarshal([]byte(content), &flat); err != nil {
		return "", nil, fmt.Errorf("parse post content: %w", err)
	}
	if flat.Title == "" && len(flat.Content) == 0 {
		var localized map[string]PostBody
		if err := json.Unmarshal([]byte(content), &localized); err == nil {
			for _, lang := range []string{"zh_cn", "en_us", "ja_jp"} {
				if body, ok := localized[lang]; ok {
					flat = body
					break
				}
			}
		}
	}

	var lines []string
	var imageKeys []string
	if flat.Title != "" {
		lines = append(lines, flat.Title)
	}
	for _, paragraph := range flat.Content {
		var sb strings.Builder
		for _, elem := range paragraph {
			switch elem.Tag {
			case "text", "md":
				sb.WriteString(elem.Text)
			case "a":
				if elem.Text != "" {
					sb.WriteString(elem.Text)
				} else {
					sb.WriteString(elem.Href)
				}
			case "at":
				// user_id holds the mention placeholder, resolved later
				if elem.UserID != "" {
					sb.WriteString(elem.UserID)
				} else if elem.UserName != "" {
					sb.WriteString("@" + elem.UserName)
				}
			case "code_block":
				sb.WriteString(elem.Text)
			case "img":
				if elem.ImageKey != "" {
					imageKeys = append(imageKeys, elem.ImageKey)
				}
			}
		}
		if line := sb.String(); line != "" {
			lines = append(lines, line)
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), imageKeys, nil
}
