package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

// DefaultTextChunkLimit is the platform's per-message character budget
const DefaultTextChunkLimit = 4000

const (
	codeFence           = "```"
	defaultCodeLanguage = "plain text"
)

// SelectFormat chooses how a reply is rendered
func SelectFormat(reply domain.ReplyPayload, caps domain.Capabilities) domain.MsgFormat {
	if reply.PreferCard && caps.Cards {
		return domain.FormatCard
	}
	if caps.Markdown && strings.Contains(reply.Text, codeFence) {
		return domain.FormatPost
	}
	return domain.FormatText
}

// SplitMessage cuts text into chunks of at most maxLen characters.
// Each cut lands on the latest boundary inside the budget, preferring in
// order: the end of a code fence past maxLen/3, a blank line past maxLen/3,
// a line break past maxLen/2, and finally a hard cut at maxLen. Chunks are
// right-trimmed and the remainder is left-trimmed.
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultTextChunkLimit
	}
	rest := []rune(text)
	if len(rest) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(rest) > maxLen {
		cut := findCut(rest, maxLen)
		chunk := strings.TrimRight(string(rest[:cut]), " \t\r\n")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = []rune(strings.TrimLeft(string(rest[cut:]), " \t\r\n"))
	}
	if len(rest) > 0 {
		chunks = append(chunks, string(rest))
	}
	return chunks
}

// fenceSpan is a code fence from the start of its opening line to the end
// of its closing line. An unclosed fence has closed == false.
type fenceSpan struct {
	start, end int
	closed     bool
}

func (f fenceSpan) contains(pos int) bool {
	return pos > f.start && pos < f.end
}

// scanFences finds the code fences of text in rune offsets
func scanFences(text []rune) []fenceSpan {
	var spans []fenceSpan
	open := -1
	lineStart := 0
	for i := 0; i <= len(text); i++ {
		if i < len(text) && text[i] != '\n' {
			continue
		}
		line := strings.TrimSpace(string(text[lineStart:i]))
		if strings.HasPrefix(line, codeFence) {
			if open < 0 {
				open = lineStart
			} else {
				spans = append(spans, fenceSpan{start: open, end: i, closed: true})
				open = -1
			}
		}
		lineStart = i + 1
	}
	if open >= 0 {
		spans = append(spans, fenceSpan{start: open, end: len(text)})
	}
	return spans
}

func insideFence(spans []fenceSpan, pos int) bool {
	for _, s := range spans {
		if s.contains(pos) {
			return true
		}
	}
	return false
}

// findCut returns the rune offset at which to cut rest
func findCut(rest []rune, maxLen int) int {
	spans := scanFences(rest)

	// a: end of a closed fence
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		if s.closed && s.end <= maxLen && s.end > maxLen/3 {
			return s.end
		}
	}
	// b: blank line outside fences
	if i := lastBoundary(rest, "\n\n", maxLen, maxLen/3, spans); i > 0 {
		return i
	}
	// c: line break outside fences
	if i := lastBoundary(rest, "\n", maxLen, maxLen/2, spans); i > 0 {
		return i
	}
	// a fence longer than the budget has no clean boundary; a line break
	// inside it still beats a cut mid-line
	if i := lastBoundary(rest, "\n", maxLen, maxLen/2, nil); i > 0 {
		return i
	}
	return maxLen
}

// lastBoundary finds the last occurrence of sep starting at or before
// limit and after floor that is not inside a fence. It returns -1 if none.
func lastBoundary(text []rune, sep string, limit, floor int, spans []fenceSpan) int {
	pattern := []rune(sep)
	start := limit
	if start > len(text)-len(pattern) {
		start = len(text) - len(pattern)
	}
	for i := start; i > floor; i-- {
		if !runesHavePrefix(text[i:], pattern) {
			continue
		}
		if insideFence(spans, i) {
			continue
		}
		return i
	}
	return -1
}

func runesHavePrefix(s, prefix []rune) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i, r := range prefix {
		if s[i] != r {
			return false
		}
	}
	return true
}

// PostElement is one inline element of a rich text post
type PostElement struct {
	Tag      string   `json:"tag"`
	Text     string   `json:"text,omitempty"`
	Href     string   `json:"href,omitempty"`
	ImageKey string   `json:"image_key,omitempty"`
	UserID   string   `json:"user_id,omitempty"`
	UserName string   `json:"user_name,omitempty"`
	Language string   `json:"language,omitempty"`
	Style    []string `json:"style,omitempty"`
}

// PostBody is the title and paragraphs of a post in one locale
type PostBody struct {
	Title   string          `json:"title"`
	Content [][]PostElement `json:"content"`
}

// RichText is a post message content
type RichText struct {
	ZhCN PostBody `json:"zh_cn"`
}

// ToRichText converts markdown-ish text into a post structure line by line.
// Fences become code blocks, blank lines close paragraphs and # lines
// become bold headlines. Inline markup is left as is.
func ToRichText(markdown string) RichText {
	var (
		paragraphs [][]PostElement
		current    []PostElement
		inFence    bool
		language   string
		code       []string
	)
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, current)
			current = nil
		}
	}
	closeFence := func() {
		paragraphs = append(paragraphs, []PostElement{{
			Tag:      "code_block",
			Language: language,
			Text:     strings.Join(code, "\n"),
		}})
		code = nil
		inFence = false
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if inFence {
			if strings.HasPrefix(trimmed, codeFence) {
				closeFence()
				continue
			}
			code = append(code, line)
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, codeFence):
			flush()
			inFence = true
			language = strings.TrimSpace(strings.TrimPrefix(trimmed, codeFence))
			if language == "" {
				language = defaultCodeLanguage
			}
		case trimmed == "":
			flush()
		case strings.HasPrefix(trimmed, "#"):
			current = append(current, PostElement{
				Tag:   "text",
				Text:  strings.TrimSpace(strings.TrimLeft(trimmed, "#")) + "\n",
				Style: []string{"bold"},
			})
		default:
			current = append(current, PostElement{Tag: "text", Text: line + "\n"})
		}
	}
	if inFence {
		closeFence()
	}
	flush()

	return RichText{ZhCN: PostBody{Content: paragraphs}}
}

// BuildMarkdownCard wraps text in an interactive card with one markdown element
func BuildMarkdownCard(text string) map[string]any {
	return map[string]any{
		"schema": "2.0",
		"config": map[string]any{
			"wide_screen_mode": true,
		},
		"body": map[string]any{
			"elements": []map[string]any{
				{"tag": "markdown", "content": text},
			},
		},
	}
}

// BuildContent renders one chunk as createMessage content for format
func BuildContent(format domain.MsgFormat, text string) (string, error) {
	var v any
	switch format {
	case domain.FormatCard:
		v = BuildMarkdownCard(text)
	case domain.FormatPost:
		v = ToRichText(text)
	case domain.FormatText:
		v = map[string]string{"text": text}
	default:
		return "", fmt.Errorf("unknown message format %q", format)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s content: %w", format, err)
	}
	return string(data), nil
}
