package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

func TestParseContentText(t *testing.T) {
	msg, err := ParseContent(&domain.RawEvent{MsgType: domain.MsgTypeText, Content: `{"text":"  hello  "}`})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.True(t, msg.BufferEligible())

	msg, err = ParseContent(&domain.RawEvent{MsgType: domain.MsgTypeText, Content: `{"text":"   "}`})
	require.NoError(t, err)
	assert.False(t, msg.BufferEligible(), "blank text is not buffered")

	_, err = ParseContent(&domain.RawEvent{MsgType: domain.MsgTypeText, Content: `{not json`})
	assert.Error(t, err)
}

func TestParseContentImage(t *testing.T) {
	msg, err := ParseContent(&domain.RawEvent{MsgType: domain.MsgTypeImage, Content: `{"image_key":"img_v2_1"}`})
	require.NoError(t, err)
	assert.Equal(t, []string{"img_v2_1"}, msg.ImageKeys)
	assert.True(t, msg.HasMedia())
	assert.False(t, msg.BufferEligible())

	_, err = ParseContent(&domain.RawEvent{MsgType: domain.MsgTypeImage, Content: `{}`})
	assert.Error(t, err)
}

func TestParseContentPost(t *testing.T) {
	content := `{"title":"Weekly","content":[
		[{"tag":"at","user_id":"@_user_1"},{"tag":"text","text":" see "},{"tag":"a","text":"doc","href":"https://x"}],
		[{"tag":"img","image_key":"img_a"}],
		[{"tag":"code_block","language":"go","text":"fmt.Println()"}]
	]}`
	msg, err := ParseContent(&domain.RawEvent{MsgType: domain.MsgTypePost, Content: content})
	require.NoError(t, err)
	assert.Equal(t, "Weekly\n@_user_1 see doc\nfmt.Println()", msg.Text)
	assert.Equal(t, []string{"img_a"}, msg.ImageKeys)
}

func TestParseContentLocalizedPost(t *testing.T) {
	content := `{"en_us":{"title":"","content":[[{"tag":"text","text":"hi there"}]]}}`
	msg, err := ParseContent(&domain.RawEvent{MsgType: domain.MsgTypePost, Content: content})
	require.NoError(t, err)
	assert.Equal(t, "hi there", msg.Text)
}

func TestParseContentUnsupported(t *testing.T) {
	msg, err := ParseContent(&domain.RawEvent{MsgType: domain.MsgTypeOther, Content: `{"file_key":"f"}`})
	require.NoError(t, err)
	assert.Empty(t, msg.Text)
	assert.False(t, msg.HasMedia())
}
