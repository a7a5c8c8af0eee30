// Package bridge holds the narrow boundary types between the chat
// channel, the plugins and the reply-generation backend.
package bridge

type ReplyType string

const (
	ReplyText     ReplyType = "text"
	ReplyInfo     ReplyType = "info"
	ReplyError    ReplyType = "error"
	ReplyImageURL ReplyType = "image_url"
)

type Reply struct {
	Type    ReplyType
	Content string
}

func Text(content string) Reply     { return Reply{Type: ReplyText, Content: content} }
func Info(content string) Reply     { return Reply{Type: ReplyInfo, Content: content} }
func Error(content string) Reply    { return Reply{Type: ReplyError, Content: content} }
func ImageURL(content string) Reply { return Reply{Type: ReplyImageURL, Content: content} }

func (r Reply) Empty() bool { return r.Content == "" }
