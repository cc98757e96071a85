package transport

import "context"

// Message is an incoming chat message, transport-neutral.
type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type ChatTarget struct {
	ChatID int64
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	ReplyMarkup    any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// Notification is an ephemeral alert produced by a checker and consumed by
// the notifier. It is never persisted.
type Notification struct {
	Target   ChatTarget
	Text     string
	Priority int // 0 low .. 10 high
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Message) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
}
