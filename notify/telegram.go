package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/execution"
	"github.com/rustyeddy/autotrader/pkg/logging"
	"github.com/rustyeddy/autotrader/strategies"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram is an execution.Observer that posts fills and daily-loss halts to
// a chat. Messages are queued and sent by Run so cycles never wait on the
// network; when the queue is full new messages are dropped.
type Telegram struct {
	sender Sender
	chatID int64
	queue  chan string
	log    *zap.Logger

	// Rejections also posts every rejected action.
	Rejections bool
}

// NewTelegram authorizes token with the Bot API.
func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	t := NewTelegramWithSender(api, chatID, log)
	t.log.Info("telegram bot authorized", zap.String("user", api.Self.UserName))
	return t, nil
}

func NewTelegramWithSender(s Sender, chatID int64, log *zap.Logger) *Telegram {
	return &Telegram{
		sender: s,
		chatID: chatID,
		queue:  make(chan string, 64),
		log:    logging.OrNop(log).Named("telegram"),
	}
}

func (t *Telegram) OnFill(f execution.Fill) {
	t.enqueue(FormatFill(f))
}

func (t *Telegram) OnRejection(r execution.Rejection) {
	if t.Rejections {
		t.enqueue(FormatRejection(r))
	}
}

func (t *Telegram) OnHalt(at, window time.Time) {
	t.enqueue(fmt.Sprintf("Daily loss limit reached at %s. No new positions until the day after %s.",
		at.UTC().Format(time.RFC3339), window.Format("2006-01-02")))
}

// Notify queues an arbitrary message.
func (t *Telegram) Notify(msg string) {
	t.enqueue(msg)
}

func (t *Telegram) enqueue(msg string) {
	select {
	case t.queue <- msg:
	default:
		t.log.Warn("telegram queue full, dropping message")
	}
}

// Run sends queued messages until ctx is done.
func (t *Telegram) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-t.queue:
			t.send(msg)
		}
	}
}

func (t *Telegram) send(text string) {
	for _, part := range splitMessage(text, 4096) {
		m := tgbotapi.NewMessage(t.chatID, part)
		if _, err := t.sender.Send(m); err != nil {
			t.log.Error("failed to send telegram message", zap.Error(err))
		}
	}
}

func FormatFill(f execution.Fill) string {
	var b strings.Builder
	if f.Action == strategies.Open {
		fmt.Fprintf(&b, "OPEN %s %s %.8f @ %.4f (%s)", strings.ToUpper(string(f.Direction)), f.Symbol, f.Quantity, f.Price, f.Strategy)
	} else {
		fmt.Fprintf(&b, "CLOSE %s %.8f @ %.4f (%s)", f.Symbol, f.Quantity, f.Price, f.Strategy)
		if f.Trade != nil {
			fmt.Fprintf(&b, "\nP&L %+.4f, %s", f.Trade.RealizedPnL, f.Trade.Reason)
		}
	}
	fmt.Fprintf(&b, "\nBalance %.4f (available %.4f)", f.Balance.Total, f.Balance.Available)
	return b.String()
}

func FormatRejection(r execution.Rejection) string {
	return fmt.Sprintf("REJECTED %s %s (%s): %s", r.Action.Kind, r.Symbol, r.Code, r.Reason)
}

// splitMessage breaks text on line boundaries into parts of at most max
// bytes. A single longer line is cut.
func splitMessage(text string, max int) []string {
	if utf8.RuneCountInString(text) <= max {
		return []string{text}
	}
	var (
		parts []string
		cur   strings.Builder
		n     int // runes in cur
	)
	flush := func() {
		if n > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			n = 0
		}
	}
	for _, line := range strings.Split(text, "\n") {
		size := utf8.RuneCountInString(line)
		for size > max {
			flush()
			cut := runeOffset(line, max)
			parts = append(parts, line[:cut])
			line = line[cut:]
			size -= max
		}
		if n > 0 && n+1+size > max {
			flush()
		}
		if n > 0 {
			cur.WriteByte('\n')
			n++
		}
		cur.WriteString(line)
		n += size
	}
	flush()
	return parts
}

// runeOffset is the byte offset of the n-th rune in s.
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
