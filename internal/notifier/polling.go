package notifier

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

const (
	longPollSeconds = 30
	pollRetryDelay  = 5 * time.Second
)

// CommandHandler answers an operator command. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	Text string `json:"text"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

// StartPolling long-polls getUpdates and dispatches text messages from the
// operator chat to handler. It returns when ctx is done.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	var offset int64
	for ctx.Err() == nil {
		batch, err := t.updates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("[WARN] telegram getUpdates: %v", err)
			sleepCtx(ctx, pollRetryDelay)
			continue
		}
		for _, u := range batch {
			offset = u.UpdateID + 1
			t.dispatch(ctx, u.Message, handler)
		}
	}
	log.Println("[INFO] Telegram polling stopped")
}

func (t *TelegramNotifier) updates(ctx context.Context, offset int64) ([]update, error) {
	method := fmt.Sprintf("getUpdates?offset=%d&timeout=%d", offset, longPollSeconds)
	var batch []update
	if err := t.call(ctx, (longPollSeconds+5)*time.Second, method, nil, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func (t *TelegramNotifier) dispatch(ctx context.Context, m *message, handler CommandHandler) {
	if m == nil {
		return
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return
	}
	if strconv.FormatInt(m.Chat.ID, 10) != t.chatID {
		log.Printf("[WARN] ignoring message from chat %d", m.Chat.ID)
		return
	}
	log.Printf("[INFO] operator command: %s", text)
	reply := handler(ctx, text)
	if reply == "" {
		return
	}
	if err := t.Send(ctx, reply); err != nil {
		log.Printf("[ERROR] reply to %s: %v", text, err)
	}
}
