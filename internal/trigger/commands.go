package trigger

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"ThreadSentinel/internal/breaker"
	"ThreadSentinel/internal/notifier"
)

const helpText = "Available commands:\n" +
	"• /status: breaker, accounts and campaigns\n" +
	"• /accounts: account pool\n" +
	"• /run: run a posting cycle now\n" +
	"• /reset_breaker: clear the posting backoff\n" +
	"• /reset_account &lt;id&gt;: return an account to the pool"

// HandleCommand processes an operator command and returns a reply.
func (t *Trigger) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// Telegram appends @botname to commands in group chats.
	name, _, _ := strings.Cut(fields[0], "@")

	switch name {
	case "/status":
		st, err := t.Status(ctx)
		if err != nil {
			return fmt.Sprintf("❌ %s", html.EscapeString(err.Error()))
		}
		return notifier.FormatStatus(st)

	case "/accounts":
		sums, err := t.accounts.Summaries(ctx)
		if err != nil {
			return fmt.Sprintf("❌ %s", html.EscapeString(err.Error()))
		}
		lines := make([]notifier.AccountLine, 0, len(sums))
		for _, s := range sums {
			lines = append(lines, notifier.AccountLine{
				ID:            s.ID,
				Username:      s.Username,
				Status:        s.Status,
				Available:     s.Available,
				AvailableFrom: s.AvailableFrom,
				TotalPosts:    s.TotalPosts,
			})
		}
		return notifier.FormatAccounts(lines)

	case "/run":
		res, err := t.RunNow(ctx)
		if errors.Is(err, ErrCycleRunning) {
			return "⏳ A posting cycle is already running."
		}
		if err != nil {
			return fmt.Sprintf("❌ Posting cycle failed: %s", html.EscapeString(err.Error()))
		}
		return notifier.FormatCycleSummary(res)

	case "/reset_breaker":
		if err := t.breaker.Reset(ctx, breaker.WorkerPosting); err != nil {
			return fmt.Sprintf("❌ %s", html.EscapeString(err.Error()))
		}
		return "✅ Posting breaker reset."

	case "/reset_account":
		if len(fields) < 2 {
			return "Usage: /reset_account &lt;id&gt;"
		}
		if err := t.accounts.Reset(ctx, fields[1]); err != nil {
			return fmt.Sprintf("❌ %s", html.EscapeString(err.Error()))
		}
		return fmt.Sprintf("✅ Account %s reset.", html.EscapeString(fields[1]))

	default:
		return helpText
	}
}
