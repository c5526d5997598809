package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"ThreadSentinel/internal/model"
)

// FormatCycleSummary formats a cycle result into a Telegram message.
func FormatCycleSummary(res *model.CycleResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🧵 <b>ThreadSentinel cycle</b> | %s\n\n", res.StartedAt.Local().Format("2006-01-02 15:04")))
	if res.Skipped {
		b.WriteString(fmt.Sprintf("⏸ Skipped: %s\n", html.EscapeString(res.SkipReason)))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("Campaigns processed: %d\n", res.CampaignsProcessed))
	b.WriteString(fmt.Sprintf("Posts made: %d\n", res.TotalPosts))
	b.WriteString(fmt.Sprintf("Duration: %s\n\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Second)))

	for _, o := range res.Outcomes {
		name := o.CampaignName
		if name == "" {
			name = o.CampaignID
		}
		switch o.State {
		case model.OutcomePosted:
			b.WriteString(fmt.Sprintf("✅ %s → r/%s (score %.1f)\n", html.EscapeString(name), html.EscapeString(o.Subreddit), o.Score))
			if o.CommentURL != "" {
				b.WriteString(fmt.Sprintf("   %s\n", html.EscapeString(o.CommentURL)))
			}
		case model.OutcomeSkipped:
			b.WriteString(fmt.Sprintf("➖ %s r/%s: %s\n", html.EscapeString(name), html.EscapeString(o.Subreddit), html.EscapeString(o.Reason)))
		default:
			b.WriteString(fmt.Sprintf("❌ %s r/%s: %s\n", html.EscapeString(name), html.EscapeString(o.Subreddit), html.EscapeString(o.Reason)))
		}
	}
	if len(res.Errors) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ %d error(s)\n", len(res.Errors)))
	}
	return b.String()
}

// FormatCircuitOpen formats the alert sent when the posting circuit opens.
func FormatCircuitOpen(workerType string, failures int, until *time.Time, reason string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🚨 <b>Circuit open</b> | %s\n\n", html.EscapeString(workerType)))
	b.WriteString(fmt.Sprintf("Consecutive failures: %d\n", failures))
	if until != nil {
		b.WriteString(fmt.Sprintf("Paused until: %s\n", until.Local().Format("2006-01-02 15:04")))
	}
	b.WriteString(fmt.Sprintf("Last failure: %s\n", html.EscapeString(reason)))
	b.WriteString("\nSend /reset_breaker once the cause is fixed.")
	return b.String()
}

// FormatAccountAlert formats the alert sent when an account is permanently excluded.
func FormatAccountAlert(accountID, username, reason string) string {
	return fmt.Sprintf("🚫 <b>Account excluded</b>\n\nAccount: %s (%s)\nReason: %s\n\nSend /reset_account %s after fixing it.",
		html.EscapeString(username), html.EscapeString(accountID), html.EscapeString(reason), html.EscapeString(accountID))
}

// FormatStatus formats the operator status snapshot.
func FormatStatus(s *model.StatusSnapshot) string {
	var b strings.Builder
	b.WriteString("📦 <b>Posting status</b>\n\n")
	if s.Breaker != nil {
		b.WriteString(fmt.Sprintf("Breaker: %s (%d consecutive failures)\n", s.Breaker.Status, s.Breaker.ConsecutiveFailures))
		if s.Breaker.BackoffUntil != nil {
			b.WriteString(fmt.Sprintf("Backoff until: %s\n", s.Breaker.BackoffUntil.Local().Format("2006-01-02 15:04")))
		}
	}
	b.WriteString(fmt.Sprintf("Accounts available: %d/%d\n", s.AccountsAvailable, s.AccountsTotal))
	if s.AccountsAvailable == 0 && s.NextAccountAt != nil {
		b.WriteString(fmt.Sprintf("Next account at: %s\n", s.NextAccountAt.Local().Format("15:04")))
	}
	b.WriteString(fmt.Sprintf("Campaigns ready: %d/%d\n", s.ReadyCampaigns, s.ActiveCampaigns))
	b.WriteString(fmt.Sprintf("Posts today: %d\n", s.PostsToday))
	if s.AIQuotaRemaining >= 0 {
		b.WriteString(fmt.Sprintf("AI calls left today: %d\n", s.AIQuotaRemaining))
	}
	if s.CycleRunning {
		b.WriteString("Cycle running: yes\n")
	}
	if s.LastCycle != nil {
		b.WriteString(fmt.Sprintf("Last cycle: %s, %d post(s)\n", s.LastCycle.StartedAt.Local().Format("2006-01-02 15:04"), s.LastCycle.TotalPosts))
	}
	return b.String()
}

// AccountLine is one row of the /accounts reply.
type AccountLine struct {
	ID            string
	Username      string
	Status        model.AccountStatus
	Available     bool
	AvailableFrom *time.Time
	TotalPosts    int
}

// FormatAccounts formats the account pool listing.
func FormatAccounts(lines []AccountLine) string {
	if len(lines) == 0 {
		return "👥 <b>Accounts</b>\n\nNo accounts configured."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("👥 <b>Accounts</b> (%d)\n\n", len(lines)))
	for _, l := range lines {
		state := "ready"
		switch {
		case l.Status != model.AccountActive:
			state = string(l.Status)
		case !l.Available && l.AvailableFrom != nil:
			state = "cooldown until " + l.AvailableFrom.Local().Format("15:04")
		case !l.Available:
			state = "not in pool"
		}
		b.WriteString(fmt.Sprintf("• %s <code>%s</code>: %s, %d post(s)\n",
			html.EscapeString(l.Username), html.EscapeString(l.ID), html.EscapeString(state), l.TotalPosts))
	}
	return b.String()
}
