// Package telegram sends run-summary notifications via the Telegram Bot API.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rcline/electioncal/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a pipeline failure notification.
func (c *Client) SendError(runErr error) error {
	text := fmt.Sprintf("⚠️ *Pipeline error*\n`%s`", escapeMarkdownV2(runErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendReport sends a run summary.
func (c *Client) SendReport(report *models.RunReport) error {
	return c.sendMarkdownV2(formatReport(report))
}

// formatReport formats a run report as a Telegram MarkdownV2 message.
func formatReport(r *models.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 *Run %s complete*\n\n", escapeMarkdownV2(r.Command))
	fmt.Fprintf(&b, "🕒 %s, took %s\n",
		escapeMarkdownV2(r.StartedAt.Format("2006-01-02 15:04:05")),
		escapeMarkdownV2(r.Duration.Round(time.Second).String()))
	fmt.Fprintf(&b, "📦 %d markets \\(%d duplicate rows dropped\\)\n", r.Markets, r.Duplicates)
	fmt.Fprintf(&b, "💹 7d prices: %d, 1d prices: %d, fetch failures: %d\n", r.With7d, r.With1d, r.FetchFails)

	if r.Total7d > 0 {
		fmt.Fprintf(&b, "🎯 Correct at 7d: %s\n", escapeMarkdownV2(ratio(r.Correct7d, r.Total7d)))
	}
	if r.Total1d > 0 {
		fmt.Fprintf(&b, "🎯 Correct at 1d: %s\n", escapeMarkdownV2(ratio(r.Correct1d, r.Total1d)))
	}

	for _, side := range []models.Side{models.SideRepublican, models.SideDemocrat} {
		ss := r.BySide[side]
		if ss == nil || ss.Markets == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n*Side %s* \\(%d markets\\)\n", side, ss.Markets)
		if ss.Total7d > 0 {
			fmt.Fprintf(&b, "  7d: %s\n", escapeMarkdownV2(ratio(ss.Correct7d, ss.Total7d)))
		}
		if ss.Total1d > 0 {
			fmt.Fprintf(&b, "  1d: %s\n", escapeMarkdownV2(ratio(ss.Correct1d, ss.Total1d)))
		}
	}

	return b.String()
}

func ratio(correct, total int) string {
	return fmt.Sprintf("%d/%d (%.1f%%)", correct, total, 100*float64(correct)/float64(total))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
