package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shortlink/internal/analytics"
	"shortlink/internal/service"
	"shortlink/internal/types"

	tele "gopkg.in/telebot.v4"
)

// TelegramBot is a thin creation/reporting surface over the core. The
// Telegram sender id doubles as the pre-validated owner reference.
type TelegramBot struct {
	tgBot      *tele.Bot
	shortener  *service.Shortener
	aggregator *analytics.Aggregator
	baseURL    string
}

func NewTelegramBot(tgToken, baseURL string, shortener *service.Shortener, aggregator *analytics.Aggregator) (*TelegramBot, error) {
	pref := tele.Settings{
		Token:  tgToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		slog.Error("failed to initialize telegram bot", "error", err)
		return nil, err
	}

	b := &TelegramBot{
		tgBot:      bot,
		shortener:  shortener,
		aggregator: aggregator,
		baseURL:    baseURL,
	}

	return b, nil
}

func (b *TelegramBot) Start(ctx context.Context) error {
	slog.Info("Telegram bot started", "bot_username", b.tgBot.Me.Username)

	b.tgBot.Handle("/start", b.handleStart)
	b.tgBot.Handle("/stats", b.handleStats)
	b.tgBot.Handle(tele.OnText, b.handleMessage)

	go func() {
		<-ctx.Done()
		slog.Info("Telegram bot shutting down")
		b.tgBot.Stop()
	}()

	b.tgBot.Start()
	return nil
}

func (b *TelegramBot) handleStart(c tele.Context) error {
	slog.Debug("command /start received", "user_id", c.Sender().ID)
	return c.Send("Hi! Send me a long link and I will shorten it. Use /stats to see clicks on your links.")
}

func (b *TelegramBot) handleStats(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	to := time.Now().UTC()
	from := to.AddDate(0, -1, 0)

	reports, err := b.aggregator.OwnerReport(ctx, c.Sender().ID, from, to)
	if err != nil {
		slog.Error("failed to build stats", "user_id", c.Sender().ID, "error", err)
		return c.Send("Could not load your stats, please try again later.")
	}
	if len(reports) == 0 {
		return c.Send("You have no shortened links yet.")
	}

	var sb strings.Builder
	sb.WriteString("Clicks over the last month:\n")
	for _, r := range reports {
		fmt.Fprintf(&sb, "%s/%s → %s: %d clicks (total %d)\n",
			b.baseURL, r.Mapping.ShortCode, r.Mapping.TargetURL,
			len(r.Clicks), r.Mapping.ClickCount)
	}
	return c.Send(sb.String())
}

func (b *TelegramBot) handleMessage(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m, err := b.shortener.Shorten(ctx, c.Text(), c.Sender().ID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			return c.Send("That does not look like a valid link. It must start with http:// or https:// and contain a host.")
		}
		if errors.Is(err, types.ErrExhaustedKeyspace) {
			slog.Error("short code generation exhausted", "error", err)
			return c.Send("The service is overloaded, please try again later.")
		}
		slog.Error("failed to create short link", "error", err)
		return c.Send("Something went wrong creating your link, please try again.")
	}

	return c.Send("Here is your short link:\n" + b.baseURL + "/" + m.ShortCode)
}
