// Package bot classifies inbound Telegram events and dispatches them to the
// add-product wizard or to stateless admin actions.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/driphype/shopbot/internal/config"
	"github.com/driphype/shopbot/internal/logger"
	"github.com/driphype/shopbot/internal/storage"
	"github.com/driphype/shopbot/internal/wizard"
)

// Bot wires the Telegram transport to the command router.
type Bot struct {
	tele   *tele.Bot
	cfg    *config.Config
	store  storage.Store
	engine *wizard.Engine
	poller *ChannelPoller
	log    *slog.Logger
}

// New builds the bot with a channel-fed poller; updates arrive through the
// ingress HTTP surface.
func New(cfg *config.Config, store storage.Store, engine *wizard.Engine) (*Bot, error) {
	poller := NewChannelPoller(128)

	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		URL:    cfg.Telegram.APIBase,
		Poller: poller,
		Client: &http.Client{Timeout: 30 * time.Second},
		OnError: func(err error, c tele.Context) {
			logger.Component("tg").Error("handler error",
				slog.String("event", "tg.error"),
				slog.String("err", err.Error()),
			)
		},
	}

	tb, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	b := &Bot{
		tele:   tb,
		cfg:    cfg,
		store:  store,
		engine: engine,
		poller: poller,
		log:    logger.Component("tg"),
	}
	b.register()
	return b, nil
}

// Poller exposes the update intake for the ingress endpoint.
func (b *Bot) Poller() *ChannelPoller {
	return b.poller
}

func (b *Bot) register() {
	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return recoverMiddleware(loggerMiddleware(h))
	}
	b.tele.Handle("/start", wrap(b.onStart))
	b.tele.Handle(tele.OnText, wrap(b.onText))
	b.tele.Handle(tele.OnCallback, wrap(b.onCallback))
	b.tele.Handle(tele.OnWebApp, wrap(b.onWebAppData))
}

// Run starts update processing until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	runDone := make(chan struct{})
	go func() {
		b.tele.Start()
		close(runDone)
	}()

	b.log.Info("bot started", slog.String("event", "start"))

	select {
	case <-ctx.Done():
		b.tele.Stop()
		<-runDone
		b.log.Info("bot stopped", slog.String("event", "stop"))
		return nil
	case <-runDone:
		return nil
	}
}

func (b *Bot) onStart(c tele.Context) error {
	return handleWithSummary(c, "start", func() error {
		v := b.handleStart(buildContext(c), c.Sender())
		return b.send(c, v)
	})
}

func (b *Bot) onText(c tele.Context) error {
	return handleWithSummary(c, "text", func() error {
		v, consumed := b.handleText(buildContext(c), c.Sender(), c.Text())
		if !consumed {
			// Free text outside a wizard has no meaning here.
			return nil
		}
		return b.send(c, v)
	})
}

func (b *Bot) onCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	action := DecodeAction(cb.Data)
	return handleWithSummary(c, "callback", func() error {
		v := b.handleAction(buildContext(c), c.Sender(), action)
		return b.respond(c, v)
	})
}

func (b *Bot) onWebAppData(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.WebAppData == nil {
		return nil
	}
	return handleWithSummary(c, "web_app_data", func() error {
		ctx := buildContext(c)
		confirmation, adminNote, err := b.handleOrder(ctx, c.Sender(), msg.WebAppData.Data)
		if err != nil {
			return err
		}
		if adminNote.text != "" && b.cfg.Telegram.AdminID != 0 {
			// Mirror the order to the administrator; delivery failure must
			// not break the buyer confirmation.
			if _, sendErr := b.tele.Send(&tele.User{ID: b.cfg.Telegram.AdminID}, adminNote.text); sendErr != nil {
				logger.Warn(ctx, "tg", "order.notify_admin",
					slog.String("err", sendErr.Error()),
				)
			}
		}
		if confirmation.text == "" {
			return nil
		}
		return b.send(c, confirmation)
	})
}

// send delivers a view as a new message.
func (b *Bot) send(c tele.Context, v view) error {
	if v.alert != "" && v.text == "" {
		return c.Send(v.alert)
	}
	if v.text == "" {
		return nil
	}
	if v.markup != nil {
		return c.Send(v.text, v.markup)
	}
	return c.Send(v.text)
}

// respond delivers a view as a callback reaction: alert first, then an
// edit-or-send of the message body.
func (b *Bot) respond(c tele.Context, v view) error {
	if v.alert != "" {
		if err := c.Respond(&tele.CallbackResponse{Text: v.alert, ShowAlert: true}); err != nil {
			b.log.Warn("callback respond failed",
				slog.String("event", "respond"),
				slog.String("err", err.Error()),
			)
		}
	} else {
		_ = c.Respond()
	}
	if v.text == "" {
		return nil
	}
	if v.markup != nil {
		return c.EditOrSend(v.text, v.markup)
	}
	return c.EditOrSend(v.text)
}
