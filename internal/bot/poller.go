package bot

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/driphype/shopbot/internal/logger"
)

// ChannelPoller implements tele.Poller over an in-process channel so the
// ingress HTTP surface can feed updates into the bot instead of telebot
// opening its own webhook listener.
type ChannelPoller struct {
	updates chan tele.Update
	log     *slog.Logger
}

// NewChannelPoller builds a poller with the given intake buffer size.
func NewChannelPoller(buffer int) *ChannelPoller {
	if buffer <= 0 {
		buffer = 128
	}
	return &ChannelPoller{
		updates: make(chan tele.Update, buffer),
		log:     logger.Component("tg"),
	}
}

// Poll forwards pushed updates to the bot until stopped.
func (p *ChannelPoller) Poll(b *tele.Bot, dest chan tele.Update, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case upd := <-p.updates:
			select {
			case dest <- upd:
			case <-stop:
				return
			}
		}
	}
}

// Push enqueues an update for processing. It reports false when the intake
// buffer is full; the caller still acknowledges delivery and relies on the
// at-least-once webhook retry.
func (p *ChannelPoller) Push(upd tele.Update) bool {
	select {
	case p.updates <- upd:
		return true
	default:
		p.log.Warn("update intake full",
			slog.String("event", "intake.drop"),
			slog.Int("update_id", upd.ID),
		)
		return false
	}
}
