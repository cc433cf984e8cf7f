package workers

import (
	"context"
	"log/slog"
	"strings"

	"tg-bridge/contract"
	"tg-bridge/domain"
)

// AutoReplyWorker consumes one session's inbound stream and answers messages
// whose trimmed text exactly matches a stored trigger. It reads rules
// through the trigger index and sends through the owning session; it never
// mutates session state. No partial matching, no rate limiting — the only
// recursion guard is the self-identity filter.
type AutoReplyWorker struct {
	log     *slog.Logger
	session contract.ISession
	index   contract.ITriggerIndex
}

func NewAutoReplyWorker(log *slog.Logger, session contract.ISession, index contract.ITriggerIndex) *AutoReplyWorker {
	return &AutoReplyWorker{log: log, session: session, index: index}
}

func (w *AutoReplyWorker) Run(ctx context.Context) error {
	w.log.Info("Listening for messages", "account", w.session.Account())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message, ok := <-w.session.Inbound():
			if !ok {
				// Stream closed with the connection; terminate cleanly
				// so the supervisor does not restart a dead session.
				return nil
			}
			w.handle(ctx, message)
		}
	}
}

func (w *AutoReplyWorker) handle(ctx context.Context, message domain.InboundMessage) {
	// Never reply to the account's own messages.
	if message.Sender.ID == w.session.Self().ID {
		return
	}

	text := strings.TrimSpace(message.Text)

	if message.Sender.Username == "" {
		// Replies target a username; there is no other addressing mode.
		w.log.Warn("Dropping message from sender without username",
			"account", w.session.Account(), "sender", message.Sender.Handle())
		return
	}
	if text == "" {
		return
	}

	w.log.Debug("Message received",
		"account", w.session.Account(), "from", message.Sender.Handle(), "text", text)

	reply, ok := w.index.Lookup(w.session.Account(), text)
	if !ok {
		return
	}

	if err := w.session.Send(ctx, message.Sender.Username, reply); err != nil {
		w.log.Error("Auto-reply failed",
			"account", w.session.Account(), "to", message.Sender.Username, "error", err)
	}
}
