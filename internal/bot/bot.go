// Package bot implements the request orchestrator: it routes inbound
// messages to the entry dialogue, to command handlers, or through the
// query matcher, and renders replies back through the transport.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/catalog"
	"github.com/starford/ansuz/internal/dialogue"
	"github.com/starford/ansuz/internal/match"
	"github.com/starford/ansuz/internal/models"
)

// DefaultMaxResults is how many candidates a query reply shows.
const DefaultMaxResults = 5

// Sender renders replies into the chat. Implemented by telegram.Client.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply models.Reply) (int64, error)
	Edit(ctx context.Context, chatID, messageID int64, reply models.Reply) error
}

// Publisher receives catalog/query activity for the event stream.
type Publisher interface {
	PublishAdded(title string, size int)
	PublishMatched(query string, size int)
	PublishMissed(query string, size int)
}

// Orchestrator sequences the lifecycle of each inbound message. One
// goroutine per message; tasks never block each other, and the search
// delay suspends only its own task.
type Orchestrator struct {
	queryChatID int64
	searchDelay time.Duration
	maxResults  int

	store    *catalog.Store
	matcher  *match.Matcher
	dialogue *dialogue.Manager
	sender   Sender
	events   Publisher
	logger   *slog.Logger

	wg sync.WaitGroup
}

// New creates an orchestrator. events may be nil; searchDelay may be zero.
func New(queryChatID int64, searchDelay time.Duration, maxResults int,
	store *catalog.Store, matcher *match.Matcher, dlg *dialogue.Manager,
	sender Sender, events Publisher, logger *slog.Logger) *Orchestrator {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Orchestrator{
		queryChatID: queryChatID,
		searchDelay: searchDelay,
		maxResults:  maxResults,
		store:       store,
		matcher:     matcher,
		dialogue:    dlg,
		sender:      sender,
		events:      events,
		logger:      logger,
	}
}

// Dispatch handles a message on its own goroutine, tracked so that Drain
// can wait for in-flight work. Failures are logged, never dropped.
func (o *Orchestrator) Dispatch(ctx context.Context, msg models.Message) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.HandleMessage(ctx, msg); err != nil {
			o.logger.Error("bot: message handling failed",
				slog.Int64("chat", msg.ChatID),
				slog.Int64("sender", msg.SenderID),
				slog.String("error", err.Error()))
		}
	}()
}

// Drain waits for all dispatched messages to finish or ctx to expire.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleMessage routes one inbound message: commands first (so /cancel
// works mid-dialogue), then dialogue continuations, then catalog queries
// from the designated query chat. Everything else is ignored.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg models.Message) error {
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "/") {
		return o.handleCommand(ctx, msg, text)
	}
	if o.dialogue.Active(msg.SenderID) {
		return o.handleDialogue(ctx, msg, text)
	}
	if msg.ChatID != o.queryChatID {
		return nil
	}
	return o.handleQuery(ctx, msg, text)
}

func (o *Orchestrator) handleCommand(ctx context.Context, msg models.Message, text string) error {
	cmd := strings.Fields(text)[0]
	// Group chats address commands as /cmd@botname.
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		return o.reply(ctx, msg, startText)

	case "/help":
		return o.reply(ctx, msg, helpText)

	case "/add":
		if err := o.dialogue.Start(msg.SenderID); err != nil {
			if errors.Is(err, apperr.ErrPermissionDenied) {
				o.logger.Warn("bot: unauthorized /add", slog.Int64("sender", msg.SenderID))
				return o.reply(ctx, msg, permissionDeniedText)
			}
			return err
		}
		return o.reply(ctx, msg, promptTitleText)

	case "/cancel":
		if o.dialogue.Cancel(msg.SenderID) {
			return o.reply(ctx, msg, cancelledText)
		}
		return o.reply(ctx, msg, nothingToCancelText)
	}

	// Unknown commands are ignored, matching the query-chat rule that
	// commands never trigger a search.
	return nil
}

func (o *Orchestrator) handleDialogue(ctx context.Context, msg models.Message, text string) error {
	res, err := o.dialogue.Input(msg.SenderID, text)
	if err != nil {
		return fmt.Errorf("bot: dialogue input: %w", err)
	}

	switch res.Outcome {
	case dialogue.OutcomeTitleRejected:
		return o.reply(ctx, msg, titleTooShortText)

	case dialogue.OutcomeLinkRequested:
		return o.reply(ctx, msg, fmt.Sprintf(promptLinkFmt, res.Title))

	case dialogue.OutcomeLinkRejected:
		return o.reply(ctx, msg, badLinkText)

	case dialogue.OutcomeCommitted:
		text := fmt.Sprintf(committedFmt, res.Title, res.Size)
		if res.SaveErr != nil {
			text += flushWarningText
		}
		if o.events != nil {
			o.events.PublishAdded(res.Title, res.Size)
		}
		return o.reply(ctx, msg, text)
	}

	return fmt.Errorf("bot: unhandled dialogue outcome %d", res.Outcome)
}

// handleQuery runs the search lifecycle: ack, optional delay, match,
// render. Every failure past the ack is contained here and rendered as a
// generic error edit; it never escapes to crash the process.
func (o *Orchestrator) handleQuery(ctx context.Context, msg models.Message, text string) error {
	query := catalog.Normalize(text)
	if len([]rune(query)) < match.MinQueryLen {
		return nil
	}

	ackID, err := o.sender.Send(ctx, msg.ChatID, models.Reply{
		Text:    fmt.Sprintf("🔍 Searching for '%s'...", query),
		ReplyTo: msg.MessageID,
	})
	if err != nil {
		return fmt.Errorf("bot: send ack: %w", err)
	}

	if o.searchDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.searchDelay):
		}
	}

	cands, err := o.search(query)
	if err != nil {
		o.logger.Error("bot: search failed",
			slog.String("query", query),
			slog.String("error", err.Error()))
		_ = o.sender.Edit(ctx, msg.ChatID, ackID, models.Reply{Text: genericErrorText})
		return err
	}

	if len(cands) == 0 {
		if o.events != nil {
			o.events.PublishMissed(query, o.store.Len())
		}
		return o.sender.Edit(ctx, msg.ChatID, ackID, models.Reply{
			Text: fmt.Sprintf(notFoundFmt, query, msg.SenderName, o.store.Len()),
		})
	}

	if len(cands) > o.maxResults {
		cands = cands[:o.maxResults]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Found %d result(s) for '%s':\n\n", len(cands), query)
	buttons := make([]models.Button, len(cands))
	for i, c := range cands {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Title)
		buttons[i] = models.Button{
			Label: fmt.Sprintf("📥 Get %d", i+1),
			URL:   c.Record.Link,
		}
	}
	fmt.Fprintf(&b, "\n👤 Requested by: %s", msg.SenderName)

	if o.events != nil {
		o.events.PublishMatched(query, o.store.Len())
	}
	return o.sender.Edit(ctx, msg.ChatID, ackID, models.Reply{
		Text:    b.String(),
		Buttons: buttons,
	})
}

// search wraps the matcher so that an unexpected panic in scoring is
// contained and reported as an error instead of killing the task.
func (o *Orchestrator) search(query string) (cands []match.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bot: match panic: %v", r)
		}
	}()
	return o.matcher.Match(query), nil
}

func (o *Orchestrator) reply(ctx context.Context, msg models.Message, text string) error {
	_, err := o.sender.Send(ctx, msg.ChatID, models.Reply{Text: text, ReplyTo: msg.MessageID})
	return err
}
