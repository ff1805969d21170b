package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/catalog"
	"github.com/starford/ansuz/internal/dialogue"
	"github.com/starford/ansuz/internal/match"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/testutil"
)

const queryChat int64 = -100

type sentMsg struct {
	chatID int64
	reply  models.Reply
}

type editMsg struct {
	chatID    int64
	messageID int64
	reply     models.Reply
}

type fakeSender struct {
	mu       sync.Mutex
	sends    []sentMsg
	edits    []editMsg
	failSend bool
}

func (f *fakeSender) Send(_ context.Context, chatID int64, reply models.Reply) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return 0, fmt.Errorf("transport down")
	}
	f.sends = append(f.sends, sentMsg{chatID: chatID, reply: reply})
	return int64(1000 + len(f.sends)), nil
}

func (f *fakeSender) Edit(_ context.Context, chatID, messageID int64, reply models.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editMsg{chatID: chatID, messageID: messageID, reply: reply})
	return nil
}

func (f *fakeSender) lastSend(t *testing.T) sentMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sends) == 0 {
		t.Fatal("no messages sent")
	}
	return f.sends[len(f.sends)-1]
}

func (f *fakeSender) lastEdit(t *testing.T) editMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		t.Fatal("no edits sent")
	}
	return f.edits[len(f.edits)-1]
}

func (f *fakeSender) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends), len(f.edits)
}

type allowSet map[int64]struct{}

func (a allowSet) Authorized(id int64) bool {
	_, ok := a[id]
	return ok
}

func testBot(t *testing.T, operators ...int64) (*Orchestrator, *fakeSender, *catalog.Store) {
	t.Helper()
	logger := testutil.Logger()
	store := testutil.TestStore(t)

	allow := allowSet{}
	for _, id := range operators {
		allow[id] = struct{}{}
	}
	dlg := dialogue.NewManager(store, allow, 0, logger)

	sender := &fakeSender{}
	orch := New(queryChat, 0, 0, store, match.New(store), dlg, sender, nil, logger)
	return orch, sender, store
}

func msg(chatID, senderID int64, text string) models.Message {
	return models.Message{
		MessageID:  7,
		ChatID:     chatID,
		SenderID:   senderID,
		SenderName: "alice",
		Text:       text,
		SentAt:     time.Now(),
	}
}

func seed(t *testing.T, store *catalog.Store, titles ...string) {
	t.Helper()
	for _, title := range titles {
		err := store.Put(models.Record{
			Title:   title,
			Link:    "https://example.com/" + strings.ReplaceAll(title, " ", "-"),
			AddedBy: 1,
			AddedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("seed %q: %v", title, err)
		}
	}
}

func TestQueryFound(t *testing.T) {
	orch, sender, store := testBot(t)
	seed(t, store, "inception")

	if err := orch.HandleMessage(context.Background(), msg(queryChat, 5, "incep")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	ack := sender.lastSend(t)
	if ack.chatID != queryChat || ack.reply.ReplyTo != 7 {
		t.Errorf("ack = %+v, want reply in query chat to message 7", ack)
	}
	if !strings.Contains(ack.reply.Text, "Searching") {
		t.Errorf("ack text = %q", ack.reply.Text)
	}

	result := sender.lastEdit(t)
	if result.messageID != 1001 {
		t.Errorf("edit targets message %d, want the ack", result.messageID)
	}
	if !strings.Contains(result.reply.Text, "inception") {
		t.Errorf("result text = %q", result.reply.Text)
	}
	if !strings.Contains(result.reply.Text, "Requested by: alice") {
		t.Errorf("missing requester attribution in %q", result.reply.Text)
	}
	if len(result.reply.Buttons) != 1 {
		t.Fatalf("buttons = %d, want 1", len(result.reply.Buttons))
	}
	if result.reply.Buttons[0].URL != "https://example.com/inception" {
		t.Errorf("button url = %q", result.reply.Buttons[0].URL)
	}
}

func TestQueryNotFoundIncludesCatalogSize(t *testing.T) {
	orch, sender, store := testBot(t)
	seed(t, store, "inception", "dune")

	if err := orch.HandleMessage(context.Background(), msg(queryChat, 5, "zzzz")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	result := sender.lastEdit(t)
	if !strings.Contains(result.reply.Text, "not found") {
		t.Errorf("result text = %q", result.reply.Text)
	}
	if !strings.Contains(result.reply.Text, "Catalog size: 2") {
		t.Errorf("missing catalog size in %q", result.reply.Text)
	}
	if len(result.reply.Buttons) != 0 {
		t.Errorf("buttons = %d, want none", len(result.reply.Buttons))
	}
}

func TestQueryTruncatesToTopFive(t *testing.T) {
	orch, sender, store := testBot(t)
	seed(t, store, "war a", "war b", "war c", "war d", "war e", "war f")

	if err := orch.HandleMessage(context.Background(), msg(queryChat, 5, "war")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	result := sender.lastEdit(t)
	if len(result.reply.Buttons) != 5 {
		t.Errorf("buttons = %d, want top 5", len(result.reply.Buttons))
	}
}

func TestQueryIgnoredOutsideQueryChat(t *testing.T) {
	orch, sender, store := testBot(t)
	seed(t, store, "inception")

	if err := orch.HandleMessage(context.Background(), msg(-200, 5, "inception")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if s, e := sender.counts(); s != 0 || e != 0 {
		t.Errorf("sends=%d edits=%d, want silence", s, e)
	}
}

func TestShortAndCommandTextIgnored(t *testing.T) {
	orch, sender, store := testBot(t)
	seed(t, store, "inception")

	for _, text := range []string{"i", " ", "/unknowncmd"} {
		if err := orch.HandleMessage(context.Background(), msg(queryChat, 5, text)); err != nil {
			t.Fatalf("HandleMessage(%q): %v", text, err)
		}
	}
	if s, e := sender.counts(); s != 0 || e != 0 {
		t.Errorf("sends=%d edits=%d, want silence", s, e)
	}
}

func TestAckFailureReturnsError(t *testing.T) {
	orch, sender, store := testBot(t)
	seed(t, store, "inception")
	sender.failSend = true

	if err := orch.HandleMessage(context.Background(), msg(queryChat, 5, "incep")); err == nil {
		t.Fatal("expected error when ack cannot be sent")
	}
}

func TestAddFlowCommits(t *testing.T) {
	orch, sender, store := testBot(t, 42)
	ctx := context.Background()

	steps := []struct {
		text string
		want string
	}{
		{"/add", "Send the title"},
		{"x", "at least 2 characters"},
		{"dune", "send the retrieval link"},
		{"ftp://x", "doesn't look like a link"},
		{"https://example.com/d", "The catalog now has 1 entries"},
	}
	for _, step := range steps {
		if err := orch.HandleMessage(ctx, msg(queryChat, 42, step.text)); err != nil {
			t.Fatalf("HandleMessage(%q): %v", step.text, err)
		}
		got := sender.lastSend(t)
		if !strings.Contains(got.reply.Text, step.want) {
			t.Errorf("reply to %q = %q, want substring %q", step.text, got.reply.Text, step.want)
		}
	}

	rec, ok := store.Get("dune")
	if !ok || rec.Link != "https://example.com/d" || rec.AddedBy != 42 {
		t.Errorf("record = %+v, ok=%v", rec, ok)
	}
}

func TestAddUnauthorized(t *testing.T) {
	orch, sender, store := testBot(t, 42)

	if err := orch.HandleMessage(context.Background(), msg(queryChat, 7, "/add")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	got := sender.lastSend(t)
	if !strings.Contains(got.reply.Text, "permission") {
		t.Errorf("reply = %q, want permission rejection", got.reply.Text)
	}
	if store.Len() != 0 {
		t.Error("catalog must be untouched")
	}

	// The denied operator's next message is treated as a plain query,
	// not dialogue input.
	if err := orch.HandleMessage(context.Background(), msg(queryChat, 7, "dune")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if store.Len() != 0 {
		t.Error("catalog must still be untouched")
	}
}

func TestCancelMidDialogue(t *testing.T) {
	orch, sender, store := testBot(t, 42)
	ctx := context.Background()

	_ = orch.HandleMessage(ctx, msg(queryChat, 42, "/add"))
	_ = orch.HandleMessage(ctx, msg(queryChat, 42, "dune"))
	_ = orch.HandleMessage(ctx, msg(queryChat, 42, "/cancel"))

	got := sender.lastSend(t)
	if !strings.Contains(got.reply.Text, "Cancelled") {
		t.Errorf("reply = %q", got.reply.Text)
	}
	if store.Len() != 0 {
		t.Error("cancelled dialogue must not commit")
	}

	_ = orch.HandleMessage(ctx, msg(queryChat, 42, "/cancel"))
	if got := sender.lastSend(t); !strings.Contains(got.reply.Text, "Nothing to cancel") {
		t.Errorf("reply = %q", got.reply.Text)
	}
}

func TestStartAndHelp(t *testing.T) {
	orch, sender, _ := testBot(t)
	ctx := context.Background()

	_ = orch.HandleMessage(ctx, msg(queryChat, 5, "/start"))
	if got := sender.lastSend(t); !strings.Contains(got.reply.Text, "Catalog bot") {
		t.Errorf("start reply = %q", got.reply.Text)
	}

	_ = orch.HandleMessage(ctx, msg(queryChat, 5, "/help@ansuzbot"))
	if got := sender.lastSend(t); !strings.Contains(got.reply.Text, "Commands:") {
		t.Errorf("help reply = %q", got.reply.Text)
	}
}

func TestDispatchAndDrain(t *testing.T) {
	orch, sender, store := testBot(t)
	seed(t, store, "inception")

	orch.Dispatch(context.Background(), msg(queryChat, 5, "incep"))

	drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := orch.Drain(drainCtx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if _, e := sender.counts(); e != 1 {
		t.Errorf("edits = %d, want 1 after drain", e)
	}
}

func TestSearchDelayDoesNotBlockOtherQueries(t *testing.T) {
	orch, sender, store := testBot(t)
	seed(t, store, "inception")
	orch.searchDelay = 300 * time.Millisecond

	start := time.Now()
	orch.Dispatch(context.Background(), msg(queryChat, 5, "incep"))
	orch.Dispatch(context.Background(), msg(queryChat, 6, "inception"))

	drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := orch.Drain(drainCtx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 600*time.Millisecond {
		t.Errorf("elapsed = %v, tasks appear serialized", elapsed)
	}
	if _, e := sender.counts(); e != 2 {
		t.Errorf("edits = %d, want 2", e)
	}
}
