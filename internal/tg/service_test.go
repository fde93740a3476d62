package tg

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pvzzle/wasi/internal/bridge"
	"github.com/pvzzle/wasi/internal/bus"
	"github.com/pvzzle/wasi/internal/contacts"
	"github.com/pvzzle/wasi/internal/network"
	"github.com/pvzzle/wasi/internal/provider/fakeprovider"
	"github.com/pvzzle/wasi/internal/storage/memory"
	"github.com/pvzzle/wasi/internal/subs"
	"github.com/pvzzle/wasi/internal/txtrack"
	"github.com/pvzzle/wasi/internal/units"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

const (
	chat  = int64(100)
	owner = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	dest  = "0xdddddddddddddddddddddddddddddddddddddddd"
	hash1 = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []*tgbot.SendMessageParams
	answered int
}

func (m *fakeMessenger) SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, params)
	return &models.Message{}, nil
}

func (m *fakeMessenger) AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered++
	return true, nil
}

func (m *fakeMessenger) last(t *testing.T) *tgbot.SendMessageParams {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("expected a message")
	}
	return m.sent[len(m.sent)-1]
}

type env struct {
	s    *Service
	out  *fakeMessenger
	p    *fakeprovider.Provider
	book *contacts.Book
	subs *subs.Store
	tr   *txtrack.Tracker
}

func newEnv(t *testing.T) env {
	t.Helper()

	p := fakeprovider.New()
	p.AccountList = []string{owner}
	p.NextHash = hash1

	b, err := bridge.New(p, network.Default(), zerolog.Nop())
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}

	kv := memory.New()
	tr := txtrack.New(b, txtrack.NewHistory(kv, zerolog.Nop()), txtrack.Config{Interval: time.Hour}, zerolog.Nop())
	t.Cleanup(tr.Close)

	out := &fakeMessenger{}
	book := contacts.NewBook(kv, zerolog.Nop())
	st := subs.NewStore()

	s := newService(out, b, tr, book, st, nil, zerolog.Nop())
	return env{s: s, out: out, p: p, book: book, subs: st, tr: tr}
}

func textUpdate(chatID int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{Chat: models.Chat{ID: chatID}, Text: text}}
}

func cbUpdate(chatID int64, data string) *models.Update {
	return &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb",
		Data: data,
		Message: models.MaybeInaccessibleMessage{
			Type:    models.MaybeInaccessibleMessageTypeMessage,
			Message: &models.Message{Chat: models.Chat{ID: chatID}},
		},
	}}
}

func TestStart_ShowsMenu(t *testing.T) {
	e := newEnv(t)
	e.s.onStart(context.Background(), nil, textUpdate(chat, "/start"))

	msg := e.out.last(t)
	if msg.ChatID != chat || msg.ReplyMarkup == nil {
		t.Fatalf("expected menu, got=%+v", msg)
	}
}

func TestBalance(t *testing.T) {
	e := newEnv(t)
	e.s.onCbBalance(context.Background(), nil, cbUpdate(chat, cbBalance))

	txt := e.out.last(t).Text
	if !strings.Contains(txt, "0.000000 ETH") || !strings.Contains(txt, owner) || !strings.Contains(txt, "Ethereum Mainnet") {
		t.Fatalf("unexpected balance text: %s", txt)
	}
	if e.out.answered != 1 {
		t.Fatalf("expected callback answered, got=%d", e.out.answered)
	}
}

func TestSendFlow_ByContactName(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, _ = e.book.Add(ctx, contacts.Input{Name: "Rosa", Address: dest})

	e.s.onCbSend(ctx, nil, cbUpdate(chat, cbSend))
	if e.s.state.Get(chat) != StateAwaitRecipient {
		t.Fatalf("expected await recipient, got=%v", e.s.state.Get(chat))
	}

	e.s.onAnyText(ctx, nil, textUpdate(chat, "rosa"))
	if e.s.state.Get(chat) != StateAwaitAmount {
		t.Fatalf("expected await amount, got=%v", e.s.state.Get(chat))
	}

	e.s.onAnyText(ctx, nil, textUpdate(chat, "abc"))
	if e.s.state.Get(chat) != StateAwaitAmount {
		t.Fatal("invalid amount must keep the flow")
	}

	e.s.onAnyText(ctx, nil, textUpdate(chat, "0,25"))
	if e.s.state.Get(chat) != StateIdle {
		t.Fatalf("expected idle after send, got=%v", e.s.state.Get(chat))
	}

	txt := e.out.last(t).Text
	if !strings.Contains(txt, hash1) || !strings.Contains(txt, "0.25") || !strings.Contains(txt, "Turn on notifications") {
		t.Fatalf("unexpected send text: %s", txt)
	}
	if e.p.Count("SendTransaction") != 1 {
		t.Fatalf("expected one transaction, calls=%+v", e.p.Calls())
	}
	if rec, err := e.tr.History().Get(ctx, "0x1", hash1); err != nil || rec.To != dest {
		t.Fatalf("expected stored record, got=%+v err=%v", rec, err)
	}
}

func TestSendFlow_PayButton(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c, _ := e.book.Add(ctx, contacts.Input{Name: "Rosa", Address: dest})

	e.s.onCbPay(ctx, nil, cbUpdate(chat, cbPayPrefix+c.ID))
	if e.s.state.Get(chat) != StateAwaitAmount || e.s.state.Draft(chat).Recipient != dest {
		t.Fatalf("expected amount prompt for %s, state=%v draft=%+v", dest, e.s.state.Get(chat), e.s.state.Draft(chat))
	}
}

func TestSendFlow_UnknownRecipient(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.s.onCbSend(ctx, nil, cbUpdate(chat, cbSend))
	e.s.onAnyText(ctx, nil, textUpdate(chat, "nobody"))

	if e.s.state.Get(chat) != StateAwaitRecipient {
		t.Fatal("expected to keep asking for the recipient")
	}
	if !strings.Contains(e.out.last(t).Text, "Try again") {
		t.Fatalf("unexpected text: %s", e.out.last(t).Text)
	}
}

func TestAddContactFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.s.onCbContactAdd(ctx, nil, cbUpdate(chat, cbContactAdd))
	e.s.onAnyText(ctx, nil, textUpdate(chat, "Rosa"))
	e.s.onAnyText(ctx, nil, textUpdate(chat, "0x123"))
	if e.s.state.Get(chat) != StateAwaitContactAddress {
		t.Fatal("invalid address must keep the flow")
	}

	e.s.onAnyText(ctx, nil, textUpdate(chat, dest))
	list, _ := e.book.List(ctx)
	if len(list) != 1 || list[0].Name != "Rosa" {
		t.Fatalf("expected Rosa saved, got=%+v", list)
	}

	e.s.onCbContactAdd(ctx, nil, cbUpdate(chat, cbContactAdd))
	e.s.onAnyText(ctx, nil, textUpdate(chat, "Rosa again"))
	e.s.onAnyText(ctx, nil, textUpdate(chat, strings.ToUpper(dest[2:])))
	if !strings.Contains(e.out.last(t).Text, "That is not an address") {
		t.Fatalf("expected address error, got=%s", e.out.last(t).Text)
	}
	e.s.onAnyText(ctx, nil, textUpdate(chat, "0x"+strings.ToUpper(dest[2:])))
	if !strings.Contains(e.out.last(t).Text, "already exists") {
		t.Fatalf("expected duplicate error, got=%s", e.out.last(t).Text)
	}
}

func TestSwitchNetwork(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.s.onCbNetworks(ctx, nil, cbUpdate(chat, cbNetworks))
	kb := e.out.last(t).ReplyMarkup.(*models.InlineKeyboardMarkup)
	if kb.InlineKeyboard[0][0].Text != "✓ Ethereum Mainnet" {
		t.Fatalf("expected current network marked, got=%q", kb.InlineKeyboard[0][0].Text)
	}

	e.s.onCbNet(ctx, nil, cbUpdate(chat, cbNetPrefix+"0x89"))
	if e.p.Chain != "0x89" || !strings.Contains(e.out.last(t).Text, "Polygon Mainnet") {
		t.Fatalf("expected switch to polygon, chain=%s text=%s", e.p.Chain, e.out.last(t).Text)
	}

	e.s.onCbNet(ctx, nil, cbUpdate(chat, cbNetPrefix+"0x539"))
	if !strings.Contains(e.out.last(t).Text, "Unsupported network") {
		t.Fatalf("expected unsupported network, got=%s", e.out.last(t).Text)
	}
}

func TestNotifyOnOff(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.s.onCbNotifyOn(ctx, nil, cbUpdate(chat, cbNotifyOn))
	if !e.s.watching(chat, owner) {
		t.Fatal("expected chat to watch the wallet")
	}

	e.s.onCbNotifyOff(ctx, nil, cbUpdate(chat, cbNotifyOff))
	if _, ok := e.subs.GetCopy(chat); ok {
		t.Fatal("expected subscriptions removed")
	}
}

func TestLargeTransferAlerts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.s.onCbLarge(ctx, nil, cbUpdate(chat, cbLarge))
	if e.s.state.Get(chat) != StateAwaitLargeMin {
		t.Fatalf("expected to wait for the threshold, got=%v", e.s.state.Get(chat))
	}

	e.s.onAnyText(ctx, nil, textUpdate(chat, "1e3"))
	if e.s.state.Get(chat) != StateAwaitLargeMin {
		t.Fatal("expected exponent amount to be rejected")
	}

	e.s.onAnyText(ctx, nil, textUpdate(chat, "2,5"))
	want, _ := units.ToWei("2.5")
	u, ok := e.subs.GetCopy(chat)
	if !ok || u.LargeTxMinWei == nil || u.LargeTxMinWei.Cmp(want) != 0 {
		t.Fatalf("expected threshold 2.5 ETH, got=%+v", u)
	}
	if e.s.state.Get(chat) != StateIdle {
		t.Fatal("expected idle state after the threshold is set")
	}

	large, _ := units.ToWei("3")
	if got := e.subs.Match(dest, owner, large); len(got) != 1 || got[0] != chat {
		t.Fatalf("expected the chat to match a large transfer, got=%v", got)
	}
	small, _ := units.ToWei("1")
	if got := e.subs.Match(dest, owner, small); len(got) != 0 {
		t.Fatalf("expected no match below the threshold, got=%v", got)
	}

	e.s.onCbNotify(ctx, nil, cbUpdate(chat, cbNotify))
	if !strings.Contains(e.out.last(t).Text, "value >= 2.5 ETH") {
		t.Fatalf("expected threshold in the menu, got=%s", e.out.last(t).Text)
	}

	e.s.onCbLargeOff(ctx, nil, cbUpdate(chat, cbLargeOff))
	if _, ok := e.subs.GetCopy(chat); ok {
		t.Fatal("expected threshold removed")
	}
}

func TestNotifyStop(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.s.onCbNotifyOn(ctx, nil, cbUpdate(chat, cbNotifyOn))
	e.subs.SetLargeTxMin(chat, big.NewInt(1))

	e.s.onCbNotifyOff(ctx, nil, cbUpdate(chat, cbNotifyOff))
	u, ok := e.subs.GetCopy(chat)
	if !ok || len(u.Wallets) != 0 || u.LargeTxMinWei == nil {
		t.Fatalf("expected only the wallet removed, got=%+v", u)
	}

	e.s.onCbNotifyStop(ctx, nil, cbUpdate(chat, cbNotifyStop))
	if _, ok := e.subs.GetCopy(chat); ok {
		t.Fatal("expected every subscription removed")
	}
}

func TestHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.s.onCbHistory(ctx, nil, cbUpdate(chat, cbHistory))
	if e.out.last(t).Text != "History is empty." {
		t.Fatalf("unexpected text %q", e.out.last(t).Text)
	}

	_ = e.tr.History().Save(ctx, txtrack.Record{Hash: hash1, ChainID: "0x1", NetworkName: "Ethereum Mainnet", Value: "2", Status: txtrack.StatusPending})
	e.s.onCbHistory(ctx, nil, cbUpdate(chat, cbHistory))
	if !strings.Contains(e.out.last(t).Text, "Ethereum Mainnet") {
		t.Fatalf("unexpected history %s", e.out.last(t).Text)
	}
}

func TestInaccessibleCallbackIgnored(t *testing.T) {
	e := newEnv(t)
	upd := cbUpdate(chat, cbBalance)
	upd.CallbackQuery.Message.Type = models.MaybeInaccessibleMessageTypeInaccessibleMessage

	e.s.onCbBalance(context.Background(), nil, upd)
	if len(e.out.sent) != 0 || e.out.answered != 0 {
		t.Fatal("expected inaccessible callback to be ignored")
	}
}

func TestStartNotifyLoop(t *testing.T) {
	e := newEnv(t)
	ch := make(chan bus.Notification, 1)
	e.s.notifyCh = ch

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.s.StartNotifyLoop(ctx)
		close(done)
	}()

	ch <- bus.Notification{ChatID: 7, Text: "hello"}
	deadline := time.After(time.Second)
	for {
		e.out.mu.Lock()
		n := len(e.out.sent)
		e.out.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("notification never sent")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
	if msg := e.out.last(t); msg.ChatID != int64(7) || msg.Text != "hello" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestAllowChats(t *testing.T) {
	var calls int
	next := func(ctx context.Context, b *tgbot.Bot, upd *models.Update) { calls++ }

	h := AllowChats([]int64{1}, zerolog.Nop())(next)
	h(context.Background(), nil, textUpdate(1, "hi"))
	h(context.Background(), nil, textUpdate(2, "hi"))
	h(context.Background(), nil, cbUpdate(1, cbBalance))
	h(context.Background(), nil, &models.Update{})
	if calls != 2 {
		t.Fatalf("expected 2 allowed updates, got=%d", calls)
	}

	calls = 0
	open := AllowChats(nil, zerolog.Nop())(next)
	open(context.Background(), nil, textUpdate(2, "hi"))
	if calls != 1 {
		t.Fatal("expected empty allow list to pass everything")
	}
}
