package tg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pvzzle/wasi/internal/bridge"
	"github.com/pvzzle/wasi/internal/bus"
	"github.com/pvzzle/wasi/internal/contacts"
	"github.com/pvzzle/wasi/internal/network"
	"github.com/pvzzle/wasi/internal/subs"
	"github.com/pvzzle/wasi/internal/txtrack"
	"github.com/pvzzle/wasi/internal/units"
	"github.com/pvzzle/wasi/internal/validate"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

const (
	cbBalance  = "balance"
	cbSend     = "send"
	cbHistory  = "history"
	cbContacts = "contacts"
	cbNetworks = "networks"
	cbNotify   = "notify"

	cbContactAdd = "contact_add"
	cbNotifyOn   = "notify_on"
	cbNotifyOff  = "notify_off"
	cbLarge      = "notify_large"
	cbLargeOff   = "notify_large_off"
	cbNotifyStop = "notify_stop"
	cbBackToMain = "back_main"

	cbPayPrefix = "pay:"
	cbNetPrefix = "net:"
)

// Wallet is what the chat front-end needs from the bridge.
type Wallet interface {
	Connect(ctx context.Context) (string, error)
	ConnectedAccounts(ctx context.Context) []string
	Balance(ctx context.Context, address string) (string, error)
	CurrentNetwork(ctx context.Context) (bridge.Network, error)
	SwitchNetwork(ctx context.Context, chainID string) error
	Recommended() []network.Descriptor
	ExplorerTxURL(chainID, hash string) (string, bool)
}

// Messenger is the part of *tgbot.Bot the service sends through.
type Messenger interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error)
}

type Service struct {
	out     Messenger
	w       Wallet
	tracker *txtrack.Tracker
	book    *contacts.Book

	subStore *subs.Store
	notifyCh <-chan bus.Notification

	state *StateStore
	log   zerolog.Logger
}

func NewService(
	b *tgbot.Bot,
	w Wallet,
	tracker *txtrack.Tracker,
	book *contacts.Book,
	subStore *subs.Store,
	notifyCh <-chan bus.Notification,
	log zerolog.Logger,
) *Service {
	s := newService(b, w, tracker, book, subStore, notifyCh, log)
	s.registerHandlers(b)
	return s
}

func newService(
	out Messenger,
	w Wallet,
	tracker *txtrack.Tracker,
	book *contacts.Book,
	subStore *subs.Store,
	notifyCh <-chan bus.Notification,
	log zerolog.Logger,
) *Service {
	return &Service{
		out:      out,
		w:        w,
		tracker:  tracker,
		book:     book,
		subStore: subStore,
		notifyCh: notifyCh,
		state:    NewStateStore(),
		log:      log.With().Str("component", "tg").Logger(),
	}
}

func (s *Service) registerHandlers(b *tgbot.Bot) {
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, s.onStart)

	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbBalance, tgbot.MatchTypeExact, s.onCbBalance)
	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbSend, tgbot.MatchTypeExact, s.onCbSend)
	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbHistory, tgbot.MatchTypeExact, s.onCbHistory)
	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbContacts, tgbot.MatchTypeExact, s.onCbContacts)
	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbNetworks, tgbot.MatchTypeExact, s.onCbNetworks)
	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbNotify, tgbot.MatchTypeExact, s.onCbNotify)

	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbContactAdd, tgbot.MatchTypeExact, s.onCbContactAdd)
	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbNotifyOn, tgbot.MatchTypeExact, s.onCbNotifyOn)
	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbNotifyOff, tgbot.MatchTypeExact, s.onCbNotifyOff)
	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbLarge, tgbot.MatchTypeExact, s.onCbLarge)
	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbLargeOff, tgbot.MatchTypeExact, s.onCbLargeOff)
	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbNotifyStop, tgbot.MatchTypeExact, s.onCbNotifyStop)
	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbBackToMain, tgbot.MatchTypeExact, s.onCbBackToMain)

	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbPayPrefix, tgbot.MatchTypePrefix, s.onCbPay)
	b.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbNetPrefix, tgbot.MatchTypePrefix, s.onCbNet)

	b.RegisterHandler(tgbot.HandlerTypeMessageText, "", tgbot.MatchTypePrefix, s.onAnyText)
}

func (s *Service) StartNotifyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.notifyCh:
			s.send(ctx, n.ChatID, n.Text, nil)
		}
	}
}

func mainMenu() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Balance", CallbackData: cbBalance},
				{Text: "Send", CallbackData: cbSend},
			},
			{
				{Text: "History", CallbackData: cbHistory},
				{Text: "Contacts", CallbackData: cbContacts},
			},
			{
				{Text: "Networks", CallbackData: cbNetworks},
				{Text: "Notifications", CallbackData: cbNotify},
			},
		},
	}
}

func backMenu() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Back", CallbackData: cbBackToMain}},
		},
	}
}

func (s *Service) onStart(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	if upd.Message == nil {
		return
	}
	chatID := upd.Message.Chat.ID
	s.state.Reset(chatID)

	s.send(ctx, chatID, "Hi! I am the WASI wallet. I can show your balance, send transfers and track them.\n\nPick an action:", mainMenu())
}

func (s *Service) onCbBackToMain(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, _, ok := s.callback(ctx, upd)
	if !ok {
		return
	}
	s.state.Reset(chatID)
	s.send(ctx, chatID, "Main menu:", mainMenu())
}

func (s *Service) onCbBalance(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, _, ok := s.callback(ctx, upd)
	if !ok {
		return
	}

	addr, err := s.account(ctx)
	if err != nil {
		s.send(ctx, chatID, "⚠️ "+bridge.ReasonOf(err), backMenu())
		return
	}

	net, _ := s.w.CurrentNetwork(ctx)
	bal, err := s.w.Balance(ctx, addr)
	if err != nil {
		s.send(ctx, chatID, "⚠️ "+bridge.ReasonOf(err), backMenu())
		return
	}

	s.send(ctx, chatID, fmt.Sprintf(
		"💰 Balance: %s %s\nAccount: %s\nNetwork: %s",
		bal, currency(net), addr, net.Name,
	), backMenu())
}

func (s *Service) onCbSend(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, _, ok := s.callback(ctx, upd)
	if !ok {
		return
	}
	s.state.Reset(chatID)
	s.state.Set(chatID, StateAwaitRecipient)

	list, err := s.book.List(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("list contacts")
	}

	rows := payButtons(list)
	rows = append(rows, []models.InlineKeyboardButton{{Text: "Back", CallbackData: cbBackToMain}})

	s.send(ctx, chatID, "Enter the recipient address (0x...) or a contact name:", &models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (s *Service) onCbPay(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, data, ok := s.callback(ctx, upd)
	if !ok {
		return
	}

	c, err := s.book.Get(ctx, strings.TrimPrefix(data, cbPayPrefix))
	if err != nil {
		s.send(ctx, chatID, "Contact not found.", backMenu())
		return
	}
	s.askAmount(ctx, chatID, c.Address, c.Name)
}

func (s *Service) onCbHistory(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, _, ok := s.callback(ctx, upd)
	if !ok {
		return
	}

	items, err := s.tracker.History().All(ctx)
	if err != nil {
		s.send(ctx, chatID, fmt.Sprintf("Failed to read history: %v", err), backMenu())
		return
	}
	if len(items) == 0 {
		s.send(ctx, chatID, "History is empty.", backMenu())
		return
	}

	list, _ := s.book.List(ctx)
	s.send(ctx, chatID, FormatHistory(items, list), backMenu())
}

func (s *Service) onCbContacts(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, _, ok := s.callback(ctx, upd)
	if !ok {
		return
	}
	s.state.Reset(chatID)

	list, err := s.book.List(ctx)
	if err != nil {
		s.send(ctx, chatID, fmt.Sprintf("Failed to read contacts: %v", err), backMenu())
		return
	}

	lines := []string{"📇 Contacts:"}
	if len(list) == 0 {
		lines = append(lines, "— no contacts yet")
	}
	for _, c := range list {
		lines = append(lines, fmt.Sprintf("— %s: %s", c.Name, shortenAddress(c.Address)))
	}

	rows := payButtons(list)
	rows = append(rows,
		[]models.InlineKeyboardButton{{Text: "➕ Add contact", CallbackData: cbContactAdd}},
		[]models.InlineKeyboardButton{{Text: "Back", CallbackData: cbBackToMain}},
	)
	s.send(ctx, chatID, strings.Join(lines, "\n"), &models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (s *Service) onCbContactAdd(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, _, ok := s.callback(ctx, upd)
	if !ok {
		return
	}
	s.state.Reset(chatID)
	s.state.Set(chatID, StateAwaitContactName)
	s.send(ctx, chatID, "Contact name:", nil)
}

func (s *Service) onCbNetworks(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, _, ok := s.callback(ctx, upd)
	if !ok {
		return
	}

	current, _ := s.w.CurrentNetwork(ctx)

	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for _, d := range s.w.Recommended() {
		label := d.Name
		if d.ChainID == current.ChainID {
			label = "✓ " + label
		}
		row = append(row, models.InlineKeyboardButton{Text: label, CallbackData: cbNetPrefix + d.ChainID})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []models.InlineKeyboardButton{{Text: "Back", CallbackData: cbBackToMain}})

	s.send(ctx, chatID, fmt.Sprintf("🌐 Current network: %s\n\nSwitch to:", current.Name), &models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (s *Service) onCbNet(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, data, ok := s.callback(ctx, upd)
	if !ok {
		return
	}

	if err := s.w.SwitchNetwork(ctx, strings.TrimPrefix(data, cbNetPrefix)); err != nil {
		s.send(ctx, chatID, "❌ "+bridge.ReasonOf(err), backMenu())
		return
	}

	net, _ := s.w.CurrentNetwork(ctx)
	s.send(ctx, chatID, "🌐 Switched to "+net.Name, backMenu())
}

func (s *Service) onCbNotify(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, _, ok := s.callback(ctx, upd)
	if !ok {
		return
	}
	s.state.Reset(chatID)
	s.sendSubs(ctx, chatID)
}

func (s *Service) sendSubs(ctx context.Context, chatID int64) {
	lines := []string{"🔕 Notifications are off."}
	if u, ok := s.subStore.GetCopy(chatID); ok {
		lines = []string{"🔔 Notifications:"}
		if len(u.Wallets) > 0 {
			lines = append(lines, "— Wallets: "+strings.Join(u.Wallets, ", "))
		}
		if u.LargeTxMinWei != nil {
			net, _ := s.w.CurrentNetwork(ctx)
			lines = append(lines, fmt.Sprintf("— Large transfers: value >= %s %s", units.Exact(u.LargeTxMinWei), currency(net)))
		}
	}

	s.send(ctx, chatID, strings.Join(lines, "\n"), &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Watch my wallet", CallbackData: cbNotifyOn},
				{Text: "Stop watching", CallbackData: cbNotifyOff},
			},
			{
				{Text: "Large transfers", CallbackData: cbLarge},
				{Text: "No large transfers", CallbackData: cbLargeOff},
			},
			{{Text: "Turn everything off", CallbackData: cbNotifyStop}},
			{{Text: "Back", CallbackData: cbBackToMain}},
		},
	})
}

func (s *Service) onCbNotifyOn(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, _, ok := s.callback(ctx, upd)
	if !ok {
		return
	}

	addr, err := s.account(ctx)
	if err == nil {
		err = s.subStore.AddWallet(chatID, addr)
	}
	if err != nil {
		s.send(ctx, chatID, "⚠️ "+bridge.ReasonOf(err), backMenu())
		return
	}
	s.send(ctx, chatID, fmt.Sprintf("🔔 I will report every transfer of %s.", addr), backMenu())
}

func (s *Service) onCbNotifyOff(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, _, ok := s.callback(ctx, upd)
	if !ok {
		return
	}
	if acc := s.w.ConnectedAccounts(ctx); len(acc) > 0 {
		s.subStore.RemoveWallet(chatID, acc[0])
	} else {
		s.subStore.ClearWallets(chatID)
	}
	s.send(ctx, chatID, "🔕 Stopped watching the wallet.", backMenu())
}

func (s *Service) onCbLarge(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, _, ok := s.callback(ctx, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateAwaitLargeMin)

	net, _ := s.w.CurrentNetwork(ctx)
	s.send(ctx, chatID, fmt.Sprintf("Smallest value in %s to report (> 0), e.g. 1.5:", currency(net)), nil)
}

func (s *Service) handleLargeMin(ctx context.Context, chatID int64, text string) {
	minWei, err := units.PositiveWei(text)
	if err != nil {
		s.send(ctx, chatID, "I need a number > 0 (e.g. 0.5 or 10). Try again.", nil)
		return
	}
	s.subStore.SetLargeTxMin(chatID, minWei)
	s.state.Reset(chatID)

	net, _ := s.w.CurrentNetwork(ctx)
	s.send(ctx, chatID, fmt.Sprintf("✅ I will report transfers with value >= %s %s.", units.Exact(minWei), currency(net)), backMenu())
}

func (s *Service) onCbLargeOff(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, _, ok := s.callback(ctx, upd)
	if !ok {
		return
	}
	s.subStore.ClearLargeTx(chatID)
	s.send(ctx, chatID, "✅ Large transfer alerts removed.", nil)
	s.sendSubs(ctx, chatID)
}

func (s *Service) onCbNotifyStop(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	chatID, _, ok := s.callback(ctx, upd)
	if !ok {
		return
	}
	s.subStore.ClearAll(chatID)
	s.send(ctx, chatID, "🔕 Notifications are off.", backMenu())
}

func (s *Service) onAnyText(ctx context.Context, _ *tgbot.Bot, upd *models.Update) {
	if upd.Message == nil {
		return
	}
	chatID := upd.Message.Chat.ID
	text := strings.TrimSpace(upd.Message.Text)

	// commands have their own handlers
	if strings.HasPrefix(text, "/") {
		return
	}

	switch s.state.Get(chatID) {
	case StateAwaitRecipient:
		s.handleRecipient(ctx, chatID, text)

	case StateAwaitAmount:
		s.handleAmount(ctx, chatID, text)

	case StateAwaitContactName:
		s.handleContactName(ctx, chatID, text)

	case StateAwaitContactAddress:
		s.handleContactAddress(ctx, chatID, text)

	case StateAwaitLargeMin:
		s.handleLargeMin(ctx, chatID, text)

	default:
		s.send(ctx, chatID, "Use /start to open the menu.", nil)
	}
}

func (s *Service) handleRecipient(ctx context.Context, chatID int64, text string) {
	list, _ := s.book.List(ctx)
	addr, name, err := ParseRecipient(text, list)
	if err != nil {
		s.send(ctx, chatID, "That is neither an address (0x + 40 hex characters) nor a contact name. Try again.", nil)
		return
	}
	s.askAmount(ctx, chatID, addr, name)
}

func (s *Service) askAmount(ctx context.Context, chatID int64, addr, name string) {
	s.state.SetDraft(chatID, Draft{Recipient: addr})
	s.state.Set(chatID, StateAwaitAmount)

	who := addr
	if name != "" {
		who = fmt.Sprintf("%s (%s)", name, shortenAddress(addr))
	}
	net, _ := s.w.CurrentNetwork(ctx)
	s.send(ctx, chatID, fmt.Sprintf("Amount of %s to send to %s, e.g. 0.5:", currency(net), who), nil)
}

func (s *Service) handleAmount(ctx context.Context, chatID int64, text string) {
	amount, err := ParseAmount(text)
	if err != nil {
		s.send(ctx, chatID, "I need a number > 0 (e.g. 0.5 or 10). Try again.", nil)
		return
	}

	to := s.state.Draft(chatID).Recipient
	s.state.Reset(chatID)

	from, err := s.account(ctx)
	if err != nil {
		s.send(ctx, chatID, "❌ "+bridge.ReasonOf(err), backMenu())
		return
	}

	h, err := s.tracker.Send(ctx, from, to, amount)
	if err != nil {
		s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("send transfer")
		s.send(ctx, chatID, "❌ "+bridge.ReasonOf(err), backMenu())
		return
	}

	rec := h.Record()
	lines := []string{
		"⏳ Transaction sent",
		"",
		"Hash: " + rec.Hash,
		fmt.Sprintf("Value: %s → %s", rec.Value, rec.To),
		"Network: " + rec.NetworkName,
	}
	if u, ok := s.w.ExplorerTxURL(rec.ChainID, rec.Hash); ok {
		lines = append(lines, u)
	}
	if !s.watching(chatID, from) {
		lines = append(lines, "", "Turn on notifications to hear when it is confirmed.")
	}
	s.send(ctx, chatID, strings.Join(lines, "\n"), backMenu())
}

func (s *Service) handleContactName(ctx context.Context, chatID int64, text string) {
	if text == "" {
		s.send(ctx, chatID, "Name is required. Try again.", nil)
		return
	}
	s.state.SetDraft(chatID, Draft{ContactName: text})
	s.state.Set(chatID, StateAwaitContactAddress)
	s.send(ctx, chatID, fmt.Sprintf("Address of %s (0x...):", text), nil)
}

func (s *Service) handleContactAddress(ctx context.Context, chatID int64, text string) {
	name := s.state.Draft(chatID).ContactName

	c, err := s.book.Add(ctx, contacts.Input{Name: name, Address: text})
	switch {
	case errors.Is(err, validate.ErrInvalidAddress), errors.Is(err, contacts.ErrAddressRequired):
		s.send(ctx, chatID, "That is not an address. I expect 0x + 40 hex characters.", nil)
		return
	case errors.Is(err, contacts.ErrDuplicate):
		s.state.Reset(chatID)
		s.send(ctx, chatID, "⚠️ This address already exists in your contacts.", backMenu())
		return
	case err != nil:
		s.state.Reset(chatID)
		s.send(ctx, chatID, fmt.Sprintf("Failed to save contact: %v", err), backMenu())
		return
	}

	s.state.Reset(chatID)
	s.send(ctx, chatID, fmt.Sprintf("✅ Saved %s: %s", c.Name, c.Address), backMenu())
}

// account returns the first connected account, asking the wallet for access
// when none is connected yet.
func (s *Service) account(ctx context.Context) (string, error) {
	if acc := s.w.ConnectedAccounts(ctx); len(acc) > 0 {
		return acc[0], nil
	}
	return s.w.Connect(ctx)
}

func (s *Service) watching(chatID int64, addr string) bool {
	u, ok := s.subStore.GetCopy(chatID)
	if !ok {
		return false
	}
	for _, w := range u.Wallets {
		if validate.SameAddress(w, addr) {
			return true
		}
	}
	return false
}

// callback acknowledges a callback query and returns its chat and data.
func (s *Service) callback(ctx context.Context, upd *models.Update) (int64, string, bool) {
	cb := upd.CallbackQuery
	if cb == nil || cb.Message.Type == models.MaybeInaccessibleMessageTypeInaccessibleMessage || cb.Message.Message == nil {
		return 0, "", false
	}
	_ = s.answerCallback(ctx, cb.ID)
	return cb.Message.Message.Chat.ID, cb.Data, true
}

func (s *Service) answerCallback(ctx context.Context, callbackID string) error {
	_, err := s.out.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	})
	return err
}

func (s *Service) send(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) {
	params := &tgbot.SendMessageParams{ChatID: chatID, Text: text}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := s.out.SendMessage(ctx, params); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("send message")
	}
}

func payButtons(list []contacts.Contact) [][]models.InlineKeyboardButton {
	var rows [][]models.InlineKeyboardButton
	for i, c := range list {
		if i == 8 {
			break
		}
		rows = append(rows, []models.InlineKeyboardButton{{Text: "💸 " + c.Name, CallbackData: cbPayPrefix + c.ID}})
	}
	return rows
}

func currency(n bridge.Network) string {
	if n.Currency == "" {
		return "ETH"
	}
	return n.Currency
}
