// Package session keeps the logged-in profile, mirrors it to storage and
// follows wallet account and chain changes for wallet logins.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pvzzle/wasi/internal/bridge"
	"github.com/pvzzle/wasi/internal/provider"
	"github.com/pvzzle/wasi/internal/storage"
	"github.com/pvzzle/wasi/internal/validate"

	"github.com/rs/zerolog"
)

// Storage keys of the scalar session values.
const (
	KeyLoggedIn    = "isLoggedIn"
	KeyUserName    = "userName"
	KeyUserPhone   = "userPhone"
	KeyWallet      = "walletAddress"
	KeyWalletLogin = "isMetaMaskLogin"
)

// Values shown when no wallet is attached.
const (
	DemoCurrency = "S/"
	DemoBalance  = "1250.75"
	DemoNetwork  = "BCRP Digital"
)

const AppName = "WASI"

var (
	ErrNameRequired  = errors.New("name is required")
	ErrPhoneRequired = errors.New("phone is required")
	ErrNotLoggedIn   = errors.New("not logged in")
)

type Profile struct {
	LoggedIn      bool   `json:"loggedIn"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	WalletAddress string `json:"walletAddress,omitempty"`
	WalletLogin   bool   `json:"walletLogin"`
}

type Overview struct {
	Currency    string `json:"currency"`
	Balance     string `json:"balance"`
	NetworkName string `json:"networkName"`
	ChainID     string `json:"chainId,omitempty"`
	WalletLogin bool   `json:"walletLogin"`
}

// Wallet is what the session needs from the bridge.
type Wallet interface {
	Connect(ctx context.Context) (string, error)
	SignMessage(ctx context.Context, message, address string) (string, error)
	CurrentNetwork(ctx context.Context) (bridge.Network, error)
	Balance(ctx context.Context, address string) (string, error)
	Subscribe(h provider.Handlers) (unsubscribe func())
}

type Session struct {
	kv  storage.KV
	w   Wallet
	log zerolog.Logger
	now func() time.Time

	mu       sync.Mutex
	p        Profile
	unbind   func()
	onReload []func(Overview)
}

// New builds a session. w may be nil when no wallet is configured; wallet
// logins then fail with bridge.ErrUnavailable.
func New(kv storage.KV, w Wallet, log zerolog.Logger) *Session {
	return &Session{
		kv:  kv,
		w:   w,
		log: log.With().Str("component", "session").Logger(),
		now: time.Now,
	}
}

// OnReload registers fn for overviews recomputed after wallet events.
func (s *Session) OnReload(fn func(Overview)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = append(s.onReload, fn)
}

func (s *Session) Profile() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p
}

// Restore loads a saved session. A wallet session is re-bound to wallet
// events.
func (s *Session) Restore(ctx context.Context) (Profile, error) {
	loggedIn, err := s.get(ctx, KeyLoggedIn)
	if err != nil {
		return Profile{}, err
	}
	if loggedIn != "true" {
		return Profile{}, nil
	}

	var p Profile
	p.LoggedIn = true
	if p.Name, err = s.get(ctx, KeyUserName); err != nil {
		return Profile{}, err
	}
	if p.Phone, err = s.get(ctx, KeyUserPhone); err != nil {
		return Profile{}, err
	}
	walletLogin, err := s.get(ctx, KeyWalletLogin)
	if err != nil {
		return Profile{}, err
	}
	address, err := s.get(ctx, KeyWallet)
	if err != nil {
		return Profile{}, err
	}
	if walletLogin == "true" && address != "" {
		p.WalletLogin = true
		p.WalletAddress = address
	}

	s.mu.Lock()
	s.p = p
	s.mu.Unlock()

	if p.WalletLogin {
		s.Bind()
	}
	s.log.Info().Bool("wallet", p.WalletLogin).Msg("session restored")
	return p, nil
}

// Login starts a demo session for name and phone.
func (s *Session) Login(ctx context.Context, name, phone string) (Profile, error) {
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	if name == "" {
		return Profile{}, ErrNameRequired
	}
	if phone == "" {
		return Profile{}, ErrPhoneRequired
	}
	return s.start(ctx, Profile{LoggedIn: true, Name: name, Phone: phone})
}

// WalletLogin connects the wallet, asks it to sign a login message and
// starts a session for the connected address.
func (s *Session) WalletLogin(ctx context.Context) (Profile, error) {
	if s.w == nil {
		return Profile{}, bridge.ErrUnavailable
	}

	address, err := s.w.Connect(ctx)
	if err != nil {
		return Profile{}, err
	}

	msg := LoginMessage(address, s.now())
	if _, err := s.w.SignMessage(ctx, msg, address); err != nil {
		return Profile{}, err
	}

	return s.start(ctx, Profile{
		LoggedIn:      true,
		Name:          "Usuario " + bridge.FormatAddress(address),
		WalletAddress: address,
		WalletLogin:   true,
	})
}

// LoginMessage is the text signed on wallet login.
func LoginMessage(address string, at time.Time) string {
	return fmt.Sprintf("Iniciar sesión en %s\nFecha: %s\nDirección: %s",
		AppName, at.UTC().Format("2006-01-02T15:04:05.000Z"), address)
}

func (s *Session) start(ctx context.Context, p Profile) (Profile, error) {
	vals := map[string]string{
		KeyLoggedIn:    "true",
		KeyUserName:    p.Name,
		KeyUserPhone:   p.Phone,
		KeyWalletLogin: "false",
	}
	if p.WalletLogin {
		vals[KeyWalletLogin] = "true"
		vals[KeyWallet] = p.WalletAddress
	}
	for k, v := range vals {
		if err := s.kv.Set(ctx, k, []byte(v)); err != nil {
			return Profile{}, fmt.Errorf("save %s: %w", k, err)
		}
	}
	if !p.WalletLogin {
		if err := s.kv.Delete(ctx, KeyWallet); err != nil {
			return Profile{}, fmt.Errorf("clear %s: %w", KeyWallet, err)
		}
	}

	s.mu.Lock()
	s.p = p
	s.mu.Unlock()

	if p.WalletLogin {
		s.Bind()
	} else {
		s.unbindEvents()
	}

	s.log.Info().Str("name", p.Name).Bool("wallet", p.WalletLogin).Msg("logged in")
	return p, nil
}

// Logout clears the profile and every stored session key.
func (s *Session) Logout(ctx context.Context) error {
	s.unbindEvents()

	s.mu.Lock()
	s.p = Profile{}
	s.mu.Unlock()

	for _, k := range []string{KeyLoggedIn, KeyUserName, KeyUserPhone, KeyWallet, KeyWalletLogin} {
		if err := s.kv.Delete(ctx, k); err != nil {
			return fmt.Errorf("clear %s: %w", k, err)
		}
	}
	s.log.Info().Msg("logged out")
	return nil
}

// Overview is what the dashboard shows: the wallet's network and balance for
// wallet logins, demo values otherwise. Wallet read failures keep the demo
// values for the affected field.
func (s *Session) Overview(ctx context.Context) (Overview, error) {
	p := s.Profile()
	if !p.LoggedIn {
		return Overview{}, ErrNotLoggedIn
	}

	o := Overview{Currency: DemoCurrency, Balance: DemoBalance, NetworkName: DemoNetwork}
	if !p.WalletLogin || s.w == nil {
		return o, nil
	}
	o.WalletLogin = true

	if n, err := s.w.CurrentNetwork(ctx); err == nil {
		o.Currency = n.Currency
		o.NetworkName = n.Name
		o.ChainID = n.ChainID
	}
	if bal, err := s.w.Balance(ctx, p.WalletAddress); err == nil {
		o.Balance = bal
	}
	return o, nil
}

// Bind follows wallet events for the current wallet session: no accounts
// logs out, a different account replaces the address, a chain change
// reloads the overview. Calling it again replaces the previous binding.
func (s *Session) Bind() {
	if s.w == nil {
		return
	}
	s.unbindEvents()

	unsub := s.w.Subscribe(provider.Handlers{
		AccountsChanged: s.accountsChanged,
		ChainChanged:    func(string) { s.reload() },
	})

	s.mu.Lock()
	s.unbind = unsub
	s.mu.Unlock()
}

func (s *Session) unbindEvents() {
	s.mu.Lock()
	unsub := s.unbind
	s.unbind = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (s *Session) accountsChanged(accounts []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if len(accounts) == 0 {
		if err := s.Logout(ctx); err != nil {
			s.log.Error().Err(err).Msg("logout after wallet disconnect")
		}
		return
	}

	s.mu.Lock()
	same := validate.SameAddress(accounts[0], s.p.WalletAddress)
	if !same {
		s.p.WalletAddress = accounts[0]
	}
	s.mu.Unlock()

	if same {
		return
	}
	if err := s.kv.Set(ctx, KeyWallet, []byte(accounts[0])); err != nil {
		s.log.Error().Err(err).Msg("save wallet address")
	}
	s.log.Info().Str("address", accounts[0]).Msg("wallet account changed")
	s.reload()
}

func (s *Session) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	o, err := s.Overview(ctx)
	if err != nil {
		return
	}

	s.mu.Lock()
	fns := append([]func(Overview){}, s.onReload...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(o)
	}
}

func (s *Session) get(ctx context.Context, key string) (string, error) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return string(v), nil
}
