package session

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/pvzzle/wasi/internal/bridge"
	"github.com/pvzzle/wasi/internal/network"
	"github.com/pvzzle/wasi/internal/provider"
	"github.com/pvzzle/wasi/internal/provider/fakeprovider"
	"github.com/pvzzle/wasi/internal/storage/memory"

	"github.com/rs/zerolog"
)

const addr = "0x1234567890123456789012345678901234567890"

func newSession(t *testing.T) (*Session, *fakeprovider.Provider, *memory.Store) {
	t.Helper()
	p := fakeprovider.New()
	p.AccountList = []string{addr}
	b, err := bridge.New(p, network.Default(), zerolog.Nop())
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}
	kv := memory.New()
	return New(kv, b, zerolog.Nop()), p, kv
}

func stored(t *testing.T, kv *memory.Store, key string) string {
	t.Helper()
	v, _, _ := kv.Get(context.Background(), key)
	return string(v)
}

func TestLogin_Demo(t *testing.T) {
	s, _, kv := newSession(t)
	ctx := context.Background()

	if _, err := s.Login(ctx, "", "999"); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got=%v", err)
	}
	if _, err := s.Login(ctx, "Ana", " "); !errors.Is(err, ErrPhoneRequired) {
		t.Fatalf("expected ErrPhoneRequired, got=%v", err)
	}

	p, err := s.Login(ctx, "Ana", "987654321")
	if err != nil || !p.LoggedIn || p.WalletLogin || p.WalletAddress != "" {
		t.Fatalf("unexpected profile %+v err=%v", p, err)
	}
	if stored(t, kv, KeyLoggedIn) != "true" || stored(t, kv, KeyWalletLogin) != "false" || stored(t, kv, KeyUserName) != "Ana" {
		t.Fatal("expected session keys to be stored")
	}

	o, err := s.Overview(ctx)
	if err != nil || o.Currency != "S/" || o.Balance != "1250.75" || o.NetworkName != "BCRP Digital" {
		t.Fatalf("unexpected demo overview %+v err=%v", o, err)
	}
}

func TestWalletLogin(t *testing.T) {
	s, p, kv := newSession(t)
	ctx := context.Background()
	s.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	p.Balances[addr], _ = new(big.Int).SetString("2500000000000000000", 10)

	prof, err := s.WalletLogin(ctx)
	if err != nil {
		t.Fatalf("WalletLogin: %v", err)
	}
	if prof.Name != "Usuario 0x1234...7890" || prof.WalletAddress != addr || !prof.WalletLogin {
		t.Fatalf("unexpected profile %+v", prof)
	}
	if stored(t, kv, KeyWallet) != addr || stored(t, kv, KeyWalletLogin) != "true" {
		t.Fatal("expected wallet keys to be stored")
	}

	var signed string
	for _, c := range p.Calls() {
		if c.Method == "PersonalSign" {
			signed = c.Args[0].(string)
		}
	}
	want := "Iniciar sesión en WASI\nFecha: 2025-01-02T03:04:05.000Z\nDirección: " + addr
	if signed != want {
		t.Fatalf("unexpected login message %q", signed)
	}

	o, err := s.Overview(ctx)
	if err != nil || o.Currency != "ETH" || o.Balance != "2.500000" || o.NetworkName != "Ethereum Mainnet" || !o.WalletLogin {
		t.Fatalf("unexpected wallet overview %+v err=%v", o, err)
	}
}

func TestWalletLogin_SignatureRejected(t *testing.T) {
	s, p, kv := newSession(t)
	p.SetErr("PersonalSign", provider.NewError(provider.CodeUserRejected, "no"))

	_, err := s.WalletLogin(context.Background())
	if bridge.ReasonOf(err) != "Signature rejected by user" {
		t.Fatalf("unexpected error %v", err)
	}
	if s.Profile().LoggedIn || stored(t, kv, KeyLoggedIn) != "" {
		t.Fatal("expected no session after rejected signature")
	}
}

func TestWalletLogin_NoProvider(t *testing.T) {
	s := New(memory.New(), nil, zerolog.Nop())
	if _, err := s.WalletLogin(context.Background()); bridge.KindOf(err) != bridge.KindProviderUnavailable {
		t.Fatalf("expected provider unavailable, got=%v", err)
	}
}

func TestRestore(t *testing.T) {
	s, p, kv := newSession(t)
	ctx := context.Background()

	if prof, _ := s.Restore(ctx); prof.LoggedIn {
		t.Fatal("expected no session on empty storage")
	}

	_ = kv.Set(ctx, KeyLoggedIn, []byte("true"))
	_ = kv.Set(ctx, KeyUserName, []byte("Usuario 0x1234...7890"))
	_ = kv.Set(ctx, KeyWalletLogin, []byte("true"))
	_ = kv.Set(ctx, KeyWallet, []byte(addr))

	prof, err := s.Restore(ctx)
	if err != nil || !prof.WalletLogin || prof.WalletAddress != addr {
		t.Fatalf("unexpected profile %+v err=%v", prof, err)
	}
	if p.Len() != 1 {
		t.Fatalf("expected restored wallet session to subscribe, got=%d", p.Len())
	}
}

func TestRestore_WalletFlagWithoutAddress(t *testing.T) {
	s, _, kv := newSession(t)
	ctx := context.Background()
	_ = kv.Set(ctx, KeyLoggedIn, []byte("true"))
	_ = kv.Set(ctx, KeyWalletLogin, []byte("true"))

	prof, _ := s.Restore(ctx)
	if prof.WalletLogin || prof.WalletAddress != "" {
		t.Fatalf("wallet flag without address must not be a wallet session, got=%+v", prof)
	}
}

func TestBind_AccountEvents(t *testing.T) {
	s, p, kv := newSession(t)
	ctx := context.Background()
	_, _ = s.WalletLogin(ctx)

	var reloads []Overview
	s.OnReload(func(o Overview) { reloads = append(reloads, o) })

	other := "0x" + strings.Repeat("b", 40)
	p.EmitAccountsChanged([]string{other})
	if s.Profile().WalletAddress != other || stored(t, kv, KeyWallet) != other {
		t.Fatalf("expected address to follow the wallet, got=%q", s.Profile().WalletAddress)
	}
	if len(reloads) != 1 {
		t.Fatalf("expected one reload, got=%d", len(reloads))
	}

	p.EmitChainChanged("0x89")
	if len(reloads) != 2 {
		t.Fatalf("expected reload on chain change, got=%d", len(reloads))
	}

	p.EmitAccountsChanged(nil)
	if s.Profile().LoggedIn || stored(t, kv, KeyLoggedIn) != "" {
		t.Fatal("expected logout when the wallet drops every account")
	}
	if p.Len() != 0 {
		t.Fatalf("expected listeners removed after logout, got=%d", p.Len())
	}
}

func TestLogout(t *testing.T) {
	s, _, kv := newSession(t)
	ctx := context.Background()
	_, _ = s.WalletLogin(ctx)

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	for _, k := range []string{KeyLoggedIn, KeyUserName, KeyUserPhone, KeyWallet, KeyWalletLogin} {
		if _, ok, _ := kv.Get(ctx, k); ok {
			t.Fatalf("expected %s to be removed", k)
		}
	}
	if _, err := s.Overview(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got=%v", err)
	}
}
