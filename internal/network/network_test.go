package network

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	tbl := Default()
	if tbl.Len() != 11 {
		t.Fatalf("expected 11 built-in networks, got=%d", tbl.Len())
	}

	d, ok := tbl.Lookup("0xaa36a7")
	if !ok {
		t.Fatal("expected sepolia")
	}
	if d.Name != "Sepolia Testnet" || !d.IsTestnet || d.Currency != "ETH" {
		t.Fatalf("unexpected sepolia descriptor: %+v", d)
	}

	if _, ok := tbl.Lookup("0x2a"); ok {
		t.Fatal("expected 0x2a to be unknown")
	}
}

func TestLookup_Notations(t *testing.T) {
	tbl := Default()
	for _, id := range []string{"0x89", "0x089", "137", "0X89"} {
		d, ok := tbl.Lookup(id)
		if !ok || d.ChainID != "0x89" {
			t.Fatalf("expected polygon for %q, got=%+v ok=%v", id, d, ok)
		}
	}
}

func TestLookup_ReturnsCopy(t *testing.T) {
	tbl := Default()
	d, _ := tbl.Lookup("0x1")
	d.RPCURLs[0] = "mutated"

	d2, _ := tbl.Lookup("0x1")
	if d2.RPCURLs[0] == "mutated" {
		t.Fatal("expected table to be immutable")
	}
}

func TestExplorerURLs(t *testing.T) {
	tbl := Default()

	u, ok := tbl.TxURL("0x1", "0xabc")
	if !ok || u != "https://etherscan.io/tx/0xabc" {
		t.Fatalf("unexpected tx url: %q ok=%v", u, ok)
	}
	u, ok = tbl.AddressURL("0x38", "0xdef")
	if !ok || u != "https://bscscan.com/address/0xdef" {
		t.Fatalf("unexpected address url: %q ok=%v", u, ok)
	}
	if _, ok := tbl.TxURL("0x999", "0xabc"); ok {
		t.Fatal("expected no url for unknown chain")
	}
}

func TestNormalizeChainID(t *testing.T) {
	cases := map[string]string{"1": "0x1", "0x01": "0x1", "11155111": "0xaa36a7", " 0xA86A ": "0xa86a"}
	for in, want := range cases {
		got, err := NormalizeChainID(in)
		if err != nil || got != want {
			t.Fatalf("NormalizeChainID(%q): expected %q, got=%q err=%v", in, want, got, err)
		}
	}
	for _, bad := range []string{"", "0x", "0", "abc", "-1"} {
		if _, err := NormalizeChainID(bad); err != ErrInvalidChainID {
			t.Fatalf("expected ErrInvalidChainID for %q, got=%v", bad, err)
		}
	}
}

func TestNewTable_Duplicate(t *testing.T) {
	_, err := NewTable([]Descriptor{{ChainID: "0x1", Name: "a"}, {ChainID: "1", Name: "b"}})
	if err == nil {
		t.Fatal("expected duplicate error")
	}
}

func TestRecommended(t *testing.T) {
	tbl, err := NewTable([]Descriptor{
		{ChainID: "0x1", Name: "main", IsSupported: true},
		{ChainID: "0x2", Name: "off"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	rec := tbl.Recommended()
	if len(rec) != 1 || rec[0].ChainID != "0x1" {
		t.Fatalf("expected only supported network, got=%+v", rec)
	}
}

func TestLoadFile_Merge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "networks.yaml")
	body := `
networks:
  - chainId: "0x539"
    name: "Local Devnet"
    currency: "ETH"
    rpcUrls: ["http://127.0.0.1:8545"]
    isTestnet: true
    isSupported: true
  - chainId: "0x1"
    name: "Ethereum (custom)"
    currency: "ETH"
    isSupported: true
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tbl, err := LoadFile(path, Default())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if tbl.Len() != 12 {
		t.Fatalf("expected 12 networks, got=%d", tbl.Len())
	}

	d, ok := tbl.Lookup("1337")
	if !ok || d.Name != "Local Devnet" || d.Decimals != 18 || d.ChainName != "Local Devnet" {
		t.Fatalf("unexpected devnet: %+v ok=%v", d, ok)
	}
	d, _ = tbl.Lookup("0x1")
	if d.Name != "Ethereum (custom)" {
		t.Fatalf("expected override, got=%q", d.Name)
	}
}
