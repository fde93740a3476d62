package contacts

import (
	"context"
	"errors"
	"testing"

	"github.com/pvzzle/wasi/internal/storage/memory"
	"github.com/pvzzle/wasi/internal/validate"

	"github.com/rs/zerolog"
)

const (
	addrA = "0x1234567890123456789012345678901234567890"
	addrB = "0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD"
)

func newBook() *Book { return NewBook(memory.New(), zerolog.Nop()) }

func TestAdd_Validation(t *testing.T) {
	b := newBook()
	ctx := context.Background()

	cases := []struct {
		in   Input
		want error
	}{
		{Input{Name: " ", Address: addrA}, ErrNameRequired},
		{Input{Name: "Ana", Address: ""}, ErrAddressRequired},
		{Input{Name: "Ana", Address: "0x123"}, validate.ErrInvalidAddress},
		{Input{Name: "Ana", Address: "987654321"}, validate.ErrInvalidAddress},
	}
	for _, c := range cases {
		if _, err := b.Add(ctx, c.in); !errors.Is(err, c.want) {
			t.Fatalf("%+v: expected %v, got=%v", c.in, c.want, err)
		}
	}

	got, err := b.Add(ctx, Input{Name: " Ana ", Address: " " + addrA + " ", Email: "ana@bcrp.pe"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got.ID == "" || got.Name != "Ana" || got.Address != addrA || got.CreatedAt == 0 {
		t.Fatalf("unexpected contact %+v", got)
	}
}

func TestAdd_DuplicateAddressRejected(t *testing.T) {
	b := newBook()
	ctx := context.Background()

	if _, err := b.Add(ctx, Input{Name: "Ana", Address: addrB}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	_, err := b.Add(ctx, Input{Name: "Otra", Address: "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got=%v", err)
	}

	list, _ := b.List(ctx)
	if len(list) != 1 {
		t.Fatalf("expected list length unchanged, got=%d", len(list))
	}
}

func TestUpdateAndDelete(t *testing.T) {
	b := newBook()
	ctx := context.Background()

	a, _ := b.Add(ctx, Input{Name: "Ana", Address: addrA})
	c, _ := b.Add(ctx, Input{Name: "Carlos", Address: addrB})

	if _, err := b.Update(ctx, c.ID, Input{Name: "Carlos", Address: addrA}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate on edit, got=%v", err)
	}

	upd, err := b.Update(ctx, a.ID, Input{Name: "Ana María", Address: addrA, Note: "mamá"})
	if err != nil || upd.Name != "Ana María" || upd.Note != "mamá" || upd.CreatedAt != a.CreatedAt {
		t.Fatalf("unexpected update %+v err=%v", upd, err)
	}

	if _, err := b.Update(ctx, "nope", Input{Name: "x", Address: "0x0000000000000000000000000000000000000001"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got=%v", err)
	}
	if _, err := b.Update(ctx, "nope", Input{Name: "x", Address: addrB}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id with a taken address, got=%v", err)
	}

	if err := b.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := b.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got=%v", err)
	}
	if _, err := b.Get(ctx, c.ID); err != nil {
		t.Fatalf("expected remaining contact, got=%v", err)
	}
}

func TestSearchAndFind(t *testing.T) {
	b := newBook()
	ctx := context.Background()

	_, _ = b.Add(ctx, Input{Name: "Ana", Address: addrA, Email: "ana@wasi.pe"})
	_, _ = b.Add(ctx, Input{Name: "Carlos", Address: addrB})

	res, _ := b.Search(ctx, "WASI")
	if len(res) != 1 || res[0].Name != "Ana" {
		t.Fatalf("expected Ana by email, got=%v", res)
	}
	res, _ = b.Search(ctx, "abcdef")
	if len(res) != 1 || res[0].Name != "Carlos" {
		t.Fatalf("expected Carlos by address, got=%v", res)
	}
	res, _ = b.Search(ctx, "")
	if len(res) != 2 {
		t.Fatalf("expected all contacts, got=%d", len(res))
	}

	c, ok, err := b.FindByAddress(ctx, "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	if err != nil || !ok || c.Name != "Carlos" {
		t.Fatalf("expected Carlos, got=%+v ok=%v err=%v", c, ok, err)
	}
}
