// Package contacts is the address book used to pick transfer recipients and
// to label addresses in the history.
package contacts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/pvzzle/wasi/internal/storage"
	"github.com/pvzzle/wasi/internal/validate"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const Key = "wasi_contacts"

var (
	ErrNameRequired    = errors.New("name is required")
	ErrAddressRequired = errors.New("address is required")
	ErrDuplicate       = errors.New("this address already exists in your contacts")
	ErrNotFound        = errors.New("contact not found")
)

type Contact struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Email     string `json:"email,omitempty"`
	Note      string `json:"note,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// Input is the editable part of a contact.
type Input struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email,omitempty"`
	Note    string `json:"note,omitempty"`
}

type Book struct {
	kv  storage.KV
	log zerolog.Logger
	now func() time.Time

	mu sync.Mutex
}

func NewBook(kv storage.KV, log zerolog.Logger) *Book {
	return &Book{kv: kv, log: log.With().Str("component", "contacts").Logger(), now: time.Now}
}

func (b *Book) Add(ctx context.Context, in Input) (Contact, error) {
	in, err := clean(in)
	if err != nil {
		return Contact{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list, err := b.load(ctx)
	if err != nil {
		return Contact{}, err
	}
	if dup(list, in.Address, "") {
		return Contact{}, ErrDuplicate
	}

	c := Contact{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Address:   in.Address,
		Email:     in.Email,
		Note:      in.Note,
		CreatedAt: b.now().UnixMilli(),
	}
	if err := storage.SetJSON(ctx, b.kv, Key, append(list, c)); err != nil {
		return Contact{}, err
	}

	b.log.Info().Str("id", c.ID).Str("address", c.Address).Msg("contact added")
	return c, nil
}

func (b *Book) Update(ctx context.Context, id string, in Input) (Contact, error) {
	in, err := clean(in)
	if err != nil {
		return Contact{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list, err := b.load(ctx)
	if err != nil {
		return Contact{}, err
	}
	i := index(list, id)
	if i < 0 {
		return Contact{}, ErrNotFound
	}
	if dup(list, in.Address, id) {
		return Contact{}, ErrDuplicate
	}

	list[i].Name = in.Name
	list[i].Address = in.Address
	list[i].Email = in.Email
	list[i].Note = in.Note
	if err := storage.SetJSON(ctx, b.kv, Key, list); err != nil {
		return Contact{}, err
	}
	return list[i], nil
}

func index(list []Contact, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Book) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, err := b.load(ctx)
	if err != nil {
		return err
	}
	out := list[:0]
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	if len(out) == len(list) {
		return ErrNotFound
	}
	return storage.SetJSON(ctx, b.kv, Key, out)
}

func (b *Book) Get(ctx context.Context, id string) (Contact, error) {
	list, err := b.List(ctx)
	if err != nil {
		return Contact{}, err
	}
	for _, c := range list {
		if c.ID == id {
			return c, nil
		}
	}
	return Contact{}, ErrNotFound
}

// List returns contacts in insertion order.
func (b *Book) List(ctx context.Context) ([]Contact, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(ctx)
}

// Search matches query case-insensitively against name, address and email.
func (b *Book) Search(ctx context.Context, query string) ([]Contact, error) {
	list, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return list, nil
	}

	var out []Contact
	for _, c := range list {
		if strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Address), q) ||
			strings.Contains(strings.ToLower(c.Email), q) {
			out = append(out, c)
		}
	}
	return out, nil
}

// FindByAddress returns the contact saved for address, ignoring hex case.
func (b *Book) FindByAddress(ctx context.Context, address string) (Contact, bool, error) {
	list, err := b.List(ctx)
	if err != nil {
		return Contact{}, false, err
	}
	for _, c := range list {
		if validate.SameAddress(c.Address, address) {
			return c, true, nil
		}
	}
	return Contact{}, false, nil
}

func (b *Book) load(ctx context.Context) ([]Contact, error) {
	var list []Contact
	if _, err := storage.GetJSON(ctx, b.kv, Key, &list); err != nil {
		if errors.Is(err, storage.ErrCorrupt) {
			b.log.Warn().Err(err).Msg("discarding unreadable contacts")
			return nil, nil
		}
		return nil, err
	}
	return list, nil
}

func clean(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.Email = strings.TrimSpace(in.Email)
	in.Note = strings.TrimSpace(in.Note)

	if in.Name == "" {
		return in, ErrNameRequired
	}
	if in.Address == "" {
		return in, ErrAddressRequired
	}
	if !validate.IsAddress(in.Address) {
		return in, validate.ErrInvalidAddress
	}
	return in, nil
}

func dup(list []Contact, address, exceptID string) bool {
	for _, c := range list {
		if c.ID != exceptID && validate.SameAddress(c.Address, address) {
			return true
		}
	}
	return false
}
