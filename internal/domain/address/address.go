package address

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("address not found")
	ErrMissingFields = errors.New("name, line1, city, state and pincode are required")
)

// Entry is one delivery address. Entries are soft-deleted only, so ids
// referenced by old orders stay resolvable.
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Line1     string    `json:"line1"`
	Line2     string    `json:"line2"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Pincode   string    `json:"pincode"`
	IsDefault bool      `json:"is_default"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
}

// Book is the per-user address document. Entry ids are opaque and unique
// only within the book.
type Book struct {
	UserID  string  `json:"user_id"`
	Entries []Entry `json:"entries"`
}

// Find returns the entry with the given id, deleted or not.
func (b *Book) Find(id string) (*Entry, bool) {
	for i := range b.Entries {
		if b.Entries[i].ID == id {
			return &b.Entries[i], true
		}
	}
	return nil, false
}

// Active returns the non-deleted entries.
func (b *Book) Active() []Entry {
	out := make([]Entry, 0, len(b.Entries))
	for _, e := range b.Entries {
		if !e.IsDeleted {
			out = append(out, e)
		}
	}
	return out
}

type Repo interface {
	GetAddressBook(ctx context.Context, userID string) (*Book, error)
	SaveAddressBook(ctx context.Context, b *Book) error
}

type Service struct {
	repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, userID string) ([]Entry, error) {
	b, err := s.repo.GetAddressBook(ctx, userID)
	if err != nil {
		return nil, err
	}
	return b.Active(), nil
}

// Add appends a new entry. The first active entry in a book becomes the
// default automatically.
func (s *Service) Add(ctx context.Context, userID string, e Entry) (*Entry, error) {
	if e.Name == "" || e.Line1 == "" || e.City == "" || e.State == "" || e.Pincode == "" {
		return nil, ErrMissingFields
	}
	b, err := s.repo.GetAddressBook(ctx, userID)
	if err != nil {
		return nil, err
	}

	e.ID = uuid.New().String()
	e.IsDeleted = false
	e.CreatedAt = time.Now()
	if len(b.Active()) == 0 {
		e.IsDefault = true
	} else if e.IsDefault {
		b.clearDefault()
	}
	b.Entries = append(b.Entries, e)

	if err := s.repo.SaveAddressBook(ctx, b); err != nil {
		return nil, err
	}
	return &b.Entries[len(b.Entries)-1], nil
}

func (s *Service) Update(ctx context.Context, userID string, e Entry) error {
	if e.Name == "" || e.Line1 == "" || e.City == "" || e.State == "" || e.Pincode == "" {
		return ErrMissingFields
	}
	b, err := s.repo.GetAddressBook(ctx, userID)
	if err != nil {
		return err
	}
	existing, ok := b.Find(e.ID)
	if !ok || existing.IsDeleted {
		return ErrNotFound
	}
	if e.IsDefault && !existing.IsDefault {
		b.clearDefault()
	}
	e.IsDeleted = false
	e.CreatedAt = existing.CreatedAt
	*existing = e
	return s.repo.SaveAddressBook(ctx, b)
}

// Delete soft-deletes an entry. Deleting the default promotes the oldest
// remaining active entry.
func (s *Service) Delete(ctx context.Context, userID, entryID string) error {
	b, err := s.repo.GetAddressBook(ctx, userID)
	if err != nil {
		return err
	}
	e, ok := b.Find(entryID)
	if !ok || e.IsDeleted {
		return ErrNotFound
	}
	wasDefault := e.IsDefault
	e.IsDeleted = true
	e.IsDefault = false
	if wasDefault {
		if active := b.Active(); len(active) > 0 {
			first, _ := b.Find(active[0].ID)
			first.IsDefault = true
		}
	}
	return s.repo.SaveAddressBook(ctx, b)
}

func (s *Service) SetDefault(ctx context.Context, userID, entryID string) error {
	b, err := s.repo.GetAddressBook(ctx, userID)
	if err != nil {
		return err
	}
	e, ok := b.Find(entryID)
	if !ok || e.IsDeleted {
		return ErrNotFound
	}
	b.clearDefault()
	e.IsDefault = true
	return s.repo.SaveAddressBook(ctx, b)
}

func (b *Book) clearDefault() {
	for i := range b.Entries {
		b.Entries[i].IsDefault = false
	}
}
