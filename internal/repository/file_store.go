package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"smsbridge-backend/internal/model"
)

// FileContactRepository keeps the address book in a single JSON file next to
// the binary, the natural fit for a local desktop-companion tool.
type FileContactRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileContactRepository(path string) (*FileContactRepository, error) {
	r := &FileContactRepository{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := r.save(nil); err != nil {
			return nil, fmt.Errorf("initializing contact file: %w", err)
		}
	}
	return r, nil
}

func (r *FileContactRepository) List() ([]model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *FileContactRepository) Create(contact model.Contact) (model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contacts, err := r.load()
	if err != nil {
		return model.Contact{}, err
	}

	contact.ID = uuid.NewString()
	contact.CreatedAt = time.Now()
	contacts = append(contacts, contact)

	if err := r.save(contacts); err != nil {
		return model.Contact{}, err
	}
	return contact, nil
}

func (r *FileContactRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	contacts, err := r.load()
	if err != nil {
		return err
	}

	kept := contacts[:0]
	for _, c := range contacts {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	return r.save(kept)
}

func (r *FileContactRepository) Import(toImport []model.Contact) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contacts, err := r.load()
	if err != nil {
		return 0, err
	}

	for _, c := range toImport {
		c.ID = uuid.NewString()
		c.CreatedAt = time.Now()
		contacts = append(contacts, c)
	}

	if err := r.save(contacts); err != nil {
		return 0, err
	}
	return len(toImport), nil
}

func (r *FileContactRepository) load() ([]model.Contact, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("reading contact file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var contacts []model.Contact
	if err := json.Unmarshal(data, &contacts); err != nil {
		return nil, fmt.Errorf("parsing contact file: %w", err)
	}
	return contacts, nil
}

func (r *FileContactRepository) save(contacts []model.Contact) error {
	if contacts == nil {
		contacts = []model.Contact{}
	}
	data, err := json.MarshalIndent(contacts, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing contact file: %w", err)
	}
	return os.Rename(tmp, r.path)
}
