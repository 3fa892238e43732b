package student

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Service provides record access over a Storage.
type Service struct {
	storage Storage
	logger  *slog.Logger
	newID   func() string
}

// NewService creates a new Service.
func NewService(storage Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storage: storage,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// ParseIdentifier validates id as a storage key and returns its canonical
// form. Any textual UUID form accepted by uuid.Parse is allowed.
func ParseIdentifier(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidIdentifier
	}
	return u.String(), nil
}

// List returns every student matching f. No match yields an empty slice.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	records, err := s.storage.Scan(ctx, f)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Get returns the student stored under id.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	key, err := ParseIdentifier(id)
	if err != nil {
		return Record{}, err
	}
	return s.storage.Fetch(ctx, key)
}

// Create stores the fields present in p as a new student under a fresh
// identifier. Null fields are not written.
func (s *Service) Create(ctx context.Context, p Patch) (Record, error) {
	if err := p.Validate(); err != nil {
		return Record{}, err
	}

	r := p.Apply(Record{})
	r.ID = s.newID()

	created, err := s.storage.Insert(ctx, r)
	if err != nil {
		return Record{}, err
	}

	s.logger.Info("student created", "studentID", created.ID)
	return created, nil
}

// Update merges p into the stored student and writes back only the fields
// present in p. The write is conditional on the student still existing.
func (s *Service) Update(ctx context.Context, id string, p Patch) (Record, error) {
	key, err := ParseIdentifier(id)
	if err != nil {
		return Record{}, err
	}
	if err := p.Validate(); err != nil {
		return Record{}, err
	}

	existing, err := s.storage.Fetch(ctx, key)
	if err != nil {
		return Record{}, err
	}

	fields := p.Fields()
	updated, err := s.storage.Modify(ctx, key, p.Apply(existing), fields)
	if err != nil {
		return Record{}, err
	}

	s.logger.Info("student updated",
		"studentID", key,
		"fields", fields,
	)
	return updated, nil
}

// Delete removes the student and returns it as it was before removal.
func (s *Service) Delete(ctx context.Context, id string) (Record, error) {
	key, err := ParseIdentifier(id)
	if err != nil {
		return Record{}, err
	}

	deleted, err := s.storage.Remove(ctx, key)
	if err != nil {
		return Record{}, err
	}

	s.logger.Info("student deleted", "studentID", key)
	return deleted, nil
}
