// Package contacts manages the phone-identified people the business talks to.
package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
)

// Queries is the subset of store.Queries used by the service.
type Queries interface {
	GetContactByID(ctx context.Context, id pgtype.UUID) (store.Contact, error)
	GetContactByPhone(ctx context.Context, phone string) (store.Contact, error)
	CreateContact(ctx context.Context, arg store.CreateContactParams) (store.Contact, error)
	TouchContactInteraction(ctx context.Context, arg store.TouchContactInteractionParams) (store.Contact, error)
	UpdateContact(ctx context.Context, arg store.UpdateContactParams) (store.Contact, error)
	ListContacts(ctx context.Context, arg store.ListContactsParams) ([]store.Contact, error)
	CountContacts(ctx context.Context, arg store.ListContactsParams) (int64, error)
}

type Service struct {
	queries Queries
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(log *slog.Logger, queries Queries) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries: queries,
		logger:  log.With(slog.String("service", "contacts")),
		now:     time.Now,
	}
}

// NormalizePhone keeps only the digits of phone.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveByPhone returns the contact for phone, creating a prospect named after
// hint (or the number) when none exists, and stamps its last interaction.
// Concurrent callers for the same new number converge on a single row: the
// loser of the insert race re-reads the winner's contact.
func (s *Service) ResolveByPhone(ctx context.Context, phone, hint string) (Contact, error) {
	normalized := NormalizePhone(phone)
	if normalized == "" {
		return Contact{}, ErrInvalidPhone
	}
	now := db.Timestamptz(s.now())

	row, err := s.queries.GetContactByPhone(ctx, normalized)
	switch {
	case err == nil:
		return s.touch(ctx, row.ID, now)
	case !errors.Is(err, pgx.ErrNoRows):
		return Contact{}, fmt.Errorf("get contact by phone: %w", err)
	}

	name := strings.TrimSpace(hint)
	if name == "" {
		name = normalized
	}
	row, err = s.queries.CreateContact(ctx, store.CreateContactParams{
		Phone:             normalized,
		Name:              name,
		ContactType:       TypeProspect,
		Metadata:          []byte("{}"),
		FirstContactAt:    now,
		LastInteractionAt: now,
	})
	if err == nil {
		s.logger.Info("contact created", slog.String("contact_id", db.UUIDString(row.ID)), slog.String("phone", normalized))
		return toContact(row), nil
	}
	if !db.IsUniqueViolation(err) {
		return Contact{}, fmt.Errorf("create contact: %w", err)
	}

	row, err = s.queries.GetContactByPhone(ctx, normalized)
	if err != nil {
		return Contact{}, fmt.Errorf("refetch contact after conflict: %w", err)
	}
	return s.touch(ctx, row.ID, now)
}

func (s *Service) touch(ctx context.Context, id pgtype.UUID, at pgtype.Timestamptz) (Contact, error) {
	row, err := s.queries.TouchContactInteraction(ctx, store.TouchContactInteractionParams{
		ID:                id,
		LastInteractionAt: at,
	})
	if err != nil {
		return Contact{}, fmt.Errorf("touch contact: %w", err)
	}
	return toContact(row), nil
}

func (s *Service) Get(ctx context.Context, contactID string) (Contact, error) {
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return Contact{}, err
	}
	row, err := s.queries.GetContactByID(ctx, pgID)
	if err != nil {
		return Contact{}, notFound(err)
	}
	return toContact(row), nil
}

func (s *Service) GetByPhone(ctx context.Context, phone string) (Contact, error) {
	normalized := NormalizePhone(phone)
	if normalized == "" {
		return Contact{}, ErrInvalidPhone
	}
	row, err := s.queries.GetContactByPhone(ctx, normalized)
	if err != nil {
		return Contact{}, notFound(err)
	}
	return toContact(row), nil
}

func (s *Service) Create(ctx context.Context, createdBy string, req CreateRequest) (Contact, error) {
	phone := NormalizePhone(req.Phone)
	if phone == "" {
		return Contact{}, ErrInvalidPhone
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = phone
	}
	contactType := strings.TrimSpace(req.ContactType)
	if contactType == "" {
		contactType = TypeProspect
	}
	if !ValidType(contactType) {
		return Contact{}, ErrInvalidType
	}
	creator, err := db.ParseOptionalUUID(createdBy)
	if err != nil {
		return Contact{}, err
	}
	meta, err := marshalMetadata(req.Metadata)
	if err != nil {
		return Contact{}, err
	}
	row, err := s.queries.CreateContact(ctx, store.CreateContactParams{
		Phone:          phone,
		Name:           name,
		Email:          db.Text(req.Email),
		ContactType:    contactType,
		Company:        db.Text(req.Company),
		Notes:          db.Text(req.Notes),
		Metadata:       meta,
		CreatedBy:      creator,
		FirstContactAt: db.Timestamptz(s.now()),
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Contact{}, ErrPhoneExists
		}
		return Contact{}, err
	}
	return toContact(row), nil
}

func (s *Service) Update(ctx context.Context, contactID string, req UpdateRequest) (Contact, error) {
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return Contact{}, err
	}
	params := store.UpdateContactParams{ID: pgID}
	if req.Name != nil {
		params.Name = db.Text(*req.Name)
	}
	if req.Email != nil {
		params.Email = pgtype.Text{String: strings.TrimSpace(*req.Email), Valid: true}
	}
	if req.ContactType != nil {
		if !ValidType(*req.ContactType) {
			return Contact{}, ErrInvalidType
		}
		params.ContactType = db.Text(*req.ContactType)
	}
	if req.Company != nil {
		params.Company = pgtype.Text{String: strings.TrimSpace(*req.Company), Valid: true}
	}
	if req.Notes != nil {
		params.Notes = pgtype.Text{String: *req.Notes, Valid: true}
	}
	if req.Metadata != nil {
		if params.Metadata, err = marshalMetadata(req.Metadata); err != nil {
			return Contact{}, err
		}
	}
	if req.IsActive != nil {
		params.IsActive = pgtype.Bool{Bool: *req.IsActive, Valid: true}
	}
	row, err := s.queries.UpdateContact(ctx, params)
	if err != nil {
		return Contact{}, notFound(err)
	}
	return toContact(row), nil
}

// Deactivate soft-deletes a contact; its conversations and messages are kept.
func (s *Service) Deactivate(ctx context.Context, contactID string) (Contact, error) {
	inactive := false
	return s.Update(ctx, contactID, UpdateRequest{IsActive: &inactive})
}

func (s *Service) List(ctx context.Context, req ListRequest) (ListResponse, error) {
	limit, offset := db.ClampPage(req.Limit, req.Offset)
	params := store.ListContactsParams{
		Query:           db.LikePattern(req.Query),
		ContactType:     db.Text(req.ContactType),
		IncludeInactive: req.IncludeInactive,
		Limit:           limit,
		Offset:          offset,
	}
	rows, err := s.queries.ListContacts(ctx, params)
	if err != nil {
		return ListResponse{}, err
	}
	total, err := s.queries.CountContacts(ctx, params)
	if err != nil {
		return ListResponse{}, err
	}
	items := make([]Contact, 0, len(rows))
	for _, row := range rows {
		items = append(items, toContact(row))
	}
	return ListResponse{Items: items, Total: total}, nil
}

// ValidType reports whether t is a known contact type.
func ValidType(t string) bool {
	switch strings.TrimSpace(t) {
	case TypeCustomer, TypeProspect, TypeSupplier, TypeOther:
		return true
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrContactNotFound
	}
	return err
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal contact metadata: %w", err)
	}
	return data, nil
}

func toContact(row store.Contact) Contact {
	c := Contact{
		ID:                db.UUIDString(row.ID),
		Phone:             row.Phone,
		Name:              row.Name,
		Email:             db.TextToString(row.Email),
		ContactType:       row.ContactType,
		Company:           db.TextToString(row.Company),
		Notes:             db.TextToString(row.Notes),
		IsActive:          row.IsActive,
		CreatedBy:         db.UUIDString(row.CreatedBy),
		FirstContactAt:    db.TimeFromPg(row.FirstContactAt),
		LastInteractionAt: db.TimeFromPg(row.LastInteractionAt),
		CreatedAt:         db.TimeFromPg(row.CreatedAt),
		UpdatedAt:         db.TimeFromPg(row.UpdatedAt),
	}
	if len(row.Metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(row.Metadata, &meta); err == nil && len(meta) > 0 {
			c.Metadata = meta
		}
	}
	return c
}
