// Package storetest provides an in-memory stand-in for store.Queries. It enforces the same unique constraints
// as the PostgreSQL schema and reports violations as SQLSTATE 23505.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/memohai/wadesk/internal/db/store"
)

// Store is safe for concurrent use.
type Store struct {
	mu            sync.Mutex
	contacts      map[[16]byte]store.Contact
	conversations map[[16]byte]store.Conversation
	messages      map[[16]byte]store.Message
	users         map[[16]byte]store.User
	teams         map[[16]byte]store.Team
	tags          map[[16]byte]store.Tag
	taggings      map[[2][16]byte]struct{}
	settings      map[string]store.Setting
	activity      []store.ActivityLog

	// Fail, when set, is consulted before every operation; a non-nil result is returned as the error.
	Fail func(op string) error
}

func New() *Store {
	return &Store{
		contacts:      map[[16]byte]store.Contact{},
		conversations: map[[16]byte]store.Conversation{},
		messages:      map[[16]byte]store.Message{},
		users:         map[[16]byte]store.User{},
		teams:         map[[16]byte]store.Team{},
		tags:          map[[16]byte]store.Tag{},
		taggings:      map[[2][16]byte]struct{}{},
		settings:      map[string]store.Setting{},
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func newID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

func now() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: time.Now(), Valid: true}
}

func (s *Store) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

func orText(v, fallback pgtype.Text) pgtype.Text {
	if v.Valid {
		return v
	}
	return fallback
}

// Contacts returns a snapshot of every stored contact.
func (s *Store) Contacts() []store.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c)
	}
	return out
}

// Conversations returns a snapshot of every stored conversation.
func (s *Store) Conversations() []store.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	return out
}

// Messages returns a snapshot of every stored message.
func (s *Store) Messages() []store.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m)
	}
	return out
}

// SetConversationState forces a state, the way staff would through the API.
func (s *Store) SetConversationState(id pgtype.UUID, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id.Bytes]
	if !ok {
		return
	}
	c.State = state
	s.conversations[id.Bytes] = c
}

func (s *Store) GetContactByID(_ context.Context, id pgtype.UUID) (store.Contact, error) {
	if err := s.fail("GetContactByID"); err != nil {
		return store.Contact{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id.Bytes]
	if !ok {
		return store.Contact{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *Store) GetContactByPhone(_ context.Context, phone string) (store.Contact, error) {
	if err := s.fail("GetContactByPhone"); err != nil {
		return store.Contact{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if c.Phone == phone {
			return c, nil
		}
	}
	return store.Contact{}, pgx.ErrNoRows
}

func (s *Store) CreateContact(_ context.Context, arg store.CreateContactParams) (store.Contact, error) {
	if err := s.fail("CreateContact"); err != nil {
		return store.Contact{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if c.Phone == arg.Phone {
			return store.Contact{}, uniqueViolation("contacts_phone_unique")
		}
	}
	first := arg.FirstContactAt
	if !first.Valid {
		first = now()
	}
	c := store.Contact{
		ID:                newID(),
		Phone:             arg.Phone,
		Name:              arg.Name,
		Email:             arg.Email,
		ContactType:       arg.ContactType,
		Company:           arg.Company,
		Notes:             arg.Notes,
		Metadata:          arg.Metadata,
		IsActive:          true,
		CreatedBy:         arg.CreatedBy,
		FirstContactAt:    first,
		LastInteractionAt: arg.LastInteractionAt,
		CreatedAt:         now(),
		UpdatedAt:         now(),
	}
	s.contacts[c.ID.Bytes] = c
	return c, nil
}

func (s *Store) TouchContactInteraction(_ context.Context, arg store.TouchContactInteractionParams) (store.Contact, error) {
	if err := s.fail("TouchContactInteraction"); err != nil {
		return store.Contact{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[arg.ID.Bytes]
	if !ok {
		return store.Contact{}, pgx.ErrNoRows
	}
	c.LastInteractionAt = arg.LastInteractionAt
	c.UpdatedAt = now()
	s.contacts[c.ID.Bytes] = c
	return c, nil
}

func (s *Store) UpdateContact(_ context.Context, arg store.UpdateContactParams) (store.Contact, error) {
	if err := s.fail("UpdateContact"); err != nil {
		return store.Contact{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[arg.ID.Bytes]
	if !ok {
		return store.Contact{}, pgx.ErrNoRows
	}
	if arg.Name.Valid {
		c.Name = arg.Name.String
	}
	c.Email = orText(arg.Email, c.Email)
	if arg.ContactType.Valid {
		c.ContactType = arg.ContactType.String
	}
	c.Company = orText(arg.Company, c.Company)
	c.Notes = orText(arg.Notes, c.Notes)
	if arg.Metadata != nil {
		c.Metadata = arg.Metadata
	}
	if arg.IsActive.Valid {
		c.IsActive = arg.IsActive.Bool
	}
	c.UpdatedAt = now()
	s.contacts[c.ID.Bytes] = c
	return c, nil
}

func (s *Store) filterContacts(arg store.ListContactsParams) []store.Contact {
	needle := strings.ToLower(strings.Trim(arg.Query.String, "%"))
	var out []store.Contact
	for _, c := range s.contacts {
		if !arg.IncludeInactive && !c.IsActive {
			continue
		}
		if arg.ContactType.Valid && c.ContactType != arg.ContactType.String {
			continue
		}
		if arg.Query.Valid && !strings.Contains(strings.ToLower(c.Name+" "+c.Phone), needle) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Time.After(out[j].CreatedAt.Time) })
	return out
}

func (s *Store) ListContacts(_ context.Context, arg store.ListContactsParams) ([]store.Contact, error) {
	if err := s.fail("ListContacts"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(s.filterContacts(arg), arg.Limit, arg.Offset), nil
}

func (s *Store) CountContacts(_ context.Context, arg store.ListContactsParams) (int64, error) {
	if err := s.fail("CountContacts"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.filterContacts(arg))), nil
}

func page[T any](items []T, limit, offset int32) []T {
	if int(offset) >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *Store) GetConversationByID(_ context.Context, id pgtype.UUID) (store.Conversation, error) {
	if err := s.fail("GetConversationByID"); err != nil {
		return store.Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id.Bytes]
	if !ok {
		return store.Conversation{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *Store) GetOpenConversationByContact(_ context.Context, contactID pgtype.UUID) (store.Conversation, error) {
	if err := s.fail("GetOpenConversationByContact"); err != nil {
		return store.Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best  store.Conversation
		found bool
	)
	for _, c := range s.conversations {
		if c.ContactID.Bytes != contactID.Bytes || c.State == "closed" {
			continue
		}
		if !found || c.LastActivityAt.Time.After(best.LastActivityAt.Time) {
			best, found = c, true
		}
	}
	if !found {
		return store.Conversation{}, pgx.ErrNoRows
	}
	return best, nil
}

func (s *Store) ListConversationsByContact(_ context.Context, contactID pgtype.UUID) ([]store.Conversation, error) {
	if err := s.fail("ListConversationsByContact"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Conversation
	for _, c := range s.conversations {
		if c.ContactID.Bytes == contactID.Bytes {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.Time.After(out[j].LastActivityAt.Time) })
	return out, nil
}

func (s *Store) CreateConversation(_ context.Context, arg store.CreateConversationParams) (store.Conversation, error) {
	if err := s.fail("CreateConversation"); err != nil {
		return store.Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if arg.State != "closed" {
		for _, c := range s.conversations {
			if c.ContactID.Bytes == arg.ContactID.Bytes && c.State != "closed" {
				return store.Conversation{}, uniqueViolation("conversations_one_open_per_contact")
			}
		}
	}
	activity := arg.LastActivityAt
	if !activity.Valid {
		activity = now()
	}
	c := store.Conversation{
		ID:             newID(),
		ContactID:      arg.ContactID,
		TeamID:         arg.TeamID,
		UserID:         arg.UserID,
		State:          arg.State,
		Priority:       arg.Priority,
		Title:          arg.Title,
		Description:    arg.Description,
		StartedAt:      now(),
		LastActivityAt: activity,
		CreatedAt:      now(),
		UpdatedAt:      now(),
	}
	s.conversations[c.ID.Bytes] = c
	return c, nil
}

func (s *Store) TouchConversationActivity(_ context.Context, arg store.TouchConversationActivityParams) (store.Conversation, error) {
	if err := s.fail("TouchConversationActivity"); err != nil {
		return store.Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[arg.ID.Bytes]
	if !ok {
		return store.Conversation{}, pgx.ErrNoRows
	}
	if arg.LastActivityAt.Time.After(c.LastActivityAt.Time) {
		c.LastActivityAt = arg.LastActivityAt
	}
	c.UpdatedAt = now()
	s.conversations[c.ID.Bytes] = c
	return c, nil
}

func (s *Store) UpdateConversation(_ context.Context, arg store.UpdateConversationParams) (store.Conversation, error) {
	if err := s.fail("UpdateConversation"); err != nil {
		return store.Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[arg.ID.Bytes]
	if !ok {
		return store.Conversation{}, pgx.ErrNoRows
	}
	if arg.State.Valid && arg.State.String != "closed" && c.State == "closed" {
		for _, other := range s.conversations {
			if other.ID != c.ID && other.ContactID.Bytes == c.ContactID.Bytes && other.State != "closed" {
				return store.Conversation{}, uniqueViolation("conversations_one_open_per_contact")
			}
		}
	}
	if arg.State.Valid {
		c.State = arg.State.String
	}
	if arg.Priority.Valid {
		c.Priority = arg.Priority.String
	}
	if arg.Title.Valid {
		c.Title = arg.Title.String
	}
	c.Description = orText(arg.Description, c.Description)
	c.InternalNotes = orText(arg.InternalNotes, c.InternalNotes)
	if arg.SetTeam {
		c.TeamID = arg.TeamID
	}
	if arg.SetUser {
		c.UserID = arg.UserID
	}
	if arg.SetClosedAt {
		c.ClosedAt = arg.ClosedAt
	}
	c.UpdatedAt = now()
	s.conversations[c.ID.Bytes] = c
	return c, nil
}

func (s *Store) filterConversations(arg store.ListConversationsParams) []store.ListConversationsRow {
	var out []store.ListConversationsRow
	for _, c := range s.conversations {
		if arg.State.Valid && c.State != arg.State.String {
			continue
		}
		if arg.Priority.Valid && c.Priority != arg.Priority.String {
			continue
		}
		if arg.TeamID.Valid && c.TeamID != arg.TeamID {
			continue
		}
		if arg.UserID.Valid && c.UserID != arg.UserID {
			continue
		}
		if arg.VisibleTeamID.Valid || arg.VisibleUserID.Valid {
			teamOK := arg.VisibleTeamID.Valid && c.TeamID == arg.VisibleTeamID
			userOK := arg.VisibleUserID.Valid && c.UserID == arg.VisibleUserID
			if !teamOK && !userOK {
				continue
			}
		}
		contact := s.contacts[c.ContactID.Bytes]
		if arg.Query.Valid {
			needle := strings.ToLower(strings.Trim(arg.Query.String, "%"))
			if !strings.Contains(strings.ToLower(c.Title+" "+contact.Name+" "+contact.Phone), needle) {
				continue
			}
		}
		row := store.ListConversationsRow{Conversation: c, ContactName: contact.Name, ContactPhone: contact.Phone}
		for _, m := range s.messages {
			if m.ConversationID != c.ID {
				continue
			}
			row.MessageCount++
			if m.Direction == "inbound" && !m.IsRead {
				row.UnreadCount++
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.Time.After(out[j].LastActivityAt.Time) })
	return out
}

func (s *Store) ListConversations(_ context.Context, arg store.ListConversationsParams) ([]store.ListConversationsRow, error) {
	if err := s.fail("ListConversations"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(s.filterConversations(arg), arg.Limit, arg.Offset), nil
}

func (s *Store) CountConversations(_ context.Context, arg store.ListConversationsParams) (int64, error) {
	if err := s.fail("CountConversations"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.filterConversations(arg))), nil
}

func (s *Store) CloseStaleResolvedConversations(_ context.Context, before pgtype.Timestamptz) (int64, error) {
	if err := s.fail("CloseStaleResolvedConversations"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, c := range s.conversations {
		if c.State == "resolved" && c.LastActivityAt.Time.Before(before.Time) {
			c.State = "closed"
			c.ClosedAt = now()
			s.conversations[id] = c
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateMessage(_ context.Context, arg store.CreateMessageParams) (store.Message, error) {
	if err := s.fail("CreateMessage"); err != nil {
		return store.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if arg.ExternalMessageID.Valid {
		for _, m := range s.messages {
			if m.ExternalMessageID.Valid && m.ExternalMessageID.String == arg.ExternalMessageID.String {
				return store.Message{}, uniqueViolation("messages_external_id_unique")
			}
		}
	}
	sent := arg.SentAt
	if !sent.Valid {
		sent = now()
	}
	m := store.Message{
		ID:                 newID(),
		ConversationID:     arg.ConversationID,
		ExternalMessageID:  arg.ExternalMessageID,
		Direction:          arg.Direction,
		Kind:               arg.Kind,
		Content:            arg.Content,
		SenderUserID:       arg.SenderUserID,
		AttachmentFileID:   arg.AttachmentFileID,
		AttachmentFilename: arg.AttachmentFilename,
		AttachmentMimeType: arg.AttachmentMimeType,
		AttachmentSize:     arg.AttachmentSize,
		Metadata:           arg.Metadata,
		DeliveryStatus:     arg.DeliveryStatus,
		IsActive:           true,
		SentAt:             sent,
		CreatedAt:          now(),
	}
	s.messages[m.ID.Bytes] = m
	return m, nil
}

func (s *Store) GetMessageByID(_ context.Context, id pgtype.UUID) (store.Message, error) {
	if err := s.fail("GetMessageByID"); err != nil {
		return store.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id.Bytes]
	if !ok {
		return store.Message{}, pgx.ErrNoRows
	}
	return m, nil
}

func (s *Store) GetMessageByExternalID(_ context.Context, externalID string) (store.Message, error) {
	if err := s.fail("GetMessageByExternalID"); err != nil {
		return store.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ExternalMessageID.Valid && m.ExternalMessageID.String == externalID {
			return m, nil
		}
	}
	return store.Message{}, pgx.ErrNoRows
}

func (s *Store) ApplyMessageStatus(_ context.Context, arg store.ApplyMessageStatusParams) (store.Message, error) {
	if err := s.fail("ApplyMessageStatus"); err != nil {
		return store.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.messages {
		if !m.ExternalMessageID.Valid || m.ExternalMessageID.String != arg.ExternalMessageID {
			continue
		}
		if arg.Clear || arg.StatusRank >= statusRank(m.DeliveryStatus) {
			m.DeliveryStatus = pgtype.Text{String: arg.DeliveryStatus, Valid: true}
		}
		switch {
		case arg.Clear:
			m.DeliveredAt, m.ReadAt = pgtype.Timestamptz{}, pgtype.Timestamptz{}
		case arg.StampDelivered && !m.DeliveredAt.Valid:
			m.DeliveredAt = arg.At
		case arg.StampRead && !m.ReadAt.Valid:
			m.ReadAt = arg.At
		}
		s.messages[id] = m
		return m, nil
	}
	return store.Message{}, pgx.ErrNoRows
}

func statusRank(status pgtype.Text) int32 {
	switch status.String {
	case "read":
		return 3
	case "delivered":
		return 2
	case "sent":
		return 1
	}
	return 0
}

func (s *Store) conversationMessages(conversationID pgtype.UUID) []store.Message {
	var out []store.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID && m.IsActive {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SentAt.Time.Equal(out[j].SentAt.Time) {
			return out[i].CreatedAt.Time.Before(out[j].CreatedAt.Time)
		}
		return out[i].SentAt.Time.Before(out[j].SentAt.Time)
	})
	return out
}

func (s *Store) ListMessagesByConversation(_ context.Context, arg store.ListMessagesByConversationParams) ([]store.Message, error) {
	if err := s.fail("ListMessagesByConversation"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(s.conversationMessages(arg.ConversationID), arg.Limit, arg.Offset), nil
}

func (s *Store) CountMessagesByConversation(_ context.Context, conversationID pgtype.UUID) (int64, error) {
	if err := s.fail("CountMessagesByConversation"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.conversationMessages(conversationID))), nil
}

func (s *Store) MarkMessageRead(_ context.Context, arg store.MarkMessageReadParams) (store.Message, error) {
	if err := s.fail("MarkMessageRead"); err != nil {
		return store.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[arg.ID.Bytes]
	if !ok {
		return store.Message{}, pgx.ErrNoRows
	}
	m.IsRead = true
	if !m.ReadAt.Valid {
		m.ReadAt = arg.ReadAt
	}
	s.messages[m.ID.Bytes] = m
	return m, nil
}

func (s *Store) MarkConversationRead(_ context.Context, arg store.MarkConversationReadParams) (int64, error) {
	if err := s.fail("MarkConversationRead"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.messages {
		if m.ConversationID != arg.ConversationID || m.Direction != "inbound" || m.IsRead {
			continue
		}
		m.IsRead = true
		if !m.ReadAt.Valid {
			m.ReadAt = arg.ReadAt
		}
		s.messages[id] = m
		n++
	}
	return n, nil
}
