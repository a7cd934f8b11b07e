package storetest

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/memohai/wadesk/internal/db/store"
)

// ActivityLogs returns the recorded audit entries, oldest first.
func (s *Store) ActivityLogs() []store.ActivityLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.ActivityLog(nil), s.activity...)
}

func (s *Store) GetTeamByID(_ context.Context, id pgtype.UUID) (store.Team, error) {
	if err := s.fail("GetTeamByID"); err != nil {
		return store.Team{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id.Bytes]
	if !ok {
		return store.Team{}, pgx.ErrNoRows
	}
	return t, nil
}

func (s *Store) ListTeams(_ context.Context, includeInactive bool) ([]store.Team, error) {
	if err := s.fail("ListTeams"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Team, 0, len(s.teams))
	for _, t := range s.teams {
		if includeInactive || t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateTeam(_ context.Context, arg store.CreateTeamParams) (store.Team, error) {
	if err := s.fail("CreateTeam"); err != nil {
		return store.Team{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.teams {
		if t.Name == arg.Name {
			return store.Team{}, uniqueViolation("teams_name_unique")
		}
	}
	t := store.Team{
		ID:          newID(),
		Name:        arg.Name,
		Description: arg.Description,
		Color:       arg.Color,
		IsActive:    true,
		CreatedAt:   now(),
		UpdatedAt:   now(),
	}
	s.teams[t.ID.Bytes] = t
	return t, nil
}

func (s *Store) UpdateTeam(_ context.Context, arg store.UpdateTeamParams) (store.Team, error) {
	if err := s.fail("UpdateTeam"); err != nil {
		return store.Team{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[arg.ID.Bytes]
	if !ok {
		return store.Team{}, pgx.ErrNoRows
	}
	if arg.Name.Valid {
		for id, other := range s.teams {
			if id != arg.ID.Bytes && other.Name == arg.Name.String {
				return store.Team{}, uniqueViolation("teams_name_unique")
			}
		}
		t.Name = arg.Name.String
	}
	t.Description = orText(arg.Description, t.Description)
	t.Color = orText(arg.Color, t.Color)
	if arg.IsActive.Valid {
		t.IsActive = arg.IsActive.Bool
	}
	t.UpdatedAt = now()
	s.teams[t.ID.Bytes] = t
	return t, nil
}

func (s *Store) ListTags(context.Context) ([]store.Tag, error) {
	if err := s.fail("ListTags"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetTagByID(_ context.Context, id pgtype.UUID) (store.Tag, error) {
	if err := s.fail("GetTagByID"); err != nil {
		return store.Tag{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[id.Bytes]
	if !ok {
		return store.Tag{}, pgx.ErrNoRows
	}
	return t, nil
}

func (s *Store) CreateTag(_ context.Context, arg store.CreateTagParams) (store.Tag, error) {
	if err := s.fail("CreateTag"); err != nil {
		return store.Tag{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tags {
		if t.Name == arg.Name {
			return store.Tag{}, uniqueViolation("tags_name_unique")
		}
	}
	t := store.Tag{ID: newID(), Name: arg.Name, Color: arg.Color, CreatedAt: now()}
	s.tags[t.ID.Bytes] = t
	return t, nil
}

func (s *Store) UpdateTag(_ context.Context, arg store.UpdateTagParams) (store.Tag, error) {
	if err := s.fail("UpdateTag"); err != nil {
		return store.Tag{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[arg.ID.Bytes]
	if !ok {
		return store.Tag{}, pgx.ErrNoRows
	}
	if arg.Name.Valid {
		for id, other := range s.tags {
			if id != arg.ID.Bytes && other.Name == arg.Name.String {
				return store.Tag{}, uniqueViolation("tags_name_unique")
			}
		}
		t.Name = arg.Name.String
	}
	t.Color = orText(arg.Color, t.Color)
	s.tags[t.ID.Bytes] = t
	return t, nil
}

func (s *Store) DeleteTag(_ context.Context, id pgtype.UUID) (int64, error) {
	if err := s.fail("DeleteTag"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tags[id.Bytes]; !ok {
		return 0, nil
	}
	delete(s.tags, id.Bytes)
	for key := range s.taggings {
		if key[1] == id.Bytes {
			delete(s.taggings, key)
		}
	}
	return 1, nil
}

func (s *Store) AddConversationTag(_ context.Context, arg store.AddConversationTagParams) error {
	if err := s.fail("AddConversationTag"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taggings[[2][16]byte{arg.ConversationID.Bytes, arg.TagID.Bytes}] = struct{}{}
	return nil
}

func (s *Store) RemoveConversationTag(_ context.Context, arg store.RemoveConversationTagParams) (int64, error) {
	if err := s.fail("RemoveConversationTag"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2][16]byte{arg.ConversationID.Bytes, arg.TagID.Bytes}
	if _, ok := s.taggings[key]; !ok {
		return 0, nil
	}
	delete(s.taggings, key)
	return 1, nil
}

func (s *Store) ListConversationTags(_ context.Context, conversationID pgtype.UUID) ([]store.Tag, error) {
	if err := s.fail("ListConversationTags"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Tag
	for key := range s.taggings {
		if key[0] != conversationID.Bytes {
			continue
		}
		if t, ok := s.tags[key[1]]; ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListSettings(context.Context) ([]store.Setting, error) {
	if err := s.fail("ListSettings"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Setting, 0, len(s.settings))
	for _, row := range s.settings {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) GetSetting(_ context.Context, key string) (store.Setting, error) {
	if err := s.fail("GetSetting"); err != nil {
		return store.Setting{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.settings[key]
	if !ok {
		return store.Setting{}, pgx.ErrNoRows
	}
	return row, nil
}

func (s *Store) UpsertSetting(_ context.Context, arg store.UpsertSettingParams) (store.Setting, error) {
	if err := s.fail("UpsertSetting"); err != nil {
		return store.Setting{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.settings[arg.Key]
	row.Key = arg.Key
	row.Value = arg.Value
	row.Description = orText(arg.Description, row.Description)
	row.UpdatedAt = now()
	s.settings[arg.Key] = row
	return row, nil
}

func (s *Store) CreateActivityLog(_ context.Context, arg store.CreateActivityLogParams) error {
	if err := s.fail("CreateActivityLog"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, store.ActivityLog{
		ID:         newID(),
		UserID:     arg.UserID,
		Action:     arg.Action,
		Resource:   arg.Resource,
		ResourceID: arg.ResourceID,
		IpAddress:  arg.IpAddress,
		UserAgent:  arg.UserAgent,
		CreatedAt:  now(),
	})
	return nil
}

func (s *Store) ListActivityLogs(_ context.Context, arg store.ListActivityLogsParams) ([]store.ActivityLog, error) {
	if err := s.fail("ListActivityLogs"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.ActivityLog
	for i := len(s.activity) - 1; i >= 0; i-- {
		a := s.activity[i]
		if arg.UserID.Valid && a.UserID != arg.UserID {
			continue
		}
		out = append(out, a)
	}
	return page(out, arg.Limit, arg.Offset), nil
}
