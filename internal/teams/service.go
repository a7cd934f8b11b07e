// Package teams manages the staff teams conversations are routed to.
package teams

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
)

var (
	ErrTeamNotFound = errors.New("team not found")
	ErrNameTaken    = errors.New("team name already in use")
)

// Team is a group of agents.
type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

type UpdateRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// Queries is the subset of store.Queries used by the service.
type Queries interface {
	GetTeamByID(ctx context.Context, id pgtype.UUID) (store.Team, error)
	ListTeams(ctx context.Context, includeInactive bool) ([]store.Team, error)
	CreateTeam(ctx context.Context, arg store.CreateTeamParams) (store.Team, error)
	UpdateTeam(ctx context.Context, arg store.UpdateTeamParams) (store.Team, error)
}

type Service struct {
	queries Queries
	logger  *slog.Logger
}

func NewService(log *slog.Logger, queries Queries) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries: queries,
		logger:  log.With(slog.String("service", "teams")),
	}
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]Team, error) {
	rows, err := s.queries.ListTeams(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	items := make([]Team, 0, len(rows))
	for _, row := range rows {
		items = append(items, toTeam(row))
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id string) (Team, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Team{}, err
	}
	row, err := s.queries.GetTeamByID(ctx, pgID)
	if err != nil {
		return Team{}, mapErr(err)
	}
	return toTeam(row), nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Team, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Team{}, errors.New("name is required")
	}
	row, err := s.queries.CreateTeam(ctx, store.CreateTeamParams{
		Name:        name,
		Description: db.Text(req.Description),
		Color:       db.Text(req.Color),
	})
	if err != nil {
		return Team{}, mapErr(err)
	}
	return toTeam(row), nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Team, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Team{}, err
	}
	params := store.UpdateTeamParams{ID: pgID}
	if req.Name != nil {
		params.Name = db.Text(*req.Name)
	}
	if req.Description != nil {
		params.Description = pgtype.Text{String: strings.TrimSpace(*req.Description), Valid: true}
	}
	if req.Color != nil {
		params.Color = pgtype.Text{String: strings.TrimSpace(*req.Color), Valid: true}
	}
	if req.IsActive != nil {
		params.IsActive = pgtype.Bool{Bool: *req.IsActive, Valid: true}
	}
	row, err := s.queries.UpdateTeam(ctx, params)
	if err != nil {
		return Team{}, mapErr(err)
	}
	return toTeam(row), nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrTeamNotFound
	case db.IsUniqueViolation(err):
		return ErrNameTaken
	}
	return err
}

func toTeam(row store.Team) Team {
	return Team{
		ID:          db.UUIDString(row.ID),
		Name:        row.Name,
		Description: db.TextToString(row.Description),
		Color:       db.TextToString(row.Color),
		IsActive:    row.IsActive,
		CreatedAt:   db.TimeFromPg(row.CreatedAt),
		UpdatedAt:   db.TimeFromPg(row.UpdatedAt),
	}
}
