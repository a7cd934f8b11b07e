package teams

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
)

type fakeTeams struct {
	rows []store.Team
}

func (f *fakeTeams) GetTeamByID(_ context.Context, id pgtype.UUID) (store.Team, error) {
	for _, row := range f.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return store.Team{}, pgx.ErrNoRows
}

func (f *fakeTeams) ListTeams(_ context.Context, includeInactive bool) ([]store.Team, error) {
	var out []store.Team
	for _, row := range f.rows {
		if row.IsActive || includeInactive {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeTeams) CreateTeam(_ context.Context, arg store.CreateTeamParams) (store.Team, error) {
	for _, row := range f.rows {
		if row.Name == arg.Name {
			return store.Team{}, &pgconn.PgError{Code: "23505"}
		}
	}
	row := store.Team{ID: db.NewUUID(), Name: arg.Name, Description: arg.Description, Color: arg.Color, IsActive: true}
	f.rows = append(f.rows, row)
	return row, nil
}

func (f *fakeTeams) UpdateTeam(_ context.Context, arg store.UpdateTeamParams) (store.Team, error) {
	for i, row := range f.rows {
		if row.ID != arg.ID {
			continue
		}
		if arg.Name.Valid {
			row.Name = arg.Name.String
		}
		if arg.Description.Valid {
			row.Description = arg.Description
		}
		if arg.Color.Valid {
			row.Color = arg.Color
		}
		if arg.IsActive.Valid {
			row.IsActive = arg.IsActive.Bool
		}
		f.rows[i] = row
		return row, nil
	}
	return store.Team{}, pgx.ErrNoRows
}

func TestTeamLifecycle(t *testing.T) {
	svc := NewService(nil, &fakeTeams{})
	ctx := context.Background()

	team, err := svc.Create(ctx, CreateRequest{Name: " Sales ", Color: "#ff0000"})
	require.NoError(t, err)
	assert.Equal(t, "Sales", team.Name)
	assert.True(t, team.IsActive)

	_, err = svc.Create(ctx, CreateRequest{Name: "Sales"})
	assert.ErrorIs(t, err, ErrNameTaken)
	_, err = svc.Create(ctx, CreateRequest{Name: "  "})
	assert.Error(t, err)

	inactive := false
	desc := "Inbound leads"
	updated, err := svc.Update(ctx, team.ID, UpdateRequest{Description: &desc, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Inbound leads", updated.Description)
	assert.False(t, updated.IsActive)

	active, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	got, err := svc.Get(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, team.ID, got.ID)

	_, err = svc.Get(ctx, db.UUIDString(db.NewUUID()))
	assert.ErrorIs(t, err, ErrTeamNotFound)
}
