package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
	"github.com/memohai/wadesk/internal/db/store/storetest"
)

func seedContact(t *testing.T, mem *storetest.Store, phone string) string {
	t.Helper()
	c, err := mem.CreateContact(context.Background(), store.CreateContactParams{Phone: phone, Name: phone, ContactType: "prospect"})
	require.NoError(t, err)
	return db.UUIDString(c.ID)
}

func TestStatePredicates(t *testing.T) {
	for _, s := range []State{StateNew, StateInProgress, StatePending, StateResolved} {
		assert.True(t, s.Valid())
		assert.True(t, s.IsOpen(), s)
	}
	assert.False(t, StateClosed.IsOpen())
	assert.False(t, State("archived").Valid())
	assert.True(t, PriorityUrgent.Valid())
	assert.False(t, Priority("critical").Valid())
}

func TestResolveOpenCreatesThenReuses(t *testing.T) {
	mem := storetest.New()
	svc := NewService(nil, mem)
	ctx := context.Background()
	contactID := seedContact(t, mem, "5215512345678")

	first, err := svc.ResolveOpen(ctx, contactID, DefaultTitle("5215512345678"))
	require.NoError(t, err)
	assert.Equal(t, StateNew, first.State)
	assert.Equal(t, PriorityMedium, first.Priority)
	assert.Equal(t, "Conversation with 5215512345678", first.Title)
	assert.Equal(t, contactID, first.ContactID)

	time.Sleep(2 * time.Millisecond)
	second, err := svc.ResolveOpen(ctx, contactID, "ignored")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.LastActivityAt.After(first.LastActivityAt))
	assert.Len(t, mem.Conversations(), 1)
}

func TestResolveOpenAfterClose(t *testing.T) {
	mem := storetest.New()
	svc := NewService(nil, mem)
	ctx := context.Background()
	contactID := seedContact(t, mem, "5215512345678")

	first, err := svc.ResolveOpen(ctx, contactID, "t")
	require.NoError(t, err)
	closed := StateClosed
	_, err = svc.Update(ctx, first.ID, UpdateRequest{State: &closed})
	require.NoError(t, err)

	next, err := svc.ResolveOpen(ctx, contactID, "t")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)
	assert.Equal(t, StateNew, next.State)
	assert.Len(t, mem.Conversations(), 2)
}

func TestResolveOpenConcurrent(t *testing.T) {
	mem := storetest.New()
	svc := NewService(nil, mem)
	contactID := seedContact(t, mem, "5215512345678")

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := svc.ResolveOpen(context.Background(), contactID, "t")
			assert.NoError(t, err)
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()
	require.Len(t, mem.Conversations(), 1)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestUpdateCloseStampsAndIsTerminal(t *testing.T) {
	mem := storetest.New()
	svc := NewService(nil, mem)
	ctx := context.Background()
	c, err := svc.ResolveOpen(ctx, seedContact(t, mem, "1"), "t")
	require.NoError(t, err)

	closed := StateClosed
	out, err := svc.Update(ctx, c.ID, UpdateRequest{State: &closed})
	require.NoError(t, err)
	require.NotNil(t, out.ClosedAt)

	reopen := StateInProgress
	_, err = svc.Update(ctx, c.ID, UpdateRequest{State: &reopen})
	assert.ErrorIs(t, err, ErrReopenClosed)

	bogus := State("archived")
	_, err = svc.Update(ctx, c.ID, UpdateRequest{State: &bogus})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateAssignment(t *testing.T) {
	mem := storetest.New()
	svc := NewService(nil, mem)
	ctx := context.Background()
	c, err := svc.ResolveOpen(ctx, seedContact(t, mem, "1"), "t")
	require.NoError(t, err)

	team := "6f0a5a3e-8d1e-4c55-9a6b-1c1d2e3f4a5b"
	user := "9b1c2d3e-4f5a-4b6c-8d7e-0f1a2b3c4d5e"
	out, err := svc.Update(ctx, c.ID, UpdateRequest{TeamID: &team, UserID: &user})
	require.NoError(t, err)
	assert.Equal(t, team, out.TeamID)
	assert.Equal(t, user, out.UserID)

	empty := ""
	out, err = svc.Update(ctx, c.ID, UpdateRequest{UserID: &empty})
	require.NoError(t, err)
	assert.Empty(t, out.UserID)
	assert.Equal(t, team, out.TeamID)
}

func TestCreateRejectsSecondOpen(t *testing.T) {
	mem := storetest.New()
	svc := NewService(nil, mem)
	contactID := seedContact(t, mem, "1")
	_, err := svc.Create(context.Background(), CreateRequest{ContactID: contactID, Title: "Order"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateRequest{ContactID: contactID})
	assert.ErrorIs(t, err, ErrOpenConversation)
}

func TestCanAccess(t *testing.T) {
	c := Conversation{TeamID: "team-a", UserID: "u1"}
	assert.True(t, CanAccess(Viewer{Admin: true}, c))
	assert.True(t, CanAccess(Viewer{UserID: "u1"}, c))
	assert.True(t, CanAccess(Viewer{UserID: "u2", TeamID: "team-a"}, c))
	assert.False(t, CanAccess(Viewer{UserID: "u2", TeamID: "team-b"}, c))
	assert.False(t, CanAccess(Viewer{UserID: "u2"}, Conversation{}))
}

func TestListVisibility(t *testing.T) {
	mem := storetest.New()
	svc := NewService(nil, mem)
	ctx := context.Background()
	team := "6f0a5a3e-8d1e-4c55-9a6b-1c1d2e3f4a5b"

	mine, err := svc.Create(ctx, CreateRequest{ContactID: seedContact(t, mem, "1"), TeamID: team})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateRequest{ContactID: seedContact(t, mem, "2")})
	require.NoError(t, err)

	all, err := svc.List(ctx, Viewer{Admin: true}, ListRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)

	agent, err := svc.List(ctx, Viewer{UserID: "9b1c2d3e-4f5a-4b6c-8d7e-0f1a2b3c4d5e", TeamID: team}, ListRequest{})
	require.NoError(t, err)
	require.Len(t, agent.Items, 1)
	assert.Equal(t, mine.ID, agent.Items[0].ID)
	assert.Equal(t, "1", agent.Items[0].ContactPhone)

	nobody, err := svc.List(ctx, Viewer{}, ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, nobody.Items)
}

func TestCloseStaleResolved(t *testing.T) {
	mem := storetest.New()
	svc := NewService(nil, mem)
	ctx := context.Background()
	c, err := svc.ResolveOpen(ctx, seedContact(t, mem, "1"), "t")
	require.NoError(t, err)
	resolved := StateResolved
	_, err = svc.Update(ctx, c.ID, UpdateRequest{State: &resolved})
	require.NoError(t, err)

	n, err := svc.CloseStaleResolved(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.CloseStaleResolved(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, got.State)
}
