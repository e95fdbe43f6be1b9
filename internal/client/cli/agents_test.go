package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mlaitechio/vagais-go/internal/client/api"
	"github.com/mlaitechio/vagais-go/internal/client/models"
)

func TestAgentsCommand(t *testing.T) {
	client := &fakeClient{
		page: &api.AgentPage{
			Data: []models.Agent{
				{ID: "ag1", Name: "Code Reviewer", Category: "engineering", AverageRating: 4.8},
			},
			Total:      1,
			Page:       1,
			Limit:      20,
			TotalPages: 1,
		},
	}
	app, out := newTestApp(&fakeSession{}, client)

	require.NoError(t, app.Agents(context.Background(), "review"))
	require.Contains(t, out.String(), "Code Reviewer")
	require.Contains(t, out.String(), "Page 1 of 1 (1 agents total)")
}

func TestAgentsCommandEmpty(t *testing.T) {
	client := &fakeClient{page: &api.AgentPage{Page: 1, TotalPages: 0}}
	app, out := newTestApp(&fakeSession{}, client)

	require.NoError(t, app.Agents(context.Background(), "nothing"))
	require.Contains(t, out.String(), "No agents found.")
}

func TestChatRequiresSignIn(t *testing.T) {
	app, out := newTestApp(&fakeSession{}, &fakeClient{})

	require.NoError(t, app.Chat(context.Background(), "ag1"))
	require.Contains(t, out.String(), "Sign in before starting a chat.")
}

func TestChatUnknownAgent(t *testing.T) {
	session := &fakeSession{user: &models.User{ID: "u1", Email: "a@b.c"}}
	client := &fakeClient{agentErr: api.ErrNotFound}
	app, _ := newTestApp(session, client)

	err := app.Chat(context.Background(), "nope")
	require.ErrorIs(t, err, api.ErrNotFound)
}
