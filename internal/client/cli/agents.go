package cli

import (
	"context"
	"fmt"

	"github.com/mlaitechio/vagais-go/internal/client/api"
)

func (a *App) Agents(ctx context.Context, search string) error {
	page, err := a.api.ListAgents(ctx, api.AgentQuery{Page: 1, Limit: 20, Search: search})
	if err != nil {
		return err
	}

	if len(page.Data) == 0 {
		fmt.Fprintln(a.out, "No agents found.")
		return nil
	}

	for _, agent := range page.Data {
		fmt.Fprintf(a.out, "%-36s  %-24s  %-12s  %.1f★\n", agent.ID, agent.Name, agent.Category, agent.AverageRating)
	}
	fmt.Fprintf(a.out, "Page %d of %d (%d agents total)\n", page.Page, page.TotalPages, page.Total)
	return nil
}
