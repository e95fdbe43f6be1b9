package cli

import (
	"context"
	"fmt"
	"time"
)

func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *App) Whoami(ctx context.Context) {
	user := a.session.CurrentUser()
	if user == nil {
		fmt.Fprintln(a.out, "Not signed in.")
		return
	}
	fmt.Fprintf(a.out, "%s <%s> role=%s\n", user.DisplayName(), user.Email, user.Role)
	if exp := a.session.ExpiresAt(); !exp.IsZero() {
		fmt.Fprintf(a.out, "Access token expires at %s\n", exp.Format(time.RFC3339))
	}
}
