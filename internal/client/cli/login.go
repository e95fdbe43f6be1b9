package cli

import (
	"context"
	"fmt"
)

func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer wipe(password)

	if err := a.session.Login(ctx, email, string(password)); err != nil {
		return err
	}

	user := a.session.CurrentUser()
	fmt.Fprintf(a.out, "Signed in as %s\n", user.DisplayName())
	return nil
}
