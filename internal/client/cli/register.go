package cli

import (
	"context"
	"fmt"

	"github.com/mlaitechio/vagais-go/internal/client/api"
)

func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	firstName, err := getSimpleText(a.reader, "Enter first name", a.out)
	if err != nil {
		return err
	}
	lastName, err := getSimpleText(a.reader, "Enter last name", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer wipe(password)

	user, err := a.session.Register(ctx, api.RegisterRequest{
		Email:     email,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		Password:  string(password),
	})
	if err != nil {
		return err
	}

	// Registration does not sign the user in; an explicit login follows.
	if user != nil {
		fmt.Fprintf(a.out, "Account created for %s. Use 'login' to sign in.\n", user.Email)
	} else {
		fmt.Fprintln(a.out, "Account created. Use 'login' to sign in.")
	}
	return nil
}
