package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) getStatus() string {
	if user := a.session.CurrentUser(); user != nil {
		return fmt.Sprintf("(%s)", user.Email)
	}
	return ""
}

func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to the vagais CLI (type 'help' for commands)")
	if user := a.session.CurrentUser(); user != nil {
		fmt.Fprintf(a.out, "Signed in as %s\n", user.DisplayName())
	}

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Fprintf(a.out, "vagais %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.session.IsAuthenticated() {
				fmt.Fprintln(a.out, "Available commands: whoami, agents [search], chat <agent-id>, logout, exit")
			} else {
				fmt.Fprintln(a.out, "Available commands: register, login, exit")
			}
		case "register":
			if err := a.Register(ctx); err != nil {
				fmt.Fprintf(a.out, "Registration failed: %v\n", err)
			}
		case "login":
			if err := a.Login(ctx); err != nil {
				fmt.Fprintf(a.out, "Login failed: %v\n", err)
			}
		case "logout":
			if err := a.Logout(ctx); err != nil {
				fmt.Fprintf(a.out, "Logout failed: %v\n", err)
			}
		case "whoami":
			a.Whoami(ctx)
		case "agents":
			search := strings.Join(args, " ")
			if err := a.Agents(ctx, search); err != nil {
				fmt.Fprintf(a.out, "Could not list agents: %v\n", err)
			}
		case "chat":
			if len(args) == 0 {
				fmt.Fprintln(a.out, "Usage: chat <agent-id>")
				continue
			}
			if err := a.Chat(ctx, args[0]); err != nil {
				fmt.Fprintf(a.out, "Chat ended with error: %v\n", err)
			}
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		default:
			fmt.Fprintln(a.out, "Unknown command:", cmd)
		}
	}
}
