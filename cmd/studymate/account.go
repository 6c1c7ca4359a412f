package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dvcrn/studymate-cli/internal/api"
	"github.com/dvcrn/studymate-cli/internal/app"
	"github.com/dvcrn/studymate-cli/internal/auth"
	"github.com/dvcrn/studymate-cli/internal/logger"
)

func (c *cli) signUpCmd(ctx context.Context, args []string) error {
	fs, configPath := c.flags("signup")
	email := fs.String("email", "", "email address")
	username := fs.String("username", "", "username")
	first := fs.String("first-name", "", "first name")
	last := fs.String("last-name", "", "last name")
	return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
		if *email == "" {
			v, err := c.readLine("Email: ")
			if err != nil {
				return err
			}
			*email = v
		}
		password, err := c.readPassword("Password: ")
		if err != nil {
			return err
		}
		if score, hints := api.PasswordStrength(password); score < 3 && len(hints) > 0 {
			fmt.Fprintf(c.stderr, "Weak password, consider adding: %v\n", hints)
		}

		user, err := a.Client.SignUp(ctx, api.SignUpRequest{
			Email: *email, Password: password, Username: *username, FirstName: *first, LastName: *last,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Welcome, %s! You are signed in.\n", displayName(user.Username, user.Email))
		return nil
	})
}

func (c *cli) signInCmd(ctx context.Context, args []string) error {
	fs, configPath := c.flags("signin")
	email := fs.String("email", "", "email address")
	return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
		if *email == "" {
			v, err := c.readLine("Email: ")
			if err != nil {
				return err
			}
			*email = v
		}
		password, err := c.readPassword("Password: ")
		if err != nil {
			return err
		}
		user, err := a.Client.SignIn(ctx, *email, password)
		if err != nil {
			return err
		}
		if user != nil {
			fmt.Fprintf(c.stdout, "Signed in as %s\n", displayName(user.Username, user.Email))
		} else {
			fmt.Fprintln(c.stdout, "Signed in")
		}
		return nil
	})
}

func (c *cli) signOutCmd(ctx context.Context, args []string) error {
	fs, configPath := c.flags("signout")
	return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
		if err := a.Client.SignOut(); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, "Signed out")
		return nil
	})
}

func (c *cli) whoamiCmd(ctx context.Context, args []string) error {
	fs, configPath := c.flags("whoami")
	asJSON := fs.Bool("json", false, "output JSON")
	return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
		user, err := a.Client.Me(ctx)
		if err != nil {
			return err
		}
		if *asJSON {
			return c.printJSON(user)
		}
		fmt.Fprintf(c.stdout, "%s <%s>\n", displayName(user.Username, user.Email), user.Email)
		if user.FirstName != "" || user.LastName != "" {
			fmt.Fprintf(c.stdout, "Name: %s %s\n", user.FirstName, user.LastName)
		}
		fmt.Fprintf(c.stdout, "ID:   %s\n", user.ID)
		return nil
	})
}

// statusCmd reports the stored session without contacting the backend.
func (c *cli) statusCmd(ctx context.Context, args []string) error {
	fs, configPath := c.flags("status")
	return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
		sess := a.Session
		fmt.Fprintf(c.stdout, "Backend:  %s\n", a.Client.BaseURL())
		tok, err := sess.Token()
		if err != nil {
			fmt.Fprintln(c.stdout, "Session:  signed out")
			return nil
		}
		if user := sess.User(); user != nil {
			fmt.Fprintf(c.stdout, "Session:  signed in as %s\n", displayName(user.Username, user.Email))
		} else {
			fmt.Fprintln(c.stdout, "Session:  signed in")
		}
		fmt.Fprintf(c.stdout, "Token:    %s\n", logger.Redact(tok.AccessToken))

		switch {
		case tok.Expiry.IsZero():
			fmt.Fprintln(c.stdout, "Expires:  unknown (opaque token)")
		case !tok.Valid():
			fmt.Fprintf(c.stdout, "Expires:  expired %s ago, will refresh on next request\n", time.Since(tok.Expiry).Round(time.Second))
		case auth.TokenExpiring(tok, time.Now()):
			fmt.Fprintf(c.stdout, "Expires:  in %s, will refresh soon\n", time.Until(tok.Expiry).Round(time.Second))
		default:
			fmt.Fprintf(c.stdout, "Expires:  %s\n", tok.Expiry.Local().Format(time.RFC1123))
		}
		return nil
	})
}

func (c *cli) passwordCmd(ctx context.Context, args []string) error {
	return c.dispatch(ctx, "password", args, map[string]command{
		"forgot": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("password forgot")
			email := fs.String("email", "", "email address")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				msg, err := a.Client.ForgotPassword(ctx, *email)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, msg.Message)
				return nil
			})
		},
		"reset": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("password reset")
			token := fs.String("token", "", "reset token from the email link")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				password, err := c.readPassword("New password: ")
				if err != nil {
					return err
				}
				confirm, err := c.readPassword("Confirm password: ")
				if err != nil {
					return err
				}
				msg, err := a.Client.ResetPassword(ctx, *token, password, confirm)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, msg.Message)
				return nil
			})
		},
	})
}

func displayName(username, email string) string {
	if username != "" {
		return username
	}
	return email
}
