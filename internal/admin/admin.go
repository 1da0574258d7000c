// Package admin implements the operator commands behind cmd/cli: seeding
// users and projects, and issuing tokens that are normally delivered by
// other services.
package admin

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
)

var ErrUnknownCommand = errors.New("unknown command")

type command struct {
	usage string
	run   func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"create-user":        {"create-user -email E [-subscribed]", (*App).createUser},
	"create-project":     {"create-project -name N -admin E", (*App).createProject},
	"verification-token": {"verification-token -email E", (*App).verificationToken},
	"hash-password":      {"hash-password", (*App).hashPassword},
}

type App struct {
	db     *sql.DB
	rm     repomanager.RepositoryManager
	hasher *cryptox.PasswordHasher
	issuer *services.TokenIssuer
	in     *bufio.Reader
	out    io.Writer
}

func NewApp(db *sql.DB, rm repomanager.RepositoryManager, secret string, bcryptCost int, in io.Reader, out io.Writer) *App {
	return &App{
		db:     db,
		rm:     rm,
		hasher: cryptox.NewPasswordHasher(bcryptCost),
		issuer: services.NewTokenIssuer(db, rm, secret),
		in:     bufio.NewReader(in),
		out:    out,
	}
}

// Run dispatches args[0] to the matching command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.Usage()
		return ErrUnknownCommand
	}
	cmd, ok := commands[args[0]]
	if !ok {
		a.Usage()
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
	return cmd.run(a, ctx, args[1:])
}

func (a *App) Usage() {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Fprintln(a.out, "Commands:")
	for _, n := range names {
		fmt.Fprintln(a.out, "  "+commands[n].usage)
	}
}

func (a *App) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

// readNewPassword prompts twice and returns the password once both match.
func (a *App) readNewPassword() (string, error) {
	pw, err := GetPassword(a.out, "Enter password")
	if err != nil {
		return "", err
	}
	defer cryptox.WipeByteArray(pw)

	again, err := GetPassword(a.out, "Repeat password")
	if err != nil {
		return "", err
	}
	defer cryptox.WipeByteArray(again)

	if string(pw) != string(again) {
		return "", errors.New("passwords do not match")
	}
	return string(pw), nil
}

// hash turns hasher input errors into operator-readable ones.
func (a *App) hash(password string) (string, error) {
	h, err := a.hasher.Hash(password)
	switch {
	case errors.Is(err, cryptox.ErrEmptyPassword):
		return "", errors.New("password must not be empty")
	case errors.Is(err, cryptox.ErrPasswordTooLong):
		return "", fmt.Errorf("password must be at most %d bytes", cryptox.MaxPasswordBytes)
	}
	return h, err
}

func (a *App) createUser(ctx context.Context, args []string) error {
	fs := a.flagSet("create-user")
	email := fs.String("email", "", "user email")
	subscribed := fs.Bool("subscribed", false, "mark the user as having an active subscription")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*email) == "" {
		v, err := GetSimpleText(a.in, "Email", a.out)
		if err != nil {
			return err
		}
		*email = v
	}

	password, err := a.readNewPassword()
	if err != nil {
		return err
	}
	hash, err := a.hash(password)
	if err != nil {
		return err
	}

	u, err := a.rm.Users(a.db).Create(ctx, &models.User{Email: *email, PasswordHash: hash, HasActiveSubscription: *subscribed})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return fmt.Errorf("user %s already exists", *email)
		}
		return err
	}

	fmt.Fprintf(a.out, "created user %s (%s)\n", u.ID, u.Email)
	return nil
}

func (a *App) createProject(ctx context.Context, args []string) error {
	fs := a.flagSet("create-project")
	name := fs.String("name", "", "project name")
	adminEmail := fs.String("admin", "", "email of the project admin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *adminEmail == "" {
		return errors.New("-name and -admin are required")
	}

	var project *models.Project
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		admin, err := a.rm.Users(tx).GetByEmail(ctx, *adminEmail)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("user %s not found", *adminEmail)
			}
			return err
		}

		project, err = a.rm.Projects(tx).Create(ctx, &models.Project{Name: *name, AdminID: admin.ID})
		if err != nil {
			return err
		}

		_, err = a.rm.ProjectUsers(tx).Create(ctx, admin.ID, project.ID)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "created project %s (%s)\n", project.ID, project.Name)
	return nil
}

func (a *App) verificationToken(ctx context.Context, args []string) error {
	fs := a.flagSet("verification-token")
	email := fs.String("email", "", "user email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := a.rm.Users(a.db).GetByEmail(ctx, *email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("user %s not found", *email)
		}
		return err
	}

	token, err := a.issuer.IssueEmailVerificationToken(u)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, token)
	return nil
}

func (a *App) hashPassword(_ context.Context, _ []string) error {
	pw, err := GetPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer cryptox.WipeByteArray(pw)

	hash, err := a.hash(string(pw))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, hash)
	return nil
}
