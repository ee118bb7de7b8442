// Command accountctl manages portal accounts directly against the database.
//
//	accountctl create --email nurse@hospital.org --tenant "General Hospital" --role user
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"hris-portal/internal/account"
	"hris-portal/internal/app"
	"hris-portal/internal/auth"
	"hris-portal/internal/config"
	"hris-portal/internal/observability"
)

// readPassword is swapped out in tests.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

var errUsage = errors.New("usage: accountctl create --email EMAIL --tenant TENANT [--role ROLE]")

type createArgs struct {
	email  string
	tenant string
	role   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] != "create" {
		return errUsage
	}

	parsed, err := parseCreateArgs(args[1:])
	if err != nil {
		return err
	}

	password, err := promptPassword(out)
	if err != nil {
		return err
	}

	view, err := createAccount(ctx, parsed, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "created %s (%s) id=%s\n", view.Email, view.Role, view.ID)
	return nil
}

func parseCreateArgs(args []string) (createArgs, error) {
	var parsed createArgs
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&parsed.email, "email", "", "account email")
	fs.StringVar(&parsed.tenant, "tenant", "", "hospital or tenant name")
	fs.StringVar(&parsed.role, "role", string(auth.DefaultRole), "user, admin, guest or systemAdmin")

	if err := fs.Parse(args); err != nil {
		return createArgs{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	if parsed.email == "" || parsed.tenant == "" {
		return createArgs{}, errUsage
	}
	if _, err := auth.ParseRole(parsed.role); err != nil {
		return createArgs{}, err
	}
	return parsed, nil
}

// promptPassword reads the password twice without echo.
func promptPassword(out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	first, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(out, "Confirm password: ")
	second, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if !bytes.Equal(first, second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func createAccount(ctx context.Context, args createArgs, password string) (account.View, error) {
	cfg, err := config.Load(config.Options{LoadDotEnv: true})
	if err != nil {
		return account.View{}, err
	}
	logger := observability.NewLogger(cfg.Environment)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	database, repo, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return account.View{}, err
	}
	defer database.Close()

	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return account.View{}, err
	}

	// The CLI acts with full authority; the operator already has database access.
	operator := auth.Identity{Role: auth.RoleSystemAdmin}
	return account.NewService(repo, hasher, logger).Create(ctx, operator, account.CreateInput{
		Email:    args.email,
		Password: password,
		Tenant:   args.tenant,
		Role:     args.role,
	})
}
