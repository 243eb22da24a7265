// Package admin implements the operator command line: schema migrations and
// bootstrapping administrator accounts.
package admin

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psicopedagogiando/tienda/internal/server/config"
	"github.com/psicopedagogiando/tienda/internal/server/models"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/repomanager"
	"github.com/psicopedagogiando/tienda/internal/server/services"
)

// Backend is what the commands need from the store.
type Backend interface {
	Migrate(ctx context.Context) error
	CreateAdmin(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Promote(ctx context.Context, email string) error
	Close() error
}

// Opener connects to the store on demand, so --help never touches it.
type Opener func(ctx context.Context) (Backend, error)

type postgresBackend struct {
	db    *sql.DB
	rm    *repomanager.PostgresRepositoryManager
	users *services.UserService
}

func (b *postgresBackend) Migrate(ctx context.Context) error {
	return b.rm.RunMigrations(ctx, b.db)
}

func (b *postgresBackend) CreateAdmin(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	return b.users.CreateAdmin(ctx, in)
}

func (b *postgresBackend) Promote(ctx context.Context, email string) error {
	return b.users.Promote(ctx, email)
}

func (b *postgresBackend) Close() error { return b.db.Close() }

// PostgresOpener opens the backend with openDB, which is expected to return a
// verified pgx pool.
func PostgresOpener(cfg *config.Config, openDB func(ctx context.Context, dsn string) (*sql.DB, error)) Opener {
	return func(ctx context.Context) (Backend, error) {
		db, err := openDB(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		rm := repomanager.NewPostgresRepositoryManager()
		return &postgresBackend{db: db, rm: rm, users: services.NewUserService(db, rm, cfg)}, nil
	}
}

func NewRootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "tienda-admin",
		Short:         "Operator tasks for the storefront",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(open))
	root.AddCommand(createAdminCmd(open))
	root.AddCommand(promoteCmd(open))
	return root
}

func withBackend(cmd *cobra.Command, open Opener, fn func(ctx context.Context, b Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := open(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}

func migrateCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				if err := b.Migrate(ctx); err != nil {
					return fmt.Errorf("migrations failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func createAdminCmd(open Opener) *cobra.Command {
	var email, nombre string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: `Create an administrator account. Missing values are prompted for;
the password is always read from the terminal without echo.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			var err error
			if email == "" {
				if email, err = prompt(in, out, "Email"); err != nil {
					return err
				}
			}
			if nombre == "" {
				if nombre, err = prompt(in, out, "Nombre"); err != nil {
					return err
				}
			}
			password, err := promptPassword(out, "Password")
			if err != nil {
				return err
			}
			password2, err := promptPassword(out, "Repeat password")
			if err != nil {
				return err
			}

			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				u, err := b.CreateAdmin(ctx, services.RegisterInput{
					Nombre:    nombre,
					Email:     email,
					Password:  password,
					Password2: password2,
				})
				if err != nil {
					return fmt.Errorf("create admin: %w", err)
				}
				fmt.Fprintf(out, "admin %s created (%s)\n", u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "administrator email")
	cmd.Flags().StringVar(&nombre, "nombre", "", "administrator display name")
	return cmd
}

func promoteCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin role to an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b Backend) error {
				if err := b.Promote(ctx, args[0]); err != nil {
					return fmt.Errorf("promote %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", args[0])
				return nil
			})
		},
	}
}
