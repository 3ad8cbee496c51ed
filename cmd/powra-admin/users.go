package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/target/powra-portal/config"
	"github.com/target/powra-portal/internal/bootstrap"
	"github.com/target/powra-portal/internal/data"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/domain/model"
	"github.com/target/powra-portal/internal/service"
)

// cliActor is recorded as the actor for role changes made from this tool.
const cliActor = "cli"

type listUsersOptions struct {
	Role   string
	Query  string
	Limit  int
	Offset int
	JSON   bool
}

type setRoleOptions struct {
	UserID string
	Role   string
	Yes    bool
}

type seedUsersOptions struct {
	File        string
	AllowRemote bool
	Timeout     time.Duration
}

func parseListUsersFlags(args []string) (listUsersOptions, error) {
	fs := flag.NewFlagSet("list-users", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listUsersOptions
	fs.StringVar(&opts.Role, "role", "", "Only users with this role (admin, supervisor, user)")
	fs.StringVar(&opts.Query, "q", "", "Substring match on email or name")
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum number of users to print")
	fs.IntVar(&opts.Offset, "offset", 0, "Number of users to skip")
	fs.BoolVar(&opts.JSON, "json", false, "Print users as JSON")

	if err := fs.Parse(args); err != nil {
		return listUsersOptions{}, err
	}
	if opts.Role != "" {
		if _, ok := domainauth.ParseRole(opts.Role); !ok {
			return listUsersOptions{}, fmt.Errorf("--role: unknown role %q", opts.Role)
		}
	}
	if opts.Limit <= 0 {
		return listUsersOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.Offset < 0 {
		return listUsersOptions{}, errors.New("--offset must not be negative")
	}
	return opts, nil
}

func (o listUsersOptions) listOptions() model.UsersListOptions {
	out := model.UsersListOptions{Limit: o.Limit, Offset: o.Offset}
	if role, ok := domainauth.ParseRole(o.Role); ok {
		out.Role = &role
	}
	if q := strings.TrimSpace(o.Query); q != "" {
		out.Q = &q
	}
	return out
}

func parseSetRoleFlags(args []string) (setRoleOptions, error) {
	fs := flag.NewFlagSet("set-role", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts setRoleOptions
	fs.StringVar(&opts.UserID, "user-id", "", "ID of the user to change (required)")
	fs.StringVar(&opts.Role, "role", "", "New role: admin, supervisor or user (required)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return setRoleOptions{}, err
	}
	opts.UserID = strings.TrimSpace(opts.UserID)
	if opts.UserID == "" {
		return setRoleOptions{}, errors.New("--user-id is required")
	}
	if _, ok := domainauth.ParseRole(opts.Role); !ok {
		return setRoleOptions{}, fmt.Errorf("--role: unknown role %q", opts.Role)
	}
	return opts, nil
}

func parseSeedUsersFlags(args []string) (seedUsersOptions, error) {
	fs := flag.NewFlagSet("seed-users", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := seedUsersOptions{Timeout: defaultCommandTimeout}
	fs.StringVar(&opts.File, "file", "", "JSON array of users to upsert; defaults to the development users")
	fs.BoolVar(&opts.AllowRemote, "allow-remote", false, "Permit running against database hosts that do not look local")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration to wait for seeding to complete")

	if err := fs.Parse(args); err != nil {
		return seedUsersOptions{}, err
	}
	if opts.Timeout <= 0 {
		return seedUsersOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runListUsers(cmdCtx *commandContext, args []string) error {
	opts, err := parseListUsersFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		users, listErr := newUserService(cmdCtx, db, nil).List(ctx, opts.listOptions())
		if listErr != nil {
			return listErr
		}
		if opts.JSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(users)
		}
		return printUsers(os.Stdout, users)
	})
}

func runSetRole(cmdCtx *commandContext, args []string) error {
	opts, err := parseSetRoleFlags(args)
	if err != nil {
		return err
	}
	if confirmErr := confirm(fmt.Sprintf("About to set the role of %q to %q.", opts.UserID, opts.Role), opts.Yes); confirmErr != nil {
		return confirmErr
	}

	obs := bootstrap.BuildObservability(cmdCtx.Logger, cmdCtx.Config.Observability)
	defer func() {
		if cerr := obs.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close metrics sink failed", "error", cerr)
		}
	}()

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		u, setErr := newUserService(cmdCtx, db, &obs).SetRole(ctx, service.SetRoleInput{
			UserID: opts.UserID,
			Role:   opts.Role,
			Actor:  cliActor,
		})
		if setErr != nil {
			return setErr
		}
		return writef(os.Stdout, "%s (%s) is now %s\n", u.ID, u.Email, u.Role)
	})
}

func runSeedUsers(cmdCtx *commandContext, args []string) error {
	opts, err := parseSeedUsersFlags(args)
	if err != nil {
		return err
	}
	if guardErr := guardRemoteHost(cmdCtx, opts.AllowRemote, "upsert portal users on the configured database"); guardErr != nil {
		return guardErr
	}

	reqs := devUsers(cmdCtx.Config.Auth.DevAuth)
	if opts.File != "" {
		f, openErr := os.Open(opts.File)
		if openErr != nil {
			return fmt.Errorf("open seed file: %w", openErr)
		}
		defer func() { _ = f.Close() }()
		if reqs, err = decodeSeedUsers(f); err != nil {
			return err
		}
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return migrateErr
		}
		svc := newUserService(cmdCtx, db, nil)
		for _, req := range reqs {
			if _, _, upsertErr := svc.Upsert(ctx, cliActor, req); upsertErr != nil {
				return fmt.Errorf("seed user %q: %w", req.ID, upsertErr)
			}
		}
		cmdCtx.Logger.Info("user seeding completed", "count", len(reqs))
		return nil
	})
}

func newUserService(cmdCtx *commandContext, db *sql.DB, obs *bootstrap.ObservabilityContainer) *service.UserService {
	opts := service.UserServiceOptions{
		Repo:                data.NewUserRepo(db),
		StoredRolesShadowed: !cmdCtx.Config.Auth.StoredRolesEffective(),
		Logger:              cmdCtx.Logger,
	}
	if obs != nil {
		opts.Hooks = service.RoleChangeHooks{Audit: obs.Audit, Notifier: obs.Notifier}
	}
	return service.NewUserService(opts)
}

// devUsers returns one user per role, with the dev login identity as the admin.
func devUsers(dev config.DevAuthConfig) []model.UpsertUserRequest {
	return []model.UpsertUserRequest{
		{ID: dev.UserID, Email: dev.Email, FirstName: dev.FirstName, LastName: dev.LastName, Role: domainauth.RoleAdmin.String()},
		{ID: "dev-supervisor", Email: "supervisor@example.com", FirstName: "Sam", LastName: "Supervisor", Role: domainauth.RoleSupervisor.String()},
		{ID: "dev-worker", Email: "worker@example.com", FirstName: "Uma", LastName: "Worker", Role: domainauth.RoleUser.String()},
	}
}

func decodeSeedUsers(r io.Reader) ([]model.UpsertUserRequest, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var reqs []model.UpsertUserRequest
	if err := dec.Decode(&reqs); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if len(reqs) == 0 {
		return nil, errors.New("seed file contains no users")
	}
	for i := range reqs {
		reqs[i].Normalize()
		if err := reqs[i].Validate(); err != nil {
			return nil, fmt.Errorf("seed user %d: %w", i, err)
		}
	}
	return reqs, nil
}
