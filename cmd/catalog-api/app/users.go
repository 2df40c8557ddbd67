package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/matrixhub/catalog-server/internal/app/storage"
	"github.com/matrixhub/catalog-server/internal/auth"
	"github.com/matrixhub/catalog-server/internal/service"
)

const (
	flagEmail         = "email"
	flagName          = "name"
	flagRole          = "role"
	flagPasswordStdin = "password-stdin"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage stored credentials",
		Long:  `Add and list the credential records used by the login endpoint. Requires database storage.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	addConfigFlags(cmd, true)

	add := &cobra.Command{
		Use:   "add <agent-id>",
		Short: "Add a credential record",
		Long: `Add a credential record. The password is prompted for on a terminal,
or read from standard input with --password-stdin. An existing record is never replaced.`,
		Example: `  echo -n 's3cret!' | catalog-api users add scout --email [email protected] --config config.yaml --password-stdin`,
		Args:    cobra.ExactArgs(1),
		RunE:    runUsersAdd,
	}
	add.Flags().String(flagEmail, "", "Email address (required)")
	add.Flags().String(flagName, "", "Display name (defaults to the agent id)")
	add.Flags().String(flagRole, service.DefaultAgentRole, "Role shown in sessions and profiles")
	add.Flags().Bool(flagPasswordStdin, false, "Read the password from standard input")
	if err := add.MarkFlagRequired(flagEmail); err != nil {
		panic(err)
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List credential records",
		Args:  cobra.NoArgs,
		RunE:  runUsersList,
	}
	list.Flags().String(flagFormat, "", "Output format (json)")

	cmd.AddCommand(add, list)
	return cmd
}

// openCredentialStore connects to the configured database. The returned
// cleanup closes the connection pool.
func openCredentialStore(cmd *cobra.Command) (service.CredentialStore, int, func(), error) {
	cfg, _, err := loadDatabaseConfig(cmd)
	if err != nil {
		return nil, 0, nil, err
	}

	factory, err := storage.NewDatabaseFactory(cmd.Context(), cfg)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store, err := factory.CreateCredentialStore(cmd.Context())
	if err != nil {
		factory.Cleanup()
		return nil, 0, nil, fmt.Errorf("failed to create credential store: %w", err)
	}
	return store, cfg.Auth.GetBcryptCost(), factory.Cleanup, nil
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	email, _ := flags.GetString(flagEmail)
	name, _ := flags.GetString(flagName)
	role, _ := flags.GetString(flagRole)
	fromStdin, _ := flags.GetBool(flagPasswordStdin)

	password, err := readPassword(cmd, fromStdin)
	if err != nil {
		return err
	}

	req := service.RegisterRequest{AgentID: args[0], Email: email, Password: password}
	if err := service.ValidateRegisterRequest(req); err != nil {
		return err
	}

	store, cost, cleanup, err := openCredentialStore(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	hasher, err := auth.NewBcryptHasher(cost)
	if err != nil {
		return err
	}

	return addUser(cmd.Context(), store, hasher, req, name, role)
}

func addUser(
	ctx context.Context,
	store service.CredentialStore,
	hasher *auth.BcryptHasher,
	req service.RegisterRequest,
	name, role string,
) error {
	hash, err := hasher.Hash(req.Password)
	if err != nil {
		return err
	}
	if name == "" {
		name = req.AgentID
	}

	inserted, err := store.InsertIfAbsent(ctx, &service.Credential{
		ID:           req.AgentID,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		Email:        req.Email,
		AvatarURL:    service.AvatarURL(req.AgentID),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	if !inserted {
		return fmt.Errorf("%s: %w", req.AgentID, service.ErrAgentIDTaken)
	}

	slog.InfoContext(ctx, "Credential added", "agent_id", req.AgentID, "role", role)
	return nil
}

// readPassword prompts on a terminal, or reads the whole of stdin when fromStdin is set
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("standard input is not a terminal, use --%s", flagPasswordStdin)
	}
	if _, err := fmt.Fprint(cmd.ErrOrStderr(), "Password: "); err != nil {
		return "", err
	}
	data, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(data), nil
}

func runUsersList(cmd *cobra.Command, _ []string) error {
	store, _, cleanup, err := openCredentialStore(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	format, err := cmd.Flags().GetString(flagFormat)
	if err != nil {
		return fmt.Errorf("failed to get %s flag: %w", flagFormat, err)
	}
	return listUsers(cmd.Context(), store, cmd.OutOrStdout(), format)
}

type userRow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func listUsers(ctx context.Context, store service.CredentialStore, out io.Writer, format string) error {
	creds, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}

	rows := make([]userRow, len(creds))
	for i, c := range creds {
		rows[i] = userRow{ID: c.ID, Name: c.Name, Role: c.Role, Email: c.Email, CreatedAt: c.CreatedAt}
	}

	if format == formatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tROLE\tEMAIL\tCREATED")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Role, r.Email, r.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
