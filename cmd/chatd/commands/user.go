package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xkonsti/chatd/internal/cli/output"
	"github.com/0xkonsti/chatd/internal/cli/prompt"
	"github.com/0xkonsti/chatd/pkg/config"
	"github.com/0xkonsti/chatd/pkg/user"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts (add, del, list)",
	Long: `Manage chat accounts in the user database.

These commands open the database directly and must not run while the
server is running: BadgerDB allows a single process at a time.`,
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a new user (prompts for password)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userDelCmd = &cobra.Command{
	Use:     "del <username>",
	Aliases: []string{"delete", "remove"},
	Short:   "Delete a user",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserDel,
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all users",
	Args:    cobra.NoArgs,
	RunE:    runUserList,
}

func init() {
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userDelCmd)
	userCmd.AddCommand(userListCmd)
}

// openStoreForCLI loads the config and opens the user store, requiring a
// persistent database path.
func openStoreForCLI() (user.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Path == "" {
		return nil, fmt.Errorf("no database path configured; set database.path in %s", getConfigSource(cfgFile))
	}
	return openUserStore(cfg)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username := args[0]

	store, err := openStoreForCLI()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	password, err := prompt.NewPassword(user.MinPasswordLength)
	if err != nil {
		if prompt.IsAborted(err) {
			return nil
		}
		return err
	}

	hash, err := user.HashPassword(password)
	if err != nil {
		return err
	}

	if err := store.Create(context.Background(), user.New(username, hash)); err != nil {
		return fmt.Errorf("failed to create user %q: %w", username, err)
	}

	fmt.Printf("User %q created\n", username)
	return nil
}

func runUserDel(cmd *cobra.Command, args []string) error {
	username := args[0]

	confirmed, err := prompt.Confirm(fmt.Sprintf("Delete user %q", username))
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Aborted")
		return nil
	}

	store, err := openStoreForCLI()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Delete(context.Background(), username); err != nil {
		return fmt.Errorf("failed to delete user %q: %w", username, err)
	}

	fmt.Printf("User %q deleted\n", username)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	store, err := openStoreForCLI()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	users, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users")
		return nil
	}

	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{u.Name, u.CreatedAt.Format(time.RFC3339)})
	}
	output.PrintTable(os.Stdout, []string{"Username", "Created"}, rows)
	return nil
}
