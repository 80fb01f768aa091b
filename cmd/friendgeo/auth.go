package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"friendgeo/pkg/credentials"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage provider API keys",
	Long: `Store the graph API and geocoder keys outside the config file.

Keys are looked up in:
  - the system keychain (when available)
  - an encrypted file with PBKDF2 key derivation
  - FRIENDGEO_GRAPH_API_KEY and FRIENDGEO_GEOCODER_KEY`,
}

var authSetCmd = &cobra.Command{
	Use:       "set <graph|geocoder>",
	Short:     "Store a provider key; it is read without echo",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(credentials.ProviderGraph), string(credentials.ProviderGeocoder)},
	RunE:      runAuthSet,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys, masked",
	RunE:  runAuthList,
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove <graph|geocoder>",
	Short: "Remove a stored key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthRemove,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd, authListCmd, authRemoveCmd)
}

func parseProvider(s string) (credentials.Provider, error) {
	p, err := credentials.ParseProvider(s)
	if err != nil {
		return "", errs.Validation("%v", err)
	}
	return p, nil
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	p, err := parseProvider(args[0])
	if err != nil {
		return err
	}
	m, err := credentials.NewManager()
	if err != nil {
		return err
	}

	if existing, _ := m.Retrieve(p); existing != nil {
		if !confirm(fmt.Sprintf("A %s key is already stored. Replace it?", p)) {
			return nil
		}
	}

	fmt.Printf("%s API key: ", p)
	key, err := readSecret()
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	if key == "" {
		return errs.Validation("empty key")
	}

	where, err := m.Store(&credentials.Credential{Provider: p, Key: key})
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Stored %s key in %s", p, where))
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	m, err := credentials.NewManager()
	if err != nil {
		return err
	}
	listed := m.List()
	if len(listed) == 0 {
		ui.PrintInfo("No stored keys", "use 'friendgeo auth set graph' and 'friendgeo auth set geocoder'")
		return nil
	}
	fmt.Println(ui.Credentials(listed))
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	p, err := parseProvider(args[0])
	if err != nil {
		return err
	}
	m, err := credentials.NewManager()
	if err != nil {
		return err
	}
	if err := m.Delete(p); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Removed %s key", p))
	if v := credentials.EnvVar(p); os.Getenv(v) != "" {
		ui.PrintWarning(v + " is still set in the environment")
	}
	return nil
}

// readSecret reads a line from stdin without echo when stdin is a terminal
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(b)), nil
		}
	}
	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
