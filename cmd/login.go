package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dojo-hq/dojo-cli/internal/api"
	"github.com/dojo-hq/dojo-cli/internal/config"
	"github.com/dojo-hq/dojo-cli/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	flagEmail    string
	flagPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the Dojo platform",
	Long: `Log in with your Dojo account. Credentials are exchanged for an access
token stored in your user config directory and refreshed automatically.

Examples:
  dojo login
  dojo login --email you@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogin(cmd)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and discard saved credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(config.Options{})
		if err != nil {
			return err
		}
		client, err := NewAPIClient(cfg)
		if err != nil {
			return err
		}
		if err := client.Logout(cmd.Context()); err != nil {
			return err
		}
		ui.PrintSuccess("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(config.Options{})
		if err != nil {
			return err
		}
		client, err := NewAPIClient(cfg)
		if err != nil {
			return err
		}
		user, err := client.Me(cmd.Context())
		if err != nil {
			return loginHint(err)
		}
		fmt.Printf("%s <%s>\n", user.Username, user.Email)
		return nil
	},
}

func runLogin(cmd *cobra.Command) error {
	email := flagEmail
	password := flagPassword

	if email == "" {
		var err error
		email, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	if password == "" {
		var err error
		password, err = promptPassword("Password: ")
		if err != nil {
			return err
		}
	}

	cfg, err := LoadConfig(config.Options{})
	if err != nil {
		return err
	}
	client, err := NewAPIClient(cfg)
	if err != nil {
		return err
	}

	stopSpinner := ui.RunSpinner("Logging in...")
	defer stopSpinner()
	if _, err := client.Login(cmd.Context(), email, password); err != nil {
		return err
	}
	stopSpinner()

	user, err := client.Me(cmd.Context())
	if err != nil {
		return err
	}
	ui.PrintSuccessf("Logged in as %s", user.Username)
	return nil
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a Dojo account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := promptLine("Email: ")
		if err != nil {
			return err
		}
		username, err := promptLine("Username: ")
		if err != nil {
			return err
		}
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}

		cfg, err := LoadConfig(config.Options{})
		if err != nil {
			return err
		}
		client, err := NewAPIClient(cfg)
		if err != nil {
			return err
		}

		stopSpinner := ui.RunSpinner("Creating account...")
		defer stopSpinner()
		_, err = client.Register(cmd.Context(), api.RegisterData{
			Email:    email,
			Username: username,
			Password: password,
		})
		if err != nil {
			return err
		}
		stopSpinner()

		ui.PrintSuccessf("Account created, logged in as %s", username)
		return nil
	},
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(registerCmd)

	loginCmd.Flags().StringVarP(&flagEmail, "email", "e", "", "Account email")
	loginCmd.Flags().StringVarP(&flagPassword, "password", "p", "", "Account password (prompted if omitted)")
}
