package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/traceworks/gitprov/internal/config"
	"github.com/traceworks/gitprov/internal/gperrors"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage platform API tokens in the OS keychain",
}

var authSetCmd = &cobra.Command{
	Use:   "set <gitlab|github>",
	Short: "Store an API token securely",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthSet,
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove <gitlab|github>",
	Short: "Delete a stored API token",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthRemove,
}

func init() {
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authRemoveCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	platform := strings.ToLower(args[0])
	if platform != "gitlab" && platform != "github" {
		return gperrors.Configf("unknown platform %q, expected gitlab or github", platform)
	}

	fmt.Printf("Enter %s token: ", platform)
	token, err := readSecurely()
	if err != nil {
		return err
	}

	km := config.NewKeyringManager()
	if km.IsAvailable() {
		if platform == "gitlab" {
			err = km.SaveGitLabToken(token)
		} else {
			err = km.SaveGitHubToken(token)
		}
		if err != nil {
			return err
		}
		fmt.Println("✓ Saved to keychain")
		return nil
	}

	// No keychain backend, fall back to the credentials file.
	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}
	if platform == "gitlab" {
		creds.GitLabToken = token
	} else {
		creds.GitHubToken = token
	}
	path, err := config.SaveCredentials(creds)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Saved to %s\n", path)
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	platform := strings.ToLower(args[0])
	km := config.NewKeyringManager()

	var err error
	switch platform {
	case "gitlab":
		err = km.DeleteGitLabToken()
	case "github":
		err = km.DeleteGitHubToken()
	default:
		return gperrors.Configf("unknown platform %q, expected gitlab or github", platform)
	}
	if err != nil {
		return err
	}

	fmt.Println("✓ Removed from keychain")
	return nil
}

// readSecurely reads a token from stdin without echoing
func readSecurely() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		bytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	// Fallback: read from stdin (piped input)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
