package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"xhsdl/pkg/auth"
	"xhsdl/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored session cookies",
	Long: `Manage the 小红书 session cookies the browser is started with.

Cookies are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (XHSDL_COOKIE, read only)

Never share your cookie or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a session cookie securely",
	Long: `Store the Cookie header of a logged-in browser session.

You will be prompted for:
  - An account name (if not provided)
  - The Cookie header, which must contain web_session
  - User Agent (optional, press Enter for default)`,
	Example: `  # Interactive login
  xhsdl auth login

  # Login with a name
  xhsdl auth login work`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove stored cookies",
	Args:  cobra.MaximumNArgs(1),
	Run:   runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Run:   runList,
}

// guideCmd represents the auth guide command
var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Show how to copy the session cookie",
	Run: func(cmd *cobra.Command, args []string) {
		auth.ShowCookieExtractionGuide()
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(guideCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var name string
	if len(args) > 0 {
		name = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	auth.ShowQuickExtractGuide()
	fmt.Println("   Run 'xhsdl auth guide' for step by step instructions.")
	fmt.Println()

	if name == "" {
		fmt.Print("📱 Account name (default): ")
		input, _ := reader.ReadString('\n')
		name = strings.TrimSpace(input)
		if name == "" {
			name = "default"
		}
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("\n⚠️  Account '%s' already exists. Replace its cookie? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("\n🔐 Paste the Cookie header (hidden as you type):")
	var cookie string
	for {
		fmt.Print("Cookie: ")
		cookie, err = readPassword()
		if err != nil {
			ui.PrintError("Failed to read cookie", err.Error())
			os.Exit(1)
		}
		cookie = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cookie), "Cookie:"))

		if err := auth.ValidateCookie(cookie); err != nil {
			fmt.Println("\n❌ That doesn't look like a logged-in session.")
			fmt.Printf("   It must contain %s=...\n", auth.SessionCookie)
			fmt.Print("\nTry again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				os.Exit(1)
			}
			continue
		}
		break
	}

	fmt.Print("\n🌐 User Agent (press Enter to use default): ")
	userAgent, _ := reader.ReadString('\n')
	userAgent = strings.TrimSpace(userAgent)

	account := &auth.Account{
		Username:     name,
		Cookie:       cookie,
		UserAgent:    userAgent,
		LastModified: time.Now(),
	}

	fmt.Println("\n📋 Summary:")
	fmt.Printf("   Account: %s\n", name)
	fmt.Printf("   Cookie: %s (hidden)\n", auth.SanitizeAccount(account).Cookie)
	if userAgent != "" {
		fmt.Printf("   User Agent: %s\n", userAgent)
	}

	fmt.Println("\n💾 Storing cookie securely...")
	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", name))
	fmt.Println("\n📖 Quick Start:")
	fmt.Println("   $ xhsdl note <note url> --comments")
	fmt.Println("   $ xhsdl batch <keyword>")
	if name != "default" {
		fmt.Printf("   $ xhsdl batch <keyword> --account %s\n", name)
	}
	fmt.Println("\n⚠️  Never share your cookie or config files!")
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if len(args) > 0 {
		if err := manager.Delete(args[0]); err != nil {
			ui.PrintError("Failed to remove account", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Account removed: " + args[0])
		return
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintError("No stored accounts found", "")
		return
	}

	fmt.Println("Select account to remove:")
	for i, account := range accounts {
		fmt.Printf("  %d. %s\n", i+1, account.Username)
	}
	fmt.Printf("  %d. Remove all accounts\n", len(accounts)+1)
	fmt.Printf("  0. Cancel\n\n")

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Choice: ")
	input, _ := reader.ReadString('\n')

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

	switch {
	case choice == 0:
		return
	case choice == len(accounts)+1:
		fmt.Print("Remove ALL accounts? This cannot be undone! (yes/N): ")
		confirm, _ := reader.ReadString('\n')
		if strings.TrimSpace(confirm) != "yes" {
			return
		}
		if err := manager.DeleteAll(); err != nil {
			ui.PrintError("Failed to remove all accounts", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("All accounts removed")
	case choice > 0 && choice <= len(accounts):
		name := accounts[choice-1].Username
		if err := manager.Delete(name); err != nil {
			ui.PrintError("Failed to remove account", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Account removed: " + name)
	default:
		ui.PrintError("Invalid choice", "")
		os.Exit(1)
	}
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		os.Exit(1)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'xhsdl auth login' to add an account")
		return
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Account: %s\n", i+1, sanitized.Username)
		fmt.Printf("   Cookie: %s\n", sanitized.Cookie)
		if sanitized.UserAgent != "" {
			fmt.Printf("   User Agent: %s\n", sanitized.UserAgent)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
