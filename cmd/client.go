/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jjudge-oj/palette/internal/client"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	clientServerURL   string
	clientSessionPath string
	clientEmail       string

	uploadName   string
	uploadWidth  int
	uploadHeight int
)

// readPassword is swapped out in tests.
var readPassword = term.ReadPassword

// clientCmd represents the client command
var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Use a running palette server from the command line",
}

var clientRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		email, password, err := promptCredentials(cmd)
		if err != nil {
			return err
		}
		if err := c.Register(cmd.Context(), email, password); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "registered and logged in as", email)
		return nil
	},
}

var clientLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and remember the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		email, password, err := promptCredentials(cmd)
		if err != nil {
			return err
		}
		if err := c.Login(cmd.Context(), email, password); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged in as", email)
		return nil
	},
}

var clientLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		return c.Logout()
	},
}

var clientMeCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the logged in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		user, err := c.Me(cmd.Context())
		if err != nil {
			return explainClientError(err)
		}
		return printJSON(cmd.OutOrStdout(), user)
	},
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your palette",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		items, err := c.ListPalette(cmd.Context())
		if err != nil {
			return explainClientError(err)
		}
		return printJSON(cmd.OutOrStdout(), items)
	},
}

var clientUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload an image to your palette",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		name := uploadName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}

		item, err := c.Upload(cmd.Context(), client.UploadRequest{
			Filename: filepath.Base(args[0]),
			Body:     f,
			Name:     name,
			Width:    uploadWidth,
			Height:   uploadHeight,
		})
		if err != nil {
			return explainClientError(err)
		}
		return printJSON(cmd.OutOrStdout(), item)
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)

	clientCmd.PersistentFlags().StringVar(&clientServerURL, "server", envOr("PALETTE_SERVER", "http://localhost:8080"), "palette server base URL")
	clientCmd.PersistentFlags().StringVar(&clientSessionPath, "session", "", "token file (default ~/.palette/token)")

	for _, c := range []*cobra.Command{clientRegisterCmd, clientLoginCmd} {
		c.Flags().StringVarP(&clientEmail, "email", "e", "", "account email (prompted when empty)")
	}

	clientUploadCmd.Flags().StringVarP(&uploadName, "name", "n", "", "display name (defaults to the file name)")
	clientUploadCmd.Flags().IntVar(&uploadWidth, "width", 0, "image width")
	clientUploadCmd.Flags().IntVar(&uploadHeight, "height", 0, "image height")

	clientCmd.AddCommand(clientRegisterCmd, clientLoginCmd, clientLogoutCmd, clientMeCmd, clientListCmd, clientUploadCmd)
}

func newAPIClient() (*client.Client, error) {
	path := clientSessionPath
	if path == "" {
		var err error
		path, err = client.DefaultSessionPath()
		if err != nil {
			return nil, err
		}
	}
	return client.New(clientServerURL, client.NewSession(path), nil), nil
}

// promptCredentials reads the email from the flag or stdin and the password
// from the terminal without echo. Piped input falls back to a plain line read.
func promptCredentials(cmd *cobra.Command) (string, string, error) {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.ErrOrStderr()

	email := strings.TrimSpace(clientEmail)
	if email == "" {
		fmt.Fprint(out, "Email: ")
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", "", err
		}
		email = strings.TrimSpace(line)
	}

	fmt.Fprint(out, "Password: ")
	var password string
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", "", err
		}
		password = string(pw)
	} else {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", "", err
		}
		password = strings.TrimRight(line, "\r\n")
	}

	return email, password, nil
}

func explainClientError(err error) error {
	switch {
	case errors.Is(err, client.ErrNotLoggedIn):
		return errors.New("not logged in, run `palette client login` first")
	case errors.Is(err, client.ErrUnauthorized):
		return errors.New("session expired, run `palette client login` again")
	default:
		return err
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
