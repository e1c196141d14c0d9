// Package cli implements the stocktaker command-line client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/erazemk/stocktaker/internal/client"
	"github.com/erazemk/stocktaker/internal/logging"
)

// DefaultServer is used when neither --server nor STOCKTAKER_SERVER is set.
const DefaultServer = "http://localhost:8080"

// errNotLoggedIn is returned by commands that need a saved token.
var errNotLoggedIn = errors.New("not logged in, run: stocktaker-cli login")

// app carries state shared by all commands of one invocation.
type app struct {
	server    string
	tokenFile string
	verbose   bool

	in     *bufio.Reader
	rawIn  io.Reader
	out    io.Writer
	errOut io.Writer
}

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// NewRootCommand builds the command tree. Input is read from in and output
// written to out.
func NewRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{
		in:     bufio.NewReader(in),
		rawIn:  in,
		out:    out,
		errOut: errOut,
	}

	server := os.Getenv("STOCKTAKER_SERVER")
	if server == "" {
		server = DefaultServer
	}

	root := &cobra.Command{
		Use:           "stocktaker-cli",
		Short:         "Stock management client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if a.tokenFile != "" {
				return nil
			}
			path, err := defaultTokenFile()
			if err != nil {
				return err
			}
			a.tokenFile = path
			return nil
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.server, "server", "s", server, "server URL")
	flags.StringVar(&a.tokenFile, "token-file", "", "where the session token is kept (default: user config dir)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log requests and state changes")

	root.AddCommand(
		a.loginCommand(),
		a.signupCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.passwdCommand(),
		a.productsCommand(),
		a.conversionsCommand(),
		a.stockTakeCommand(),
		a.deliveriesCommand(),
	)
	return root
}

// Execute runs the client with the process arguments.
func Execute(ctx context.Context) int {
	root := NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func (a *app) logger() *slog.Logger {
	if !a.verbose {
		return slog.New(slog.DiscardHandler)
	}
	return logging.New(a.errOut, a.errOut, slog.LevelInfo)
}

// anonymous returns a client without credentials.
func (a *app) anonymous() *client.Client {
	return client.New(a.server)
}

// session returns a client using the saved token.
func (a *app) session() (*client.Client, error) {
	token, err := loadToken(a.tokenFile)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errNotLoggedIn
	}
	return client.New(a.server, client.WithToken(token)), nil
}

// prompt prints label and reads one trimmed line.
func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// password reads a password without echo when stdin is a terminal.
func (a *app) password(label string) (string, error) {
	if f, ok := a.rawIn.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.out, label)
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(a.out)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	return a.prompt(label)
}

func (a *app) confirm(question string) (bool, error) {
	answer, err := a.prompt(question + " [y/N] ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

func defaultTokenFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("finding config directory: %w", err)
	}
	return filepath.Join(dir, "stocktaker", "token"), nil
}

// loadToken returns "" when no token was saved.
func loadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

func removeToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}
