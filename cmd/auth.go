package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbaselga/safe-gmail-mcp/internal/auth"
)

func newAuthCmd() *cobra.Command {
	var (
		keyFile         string
		credentialsFile string
		timeout         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to your Gmail mailbox",
		Long: `Run the interactive OAuth2 authorization flow and store the resulting
credentials for the serve command.

A local callback listener is started on one of the registered loopback
ports, and a consent URL is printed. Open the URL in your browser and
approve access. The flow requests only the gmail.modify scope: the
server can read and label mail but can never send or delete it.

The OAuth client key file is read from the path given by --key-file
(default: the application config directory). Download it from the
Google Cloud Console as an "installed application" OAuth client.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(keyFile, credentialsFile, timeout)
		},
	}

	defaultKeyFile, _ := auth.DefaultKeyFilePath()
	defaultCredentials, _ := auth.DefaultCredentialsPath()

	cmd.Flags().StringVar(&keyFile, "key-file", defaultKeyFile, "Path to the OAuth client key file (JSON)")
	cmd.Flags().StringVar(&credentialsFile, "credentials-file", defaultCredentials, "Path where the credential record is stored")
	cmd.Flags().DurationVar(&timeout, "timeout", auth.DefaultTimeout, "How long to wait for the browser authorization")

	return cmd
}

func runAuth(keyFile, credentialsFile string, timeout time.Duration) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	keys, err := auth.LoadKeyMaterial(keyFile)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrKeyFileMissing):
			return fmt.Errorf("no OAuth client key file at %s\n\nDownload an \"installed application\" OAuth client JSON from the Google\nCloud Console and place it there, or pass --key-file", keyFile)
		case errors.Is(err, auth.ErrKeyFileMalformed):
			return fmt.Errorf("OAuth client key file %s is not usable: %w", keyFile, err)
		default:
			return err
		}
	}

	port, err := auth.SelectPort(auth.CallbackPorts)
	if err != nil {
		return fmt.Errorf("cannot start the authorization listener: %w\n\nAnother authorization may already be running; finish or stop it first", err)
	}

	authenticator := &auth.Authenticator{
		Keys:    keys,
		Store:   auth.NewStore(credentialsFile),
		Timeout: timeout,
		OpenURL: func(url string) error {
			fmt.Println("To authorize Gmail access:")
			fmt.Println()
			fmt.Println("1. Visit this URL in your browser:")
			fmt.Printf("   %s\n", url)
			fmt.Println()
			fmt.Println("2. Approve access for the account you want to use")
			return nil
		},
		Logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}

	if err := authenticator.Run(ctx, port); err != nil {
		switch {
		case errors.Is(err, auth.ErrAuthDenied):
			return fmt.Errorf("authorization was denied in the browser; run 'safe-gmail-mcp auth' again to retry")
		case errors.Is(err, auth.ErrAuthTimeout):
			return fmt.Errorf("no authorization arrived within %s; run 'safe-gmail-mcp auth' again to retry", timeout)
		case errors.Is(err, auth.ErrPortInUse):
			return fmt.Errorf("callback port %d was taken before the listener could bind: %w", port, err)
		default:
			return fmt.Errorf("authorization failed: %w", err)
		}
	}

	fmt.Println()
	fmt.Printf("Authorization complete. Credentials stored in %s\n", credentialsFile)
	fmt.Println("Start the server with: safe-gmail-mcp serve")
	return nil
}
