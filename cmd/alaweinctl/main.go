package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"alawein/internal/client/notify"
	"alawein/internal/client/store"
	"alawein/internal/pkg/logger"
	"alawein/internal/platform/auth"
	"alawein/internal/platform/config"
)

// app is built once per invocation by the root command's PersistentPreRunE.
type app struct {
	cfg    config.ClientConfig
	store  *store.HTTPClient
	toasts *notify.Store
}

var (
	configPath string
	tokenFlag  string
	cli        app
)

var rootCmd = &cobra.Command{
	Use:           "alaweinctl",
	Short:         "Manage API keys, organizations, billing and waitlists",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Logging)

		cc := cfg.Client
		if tokenFlag != "" {
			cc.Token = tokenFlag
		}
		cli = app{
			cfg: cc,
			store: store.NewHTTPClient(store.Options{
				BaseURL:    cc.BaseURL,
				Token:      cc.Token,
				HTTPClient: &http.Client{},
				Retry: store.RetryPolicy{
					MaxAttempts: cc.MaxAttempts,
					Backoff:     cc.Backoff,
					Timeout:     cc.Timeout,
				},
			}),
			toasts: notify.New(),
		}
		cli.toasts.Subscribe(printToast(cmd))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Access token (overrides client.token)")
	rootCmd.AddCommand(keysCmd(), orgsCmd(), billingCmd(), waitlistCmd(), emailCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// printToast echoes each new notification to stderr. Errors are already
// returned by the command, so only the non-error kinds are shown.
func printToast(cmd *cobra.Command) func(notify.State) {
	seen := 0
	return func(st notify.State) {
		if len(st.Notifications) <= seen {
			seen = len(st.Notifications)
			return
		}
		seen = len(st.Notifications)
		n := st.Notifications[0]
		if n.Type == notify.TypeError {
			return
		}
		msg := n.Title
		if n.Message != "" {
			msg += ": " + n.Message
		}
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
	}
}

// userID reads the subject of the configured token. The server verifies the
// signature; the CLI only needs to know whose memberships it is looking at.
func userID() (string, error) {
	token := strings.TrimSpace(cli.cfg.Token)
	if token == "" {
		return "", fmt.Errorf("no access token configured; pass --token or set CLIENT_TOKEN")
	}
	var claims auth.Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		log.Debug().Err(err).Msg("token parse failed")
		return "", fmt.Errorf("malformed access token")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("access token has no subject")
	}
	return claims.Subject, nil
}
