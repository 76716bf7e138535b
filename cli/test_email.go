package cli

import (
	"errors"
	"fmt"

	"github.com/adythan1/Tax-Returns/service"
	"github.com/spf13/cobra"
)

// TestEmailOptions holds flags for the test-email command.
type TestEmailOptions struct {
	*RootOptions

	// Sender replaces service.SendMail (for testing).
	Sender service.SendFunc
}

// NewTestEmailCommand creates the test-email command.
func NewTestEmailCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestEmailOptions{RootOptions: rootOpts}

	return newTestEmailCommand(opts)
}

func newTestEmailCommand(opts *TestEmailOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test-email",
		Short: "Send a test message to the admin address",
		Long: `Send a short test message through the configured SMTP relay to the admin
address, to check EMAIL_* and ADMIN_EMAIL settings.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.RootOptions)
			if err != nil {
				return err
			}
			if !cfg.Email.Enabled() {
				return errors.New("email is not configured: set EMAIL_HOST and ADMIN_EMAIL")
			}

			n := service.NewSMTPNotifier(&cfg.Email)
			if opts.Sender != nil {
				n.WithSender(opts.Sender)
			}
			if err := n.SendTest(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test email sent to %s via %s:%d\n", cfg.Email.AdminAddress, cfg.Email.Host, cfg.Email.Port)
			return nil
		},
	}
}
