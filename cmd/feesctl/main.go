package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"student-fee-service/internal/client"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// settings holds the global flags, overridable with FEESCTL_* variables.
type settings struct {
	v *viper.Viper
}

func (s settings) client() *client.Client {
	opts := []client.Option{}
	if token := s.v.GetString("token"); token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.New(s.v.GetString("server"), opts...)
}

func (s settings) timeout() time.Duration {
	return s.v.GetDuration("timeout")
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("FEESCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	s := settings{v: v}

	root := &cobra.Command{
		Use:           "feesctl",
		Short:         "Manage students and monthly fees of the school",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("server", "http://localhost:5000", "API base URL")
	root.PersistentFlags().String("token", "", "admin token (see feesctl login)")
	root.PersistentFlags().Duration("timeout", 30*time.Second, "request timeout")
	_ = v.BindPFlags(root.PersistentFlags())

	root.AddCommand(
		newLoginCmd(s),
		newStudentsCmd(s),
		newFeesCmd(s),
		newExportCmd(s),
		newSeedCmd(s),
	)
	return root
}

func withTimeout(cmd *cobra.Command, s settings) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), s.timeout())
}

func newLoginCmd(s settings) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as the admin and print a token for FEESCTL_TOKEN",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, s)
			defer cancel()

			token, err := s.client().Login(ctx, username, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "admin", "admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "admin password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
