package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zereker/framesocket/client"
)

func loginCmd() *cobra.Command {
	var (
		addr     string
		username string
		password string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Send one login request and print the response",
		Example: `  loginserver login --username testuser --password testpass
  loginserver login --addr 10.0.0.5:9000 -u alice -p secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			cfg := client.DefaultConfig()
			cfg.Addr = addr

			c, err := client.Dial(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.Login(ctx, username, password)
			if err != nil {
				return err
			}

			out, err := json.Marshal(resp)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:8080", "Server address")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Login username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Login password")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Overall timeout")

	return cmd
}
