// Command loginserver runs the framed login server and a matching client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "loginserver",
		Short: "Length-prefixed login protocol server",
		Long: `loginserver speaks a minimal framed protocol over TCP.

Every frame is a type byte, a 4-byte big-endian payload length and the
payload. Type 0x04 carries a JSON login request, answered by a type 0x03
JSON login response.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		loginCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
