// tools/cmd/paymentctl/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/insurance-portal/internal/config"
)

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:           "paymentctl",
		Short:         "Developer tooling for the portal payment gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("addr", hostPort(cfg.GRPCAddr), "payments-grpc address")

	rootCmd.AddCommand(tokenCmd(cfg))
	rootCmd.AddCommand(linkCmd(cfg))
	rootCmd.AddCommand(signCallbackCmd(cfg))
	rootCmd.AddCommand(replayCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// hostPort turns a listen address like ":9091" into a dialable one.
func hostPort(listen string) string {
	if len(listen) > 0 && listen[0] == ':' {
		return "localhost" + listen
	}
	return listen
}
