// Command subzero is the CLI entrypoint: it reads a Config via
// core.ReadInConfig and starts the HTTP service, mirroring the
// cobra-based root-command shape genai-toolbox's cmd/root.go uses
// (flags bound directly onto a Command struct, one RunE closing over
// it) since the teacher repo itself has no standalone cmd/ binary to
// imitate — its serv package is embedded into a host application
// rather than run directly.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hbcbh1999/subzero-go/core"
	"github.com/hbcbh1999/subzero-go/serv"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootCmd struct {
	*cobra.Command
	configFile string
}

func newRootCmd() *rootCmd {
	c := &rootCmd{}
	c.Command = &cobra.Command{
		Use:           "subzero",
		Short:         "A REST-to-SQL compiler with row-level authorization",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	c.Flags().StringVarP(&c.configFile, "config", "c", "config/subzero.yaml", "path to the config file")
	c.RunE = func(*cobra.Command, []string) error { return runServe(c.configFile) }

	c.AddCommand(newVersionCmd())
	return c
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "subzero dev")
			return nil
		},
	}
}

func runServe(configFile string) error {
	cfg, err := core.ReadInConfig(configFile)
	if err != nil {
		return fmt.Errorf("subzero: reading config %q: %w", configFile, err)
	}

	svc, err := serv.NewService(cfg, stdLogger{})
	if err != nil {
		return fmt.Errorf("subzero: starting service: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.RefreshCatalog(ctx); err != nil {
		return fmt.Errorf("subzero: initial catalog load: %w", err)
	}

	return svc.Listen(ctx)
}

// stdLogger is the default serv.Logger backing this CLI, kept on
// log.Logger rather than pulling in a structured-logging dependency
// here — hosts that embed package serv directly are expected to supply
// their own Logger (see serv.Logger's doc comment).
type stdLogger struct{}

func (stdLogger) Debug(msg string, kv ...interface{}) { logKV("DEBUG", msg, kv) }
func (stdLogger) Info(msg string, kv ...interface{})  { logKV("INFO", msg, kv) }
func (stdLogger) Warn(msg string, kv ...interface{})  { logKV("WARN", msg, kv) }
func (stdLogger) Error(msg string, kv ...interface{}) { logKV("ERROR", msg, kv) }

func logKV(level, msg string, kv []interface{}) {
	log.Printf("[%s] %s %v", level, msg, kv)
}
