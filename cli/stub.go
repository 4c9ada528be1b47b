package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"storegate/stubshop"
	"storegate/utils"
)

var (
	stubAddr string
	stubSeed int
)

func init() {
	stubCmd.Flags().StringVar(&stubAddr, "addr", ":8000", "listen address")
	stubCmd.Flags().IntVar(&stubSeed, "seed", 25, "number of sample products to pre-fill")
	rootCmd.AddCommand(stubCmd)
}

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Serve an in-memory stand-in for both storefront services",
	Long: "stub serves the user and product API surface from memory on one port, so\n" +
		"the gate and the load generator can be exercised without the real services.\n" +
		"Nothing persists across restarts.",
	RunE: runStub,
}

func runStub(cmd *cobra.Command, args []string) error {
	utils.InitLogging("storegate")
	app, err := stubshop.New(stubshop.Config{SeedProducts: stubSeed})
	if err != nil {
		return fmt.Errorf("assemble stub: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(stubAddr)
	}()
	utils.LogInfo("Stub serving", "addr", stubAddr, "seed_products", stubSeed)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case err := <-errCh:
		return err
	case sig := <-signals:
		utils.LogInfo("Shutting down", "signal", sig.String())
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
