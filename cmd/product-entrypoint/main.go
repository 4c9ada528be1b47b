package main

import (
	"context"
	"errors"
	"os"

	"storegate/gate"
	"storegate/utils"
)

// Container entrypoint for the product service image: wait for mongo, collect
// static assets unless the command is on the skip list, then exec the command
// given as arguments. The document store needs no migration step.
func main() {
	utils.InitLogging("product-entrypoint")

	g := gate.New(gate.ProductProfile)
	if err := g.Run(context.Background(), os.Args[1:]); err != nil {
		var exit *gate.ExitCodeError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		utils.LogError("ENTRYPOINT", err)
		os.Exit(1)
	}
}
