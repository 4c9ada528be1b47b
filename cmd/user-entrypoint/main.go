package main

import (
	"context"
	"errors"
	"os"

	"storegate/gate"
	"storegate/utils"
)

// Container entrypoint for the user service image: wait for postgres, collect
// static assets and migrate unless the command is on the skip list, then exec
// the command given as arguments.
func main() {
	utils.InitLogging("user-entrypoint")

	g := gate.New(gate.UserProfile)
	if err := g.Run(context.Background(), os.Args[1:]); err != nil {
		var exit *gate.ExitCodeError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		utils.LogError("ENTRYPOINT", err)
		os.Exit(1)
	}
}
