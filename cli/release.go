package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"storegate/config"
	"storegate/release"
	"storegate/utils"
)

var (
	releaseRegistry string
	releaseTag      string
	releasePush     bool
	releaseLatest   bool
	releaseDryRun   bool
)

func init() {
	releaseCmd.Flags().StringVar(&releaseRegistry, "registry", "", "image registry prefix (default $DOCKER_REGISTRY)")
	releaseCmd.Flags().StringVar(&releaseTag, "tag", "", "image tag (default $IMAGE_TAG, else git short hash)")
	releaseCmd.Flags().BoolVar(&releasePush, "push", true, "push images after building")
	releaseCmd.Flags().BoolVar(&releaseLatest, "latest", false, "also move the latest tag on push")
	releaseCmd.Flags().BoolVar(&releaseDryRun, "dry-run", false, "print the image refs without building")
	rootCmd.AddCommand(releaseCmd)
}

var releaseCmd = &cobra.Command{
	Use:   "release [services...]",
	Short: "Build and push the service images",
	Long: "release builds a docker image per service from its build context and pushes\n" +
		"the result. Building stops at the first failure so a broken image is never\n" +
		"half-released. Service names given as arguments restrict the run.",
	RunE: runRelease,
}

func runRelease(cmd *cobra.Command, args []string) error {
	utils.InitLogging("storegate")
	cfg := config.LoadReleaseConfig()
	if cmd.Flags().Changed("registry") {
		cfg.Registry = releaseRegistry
	}
	if cmd.Flags().Changed("tag") {
		cfg.Tag = releaseTag
	}
	if cmd.Flags().Changed("push") {
		cfg.Push = releasePush
	}
	if cmd.Flags().Changed("latest") {
		cfg.PushLatest = releaseLatest
	}
	if len(args) > 0 {
		selected, err := selectServices(cfg.Services, args)
		if err != nil {
			return err
		}
		cfg.Services = selected
	}

	builder := release.NewBuilder(cfg)
	if releaseDryRun {
		tag := release.ResolveTag(cmd.Context(), cfg)
		for _, ref := range builder.Plan(tag) {
			fmt.Fprintln(cmd.OutOrStdout(), ref)
		}
		return nil
	}
	return builder.Run(cmd.Context())
}

// selectServices filters the configured services down to the named ones,
// keeping the configured order.
func selectServices(services []config.ServiceBuild, names []string) ([]config.ServiceBuild, error) {
	byName := make(map[string]config.ServiceBuild, len(services))
	for _, svc := range services {
		byName[svc.Name] = svc
	}
	for _, name := range names {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("unknown service %q (configured: %s)", name, serviceNames(services))
		}
	}

	selected := make([]config.ServiceBuild, 0, len(names))
	for _, svc := range services {
		for _, name := range names {
			if svc.Name == name {
				selected = append(selected, svc)
				break
			}
		}
	}
	return selected, nil
}

func serviceNames(services []config.ServiceBuild) string {
	out := ""
	for i, svc := range services {
		if i > 0 {
			out += ", "
		}
		out += svc.Name
	}
	return out
}
