// Package release builds and pushes the storefront service images by driving
// the docker CLI, the repository's build-and-push step in tool form.
package release

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"storegate/config"
	"storegate/utils"
)

// Builder drives docker build and push for the configured services.
type Builder struct {
	cfg *config.ReleaseConfig
	// runner executes one docker invocation with inherited stdio so build
	// output streams to the operator. Tests substitute a recorder.
	runner func(ctx context.Context, args ...string) error
}

// NewBuilder creates a Builder for cfg.
func NewBuilder(cfg *config.ReleaseConfig) *Builder {
	b := &Builder{cfg: cfg}
	b.runner = b.docker
	return b
}

func (b *Builder) docker(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, b.cfg.DockerBin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", b.cfg.DockerBin, strings.Join(args, " "), err)
	}
	return nil
}

// ResolveTag returns the tag for this release: the configured IMAGE_TAG, else
// the short commit hash of the services checkout, else a UTC timestamp for
// builds outside any git repository.
func ResolveTag(ctx context.Context, cfg *config.ReleaseConfig) string {
	if cfg.Tag != "" {
		return cfg.Tag
	}
	out, err := exec.CommandContext(ctx, "git", "-C", cfg.ContextRoot, "rev-parse", "--short", "HEAD").Output()
	if tag := strings.TrimSpace(string(out)); err == nil && tag != "" {
		return tag
	}
	return time.Now().UTC().Format("20060102-150405")
}

// ImageRef returns the image reference for a service name under the registry.
func ImageRef(registry, name, tag string) string {
	if registry == "" {
		return name + ":" + tag
	}
	return registry + "/" + name + ":" + tag
}

// Plan resolves the image references this release will produce, in order.
func (b *Builder) Plan(tag string) []string {
	refs := make([]string, 0, len(b.cfg.Services))
	for _, svc := range b.cfg.Services {
		refs = append(refs, ImageRef(b.cfg.Registry, svc.Name, tag))
	}
	return refs
}

// Build builds one service image from its context directory.
func (b *Builder) Build(ctx context.Context, svc config.ServiceBuild, tag string) error {
	ref := ImageRef(b.cfg.Registry, svc.Name, tag)
	utils.LogInfo("Building image", "service", svc.Name, "ref", ref, "context", svc.Context)
	if err := b.runner(ctx, "build", "-t", ref, svc.Context); err != nil {
		return fmt.Errorf("build %s: %w", svc.Name, err)
	}
	return nil
}

// Push pushes one service image, plus a moving latest tag when enabled.
func (b *Builder) Push(ctx context.Context, svc config.ServiceBuild, tag string) error {
	ref := ImageRef(b.cfg.Registry, svc.Name, tag)
	utils.LogInfo("Pushing image", "service", svc.Name, "ref", ref)
	if err := b.runner(ctx, "push", ref); err != nil {
		return fmt.Errorf("push %s: %w", svc.Name, err)
	}
	if b.cfg.PushLatest {
		latest := ImageRef(b.cfg.Registry, svc.Name, "latest")
		if err := b.runner(ctx, "tag", ref, latest); err != nil {
			return fmt.Errorf("tag %s: %w", svc.Name, err)
		}
		if err := b.runner(ctx, "push", latest); err != nil {
			return fmt.Errorf("push %s latest: %w", svc.Name, err)
		}
	}
	return nil
}

// Run builds every service, then pushes them when pushing is enabled. It
// stops at the first failure so a broken image is never half-released.
func (b *Builder) Run(ctx context.Context) error {
	if b.cfg.Push && b.cfg.Registry == "" {
		return errors.New("DOCKER_REGISTRY is required to push; set RELEASE_PUSH=false for a local build")
	}
	tag := ResolveTag(ctx, b.cfg)
	utils.LogInfo("Release starting", "tag", tag, "services", len(b.cfg.Services), "push", b.cfg.Push)

	for _, svc := range b.cfg.Services {
		if err := b.Build(ctx, svc, tag); err != nil {
			return err
		}
	}
	if !b.cfg.Push {
		utils.LogInfo("Push disabled, images built locally", "tag", tag)
		return nil
	}
	for _, svc := range b.cfg.Services {
		if err := b.Push(ctx, svc, tag); err != nil {
			return err
		}
	}
	utils.LogInfo("✅ Release complete", "tag", tag)
	return nil
}
