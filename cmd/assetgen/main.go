// Command assetgen builds the static assets of a project.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/panyam/assetgen"
)

var rootCmd = &cobra.Command{
	Use:           "assetgen",
	Short:         "Builds html, images, styles and scripts into a deployable tree",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("root", "r", "", "project root (overrides the config)")
	flags.StringP("config", "c", "", "toml or yaml config file")
	flags.StringArray("set", nil, "override a config field, eg --set Scripts.Target=es2017")
	flags.BoolP("force", "f", false, "rebuild every source even if its output is newer")
	flags.BoolP("verbose", "v", false, "log debug output")

	for _, task := range assetgen.Tasks() {
		task := task
		cmd := &cobra.Command{
			Use:   task,
			Short: taskDescriptions[task],
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTask(cmd, task)
			},
		}
		if task == assetgen.TaskWatch {
			cmd.Flags().String("serve", "", "also serve the output directory on this address, eg :8080")
		}
		rootCmd.AddCommand(cmd)
	}
}

var taskDescriptions = map[string]string{
	assetgen.TaskClean: "Remove the output directory",
	assetgen.TaskBuild: "Clean, then run every pipeline",
	assetgen.TaskWatch: "Re-run pipelines when their sources change",
	"html":             "Preprocess and minify html",
	"images":           "Optimize images",
	"styles":           "Compile, post-process and minify styles",
	"scripts":          "Lint, transpile, minify and bundle scripts",
}

func newProject(cmd *cobra.Command) (*assetgen.Project, error) {
	flags := cmd.Flags()
	configFile, _ := flags.GetString("config")
	cfg, err := assetgen.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if root, _ := flags.GetString("root"); root != "" {
		cfg.Root = root
	}
	if overrides, _ := flags.GetStringArray("set"); len(overrides) > 0 {
		if err := cfg.ApplyOverrides(overrides); err != nil {
			return nil, err
		}
	}
	p := assetgen.NewProject(cfg)
	p.Force, _ = flags.GetBool("force")
	return p, nil
}

func runTask(cmd *cobra.Command, task string) error {
	ctx := cmd.Context()
	p, err := newProject(cmd)
	if err != nil {
		return err
	}
	if err := p.Init(); err != nil {
		return err
	}

	addr := ""
	if task == assetgen.TaskWatch {
		addr, _ = cmd.Flags().GetString("serve")
	}
	if addr == "" {
		return p.Run(ctx, task)
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return p.Watch(ctx) })
	group.Go(func() error { return p.Serve(ctx, addr) })
	return group.Wait()
}

func main() {
	level := zerolog.InfoLevel
	for _, arg := range os.Args[1:] {
		if arg == "-v" || arg == "--verbose" {
			level = zerolog.DebugLevel
		}
	}
	logger := zerolog.New(NewConsoleWriter(os.Stderr)).Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = assetgen.WithLogger(ctx, &logger)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("failed")
		stop()
		os.Exit(1)
	}
}
