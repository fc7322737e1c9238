package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot assembles the CLI: `deskpipe` with no arguments launches the
// pipeline, matching the historic zero-flag invocation.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	upFlags := &UpFlags{}
	downFlags := &DownFlags{}

	c := command{global: globalFlags}

	root := createRootCommand(globalFlags)
	up := createUpCommand(c, upFlags)
	root.AddCommand(
		up,
		createDownCommand(c, downFlags),
		createStatusCommand(c),
		createVersionCommand(),
	)
	// bare `deskpipe` behaves like `deskpipe up`
	root.RunE = up.RunE
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "deskpipe",
		Short: "Browser remote desktop session launcher",
		Long: `Deskpipe starts a headless desktop pipeline (virtual display, window
manager, VNC server, WebSocket bridge) and keeps it supervised until the
process is terminated.

Examples:
  deskpipe                      # launch the default pipeline
  deskpipe up --display=:2 --listen-port=6080
  deskpipe up --detach          # launch in the background and exit 0
  deskpipe status               # show persisted service state
  deskpipe down                 # terminate recorded instances`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "info", "console log level (debug|info|warn|error)")
	return root
}

func createUpCommand(c command, f *UpFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Reset prior instances and launch the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Up(*f)
		},
	}
	cmd.Flags().StringVar(&f.Display, "display", "", "X display target, e.g. :1")
	cmd.Flags().StringVar(&f.Geometry, "geometry", "", "screen geometry, e.g. 1280x800")
	cmd.Flags().IntVar(&f.VNCPort, "vnc-port", 0, "local RFB port")
	cmd.Flags().IntVar(&f.ListenPort, "listen-port", 0, "WebSocket bridge port")
	cmd.Flags().StringVar(&f.WebRoot, "web-root", "", "noVNC static assets directory")
	cmd.Flags().StringVar(&f.LogDir, "log-dir", "", "session log directory")
	cmd.Flags().BoolVar(&f.Detach, "detach", false, "launch in the background and exit")
	return cmd
}

func createDownCommand(c command, f *DownFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Terminate recorded instances of the pipeline services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Down(*f)
		},
	}
	cmd.Flags().DurationVar(&f.Grace, "grace", 0, "escalation window before SIGKILL")
	return cmd
}

func createStatusCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show persisted service state with a liveness check",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status()
		},
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the deskpipe version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("deskpipe", version)
		},
	}
}
