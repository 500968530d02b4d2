package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/compose-network/streams/log"
	"github.com/compose-network/streams/relay-app/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "stream-relay",
		Short: "Tagged packet relay",
		Long:  banner + "\n\nAccepts TCP connections, decodes tagged packets and relays them to a shared worker pool.",
		RunE:  runApp,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run:   runVersion,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE:  runConfig,
	}
)

const banner = `
███████╗████████╗██████╗ ███████╗ █████╗ ███╗   ███╗███████╗
██╔════╝╚══██╔══╝██╔══██╗██╔════╝██╔══██╗████╗ ████║██╔════╝
███████╗   ██║   ██████╔╝█████╗  ███████║██╔████╔██║███████╗
╚════██║   ██║   ██╔══██╗██╔══╝  ██╔══██║██║╚██╔╝██║╚════██║
███████║   ██║   ██║  ██║███████╗██║  ██║██║ ╚═╝ ██║███████║
╚══════╝   ╚═╝   ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝╚═╝     ╚═╝╚══════╝`

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	initCommands()
	return rootCmd.Execute()
}

func initCommands() {
	rootCmd.AddCommand(versionCmd, configCmd, newSendCmd())
	configCmd.Flags().String("format", "yaml", "output format (yaml, toml)")

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (defaults and environment only when empty)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "enable pretty logging")

	// Server flags
	rootCmd.PersistentFlags().String("listen-addr", "", "server listen address")
	rootCmd.PersistentFlags().Int("max-connections", 0, "maximum concurrent connections")
	rootCmd.PersistentFlags().Duration("read-timeout", 0, "connection idle read timeout")
	rootCmd.PersistentFlags().Duration("write-timeout", 0, "connection write timeout")

	// API and metrics flags
	rootCmd.PersistentFlags().String("api-addr", "", "HTTP API listen address")
	rootCmd.PersistentFlags().Bool("metrics", false, "enable metrics")

	// Stream flags
	rootCmd.PersistentFlags().Int("workers", 0, "number of relay workers")
	rootCmd.PersistentFlags().Bool("echo", false, "echo every packet back to its sender")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func runApp(cmd *cobra.Command, _ []string) error {
	fmt.Println(banner)
	fmt.Println()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, logFile := log.NewWithFile(os.Stdout, cfg.Log.Level, cfg.Log.Pretty, cfg.Log.File)
	defer logFile.Close()

	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("go_version", runtime.Version()).
		Msg("Build information")

	log.Info().
		Str("config_file", cfgFile).
		Str("listen_addr", cfg.Server.ListenAddr).
		Str("api_addr", cfg.API.ListenAddr).
		Bool("metrics_enabled", cfg.Metrics.Enabled).
		Int("workers", cfg.Stream.Workers).
		Bool("echo", cfg.Stream.Echo).
		Str("log_level", cfg.Log.Level).
		Str("log_file", cfg.Log.File.Path).
		Msg("Configuration loaded")

	application, err := NewApp(cfg, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return application.Run(cmd.Context())
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "yaml":
		return cfg.Dump(cmd.OutOrStdout())
	case "toml":
		return cfg.DumpTOML(cmd.OutOrStdout())
	default:
		return fmt.Errorf("unknown format %q (want yaml or toml)", format)
	}
}

func runVersion(*cobra.Command, []string) {
	fmt.Println(banner)
	fmt.Println()
	fmt.Printf("Stream Relay\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flag("log-level").Changed {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flag("log-pretty").Changed {
		cfg.Log.Pretty, _ = cmd.Flags().GetBool("log-pretty")
	}

	if cmd.Flag("listen-addr").Changed {
		cfg.Server.ListenAddr, _ = cmd.Flags().GetString("listen-addr")
	}
	if cmd.Flag("max-connections").Changed {
		cfg.Server.MaxConnections, _ = cmd.Flags().GetInt("max-connections")
	}
	if cmd.Flag("read-timeout").Changed {
		cfg.Server.ReadTimeout, _ = cmd.Flags().GetDuration("read-timeout")
	}
	if cmd.Flag("write-timeout").Changed {
		cfg.Server.WriteTimeout, _ = cmd.Flags().GetDuration("write-timeout")
	}

	if cmd.Flag("api-addr").Changed {
		cfg.API.ListenAddr, _ = cmd.Flags().GetString("api-addr")
	}
	if cmd.Flag("metrics").Changed {
		cfg.Metrics.Enabled, _ = cmd.Flags().GetBool("metrics")
	}

	if cmd.Flag("workers").Changed {
		cfg.Stream.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flag("echo").Changed {
		cfg.Stream.Echo, _ = cmd.Flags().GetBool("echo")
	}
}
