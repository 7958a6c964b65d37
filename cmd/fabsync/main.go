package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plexidata/fabsync/internal/config"
	"github.com/plexidata/fabsync/internal/fabric"
	"github.com/plexidata/fabsync/internal/sync"
	"github.com/plexidata/fabsync/internal/version"
)

var home, _ = os.UserHomeDir()

var rootCmd = &cobra.Command{
	Use:     "fabsync",
	Short:   "Mirror a local directory tree against a fabric data catalog",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &config.Config{
			ServerURL:    viper.GetString("server_url"),
			AuthToken:    viper.GetString("auth_token"),
			DataDir:      viper.GetString("data_dir"),
			Catalog:      viper.GetString("catalog"),
			Datasets:     viper.GetStringSlice("datasets"),
			Products:     viper.GetStringSlice("products"),
			Direction:    viper.GetString("direction"),
			Flatten:      viper.GetBool("flatten"),
			Format:       viper.GetString("format"),
			Parallelism:  viper.GetInt("parallel"),
			ShowProgress: viper.GetBool("progress"),
			PollInterval: viper.GetDuration("poll_interval"),
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// config is good; errors past this point are the daemon's problem
		cmd.SilenceUsage = true
		showHeader()

		lock, err := sync.AcquireLock(cfg.DataDir)
		if err != nil {
			return err
		}
		defer lock.Unlock()

		client, err := fabric.New(cfg.ServerURL, fabric.WithAuthToken(cfg.AuthToken))
		if err != nil {
			return err
		}
		defer client.Close()

		engine, err := sync.NewEngine(cfg, client)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go confirmInterrupts(ctx, cancel)

		defer slog.Info("Bye!")
		if err := engine.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("server", "s", "", "Fabric catalog API base URL")
	rootCmd.Flags().StringP("datadir", "d", config.DefaultDataDir, "Local sync directory")
	rootCmd.Flags().String("catalog", config.DefaultCatalog, "Catalog to sync")
	rootCmd.Flags().StringSlice("dataset", nil, "Dataset id to sync (repeatable)")
	rootCmd.Flags().StringSlice("product", nil, "Product id to expand into datasets (repeatable)")
	rootCmd.Flags().String("direction", "upload", "Sync direction: upload or download")
	rootCmd.Flags().Bool("flatten", false, "Collapse remote series folders into one directory")
	rootCmd.Flags().String("format", "", "Only sync distributions with this format suffix")
	rootCmd.Flags().IntP("parallel", "p", 0, "Parallel transfers (default: CPU count)")
	rootCmd.Flags().Bool("progress", false, "Log per-file transfer progress")
	rootCmd.Flags().Duration("poll-interval", config.DefaultPollInterval, "Poll interval between converged cycles")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "fabsync config file")
}

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})))

	// SIGTERM stops without the confirmation gate; SIGINT goes through it
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".fabsync"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))
	viper.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))
	viper.BindPFlag("catalog", cmd.Flags().Lookup("catalog"))
	viper.BindPFlag("datasets", cmd.Flags().Lookup("dataset"))
	viper.BindPFlag("products", cmd.Flags().Lookup("product"))
	viper.BindPFlag("direction", cmd.Flags().Lookup("direction"))
	viper.BindPFlag("flatten", cmd.Flags().Lookup("flatten"))
	viper.BindPFlag("format", cmd.Flags().Lookup("format"))
	viper.BindPFlag("parallel", cmd.Flags().Lookup("parallel"))
	viper.BindPFlag("progress", cmd.Flags().Lookup("progress"))
	viper.BindPFlag("poll_interval", cmd.Flags().Lookup("poll-interval"))

	viper.SetEnvPrefix("FABSYNC")
	viper.AutomaticEnv()

	return nil
}

// confirmInterrupts gates Ctrl-C behind an explicit confirmation: the daemon
// is meant to run for a long time, and a stray interrupt should not kill a
// half-finished wave. Any answer other than "exit" resumes the loop.
func confirmInterrupts(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	stdin := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			fmt.Fprint(os.Stderr, "\nType exit to exit: ")
			line, err := stdin.ReadString('\n')
			if err != nil || strings.TrimSpace(line) != "exit" {
				slog.Info("resuming sync")
				continue
			}
			cancel()
			return
		}
	}
}

func showHeader() {
	color.New(color.FgHiCyan, color.Bold).Printf("fabsync %s\n", version.Short())
}
