package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quantmind-br/repocache-go/internal/cache"
	"github.com/quantmind-br/repocache-go/internal/config"
	"github.com/quantmind-br/repocache-go/internal/gitcmd"
	"github.com/quantmind-br/repocache-go/internal/manifest"
	"github.com/quantmind-br/repocache-go/internal/scanner"
	"github.com/quantmind-br/repocache-go/internal/utils"
	"github.com/quantmind-br/repocache-go/pkg/version"
)

var (
	cfgFile string
	verbose bool
	log     *utils.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "repocache",
	Short: "Local git repository cache for coding agents",
	Long: `RepoCache maintains a local, read-accessible cache of git repositories.
Requesting owner/repo[@branch] returns a valid working tree on the right
branch, cloning shallowly on first use and reusing or repairing the
cached checkout afterwards.`,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.repocache/config.yaml)")
	rootCmd.PersistentFlags().String("cache-root", "", "Cache root directory")
	rootCmd.PersistentFlags().String("scheme", "", "Preferred clone scheme (ssh or https)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	_ = viper.BindPFlag("cache.root", rootCmd.PersistentFlags().Lookup("cache-root"))
	_ = viper.BindPFlag("git.preferred_scheme", rootCmd.PersistentFlags().Lookup("scheme"))

	removeCmd.Flags().BoolP("yes", "y", false, "Confirm deletion of cached working trees")
	scanCmd.Flags().String("seed", "", "Seed file (YAML or JSON) of local repositories to register")

	rootCmd.AddCommand(ensureCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// newManager wires the components from the loaded configuration.
func newManager() (*cache.Manager, error) {
	logLevel := "info"
	if verbose {
		logLevel = "debug"
	}
	log = utils.NewLogger(utils.LoggerOptions{
		Level:   logLevel,
		Format:  "pretty",
		Verbose: verbose,
	})

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store := manifest.NewStore(manifest.StoreOptions{
		Root: cfg.Cache.Root,
		Lock: manifest.LockOptions{
			StaleAfter:    cfg.Lock.StaleAfter,
			RetryInterval: cfg.Lock.RetryInterval,
			MaxAttempts:   cfg.Lock.MaxAttempts,
		},
		Logger: log.WithComponent("manifest"),
	})

	engine := gitcmd.NewEngine(gitcmd.EngineOptions{
		DefaultBranch: cfg.Git.DefaultBranch,
		Logger:        log.WithComponent("git"),
	})

	scan := scanner.New(scanner.ScannerOptions{
		MaxDepth: cfg.Scan.MaxDepth,
		Logger:   log.WithComponent("scanner"),
	})

	return cache.NewManager(cache.ManagerOptions{
		Config:  cfg,
		Store:   store,
		Engine:  engine,
		Scanner: scan,
		Logger:  log,
	}), nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

var ensureCmd = &cobra.Command{
	Use:   "ensure owner/repo[@branch]",
	Short: "Ensure a repository is available locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		path, err := mgr.Ensure(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List managed repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}

		doc := mgr.List()
		keys := make([]string, 0, len(doc.Repos))
		for key := range doc.Repos {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			e := doc.Repos[key]
			fmt.Printf("%s\t%s\t%s\t%s\n", key, e.Type, e.CurrentBranch, e.Path)
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove owner/repo",
	Short: "Remove a repository from the cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirmed, _ := cmd.Flags().GetBool("yes")
		mgr, err := newManager()
		if err != nil {
			return err
		}
		return mgr.Remove(args[0], confirmed)
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover and register local repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		seedFile, _ := cmd.Flags().GetString("seed")
		mgr, err := newManager()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		registered := 0
		if seedFile != "" {
			repos, err := scanner.LoadSeedFile(seedFile)
			if err != nil {
				return err
			}
			for _, repo := range repos {
				if err := mgr.RegisterLocal(repo); err != nil {
					log.Warn().Err(err).Str("path", repo.Path).Msg("Skipping seed entry")
					continue
				}
				registered++
			}
		} else {
			registered, err = mgr.ScanAndRegister(ctx)
			if err != nil {
				return err
			}
		}
		fmt.Printf("Registered %d repositories\n", registered)
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Checking system dependencies...")
		allPassed := true

		fmt.Print("  git binary: ")
		if gitcmd.IsGitInstalled() {
			fmt.Println("OK")
		} else {
			fmt.Println("NOT FOUND")
			allPassed = false
		}

		fmt.Print("  Config file: ")
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("WARN (%v)\n", err)
			cfg = config.Default()
		} else {
			fmt.Println("OK")
		}

		fmt.Print("  Cache root: ")
		if err := utils.EnsureDir(cfg.Cache.Root); err != nil {
			fmt.Printf("FAILED (%v)\n", err)
			allPassed = false
		} else {
			fmt.Printf("OK (%s)\n", cfg.Cache.Root)
		}

		fmt.Println()
		if allPassed {
			fmt.Println("All critical checks passed!")
		} else {
			fmt.Println("Some checks failed. Please resolve the issues above.")
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full())
	},
}
