package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/messis/internal/checkpoint"
	"github.com/ternarybob/messis/internal/common"
	"github.com/ternarybob/messis/internal/engine"
	"github.com/ternarybob/messis/internal/export"
	"github.com/ternarybob/messis/internal/ledger"
	"github.com/ternarybob/messis/internal/models"
	"github.com/ternarybob/messis/internal/portal"
	"github.com/ternarybob/messis/internal/storage/badger"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	phaseFlag    = flag.String("phase", "", "Run a single phase (e.g. experts-harvest, facilities-detail)")
	forceFlag    = flag.Bool("force", false, "Re-scrape detail records even when already completed")
	freshFlag    = flag.Bool("fresh", false, "Ignore existing checkpoints and start from scratch")
	exportFlag   = flag.Bool("export", false, "Export master lists and detail records to JSON after the run")
	assumeYes    = flag.Bool("yes", false, "Resume from existing checkpoints without prompting")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Messis version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("messis.toml"); err == nil {
			configFiles = append(configFiles, "messis.toml")
		} else if _, err := os.Stat("deployments/local/messis.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/messis.toml")
		}
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Initialize logger
	// 3. Print banner
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		common.GetLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.LoadVersionFromFile())

	logger.Info().
		Strs("config_files", configFiles).
		Str("base_url", config.Portal.BaseURL).
		Str("log_level", config.Logging.Level).
		Str("log_file", common.GetLogFilePath(logger)).
		Msg("Application configuration loaded")

	phases, err := selectPhases(*phaseFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid phase selection")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, logger, phases); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn().Msg("Run interrupted; checkpoints preserved for resume")
			return
		}
		logger.Error().Err(err).Msg("Run aborted")
		os.Exit(1)
	}
}

// selectPhases resolves the -phase flag into the list of phases to run.
// An empty flag runs the full six-phase pipeline in order.
func selectPhases(flagValue string) ([]models.Phase, error) {
	if flagValue == "" {
		return models.AllPhases(), nil
	}
	phase, err := models.ParsePhase(flagValue)
	if err != nil {
		return nil, err
	}
	return []models.Phase{phase}, nil
}

func run(ctx context.Context, config *common.Config, logger arbor.ILogger, phases []models.Phase) error {
	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer storageManager.Close()

	checkpoints, err := checkpoint.NewStore(config.Storage.CheckpointDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize checkpoint store: %w", err)
	}

	browser := portal.NewBrowser(&config.Portal, logger)
	if err := browser.Start(ctx); err != nil {
		return err
	}
	defer browser.Close()

	if err := browser.Login(ctx, os.Stdin, os.Stdout); err != nil {
		return err
	}

	fetcher := portal.NewFetcher(browser, &config.Portal, logger)

	policy := &engine.RetryPolicy{
		MaxAttempts:       config.Retry.MaxAttempts,
		InitialBackoff:    config.Retry.InitialBackoff,
		MaxBackoff:        config.Retry.MaxBackoff,
		BackoffMultiplier: config.Retry.BackoffMultiplier,
	}
	pacer := engine.NewPacer(engine.PacingConfig{
		RequestInterval: config.Pacing.RequestInterval,
		BatchSize:       config.Pacing.BatchSize,
		BatchPause:      config.Pacing.BatchPause,
	}, policy, logger)

	for _, phase := range phases {
		resume := false
		if !*freshFlag && checkpoints.Exists(phase.ID()) {
			resume = *assumeYes || promptResume(os.Stdin, os.Stdout, phase.ID())
		}

		phaseLedger, err := ledger.Open(config.Storage.LedgerDir, phase.ID(), logger)
		if err != nil {
			return fmt.Errorf("failed to open error ledger for %s: %w", phase.ID(), err)
		}

		eng := engine.New(engine.Deps{
			Fetcher:     fetcher,
			Storage:     storageManager,
			Checkpoints: checkpoints,
			Ledger:      phaseLedger,
			Session:     browser,
			Pacer:       pacer,
			Force:       *forceFlag,
			Logger:      logger,
		})

		result, err := eng.RunPhase(ctx, phase, resume)
		if err != nil {
			return fmt.Errorf("phase %s failed: %w", phase.ID(), err)
		}

		logger.Info().
			Str("phase", result.Phase.ID()).
			Int("processed", result.State.Counters.Processed).
			Int("errored", result.State.Counters.Errored).
			Bool("resumed", result.Resumed).
			Msg("Phase finished")
	}

	if *exportFlag {
		exporter := export.NewExporter(storageManager, config.Export.Dir, logger)
		if err := exporter.ExportAll(); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
	}

	return nil
}

// promptResume asks the operator whether to pick up from the existing
// checkpoint. Anything other than an explicit yes starts the phase fresh.
func promptResume(in io.Reader, out io.Writer, phaseID string) bool {
	fmt.Fprintf(out, "Checkpoint found for %s. Resume from it? [y/n]: ", phaseID)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
