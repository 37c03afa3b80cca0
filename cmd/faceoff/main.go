package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/faceoff/internal/calendar"
	"github.com/MarcoPoloResearchLab/faceoff/internal/config"
	"github.com/MarcoPoloResearchLab/faceoff/internal/database"
	"github.com/MarcoPoloResearchLab/faceoff/internal/discord"
	"github.com/MarcoPoloResearchLab/faceoff/internal/engine"
	"github.com/MarcoPoloResearchLab/faceoff/internal/ledger"
	"github.com/MarcoPoloResearchLab/faceoff/internal/logging"
	"github.com/MarcoPoloResearchLab/faceoff/internal/server"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "faceoff",
		Short: "Calendar-driven Discord RSVP reconciliation bot",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("channel-id", "", "Discord channel the polls render into")
	cmd.PersistentFlags().String("ics-urls", "", "Comma-separated ICS feed URLs, one per tracked team")
	cmd.PersistentFlags().String("team-names", "", "Comma-separated team names matching the feeds")
	cmd.PersistentFlags().String("timezone", defaults.GetString("calendar.timezone"), "Display timezone for event times")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "Status API listen address")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("lookahead-days", defaults.GetInt("scheduler.lookahead_days"), "Scheduler look-ahead horizon in days")

	bindFlag(cmd, "discord.channel_id", "channel-id")
	bindFlag(cmd, "calendar.ics_urls", "ics-urls")
	bindFlag(cmd, "calendar.team_names", "team-names")
	bindFlag(cmd, "calendar.timezone", "timezone")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "scheduler.lookahead_days", "lookahead-days")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runBot(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	location, err := appConfig.Location()
	if err != nil {
		return err
	}

	db, err := database.Open(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store, err := ledger.NewStore(ledger.StoreConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	sources := make([]engine.EventSource, 0, len(appConfig.ICSURLs))
	for i, url := range appConfig.ICSURLs {
		source, err := calendar.NewSource(calendar.SourceConfig{
			TeamName: appConfig.TeamName(i),
			URL:      url,
			Location: location,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		sources = append(sources, source)
	}

	session, err := discordgo.New("Bot " + appConfig.DiscordToken)
	if err != nil {
		return err
	}

	channelSurface, err := discord.NewChannelSurface(session, appConfig.ChannelID, logger)
	if err != nil {
		return err
	}

	reconciler, err := engine.New(engine.Config{
		Store:          store,
		Sources:        sources,
		Surface:        channelSurface,
		Clock:          time.Now,
		Logger:         logger,
		Location:       location,
		LookaheadDays:  appConfig.LookaheadDays,
		ReminderLead:   appConfig.ReminderLead,
		ChangeMinDelta: appConfig.ChangeMinDelta,
	})
	if err != nil {
		return err
	}

	bot, err := discord.NewBot(discord.BotConfig{
		Session:   session,
		ChannelID: appConfig.ChannelID,
		Engine:    reconciler,
		Location:  location,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	if err := bot.Open(); err != nil {
		return err
	}
	defer bot.Close() //nolint:errcheck

	passCtx, cancelPasses := context.WithCancel(ctx)
	defer cancelPasses()

	scheduler, err := startPasses(passCtx, reconciler, appConfig, logger)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Store:  store,
		Clock:  time.Now,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// startPasses runs each periodic pass once at startup, then keeps it firing
// on its configured interval. The passes intentionally carry no mutual
// exclusion; storage-layer uniqueness constraints absorb overlapping runs.
func startPasses(ctx context.Context, reconciler *engine.Engine, appConfig config.AppConfig, logger *zap.Logger) (*cron.Cron, error) {
	type pass struct {
		name     string
		interval time.Duration
		run      func(context.Context) error
	}

	passes := []pass{
		{
			name:     "reconcile",
			interval: appConfig.ReconcileInterval,
			run: func(ctx context.Context) error {
				_, err := reconciler.Reconcile(ctx, reconciler.LookaheadDays())
				return err
			},
		},
		{name: "remind", interval: appConfig.ReminderInterval, run: reconciler.RemindDue},
		{name: "changes", interval: appConfig.ChangeCheckInterval, run: reconciler.DetectChanges},
	}

	scheduler := cron.New()
	for _, p := range passes {
		run := func() {
			if err := p.run(ctx); err != nil {
				logger.Error("periodic pass failed", zap.String("pass", p.name), zap.Error(err))
			}
		}
		if _, err := scheduler.AddFunc("@every "+p.interval.String(), run); err != nil {
			return nil, err
		}
		go run()
	}
	scheduler.Start()

	return scheduler, nil
}
