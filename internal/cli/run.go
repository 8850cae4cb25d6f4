package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/vouchbot/internal/bot"
	"github.com/rcliao/vouchbot/internal/logging"
	"github.com/rcliao/vouchbot/internal/model"
	"github.com/rcliao/vouchbot/internal/platform/discord"
	"github.com/rcliao/vouchbot/internal/vouch"
)

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and run the bot",
		Run:   runBot,
	}

	RootCmd.AddCommand(cmd)
}

func runBot(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	log, closeLog, err := logging.New(logging.Options{
		Level:    cfg.LogLevel,
		Console:  cmd.ErrOrStderr(),
		ErrorLog: cfg.ErrorLog,
		Journal:  cfg.LogJournal,
	})
	if err != nil {
		exitErr("init logging", err)
	}
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		log.Error(err.Error())
		closeLog()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := openStore(cfg)
	defer s.Close()

	counter, err := vouch.NewCounter(ctx, s, cfg.Cap, log)
	if err != nil {
		log.Error("Failed to load vouch data", "error", err)
		closeLog()
		os.Exit(1)
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		exitErr("create session", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	session.State.TrackMembers = true

	platform := discord.New(session, discord.NewPacer(cfg.PageInterval, cfg.MutationInterval), log)
	svc := &vouch.Service{
		Platform: platform,
		Counter:  counter,
		Ladder:   cfg.Ladder(),
		Prefix:   cfg.Prefix,
		Log:      log,
	}
	gw := &bot.Gateway{
		AppID: cfg.ApplicationID,
		Bot: &bot.Bot{
			Service:        svc,
			Scanner:        &vouch.Scanner{Service: svc, Limit: cfg.ScanLimit, PageSize: cfg.PageSize},
			VouchChannelID: model.VouchChannelID,
			ModRoleID:      model.ModRoleID,
			OwnerRoleID:    model.OwnerRoleID,
			ScanOnStartup:  cfg.ScanOnStartup,
			Log:            log,
		},
	}
	gw.Attach(ctx, session)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := session.Open(); err != nil {
			return fmt.Errorf("open gateway: %w", err)
		}
		log.Info("gateway connected", "store", cfg.StoreBackend, "data", cfg.DataPath, "cap", cfg.Cap)
		<-gctx.Done()
		log.Info("shutting down")
		return session.Close()
	})
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error("Bot stopped", "error", err)
		closeLog()
		os.Exit(1)
	}
}
