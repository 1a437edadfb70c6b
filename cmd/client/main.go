package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	zlog "github.com/rs/zerolog/log"

	"client_go/internal/api"
	"client_go/internal/cache"
	"client_go/internal/chat"
	"client_go/internal/config"
	"client_go/internal/domain"
	"client_go/internal/httpserver"
	"client_go/internal/logging"
	"client_go/internal/security"
	"client_go/internal/viewport"
	"client_go/internal/ws"
)

// terminalLineHeight converts measured terminal lines into list units.
const terminalLineHeight = 20

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(cfg)

	// Identify the signed-in user
	viewer := domain.UserSummary{ID: cfg.UserID, Username: cfg.Username}
	info, err := security.InspectToken(cfg.AccessToken)
	if err != nil {
		log.Fatal().Err(err).Msg("access token is not a JWT")
	}
	clk := clock.New()
	if info.Expired(clk.Now()) {
		log.Fatal().Time("expires_at", info.ExpiresAt).Msg("access token has expired")
	}
	if info.UserID != 0 {
		viewer.ID = info.UserID
	}
	if viewer.Username == "" {
		viewer.Username = info.Subject
	}
	event := log.Info().Int64("user_id", viewer.ID)
	if !info.ExpiresAt.IsZero() {
		event = event.Str("expires", humanize.Time(info.ExpiresAt))
	}
	event.Msg("signed in")

	// Server connections
	apiClient := api.NewClient(cfg.APIURL, cfg.AccessToken, cfg.RequestTimeout, log)
	rt := ws.NewClient(ws.Options{
		URL:          cfg.WSEndpoint(),
		Token:        cfg.AccessToken,
		PingInterval: cfg.PingInterval,
	}, log)

	// Sync engine
	opts := chat.DefaultOptions()
	opts.PageSize = cfg.PageSize
	opts.NearTop = cfg.NearTop
	opts.TypingIdle = cfg.TypingIdle
	opts.TypingRefresh = cfg.TypingRefresh
	opts.ToastTTL = cfg.ToastTTL
	opts.Clock = clk
	opts.List.GroupingWindow = cfg.GroupingWindow
	opts.List.NearBottom = cfg.NearBottom
	opts.List.Overscan = cfg.Overscan
	opts.List.ReducedMotion = cfg.ReducedMotion
	opts.List.Estimator = viewport.Estimator{
		Grouped:   cfg.EstimateGrouped,
		NewGroup:  cfg.EstimateNewGroup,
		Separator: cfg.EstimateSeparator,
		Image:     cfg.EstimateImageExtra,
		File:      cfg.EstimateFileExtra,
	}
	opts.Measurer = viewport.NewTerminalMeasurer(terminalLineHeight)

	state := chat.NewState(viewer, clk, cfg.TypingTTL)
	client := chat.NewClient(state, cache.NewStore(), apiClient, rt, rt, opts, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if err := client.LoadConversations(ctx); err != nil {
		log.Error().Err(err).Msg("failed to load conversations")
	}
	cancel()
	if cfg.ConversationID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		if err := client.Open(ctx, cfg.ConversationID); err != nil {
			log.Error().Err(err).Int64("conversation_id", cfg.ConversationID).Msg("failed to open conversation")
		}
		cancel()
	}

	// Debug HTTP surface
	srv := &http.Server{
		Addr:         cfg.DebugAddr(),
		Handler:      httpserver.NewRouter(cfg, client),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Info().Str("addr", cfg.DebugAddr()).Msg("starting debug server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := client.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("closing subscriptions failed")
	}
	if err := rt.Close(); err != nil {
		log.Warn().Err(err).Msg("closing realtime connection failed")
	}
}
