package cmd

import (
	"context"
	"fmt"
	"time"

	"acytel/cache"
	"acytel/config"
	"acytel/core/client"
	"acytel/core/player"
	"acytel/core/prefetch"
	"acytel/logger"
	"acytel/model"

	"github.com/spf13/cobra"
)

var (
	playServerURL string
	playAuthToken string
)

var playCmd = &cobra.Command{
	Use:   "play [trackID]",
	Short: "Play a track from the library",
	Long: `Headless playback client: resolves the track through the local audio
cache or a freshly minted secure link, decodes it, plays it, and prefetches
the next tracks in the library.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&playServerURL, "server", "http://localhost:8080", "Acytel server base URL")
	playCmd.Flags().StringVar(&playAuthToken, "auth-token", "", "bearer identity token")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	trackID := args[0]
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogOutput,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	})

	// A missing cache store degrades to network-only playback.
	var audioCache cache.AudioCache
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("audio cache unavailable, playing from network only", logger.ErrorField(err))
	} else {
		audioCache = cache.NewRedisAudioCache(cache.RedisClient, cfg.AudioCacheTTL)
		defer cache.CloseRedis()
	}

	streamClient := client.NewStreamClient(playServerURL, playAuthToken, audioCache)
	engine := player.NewEngine(streamClient, player.MP3Decoder{}, player.NewOtoOutput())

	ctx := cmd.Context()
	duration, err := engine.Play(ctx, findTrack(ctx, streamClient, trackID))
	if err != nil {
		return fmt.Errorf("could not play this track: %w", err)
	}
	fmt.Printf("Playing %s (%s)\n", trackID, duration.Round(time.Second))

	// Warm the cache for what comes next while this track plays.
	if playlist, err := streamClient.ListTracks(ctx); err == nil {
		coordinator := prefetch.NewCoordinator(streamClient, cfg.PrefetchCount)
		coordinator.OnTrackActivated(playlist, trackID)
	} else {
		logger.Warn("could not fetch playlist for prefetch", logger.ErrorField(err))
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		pos := engine.Position()
		fmt.Printf("\r%s / %s", pos.Round(time.Second), duration.Round(time.Second))
		if pos >= duration {
			break
		}
	}
	fmt.Println()
	engine.Stop()
	return nil
}

// findTrack resolves the full track record so playback logs carry metadata;
// an unknown ID still plays if the server will stream it.
func findTrack(ctx context.Context, c *client.StreamClient, trackID string) (track model.Track) {
	track.ID = trackID
	if playlist, err := c.ListTracks(ctx); err == nil {
		for _, t := range playlist {
			if t.ID == trackID {
				return t
			}
		}
	}
	return track
}
