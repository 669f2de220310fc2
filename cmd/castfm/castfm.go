package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"castfm.app/castfm/castprotocol"
	"castfm.app/castfm/devices"
	"castfm.app/castfm/internal/artwork"
	"castfm.app/castfm/internal/castcoord"
	"castfm.app/castfm/internal/config"
	"castfm.app/castfm/internal/httpclient"
	"castfm.app/castfm/internal/nowplaying"
	"castfm.app/castfm/internal/playlist"
	"castfm.app/castfm/internal/poller"
	"castfm.app/castfm/internal/state"
)

var (
	version string
	build   string

	targetPtr  = flag.String("t", "", "Cast to a specific Chromecast host[:port].")
	listPtr    = flag.Bool("l", false, "List Chromecast devices discovered on the local network.")
	silentPtr  = flag.Bool("silent", false, "Start in silent mode (cast the placeholder stream).")
	debugPtr   = flag.Bool("debug", false, "Enable debug logging.")
	versionPtr = flag.Bool("version", false, "Print version.")
)

func main() {
	flag.Parse()

	if *versionPtr {
		fmt.Printf("castfm version %s, build %s\n", version, build)
		os.Exit(0)
	}

	if *listPtr {
		listDevices()
		os.Exit(0)
	}

	cfg, err := config.GetAppConfig()
	check(errors.Wrap(err, "load config"))

	level := zerolog.InfoLevel
	if *debugPtr || cfg.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	target, err := pickTarget(*targetPtr)
	check(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.NewRetryable(3)

	store := state.NewStore()
	defer store.Close()
	store.Appendf("castfm initialized.")

	if *silentPtr && cfg.SilentModeSupported {
		store.ToggleSilent()
	}

	coord := castcoord.New(castcoord.Config{
		DefaultStreamURL:  cfg.DefaultStreamURL,
		SilenceStreamURL:  cfg.SilenceStreamURL,
		DefaultArtworkURL: cfg.DefaultArtworkURL,
		StationTitle:      cfg.StationTitle,
	}, store, logger)
	go coord.Run(ctx)

	// Stream resolution runs once, concurrently with polling start.
	go func() {
		store.Appendf("Resolving stream URL from M3U...")
		resolved, err := playlist.Resolve(ctx, httpClient, cfg.PlaylistURL)
		if err != nil {
			logger.Warn().Err(err).Msg("stream resolution failed")
			store.Appendf("Failed to resolve stream URL. Using default.")
			store.SetStreamURL(cfg.DefaultStreamURL)
			return
		}
		store.Appendf("Stream resolved: %s", resolved)
		store.SetStreamURL(resolved)
	}()

	fetcher := &nowplaying.Fetcher{
		Source: &nowplaying.FeedClient{URL: cfg.FeedURL, Client: httpClient},
		Artwork: &artwork.Client{
			URL:     cfg.ArtworkSearchURL,
			Client:  httpClient,
			Limiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
		},
		Logger: logger,
	}

	go (&poller.Poller{
		Fetcher:  fetcher,
		Store:    store,
		Interval: time.Duration(cfg.PollSeconds) * time.Second,
		Logger:   logger,
	}).Run(ctx)

	client, err := castprotocol.NewCastClient("http://" + target)
	check(errors.Wrap(err, "cast client"))
	client.Logger = logger

	coord.Notify(castcoord.SessionStarting, client)
	if err := client.Connect(); err != nil {
		logger.Error().Err(err).Str("Target", target).Msg("cast connect failed")
		coord.Notify(castcoord.SessionStartFailed, nil)
	} else {
		coord.Notify(castcoord.SessionStarted, client)
		defer client.Close(true)
		go client.Monitor(ctx, castprotocol.DefaultMonitorInterval, coord.Notify)
	}

	go readCommands(ctx, cfg, store, stop)

	<-ctx.Done()
}

func listDevices() {
	devs := devices.Discover(0)
	if len(devs) == 0 {
		fmt.Println("No Chromecast devices found.")
		return
	}
	for _, dev := range devs {
		kind := "Chromecast"
		if dev.IsAudioOnly {
			kind = "Chromecast Audio"
		}
		fmt.Printf("%s (%s) - %s\n", dev.Name, kind, dev.Addr)
	}
}

func pickTarget(target string) (string, error) {
	if target == "" {
		devs := devices.Discover(0)
		if len(devs) == 0 {
			return "", errors.New("no Chromecast devices found; use -t to set a target")
		}
		return devs[0].Addr, nil
	}
	if !strings.Contains(target, ":") {
		target += ":8009"
	}
	return target, nil
}

// readCommands drives the minimal interactive surface: s toggles silent
// mode, l dumps the diagnostic log, q quits.
func readCommands(ctx context.Context, cfg *config.Config, store *state.Store, stop func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "s":
			if !cfg.SilentModeSupported {
				fmt.Println("Silent mode is disabled in the settings file.")
				continue
			}
			silent := store.ToggleSilent()
			fmt.Printf("Silent mode: %v\n", silent)
		case "l":
			for _, line := range store.Logs() {
				fmt.Println(line)
			}
		case "q":
			stop()
			return
		}
	}
}

func check(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encountered error(s): %s\n", err)
		os.Exit(1)
	}
}
