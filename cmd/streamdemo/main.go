package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/repeaterjs/repeater"
)

// env holds the runtime knobs for the demo, sourced from the process
// environment via go-envconfig before flag overrides are applied.
type env struct {
	TickInterval time.Duration `env:"STREAMDEMO_TICK_INTERVAL,default=100ms"`
	TickCount    int           `env:"STREAMDEMO_TICK_COUNT,default=5"`
	BufferSize   int           `env:"STREAMDEMO_BUFFER_SIZE,default=0"`
}

var (
	flagVerbose bool
	flagMode    string
)

var rootCmd = &cobra.Command{
	Use:   "streamdemo",
	Short: "Drives a few Stream producers through race/merge and prints their output",
	RunE:  run,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&flagVerbose, "verbose", false, "enable debug-level logging")
	flags.StringVar(&flagMode, "mode", "merge", "combinator to demonstrate: race or merge")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute root command")
	}
}

func run(cmd *cobra.Command, args []string) error {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if flagVerbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cfg env
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return fmt.Errorf("load env config: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	ticker := func(name string, n int) (*repeater.Stream[string], error) {
		// Each ticker gets its own Buffer instance: two producers racing
		// concurrently over one shared Buffer would corrupt its internal
		// state whenever the configured capacity is nonzero.
		buf, err := repeater.NewFixedBuffer[string](cfg.BufferSize)
		if err != nil {
			return nil, fmt.Errorf("construct buffer: %w", err)
		}
		return repeater.New[string](func(push repeater.PushFunc[string], close repeater.CloseFunc, stop *repeater.StopSignal) (any, error) {
			for i := 1; i <= n; i++ {
				select {
				case <-stop.Done():
					log.Debug().Str("ticker", name).Msg("stopped early")
					return nil, nil
				case <-time.After(cfg.TickInterval):
				}
				ok, perr := push(ctx, fmt.Sprintf("%s#%d", name, i))
				if perr != nil || !ok {
					return nil, perr
				}
			}
			close(nil)
			return nil, nil
		}, buf), nil
	}

	streamA, err := ticker("a", cfg.TickCount)
	if err != nil {
		return err
	}
	streamB, err := ticker("b", cfg.TickCount)
	if err != nil {
		return err
	}

	var combined *repeater.Stream[string]
	switch flagMode {
	case "race":
		combined = repeater.Race[string]([]*repeater.Stream[string]{streamA, streamB})
	case "merge":
		combined = repeater.Merge[string]([]*repeater.Stream[string]{streamA, streamB})
	default:
		return fmt.Errorf("unknown mode %q (want race or merge)", flagMode)
	}

	for {
		v, done, nerr := combined.Next(ctx)
		if nerr != nil {
			log.Error().Err(nerr).Msg("stream faulted")
			return nerr
		}
		if done {
			log.Info().Msg("stream complete")
			return nil
		}
		log.Info().Str("value", v).Msg("received")
	}
}
