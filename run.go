// SPDX-License-Identifier: GPL-2.0-or-later

// Package mpx is the command line front end for the dual-layer video
// metadata pipelines.
package mpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/javantanna/mpx/pkg/container"
	"github.com/javantanna/mpx/pkg/features"
	"github.com/javantanna/mpx/pkg/log"
	"github.com/javantanna/mpx/pkg/mpx"
	"github.com/javantanna/mpx/pkg/payload"
	"github.com/javantanna/mpx/pkg/stego"
	"github.com/javantanna/mpx/pkg/video"
	"github.com/spf13/pflag"
)

const usage = `Usage: mpx [flags] <command>

Commands:
  encode <input> <output>   embed metadata into a video
  decode <file>             extract metadata from a video
  verify <file>             check metadata integrity
  info <file>               show video specs and embedding capacity
  logs                      query the log database

Flags:
`

type flagValues struct {
	flags *pflag.FlagSet

	configPath string
	logDBPath  string
	metadata   string
	noCovert   bool
	noVerify   bool
	noFeatures bool

	logLevel   string
	logSources []string
	logFiles   []string
	logLimit   int
}

func newFlags() *flagValues {
	v := &flagValues{}
	flags := pflag.NewFlagSet("mpx", pflag.ContinueOnError)
	flags.StringVarP(&v.configPath, "config", "c", "", "path to config YAML")
	flags.StringVar(&v.logDBPath, "log-db", "", "path to log database")
	flags.StringVarP(&v.metadata, "metadata", "m", "", "user metadata as a JSON object")
	flags.BoolVar(&v.noCovert, "no-covert", false, "store metadata in the container layer only")
	flags.BoolVar(&v.noVerify, "no-verify", false, "skip post-write verification")
	flags.BoolVar(&v.noFeatures, "no-features", false, "skip auto feature extraction")
	flags.StringVar(&v.logLevel, "log-level", "", "logs: filter by level (error|warning|info|debug)")
	flags.StringSliceVar(&v.logSources, "log-source", nil, "logs: filter by source")
	flags.StringSliceVar(&v.logFiles, "log-file", nil, "logs: filter by media file")
	flags.IntVar(&v.logLimit, "log-limit", 20, "logs: maximum number of entries")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fmt.Fprintln(os.Stderr, flags.FlagUsages())
	}
	v.flags = flags
	return v
}

// Run parses the command line and executes one command. The returned value
// is the process exit code, 130 on interrupt.
func Run() int {
	v := newFlags()
	if err := v.flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	args := v.flags.Args()
	if len(args) == 0 {
		v.flags.Usage()
		return 1
	}

	config := mpx.DefaultConfig()
	if v.configPath != "" {
		var err error
		config, err = mpx.ConfigFromFile(v.configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	wg := &sync.WaitGroup{}
	logger := log.NewLogger(wg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := logger.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	go logger.LogToStdout(ctx)

	var logDB *log.DB
	if v.logDBPath != "" {
		logDB = log.NewDB(v.logDBPath, wg)
		if err := logDB.Init(ctx); err != nil {
			// Continue even if the log database is corrupt.
			time.Sleep(10 * time.Millisecond)
			logger.Error().Src("app").Msgf("could not initialize log database: %v", err)
			logDB = nil
		} else {
			go logDB.SaveLogs(ctx, logger)
		}
	}

	type commandResult struct {
		out  interface{}
		code int
		err  error
	}
	done := make(chan commandResult, 1)
	go func() {
		out, code, err := runCommand(ctx, config, logger, logDB, v, args)
		done <- commandResult{out, code, err}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case result := <-done:
		if result.err != nil {
			logger.Error().Src("app").Msgf("%v", result.err)
			exitCode = 1
		} else {
			exitCode = result.code
			if err := printJSON(result.out); err != nil {
				fmt.Fprintln(os.Stderr, err)
				exitCode = 1
			}
		}
	case sig := <-stop:
		logger.Info().Src("app").Msgf("received %v, stopping", sig)
		exitCode = 130
	}

	// Let the stdout logger drain.
	time.Sleep(10 * time.Millisecond)
	cancel()
	wg.Wait()
	return exitCode
}

func runCommand(
	ctx context.Context,
	config mpx.Config,
	logger *log.Logger,
	logDB *log.DB,
	v *flagValues,
	args []string,
) (interface{}, int, error) {
	switch args[0] {
	case "encode":
		out, err := runEncode(ctx, config, logger, v, args[1:])
		return out, 0, err
	case "decode":
		if len(args) != 2 {
			return nil, 0, fmt.Errorf("usage: mpx decode <file>") //nolint:goerr113
		}
		out, err := mpx.NewDecoder(config, logger).Decode(ctx, args[1])
		return out, 0, err
	case "verify":
		if len(args) != 2 {
			return nil, 0, fmt.Errorf("usage: mpx verify <file>") //nolint:goerr113
		}
		result := mpx.NewVerifier(config, logger).Verify(ctx, args[1])
		code := 0
		if result.Overall != mpx.OverallVerified {
			code = 1
		}
		return result, code, nil
	case "info":
		if len(args) != 2 {
			return nil, 0, fmt.Errorf("usage: mpx info <file>") //nolint:goerr113
		}
		out, err := runInfo(ctx, config, args[1])
		return out, 0, err
	case "logs":
		if len(args) != 1 {
			return nil, 0, fmt.Errorf("usage: mpx --log-db <path> logs") //nolint:goerr113
		}
		out, err := runLogs(logDB, v)
		return out, 0, err
	default:
		return nil, 0, fmt.Errorf("unknown command: %v", args[0]) //nolint:goerr113
	}
}

func runEncode(
	ctx context.Context,
	config mpx.Config,
	logger *log.Logger,
	v *flagValues,
	args []string,
) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("usage: mpx encode <input> <output>") //nolint:goerr113
	}

	var userMetadata payload.Document
	if v.metadata != "" {
		if err := json.Unmarshal([]byte(v.metadata), &userMetadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}

	var featureSource mpx.FeatureSource
	if !v.noFeatures {
		featureSource = features.NewAnalyzer(
			config.FFmpegBin, config.FFprobeBin, config.MaxScanFrames, logger)
	}

	encoder := mpx.NewEncoder(config, logger, featureSource)
	return encoder.Encode(ctx, args[0], userMetadata, args[1], mpx.EncodeOptions{
		DisableCovert: v.noCovert,
		SkipVerify:    v.noVerify,
	})
}

func runLogs(logDB *log.DB, v *flagValues) (interface{}, error) {
	if logDB == nil {
		return nil, fmt.Errorf("logs requires --log-db") //nolint:goerr113
	}

	levels, err := parseLogLevel(v.logLevel)
	if err != nil {
		return nil, err
	}
	return logDB.Query(log.Query{
		Levels:  levels,
		Sources: v.logSources,
		Files:   v.logFiles,
		Limit:   v.logLimit,
	})
}

func parseLogLevel(name string) ([]log.Level, error) {
	switch name {
	case "":
		return nil, nil
	case "error":
		return []log.Level{log.LevelError}, nil
	case "warning":
		return []log.Level{log.LevelWarning}, nil
	case "info":
		return []log.Level{log.LevelInfo}, nil
	case "debug":
		return []log.Level{log.LevelDebug}, nil
	}
	return nil, fmt.Errorf("unknown log level: %v", name) //nolint:goerr113
}

type infoResult struct {
	File                string  `json:"file"`
	Width               int     `json:"width"`
	Height              int     `json:"height"`
	FPS                 float64 `json:"fps"`
	FrameCount          int     `json:"frame_count"`
	DurationSeconds     float64 `json:"duration_seconds"`
	Codec               string  `json:"codec"`
	HasAudio            bool    `json:"has_audio"`
	CapacityBits        int     `json:"capacity_bits"`
	MaxPayloadBytes     int     `json:"max_payload_bytes"`
	ContainerTagPresent bool    `json:"container_tag_present"`
}

func runInfo(ctx context.Context, config mpx.Config, path string) (interface{}, error) {
	info, err := video.NewFFprobe(config.FFprobeBin).Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	layer := container.NewLayer(config.ContainerTag, config.FFmpegBin, config.FFprobeBin)
	hasTag := layer.Has(ctx, path)

	capacityBits := info.FrameCount * info.SamplesPerFrame()
	return &infoResult{
		File:                path,
		Width:               info.Width,
		Height:              info.Height,
		FPS:                 info.FPS,
		FrameCount:          info.FrameCount,
		DurationSeconds:     info.Duration,
		Codec:               info.Codec,
		HasAudio:            info.HasAudio,
		CapacityBits:        capacityBits,
		MaxPayloadBytes:     maxPayloadBytes(capacityBits),
		ContainerTagPresent: hasTag,
	}, nil
}

func maxPayloadBytes(capacityBits int) int {
	usable := capacityBits - stego.HeaderBits
	if usable < 0 {
		return 0
	}
	return usable / 8
}

func printJSON(out interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
