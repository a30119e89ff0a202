package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kikiluvv/scenecut/internal/config"
	"github.com/kikiluvv/scenecut/internal/detect"
	"github.com/kikiluvv/scenecut/internal/logging"
	"github.com/kikiluvv/scenecut/internal/pipeline"
	"github.com/kikiluvv/scenecut/internal/source"
	"github.com/kikiluvv/scenecut/internal/stats"
	"github.com/kikiluvv/scenecut/pkg/timecode"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scenecut",
	Short: "scenecut - shot boundary detection for video",
	Long:  "Detects scene cuts in a video by scoring decoded frames and prints the resulting scene list.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load() // best-effort: load .env if present

		// Initialize logging
		logging.Init(verbose)

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

var (
	statsPath   string
	detectorArg string
	threshold   float64
	minSceneLen string
	startArg    string
	endArg      string
	durationArg string
	dropShort   bool
	mergeLast   bool
	downscale   int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./scenecut.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	detectCmd.Flags().StringVar(&statsPath, "stats", "", "statsfile to load/save per-frame metrics")
	detectCmd.Flags().StringVar(&detectorArg, "detector", "", "detector: content, adaptive or threshold")
	detectCmd.Flags().Float64Var(&threshold, "threshold", 0, "override the detector threshold")
	detectCmd.Flags().StringVar(&minSceneLen, "min-scene-len", "", "minimum scene length (timecode or seconds)")
	detectCmd.Flags().StringVar(&startArg, "start", "", "start position (timecode or seconds)")
	detectCmd.Flags().StringVar(&endArg, "end", "", "end position (timecode or seconds)")
	detectCmd.Flags().StringVar(&durationArg, "duration", "", "amount of video to analyze from start")
	detectCmd.Flags().BoolVar(&dropShort, "drop-short-scenes", false, "drop scenes under the minimum length instead of merging")
	detectCmd.Flags().BoolVar(&mergeLast, "merge-last-scene", false, "merge a short final scene into the previous one")
	detectCmd.Flags().IntVar(&downscale, "downscale", 0, "frame downscale factor (0 = auto)")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(versionCmd)
}

var detectCmd = &cobra.Command{
	Use:   "detect [input video]",
	Short: "Detect scene boundaries in a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		clog := logging.WithComponent(log.Logger, "cli")

		src, err := source.OpenFFmpeg(args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		cache, err := stats.New(src.Framerate())
		if err != nil {
			return err
		}
		if path := statsFile(cfg); path != "" {
			if err := cache.LoadFile(path); err != nil {
				if !errors.Is(err, stats.ErrCorruptCache) && !errors.Is(err, timecode.ErrFramerateMismatch) {
					return err
				}
				// a stale or damaged statsfile is not partially usable
				clog.Warn().Err(err).Str("stats", path).Msg("ignoring statsfile, starting fresh")
				cache, _ = stats.New(src.Framerate())
			} else if cache.Len() > 0 {
				clog.Info().Str("stats", path).Int("frames", cache.Len()).Msg("loaded statsfile")
			}
		}

		detectors, err := buildDetectors(cfg, cache)
		if err != nil {
			return err
		}

		opts, err := buildOptions(cfg, src.Framerate())
		if err != nil {
			return err
		}

		scenes, err := pipeline.New(log.Logger).Detect(cmd.Context(), src, detectors, opts)
		if err != nil {
			return err
		}

		if path := statsFile(cfg); path != "" {
			if err := cache.SaveFile(path); err != nil {
				// caching is an optimization; a failed save never fails
				// the run
				clog.Warn().Err(err).Str("stats", path).Msg("could not save statsfile")
			}
		}

		return writeScenes(cmd.OutOrStdout(), scenes)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "scenecut dev")
	},
}

func statsFile(cfg *config.Config) string {
	if statsPath != "" {
		return statsPath
	}
	return cfg.StatsFile
}

func buildDetectors(cfg *config.Config, cache *stats.Cache) ([]detect.Detector, error) {
	name := detectorArg
	if name == "" {
		name = cfg.Detection.Detector
	}

	weights := detect.ContentWeights{
		Hue:   cfg.Detection.Content.HueWeight,
		Sat:   cfg.Detection.Content.SatWeight,
		Lum:   cfg.Detection.Content.LumWeight,
		Edges: cfg.Detection.Content.EdgesWeight,
	}
	contentCfg := detect.ContentConfig{
		Threshold: cfg.Detection.Content.Threshold,
		Weights:   weights,
	}

	switch name {
	case "", "content":
		if threshold != 0 {
			contentCfg.Threshold = threshold
		}
		d, err := detect.NewContentDetector(contentCfg, cache)
		if err != nil {
			return nil, err
		}
		return []detect.Detector{d}, nil
	case "adaptive":
		adaptiveCfg := detect.AdaptiveConfig{
			AdaptiveThreshold: cfg.Detection.Adaptive.AdaptiveThreshold,
			MinContentVal:     cfg.Detection.Adaptive.MinContentVal,
			FrameWindow:       cfg.Detection.Adaptive.FrameWindow,
			Content:           contentCfg,
		}
		if threshold != 0 {
			adaptiveCfg.AdaptiveThreshold = threshold
		}
		d, err := detect.NewAdaptiveDetector(adaptiveCfg, cache)
		if err != nil {
			return nil, err
		}
		return []detect.Detector{d}, nil
	case "threshold":
		thresholdCfg := detect.ThresholdConfig{
			Threshold:    cfg.Detection.Threshold.Threshold,
			FadeBias:     cfg.Detection.Threshold.FadeBias,
			AddLastScene: cfg.Detection.Threshold.AddLastScene,
		}
		if threshold != 0 {
			thresholdCfg.Threshold = threshold
		}
		d, err := detect.NewThresholdDetector(thresholdCfg, cache)
		if err != nil {
			return nil, err
		}
		return []detect.Detector{d}, nil
	default:
		return nil, fmt.Errorf("unknown detector %q", name)
	}
}

func buildOptions(cfg *config.Config, rate float64) (pipeline.Options, error) {
	opts := pipeline.Options{
		DropShortScenes: dropShort || cfg.Detection.DropShortScenes,
		MergeLastScene:  mergeLast || cfg.Detection.MergeLastScene,
		Workers:         cfg.Workers,
		QueueSize:       cfg.QueueSize,
		Downscale:       cfg.Downscale,
	}
	if downscale > 0 {
		opts.Downscale = downscale
	}

	var err error
	if startArg != "" {
		if opts.Start, err = timecode.Parse(startArg, rate); err != nil {
			return opts, fmt.Errorf("--start: %w", err)
		}
	}
	if endArg != "" {
		if opts.End, err = timecode.Parse(endArg, rate); err != nil {
			return opts, fmt.Errorf("--end: %w", err)
		}
	}
	if durationArg != "" {
		if opts.Duration, err = timecode.Parse(durationArg, rate); err != nil {
			return opts, fmt.Errorf("--duration: %w", err)
		}
	}
	switch {
	case minSceneLen != "":
		if opts.MinSceneLen, err = timecode.Parse(minSceneLen, rate); err != nil {
			return opts, fmt.Errorf("--min-scene-len: %w", err)
		}
	case cfg.Detection.MinSceneLenSeconds > 0:
		if opts.MinSceneLen, err = timecode.FromSeconds(cfg.Detection.MinSceneLenSeconds, rate); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// writeScenes prints the scene list as CSV for downstream tooling.
func writeScenes(w io.Writer, scenes []pipeline.Scene) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"scene", "start_frame", "start_time", "end_frame", "end_time", "length_frames"}); err != nil {
		return err
	}
	for i, s := range scenes {
		record := []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(s.Start.Frame()),
			s.Start.String(),
			strconv.Itoa(s.End.Frame()),
			s.End.String(),
			strconv.Itoa(s.LengthFrames()),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
