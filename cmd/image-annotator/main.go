// Package main is the image-annotator command.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	imageannotator "github.com/menta2k/image-annotator"
	"github.com/menta2k/image-annotator/internal/config"
	"github.com/menta2k/image-annotator/internal/logging"
	"github.com/menta2k/image-annotator/internal/server"
	"github.com/menta2k/image-annotator/internal/utils"
)

const (
	flagConfig  = "config"
	flagBackend = "backend"
	flagOut     = "out"
	flagLevel   = "log-level"
	flagIn      = "in"
	flagAddr    = "addr"
	flagSerial  = "sequential"
)

func main() {
	app := &cli.App{
		Name:    "image-annotator",
		Usage:   "analyze images with a remote vision service, draw detections and build thumbnails",
		Version: imageannotator.GetVersion(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "analyze a file or every image in a directory and print the results as JSON",
				UsageText: "image-annotator analyze --in <file|dir>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagIn,
						Required: true,
						Usage:    "input image or directory",
					},
				},
				Action: analyzeAction,
			},
			{
				Name:  "serve",
				Usage: "serve the upload form endpoint and the generated artifacts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagAddr,
						Usage: "listen address",
					},
				},
				Action: serveAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "path to a JSON config file (default: " + config.GetConfigPath() + " when present)",
		},
		&cli.StringFlag{
			Name:  flagBackend,
			Usage: "vision backend: azure|google|ollama|llamacpp",
		},
		&cli.StringFlag{
			Name:  flagOut,
			Usage: "output root for annotated images and thumbnails",
		},
		&cli.StringFlag{
			Name:  flagLevel,
			Usage: "debug|info|warn|error",
		},
		&cli.BoolFlag{
			Name:  flagSerial,
			Usage: "run the analyze and thumbnail calls one after the other",
		},
	}
}

// loadConfig layers the config file, the environment and then the flags, and
// validates only the final result.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	cfg, err := config.Read(path)
	if err != nil {
		return nil, err
	}
	if v := c.String(flagBackend); v != "" {
		cfg.Vision.Backend = v
	}
	if v := c.String(flagOut); v != "" {
		cfg.Output.Dir = v
	}
	if v := c.String(flagLevel); v != "" {
		cfg.Log.Level = v
	}
	if c.Bool(flagSerial) {
		cfg.Output.Concurrent = false
	}
	if v := c.String(flagAddr); v != "" {
		cfg.Server.Addr = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup(c *cli.Context) (*config.Config, *zap.Logger, func(), *imageannotator.Annotator, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger, cleanup, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	ann, err := imageannotator.New(c.Context, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}
	return cfg, logger, cleanup, ann, nil
}

func analyzeAction(c *cli.Context) (err error) {
	_, logger, cleanup, ann, err := setup(c)
	if err != nil {
		return err
	}
	defer cleanup()
	defer func() { err = multierr.Append(err, ann.Close()) }()

	files, err := inputFiles(c.String(flagIn))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")

	var failed error
	for _, f := range files {
		res, err := ann.AnalyzeFile(c.Context, f)
		if err != nil {
			logger.Error("analysis failed", zap.String("file", f), zap.Error(err))
			failed = multierr.Append(failed, errors.Wrap(err, filepath.Base(f)))
			continue
		}
		if err := enc.Encode(res.View()); err != nil {
			return err
		}
	}
	return failed
}

// inputFiles expands a file or directory argument into the images to analyze
func inputFiles(in string) ([]string, error) {
	switch {
	case utils.FileExists(in):
		return []string{in}, nil
	case utils.DirExists(in):
		files, err := utils.ListImageFiles(in)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, errors.Errorf("no images found in %s", in)
		}
		return files, nil
	}
	return nil, errors.Errorf("input %s does not exist", in)
}

func serveAction(c *cli.Context) (err error) {
	cfg, logger, cleanup, ann, err := setup(c)
	if err != nil {
		return err
	}
	defer cleanup()
	defer func() { err = multierr.Append(err, ann.Close()) }()

	opts := server.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	// Artifacts in a bucket are served by Cloud Storage itself.
	if cfg.Output.Backend == config.OutputFile {
		opts.StaticRoot = cfg.Output.Dir
		opts.ArtifactDirs = []string{cfg.Output.AnnotatedDir, cfg.Output.ThumbnailDir}
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx, cfg.Server.Addr, server.NewHandler(ann, opts, logger), logger)
}
