package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli"

	"github.com/1F47E/go-stickerconv/internal/core"
	"github.com/1F47E/go-stickerconv/internal/job"
	"github.com/1F47E/go-stickerconv/internal/progress"
	"github.com/1F47E/go-stickerconv/internal/queue"
	cfg "github.com/1F47E/go-stickerconv/pkg/config"
	"github.com/1F47E/go-stickerconv/pkg/logger"
)

var app = cli.NewApp()
var log = logger.Log

var (
	workersFlag = cli.IntFlag{
		Name:  "workers, w",
		Usage: "assets transcoded at once",
	}
	noDecryptFlag = cli.BoolFlag{
		Name:  "no-decrypt",
		Usage: "inputs are already clear, skip the cipher",
	}
)

func init() {
	app.Name = "stickerconv"
	app.Usage = "Turns vendor sticker assets into animated png"
	app.UsageText = "stickerconv [--config file] [command] files..."
	app.HideHelp = true
	app.HideVersion = true
	app.ArgsUsage = ""
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "yaml config file",
			EnvVar: cfg.EnvPrefix + "_CONFIG",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:    "transcode",
			Aliases: []string{"t"},
			Usage:   "Decrypt and transcode assets to apng",
			Flags:   []cli.Flag{workersFlag, noDecryptFlag},
			Action: func(c *cli.Context) error {
				files, err := getFilenames(c)
				if err != nil {
					return err
				}
				cr, err := newCore(c)
				if err != nil {
					return err
				}
				return transcode(cr, files)
			},
		},
		{
			Name:    "decrypt",
			Aliases: []string{"d"},
			Usage:   "Only remove the obfuscation, in place",
			Action: func(c *cli.Context) error {
				files, err := getFilenames(c)
				if err != nil {
					return err
				}
				cr, err := newCore(c)
				if err != nil {
					return err
				}
				for _, f := range files {
					ok, err := cr.Decrypt(f)
					if err != nil {
						return err
					}
					if ok {
						log.Infof("%s decrypted", f)
					}
				}
				return nil
			},
		},
		{
			Name:    "verify",
			Aliases: []string{"v"},
			Usage:   "Transcode and check the written apng",
			Flags:   []cli.Flag{noDecryptFlag},
			Action: func(c *cli.Context) error {
				files, err := getFilenames(c)
				if err != nil {
					return err
				}
				cr, err := newCore(c)
				if err != nil {
					return err
				}
				ctx, stop := signalContext()
				defer stop()
				for _, f := range files {
					res, err := cr.TranscodeVerify(ctx, f)
					if err != nil {
						return fmt.Errorf("Error verifying %s: %v", f, err)
					}
					log.Infof("%s is fine", res.Print())
				}
				return nil
			},
		},
		{
			Name:    "consume",
			Aliases: []string{"k"},
			Usage:   "Transcode jobs from the kafka topic until interrupted",
			Flags:   []cli.Flag{noDecryptFlag},
			Action: func(c *cli.Context) error {
				cr, opts, err := newCoreOptions(c)
				if err != nil {
					return err
				}
				ctx, stop := signalContext()
				defer stop()

				consumer := queue.NewConsumer(queue.NewReader(opts.Kafka), func(ctx context.Context, j job.Job) error {
					res, err := cr.TranscodeJob(ctx, j)
					if err != nil {
						return err
					}
					log.Info(res.Print())
					return nil
				})
				log.Infof("Consuming %s from %v", opts.Kafka.Topic, opts.Kafka.Brokers)
				return consumer.Run(ctx)
			},
		},
		{
			Name:    "enqueue",
			Aliases: []string{"q"},
			Usage:   "Put assets on the kafka topic",
			Action: func(c *cli.Context) error {
				files, err := getFilenames(c)
				if err != nil {
					return err
				}
				opts, err := loadOptions(c)
				if err != nil {
					return err
				}
				p := queue.NewProducer(queue.NewWriter(opts.Kafka))
				defer p.Close()
				ctx, stop := signalContext()
				defer stop()
				if err := p.Publish(ctx, job.FromPaths(files)...); err != nil {
					return err
				}
				log.Infof("%d jobs sent to %s", len(files), opts.Kafka.Topic)
				return nil
			},
		},
	}
}

func transcode(cr *core.Core, files []string) error {
	ctx, stop := signalContext()
	defer stop()

	progress.Reset(len(files), "Transcoding... ")
	results := cr.TranscodeJobs(ctx, job.FromPaths(files), func(r core.Result) {
		progress.Describe(filepath.Base(r.Source))
		progress.Add(1)
	})
	progress.Finish()
	fmt.Fprintln(os.Stderr)

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
			log.Warn(r.Print())
			continue
		}
		log.Info(r.Print())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d assets failed", failed, len(results))
	}
	return nil
}

func loadOptions(c *cli.Context) (cfg.Options, error) {
	opts, err := cfg.Load(c.GlobalString("config"))
	if err != nil {
		return opts, err
	}
	if c.IsSet("workers") {
		opts.Workers = c.Int("workers")
	}
	if c.Bool("no-decrypt") {
		opts.Decrypt = false
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	logger.SetLevel(opts.LogLevel)
	return opts, nil
}

func newCoreOptions(c *cli.Context) (*core.Core, cfg.Options, error) {
	opts, err := loadOptions(c)
	if err != nil {
		return nil, opts, err
	}
	return core.NewCore(opts), opts, nil
}

func newCore(c *cli.Context) (*core.Core, error) {
	cr, _, err := newCoreOptions(c)
	return cr, err
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func getFilenames(c *cli.Context) ([]string, error) {
	files := []string(c.Args())
	if len(files) == 0 {
		return nil, fmt.Errorf("Filename is required")
	}
	return files, nil
}

func main() {
	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
