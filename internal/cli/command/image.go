package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/oklog/ulid/v2"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/picoretain/internal/agent/config"
	"github.com/yndnr/picoretain/internal/binding"
	"github.com/yndnr/picoretain/internal/cli/output"
	"github.com/yndnr/picoretain/internal/core/domain"
	"github.com/yndnr/picoretain/internal/storage/region"
	"github.com/yndnr/picoretain/internal/storage/retained"
	"github.com/yndnr/picoretain/internal/storage/snapshot"
)

func imageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "image",
			Aliases: []string{"i"},
			Usage:   "Raw retained image file",
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Badger data directory of a stopped agent",
		},
		&cli.StringFlag{
			Name:    "generation",
			Aliases: []string{"g"},
			Usage:   "Read a history image instead of the current one (requires --data-dir)",
		},
	}
}

// loadedImage is a retained image together with the layout to read it with.
type loadedImage struct {
	table *region.Table
	mem   []byte
}

func openBadger(dir string, size int) (*retained.BadgerMemory, error) {
	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return retained.OpenBadger(retained.DefaultBadgerConfig(dir, size), quiet)
}

// loadImage reads the image selected by --image or --data-dir. Without
// either flag the data dir of a badger-backed configuration is used.
func loadImage(c *cli.Context) (*loadedImage, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	tab, err := config.Table(&cfg.Retention)
	if err != nil {
		return nil, err
	}
	size := cfg.Retention.Budget

	path, dir := c.String("image"), c.String("data-dir")
	if path != "" && dir != "" {
		return nil, fmt.Errorf("--image and --data-dir are mutually exclusive")
	}
	if path == "" && dir == "" && cfg.Retention.Backend == config.BackendBadger {
		dir = cfg.Retention.DataDir
	}

	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		mem, err := retained.HeapFromImage(data, size)
		if err != nil {
			return nil, err
		}
		return &loadedImage{table: tab, mem: mem.Bytes()}, nil

	case dir != "":
		mem, err := openBadger(dir, size)
		if err != nil {
			return nil, err
		}
		defer mem.Close()

		if g := c.String("generation"); g != "" {
			id, err := ulid.ParseStrict(g)
			if err != nil {
				return nil, fmt.Errorf("invalid generation %q: %w", g, err)
			}
			data, err := mem.Image(context.Background(), id)
			if err != nil {
				return nil, err
			}
			heap, err := retained.HeapFromImage(data, size)
			if err != nil {
				return nil, err
			}
			return &loadedImage{table: tab, mem: heap.Bytes()}, nil
		}
		return &loadedImage{table: tab, mem: append([]byte(nil), mem.Bytes()...)}, nil
	}
	return nil, fmt.Errorf("one of --image or --data-dir is required")
}

// InspectCommand reports the header state of every region.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:   "inspect",
		Usage:  "Show the state of every region of a retained image",
		Flags:  imageFlags(),
		Action: inspect,
	}
}

func inspect(c *cli.Context) error {
	img, err := loadImage(c)
	if err != nil {
		return err
	}
	return render(c, snapshot.Inspect(img.table, img.mem))
}

// ExportResult is the decoded content of an image.
type ExportResult struct {
	Counts  domain.Counts         `json:"counts" yaml:"counts"`
	State   *domain.SessionState  `json:"state" yaml:"state"`
	Dropped []ExportDroppedEntity `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}

// ExportDroppedEntity names an entity left out because its codec is not
// known to the CLI.
type ExportDroppedEntity struct {
	Region string `json:"region" yaml:"region"`
	Index  int    `json:"index" yaml:"index"`
	Error  string `json:"error" yaml:"error"`
}

// ExportCommand decodes an image into its session state.
func ExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Decode a retained image into its session entities",
		Flags: append(imageFlags(),
			&cli.StringFlag{
				Name:  "on-unresolved",
				Usage: "What to do with arguments in unknown codecs: fail or drop",
				Value: "drop",
			},
		),
		Action: export,
	}
}

func export(c *cli.Context) error {
	policy, err := snapshot.ParseUnresolvedPolicy(c.String("on-unresolved"))
	if err != nil {
		return err
	}
	img, err := loadImage(c)
	if err != nil {
		return err
	}

	state, dropped, err := snapshot.Decode(img.table, img.mem, binding.NewRegistry(nil), policy)
	if err != nil {
		return err
	}
	res := ExportResult{Counts: state.Counts(), State: state}
	for _, d := range dropped {
		res.Dropped = append(res.Dropped, ExportDroppedEntity{
			Region: string(d.Region),
			Index:  d.Index,
			Error:  d.Err.Error(),
		})
	}

	if f, _ := output.ParseFormat(ParseGlobalFlags(c).Output); f == output.FormatTable {
		if err := render(c, res.Counts); err != nil {
			return err
		}
		if len(res.Dropped) > 0 {
			fmt.Fprintln(writer(c))
			return render(c, res.Dropped)
		}
		return nil
	}
	return render(c, res)
}

// HistoryCommand lists the image history of a badger data dir.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List retained images kept by the badger backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "data-dir",
				Aliases:  []string{"d"},
				Usage:    "Badger data directory of a stopped agent",
				Required: true,
			},
		},
		Action: history,
	}
}

func history(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	mem, err := openBadger(c.String("data-dir"), cfg.Retention.Budget)
	if err != nil {
		return err
	}
	defer mem.Close()

	images, err := mem.History(c.Context)
	if err != nil {
		return err
	}
	return render(c, images)
}
