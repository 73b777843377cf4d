package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/picoretain/internal/agent/config"
)

// LayoutRow is one region of the layout listing.
type LayoutRow struct {
	Name    string `json:"name" yaml:"name"`
	Offset  int    `json:"offset" yaml:"offset"`
	Size    int    `json:"size" yaml:"size"`
	BodyCap int    `json:"body_capacity" yaml:"body_capacity" table:"wide"`
}

// LayoutCommand prints the region table of the configuration.
func LayoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "layout",
		Usage:  "Show the retained region layout",
		Action: layout,
	}
}

func layout(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	tab, err := config.Table(&cfg.Retention)
	if err != nil {
		return err
	}
	rows := make([]LayoutRow, 0, len(tab.Regions()))
	for _, r := range tab.Regions() {
		rows = append(rows, LayoutRow{
			Name:    string(r.Name),
			Offset:  r.Offset,
			Size:    r.Size,
			BodyCap: r.BodyCap(),
		})
	}
	return render(c, rows)
}
