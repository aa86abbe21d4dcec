package main

import (
	"fmt"
	"os"

	"github.com/WolfyD/story-timeline-sub000/pkg/binder"
	"github.com/WolfyD/story-timeline-sub000/pkg/config"
	"github.com/WolfyD/story-timeline-sub000/pkg/database"
	"github.com/WolfyD/story-timeline-sub000/pkg/items"
	"github.com/WolfyD/story-timeline-sub000/pkg/migrations"
	"github.com/WolfyD/story-timeline-sub000/pkg/pictures"
	"github.com/WolfyD/story-timeline-sub000/pkg/tags"
	"github.com/WolfyD/story-timeline-sub000/pkg/timelines"
	"github.com/WolfyD/story-timeline-sub000/pkg/version"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	log.Info("starting maintenance", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	b, err := binder.New()
	if err != nil {
		log.Err(err).Fatal("binder error")
	}

	var db *bun.DB

	app := &cli.App{
		Name:  "maintenance",
		Usage: "on-demand maintenance for timeline databases",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "database",
				Usage: "timeline database file to operate on (defaults to the configured one)",
			},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("database"); path != "" {
				cfg.DatabaseFilePath = path
			}
			db, err = database.New(cfg)
			if err != nil {
				return err
			}
			_, err = migrations.BringUpToDate(c.Context, db)
			return err
		},
		Commands: []*cli.Command{
			{
				Name:  "cleanup-images",
				Usage: "delete pictures no item references anymore, files included",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "timeline-id", Usage: "only sweep this timeline"},
				},
				Action: func(c *cli.Context) error {
					svc := pictures.NewService(db, cfg)

					opts := pictures.CleanupOrphanedImagesOptions{}
					if c.IsSet("timeline-id") {
						id := c.Int("timeline-id")
						opts.TimelineID = &id
					}

					removed, err := svc.CleanupOrphanedImages(c.Context, opts)
					if err != nil {
						return err
					}
					fmt.Printf("Removed %d orphaned pictures\n", removed)
					return nil
				},
			},
			{
				Name:  "cleanup-tags",
				Usage: "delete tags attached to nothing",
				Action: func(c *cli.Context) error {
					svc := tags.NewService(db)

					removed, err := svc.CleanupOrphanedTags(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("Removed %d orphaned tags\n", removed)
					return nil
				},
			},
			{
				Name:  "reindex",
				Usage: "rewrite a timeline's display order as a dense sequence",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "timeline-id", Required: true, Usage: "timeline to reindex"},
				},
				Action: func(c *cli.Context) error {
					svc := items.NewService(db, b)

					updated, err := svc.ReindexItems(c.Context, c.Int("timeline-id"))
					if err != nil {
						return err
					}
					fmt.Printf("Reindexed %d items\n", updated)
					return nil
				},
			},
			{
				Name:  "stats",
				Usage: "print each timeline with its item count and year range",
				Action: func(c *cli.Context) error {
					svc := timelines.NewService(db, cfg, b)

					all, err := svc.ListTimelines(c.Context, timelines.ListTimelinesOptions{})
					if err != nil {
						return err
					}
					for _, tl := range all {
						span := "no items"
						if tl.MinYear != nil && tl.MaxYear != nil {
							span = fmt.Sprintf("years %d to %d", *tl.MinYear, *tl.MaxYear)
						}
						author := tl.Author
						if author == "" {
							author = "unknown"
						}
						fmt.Printf("%4d  %s (%s): %d items, %s\n", tl.ID, tl.Title, author, tl.ItemCount, span)
					}
					return nil
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("app run error")
	}
}
