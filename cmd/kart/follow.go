package main

import (
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/joeblew999/plat-kart/internal/controller"
	"github.com/joeblew999/plat-kart/internal/engine"
	"github.com/joeblew999/plat-kart/internal/geoloc"
	"github.com/joeblew999/plat-kart/internal/logger"
)

func followCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "follow <track.geojson> <municipalities.geojson>",
		Short: "Replay a recorded track through a headless map and print where it goes",
		Args:  cobra.ExactArgs(2),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger.Setup(opts.LogLevel, opts.LogFormat)
			interval, _ := cmd.Flags().GetDuration("interval")

			track, err := loadCollection(cmd.Context(), "track", args[0])
			if err != nil {
				fatal(err)
			}
			points, err := geoloc.TrackPoints(track.FeatureCollection())
			if err != nil {
				fatal(err)
			}
			if len(points) == 0 {
				fatal(fmt.Errorf("%s: no track points", args[0]))
			}
			munic, err := loadCollection(cmd.Context(), "kommuner", args[1])
			if err != nil {
				fatal(err)
			}

			center, err := parseCenter(opts.Center)
			if err != nil {
				fatal(err)
			}
			ctrlOpts, err := controllerOptions(opts)
			if err != nil {
				fatal(err)
			}
			if ctrlOpts.MunicipalityNameKey == "" {
				ctrlOpts.MunicipalityNameKey = controller.MunicipalityNameKey
			}

			view := engine.NewView(center, float64(opts.Zoom))
			marker := engine.NewMarker(engine.Style{})
			replay := geoloc.NewReplay(points, interval)
			defer replay.Close()

			// Subscribed before the controller starts playback so the
			// first fix is not missed.
			n := 0
			replay.Subscribe(func(p geoloc.Position) {
				n++
				name := "-"
				if hits := munic.At(p.Point()); len(hits) > 0 {
					name = hits[0].Name(ctrlOpts.MunicipalityNameKey)
				}
				fmt.Printf("%4d  %s  %9.5f %9.5f  %s\n", n, p.Time.Format(time.TimeOnly), p.Lon, p.Lat, name)
			})

			ctrl := controller.New(controller.Deps{
				Municipalities: munic,
				View:           view,
				Marker:         marker,
				Locator:        replay,
			}, ctrlOpts)
			defer ctrl.Close()

			<-replay.Done()
			c := view.Target()
			fmt.Printf("view centered on %.5f,%.5f after %d fixes\n", c[0], c[1], n)
		}),
	}
	cmd.Flags().Duration("interval", 200*time.Millisecond, "Time between replayed fixes")
	return cmd
}
