package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/joeblew999/plat-kart/internal/controller"
	"github.com/joeblew999/plat-kart/internal/engine"
)

// fileURL turns a command-line path into a loader URL.
func fileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file://" + abs, nil
}

// loadCollection reads a GeoJSON file into a named collection.
func loadCollection(ctx context.Context, name, path string) (*engine.Collection, error) {
	url, err := fileURL(path)
	if err != nil {
		return nil, err
	}
	fc, err := engine.NewFileLoader().Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	c := engine.NewCollection(name)
	c.Replace(fc)
	return c, nil
}

func rosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster <municipalities.geojson>",
		Short: "Print the municipality roster in collation order",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			ctrlOpts, err := controllerOptions(opts)
			if err != nil {
				fatal(err)
			}
			if key, _ := cmd.Flags().GetString("name-key"); key != "" {
				ctrlOpts.MunicipalityNameKey = key
			}

			munic := engine.NewCollection("kommuner")
			ctrl := controller.New(controller.Deps{Municipalities: munic}, ctrlOpts)
			defer ctrl.Close()

			loaded, err := loadCollection(cmd.Context(), "kommuner", args[0])
			if err != nil {
				fatal(err)
			}
			munic.Add(loaded.Features()...)

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tNAME\tID\tCENTER")
			for i, e := range ctrl.Roster() {
				c := e.Center()
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.5f,%.5f\n", i+1, e.Name, e.ID, c[0], c[1])
			}
			tw.Flush()
		}),
	}
	cmd.Flags().String("name-key", "", "Property holding the municipality name (default kommunenavn)")
	return cmd
}
