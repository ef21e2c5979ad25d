package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-kart/internal/controller"
	"github.com/joeblew999/plat-kart/internal/logger"
	"github.com/joeblew999/plat-kart/internal/server"
	"github.com/joeblew999/plat-kart/internal/service"
)

// Options defines all CLI flags and env vars for the kart server.
// Flags: --host, --port, --data-dir, --web-dir, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, ...
type Options struct {
	Host    string `doc:"Host to bind to" default:"0.0.0.0"`
	Port    int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir string `doc:"Directory for the layer catalogue and track database" default:".data"`
	WebDir  string `doc:"Path to web/ directory" default:"web"`

	RegionsURL        string `doc:"County GeoJSON, seeds the catalogue on first run" default:"/geojson/fylker2021.json"`
	MunicipalitiesURL string `doc:"Municipality GeoJSON, seeds the catalogue on first run" default:"/geojson/kommuner2021.json"`
	SchoolsURL        string `doc:"Upper secondary school points, seeds the catalogue on first run; empty to skip" default:"/geojson/vgs.geojson"`

	Center string `doc:"Initial view center as lon,lat" default:"11,60"`
	Zoom   int    `doc:"Initial zoom level" default:"8"`

	Locale      string `doc:"Roster collation locale (BCP 47)" default:"nb"`
	Placeholder string `doc:"Header text when no municipality is selected" default:"Velg kommune"`
	SessionTTL  int    `doc:"Minutes an unused map session is kept; 0 keeps sessions forever" default:"30"`

	LogLevel  string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat string `doc:"Log format: text or json" default:"text"`
}

func parseCenter(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("center %q: want lon,lat", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("center %q: %w", s, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("center %q: %w", s, err)
	}
	return orb.Point{lon, lat}, nil
}

func controllerOptions(opts *Options) (controller.Options, error) {
	tag, err := language.Parse(opts.Locale)
	if err != nil {
		return controller.Options{}, fmt.Errorf("locale %q: %w", opts.Locale, err)
	}
	return controller.Options{
		Placeholder: opts.Placeholder,
		Locale:      tag,
		Logger:      logger.L(),
	}, nil
}

func newServer(opts *Options) (*server.Server, error) {
	logger.Setup(opts.LogLevel, opts.LogFormat)

	center, err := parseCenter(opts.Center)
	if err != nil {
		return nil, err
	}
	ctrl, err := controllerOptions(opts)
	if err != nil {
		return nil, err
	}

	return server.New(server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		DataDir:      opts.DataDir,
		WebDir:       opts.WebDir,
		Layers:       service.DefaultLayers(opts.RegionsURL, opts.MunicipalitiesURL, opts.SchoolsURL),
		Center:       center,
		Zoom:         float64(opts.Zoom),
		Controller:   ctrl,
		SessionTTL:   time.Duration(opts.SessionTTL) * time.Minute,
		DBExtensions: []string{"spatial"},
		Logger:       logger.L(),
	})
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func main() {
	_ = godotenv.Load(".env")

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var (
			srv     *server.Server
			httpSrv *http.Server
		)

		hooks.OnStart(func() {
			var err error
			if srv, err = newServer(opts); err != nil {
				fatal(err)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-kart server starting...\n")
			fmt.Printf("  Map:     %s/\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			srv.Start(context.Background())

			httpSrv = &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.L().Error("server_error", "err", err)
				srv.Close()
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if httpSrv != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				httpSrv.Shutdown(ctx)
			}
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "kart"
	cli.Root().Short = "Interactive map of Norwegian counties and municipalities"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts)
			if err != nil {
				fatal(err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fatal(fmt.Errorf("marshaling spec: %w", err))
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Root().AddCommand(rosterCmd(), followCmd())

	cli.Run()
}
