package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-polymer/internal/db"
	"github.com/joeblew999/plat-polymer/internal/feature"
	"github.com/joeblew999/plat-polymer/internal/logger"
	"github.com/joeblew999/plat-polymer/internal/server"
	"github.com/joeblew999/plat-polymer/internal/store"
)

// Options defines all CLI flags and env vars for the review server.
// Flags: --host, --port, --data-dir, --web-dir, --backend-url, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_BACKEND_URL, ...
type Options struct {
	Host         string        `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int           `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir      string        `doc:"Directory for COGs, GeoJSON sources and the DuckDB store" default:".data"`
	WebDir       string        `doc:"Serve templates and static files from this directory instead of the embedded copy"`
	BackendURL   string        `doc:"Remote feature service URL; empty uses the local store"`
	BackendToken string        `doc:"Bearer token for the remote feature service"`
	RedisAddr    string        `doc:"Redis address for session snapshots; empty disables them"`
	RedisPass    string        `doc:"Redis password"`
	RedisDB      int           `doc:"Redis database" default:"0"`
	SessionTTL   int           `doc:"Idle minutes before a session is dropped" default:"120"`
	AutoRecenter bool          `doc:"Recenter on a feature after it is dragged or reset" default:"true"`
	MaxPasses    int           `doc:"Passes over skipped features before a worklist completes" default:"2"`
}

func newServer(opts *Options) (*server.Server, error) {
	return server.New(server.Config{
		Host:          opts.Host,
		Port:          fmt.Sprintf("%d", opts.Port),
		DataDir:       opts.DataDir,
		WebDir:        opts.WebDir,
		BackendURL:    opts.BackendURL,
		BackendToken:  opts.BackendToken,
		RedisAddr:     opts.RedisAddr,
		RedisPassword: opts.RedisPass,
		RedisDB:       opts.RedisDB,
		SessionTTL:    time.Duration(opts.SessionTTL) * time.Minute,
		AutoRecenter:  opts.AutoRecenter,
		MaxPasses:     opts.MaxPasses,
	})
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	// .env is optional
	_ = godotenv.Load()
	log := logger.Setup()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server
		httpServer := &http.Server{Addr: fmt.Sprintf("%s:%d", opts.Host, opts.Port)}
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			var err error
			srv, err = newServer(opts)
			if err != nil {
				fatal("Startup error: %v", err)
			}
			httpServer.Handler = srv
			go srv.Run(ctx)

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-polymer review server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Review:  %s/points-lines/{cog_id}\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server_error", "err", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			cancel()
			shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			httpServer.Shutdown(shutdown)
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "polymer"
	cli.Root().Short = "Review points and lines extracted from geological maps"
	cli.Root().Version = "1.0.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts)
			if err != nil {
				fatal("Error: %v", err)
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
				fatal("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// import subcommand: load a GeoJSON file into the local store
	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a GeoJSON feature collection as one extraction run",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			flags := cmd.Flags()
			cogID, _ := flags.GetString("cog-id")
			ftype, _ := flags.GetString("ftype")
			system, _ := flags.GetString("system")
			version, _ := flags.GetString("version")

			ft, err := feature.ParseFType(ftype)
			if err != nil {
				fatal("Error: %v", err)
			}
			if cogID == "" || system == "" || version == "" {
				fatal("Error: --cog-id, --system and --version are required")
			}

			fc, err := store.ReadFeatureCollection(args[0])
			if err != nil {
				fatal("Error: %v", err)
			}

			conn, err := db.Open(db.Config{DataDir: opts.DataDir})
			if err != nil {
				fatal("Error: %v", err)
			}
			defer conn.Close()

			ctx := context.Background()
			st, err := store.New(ctx, conn, log)
			if err != nil {
				fatal("Error: %v", err)
			}
			res, err := st.ImportGeoJSON(ctx, store.ImportRequest{CogID: cogID, FType: ft, System: system, Version: version}, fc)
			if err != nil {
				fatal("Import failed: %v", err)
			}
			fmt.Printf("Imported %d features and %d legend items into %s\n", res.Features, res.LegendItems, cogID)
		}),
	}
	importCmd.Flags().String("cog-id", "", "COG identifier")
	importCmd.Flags().String("ftype", "point", "Feature type (point or line)")
	importCmd.Flags().String("system", "", "Extraction system")
	importCmd.Flags().String("version", "", "System version")
	cli.Root().AddCommand(importCmd)

	cli.Run()
}
