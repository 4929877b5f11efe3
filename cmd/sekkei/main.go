package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashita-ai/sekkei"
	"github.com/ashita-ai/sekkei/internal/config"
	"github.com/ashita-ai/sekkei/internal/conversion"
	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/service/graphs"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level, err := config.ParseLogLevel(os.Getenv("SEKKEI_LOG_LEVEL"))
	if err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "sekkei",
		Short:         "Design exploration and integration graph synthesis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(logger), newConvertCmd(logger), newVersionCmd())
	return root
}

func newServeCmd(logger *slog.Logger) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := []sekkei.Option{sekkei.WithVersion(version), sekkei.WithLogger(logger)}
			if port != 0 {
				opts = append(opts, sekkei.WithPort(port))
			}
			app, err := sekkei.New(opts...)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides SEKKEI_PORT)")
	return cmd
}

type convertFlags struct {
	file       string
	format     string
	graph      string
	keywords   []string
	idStrategy string
	simplified bool
}

func newConvertCmd(logger *slog.Logger) *cobra.Command {
	var f convertFlags
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a design history document into its graphs",
		Long: `Reads a YAML or JSON history document and prints the requested graph as JSON.

  events:
    - kind: SituationAssessment
      system: car_running
      situation: obstacle_detected

Events without edges are chained in order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConvert(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), logger, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "-", "history document, - for stdin")
	fl.StringVar(&f.format, "format", "", "document format: yaml or json (inferred when empty)")
	fl.StringVarP(&f.graph, "graph", "g", "si", "graph to print: de, ld, ld_simplified, si or all")
	fl.StringSliceVar(&f.keywords, "keywords", nil, "simplification keywords (default from SEKKEI_CLASSIFIER_KEYWORDS)")
	fl.StringVar(&f.idStrategy, "id-strategy", graph.IDStrategyCounter, "IDs for events without one: counter or uuid")
	fl.BoolVar(&f.simplified, "simplified", false, "with --graph all, print the simplified dependency graph as ld")
	return cmd
}

func runConvert(ctx context.Context, stdin io.Reader, stdout io.Writer, logger *slog.Logger, f convertFlags) error {
	data, err := readInput(stdin, f.file)
	if err != nil {
		return err
	}
	doc, err := graph.ParseDocument(data, f.format)
	if err != nil {
		return err
	}
	ids, err := graph.NewIDGenerator(f.idStrategy)
	if err != nil {
		return err
	}
	h, err := doc.Build(ids)
	if err != nil {
		return err
	}

	keywords := f.keywords
	if keywords == nil {
		_ = godotenv.Load()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		keywords = cfg.ClassifierKeywords
	}
	converter := conversion.New(conversion.WithClassifier(conversion.NewKeywordClassifier(keywords...)))
	res := graphs.New(logger, graphs.WithConverter(converter)).Convert(ctx, h)
	for _, d := range res.Diagnostics() {
		logger.Warn("conversion diagnostic", "detail", d)
	}

	var out any
	if strings.EqualFold(strings.TrimSpace(f.graph), "all") {
		out = graphs.RecordsOf(res, f.simplified)
	} else {
		sel, err := graphs.ParseSelection(f.graph)
		if err != nil {
			return err
		}
		if out, err = graphs.Record(res, sel.Kind, sel.Simplified); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is an operator-supplied CLI flag
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return data, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sekkei", version)
		},
	}
}
