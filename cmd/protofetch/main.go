package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/hanpama/protofetch/internal/eventbus"
	"github.com/hanpama/protofetch/internal/fieldres"
	"github.com/hanpama/protofetch/internal/language"
	"github.com/hanpama/protofetch/internal/otel"
	"github.com/hanpama/protofetch/internal/projection"
	"github.com/hanpama/protofetch/internal/protoreg"
	"github.com/hanpama/protofetch/internal/schema"
	"github.com/hanpama/protofetch/internal/server"
	"github.com/hanpama/protofetch/internal/zaplog"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

const rootUsage = `protofetch: resolve GraphQL selections over protobuf-shaped data

USAGE:
  protofetch <command> [flags]

COMMANDS:
  resolve          Project a query over a message decoded from JSON
  serve            Run an HTTP endpoint projecting posted source documents
  accessors        List field resolution names for a message type
  sdl              Print the GraphQL types derived from a message type
  render           Write .proto sources for a descriptor set
  help             Show help for any command
`

const resolveUsage = `resolve FLAGS:
  -descriptors <file>      Binary FileDescriptorSet (required)
  -message <name>          Fully qualified root message, e.g. acme.User (required)
  -input <file>            JSON source document, "-" for stdin (default: -)
  -source <kind>           How to present the input: message | map (default: message)
  -query <text>            GraphQL query (required unless -query.file is set)
  -query.file <file>       Read the query from a file
  -operation <name>        Operation to run when the document has several
  -variables <json>        Variables as a JSON object
  -pretty                  Pretty-print JSON output
  -timeout <duration>      Projection timeout, e.g. 5s (default: 10s)
  -otel.endpoint <addr>    OTLP collector endpoint
  -otel.service <name>     OpenTelemetry service name (default: protofetch)
  -log.level <level>       Log projection events at debug | info | warn | error
`

const serveUsage = `serve FLAGS:
  -descriptors <file>              Binary FileDescriptorSet (required)
  -message <name>                  Root message for requests that name none
  -server.addr <addr>              HTTP listen address (default: :8080)
  -server.pretty                   Pretty-print JSON responses
  -server.timeout <duration>       Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body <bytes>         Reject larger request bodies (default: 1048576)
  -server.cors-origin <origin>     Allow a CORS origin. Repeatable; "*" allows any
  -otel.endpoint <addr>            OTLP collector endpoint
  -otel.service <name>             OpenTelemetry service name (default: protofetch)
  -log.level <level>               Log requests and projections (default: info)
`

const accessorsUsage = `accessors FLAGS:
  -descriptors <file>      Binary FileDescriptorSet (required)
  -message <name>          Fully qualified message (required)
`

const sdlUsage = `sdl FLAGS:
  -descriptors <file>      Binary FileDescriptorSet (required)
  -message <name>          Fully qualified root message (required)
  -out <file>              Write SDL to file (default: stdout)
`

const renderUsage = `render FLAGS:
  -descriptors <file>      Binary FileDescriptorSet (required)
  -out <dir>               Output directory for .proto files (required)
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("protofetch", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "resolve":
		return cmdResolve(cmdArgs, stdin, stdout, stderr)
	case "serve":
		return cmdServe(cmdArgs, stderr)
	case "accessors":
		return cmdAccessors(cmdArgs, stdout, stderr)
	case "sdl":
		return cmdSDL(cmdArgs, stdout, stderr)
	case "render":
		return cmdRender(cmdArgs, stderr)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "resolve":
		fmt.Fprint(stdout, resolveUsage)
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "accessors":
		fmt.Fprint(stdout, accessorsUsage)
	case "sdl":
		fmt.Fprint(stdout, sdlUsage)
	case "render":
		fmt.Fprint(stdout, renderUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

func cmdResolve(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	descriptors := ""
	message := ""
	input := "-"
	sourceKind := "message"
	query := ""
	queryFile := ""
	operation := ""
	variables := ""
	pretty := false
	timeout := 10 * time.Second
	otelEndpoint := ""
	otelService := "protofetch"
	logLevel := ""

	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&descriptors, "descriptors", descriptors, "Binary FileDescriptorSet")
	fs.StringVar(&message, "message", message, "Root message")
	fs.StringVar(&input, "input", input, "JSON source document")
	fs.StringVar(&sourceKind, "source", sourceKind, "message or map")
	fs.StringVar(&query, "query", query, "GraphQL query")
	fs.StringVar(&queryFile, "query.file", queryFile, "GraphQL query file")
	fs.StringVar(&operation, "operation", operation, "Operation name")
	fs.StringVar(&variables, "variables", variables, "Variables as JSON")
	fs.BoolVar(&pretty, "pretty", pretty, "Pretty-print JSON output")
	fs.DurationVar(&timeout, "timeout", timeout, "Projection timeout")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	fs.StringVar(&logLevel, "log.level", logLevel, "Log level")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, resolveUsage)
		return err
	}
	if descriptors == "" || message == "" {
		fmt.Fprint(stderr, resolveUsage)
		return fmt.Errorf("-descriptors and -message are required")
	}
	if queryFile != "" {
		b, err := os.ReadFile(queryFile)
		if err != nil {
			return fmt.Errorf("read query: %w", err)
		}
		query = string(b)
	}
	if query == "" {
		fmt.Fprint(stderr, resolveUsage)
		return fmt.Errorf("-query or -query.file is required")
	}
	var vars map[string]any
	if variables != "" {
		if err := json.Unmarshal([]byte(variables), &vars); err != nil {
			return fmt.Errorf("parse variables: %w", err)
		}
	}

	reg, md, err := loadMessage(descriptors, message)
	if err != nil {
		return err
	}
	data, err := readInput(input, stdin)
	if err != nil {
		return err
	}
	source, err := decodeSource(reg, md, sourceKind, data)
	if err != nil {
		return err
	}
	doc, err := language.ParseQuery(query)
	if err != nil {
		return fmt.Errorf("parse query: %w", err)
	}

	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	logger, err := zaplog.New(logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer zaplog.Register(logger)()
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	result := projection.New(reg, md).Project(ctx, doc, operation, vars, source)

	enc := json.NewEncoder(stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdServe(args []string, stderr io.Writer) error {
	descriptors := ""
	message := ""
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	maxBody := int64(1 << 20)
	var corsOrigins stringListFlag
	otelEndpoint := ""
	otelService := "protofetch"
	logLevel := "info"

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&descriptors, "descriptors", descriptors, "Binary FileDescriptorSet")
	fs.StringVar(&message, "message", message, "Default root message")
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Int64Var(&maxBody, "server.max-body", maxBody, "Maximum request body size")
	fs.Var(&corsOrigins, "server.cors-origin", "Allowed CORS origin")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	fs.StringVar(&logLevel, "log.level", logLevel, "Log level")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}
	if descriptors == "" {
		fmt.Fprint(stderr, serveUsage)
		return fmt.Errorf("-descriptors is required")
	}

	reg, err := loadRegistry(descriptors)
	if err != nil {
		return err
	}
	if message != "" {
		if _, err := reg.Message(message); err != nil {
			return err
		}
	}

	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	logger, err := zaplog.New(logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer zaplog.Register(logger)()
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	sopts := []server.Option{server.WithMaxBodyBytes(maxBody)}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if timeout > 0 {
		sopts = append(sopts, server.WithTimeout(timeout))
	}
	if len(corsOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(corsOrigins...))
	}
	if message != "" {
		sopts = append(sopts, server.WithDefaultMessage(message))
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", server.New(reg, sopts...))

	logger.Info("projection server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

func cmdAccessors(args []string, stdout, stderr io.Writer) error {
	descriptors := ""
	message := ""
	fs := flag.NewFlagSet("accessors", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&descriptors, "descriptors", descriptors, "Binary FileDescriptorSet")
	fs.StringVar(&message, "message", message, "Message")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, accessorsUsage)
		return err
	}
	if descriptors == "" || message == "" {
		fmt.Fprint(stderr, accessorsUsage)
		return fmt.Errorf("-descriptors and -message are required")
	}
	reg, md, err := loadMessage(descriptors, message)
	if err != nil {
		return err
	}

	sch := reg.Schema(md)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tGRAPHQL\tTYPE\tMAP KEY\tACCESSOR\tVARIANT")
	for _, f := range sch.GetRootType().Fields {
		res := reg.ResolverFor(f.Source)
		variant := "plain"
		if res.IsWrapper() {
			variant = "wrapper"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			f.Source.Name(), f.Name, f.Type, res.MapKey(), res.AccessorName(), variant)
	}
	return tw.Flush()
}

func cmdSDL(args []string, stdout, stderr io.Writer) error {
	descriptors := ""
	message := ""
	outFile := ""
	fs := flag.NewFlagSet("sdl", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&descriptors, "descriptors", descriptors, "Binary FileDescriptorSet")
	fs.StringVar(&message, "message", message, "Root message")
	fs.StringVar(&outFile, "out", outFile, "Write SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, sdlUsage)
		return err
	}
	if descriptors == "" || message == "" {
		fmt.Fprint(stderr, sdlUsage)
		return fmt.Errorf("-descriptors and -message are required")
	}
	reg, md, err := loadMessage(descriptors, message)
	if err != nil {
		return err
	}
	sdl := schema.Render(reg.Schema(md))
	if outFile == "" {
		fmt.Fprint(stdout, sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}

func cmdRender(args []string, stderr io.Writer) error {
	descriptors := ""
	outDir := ""
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&descriptors, "descriptors", descriptors, "Binary FileDescriptorSet")
	fs.StringVar(&outDir, "out", outDir, "Output directory for .proto files")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, renderUsage)
		return err
	}
	if descriptors == "" || outDir == "" {
		fmt.Fprint(stderr, renderUsage)
		return fmt.Errorf("-descriptors and -out are required")
	}
	files, err := protoreg.Load(descriptors)
	if err != nil {
		return fmt.Errorf("load descriptors: %w", err)
	}
	if err := protoreg.Render(files, outDir); err != nil {
		return fmt.Errorf("render proto: %w", err)
	}
	return nil
}

func loadRegistry(descriptors string) (*protoreg.Registry, error) {
	files, err := protoreg.Load(descriptors)
	if err != nil {
		return nil, fmt.Errorf("load descriptors: %w", err)
	}
	return protoreg.New(files, fieldres.WithAccessors(fieldres.ReflectAccessors{})), nil
}

func loadMessage(descriptors, message string) (*protoreg.Registry, protoreflect.MessageDescriptor, error) {
	reg, err := loadRegistry(descriptors)
	if err != nil {
		return nil, nil, err
	}
	md, err := reg.Message(message)
	if err != nil {
		return nil, nil, err
	}
	return reg, md, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return b, nil
}

// decodeSource presents data as a protobuf message or as a plain JSON object.
func decodeSource(reg *protoreg.Registry, md protoreflect.MessageDescriptor, kind string, data []byte) (any, error) {
	switch kind {
	case "message":
		msg := dynamicpb.NewMessage(md)
		opts := protojson.UnmarshalOptions{Resolver: dynamicpb.NewTypes(reg.Files())}
		if err := opts.Unmarshal(data, msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", md.FullName(), err)
		}
		return msg, nil
	case "map":
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown -source %q", kind)
	}
}
