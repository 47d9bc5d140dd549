package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	eventbus "github.com/hanpama/protofetch/internal/eventbus"
	events "github.com/hanpama/protofetch/internal/events"
	language "github.com/hanpama/protofetch/internal/language"
	projection "github.com/hanpama/protofetch/internal/projection"
	protoreg "github.com/hanpama/protofetch/internal/protoreg"
	reqid "github.com/hanpama/protofetch/internal/reqid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Handler is an http.Handler that projects GraphQL selections over source
// documents posted with the request.
type Handler struct {
	reg   *protoreg.Registry
	types *dynamicpb.Types
	opt   Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// DefaultMessage is the root message used when a request names none.
	DefaultMessage string
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithDefaultMessage(fullName string) Option {
	return func(o *Options) { o.DefaultMessage = fullName }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a handler serving projections over the messages of reg.
func New(reg *protoreg.Registry, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{reg: reg, types: dynamicpb.NewTypes(reg.Files()), opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, _ = reqid.NewContext(ctx)
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != "" {
		status = http.StatusBadRequest
		if berr == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(berr), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if batch != nil {
		op := make([]any, len(batch))
		for i := range batch {
			op[i] = h.executeOne(ctx, batch[i])
		}
		writeJSON(w, status, op, h.opt.Pretty)
		return
	}

	writeJSON(w, status, h.executeOne(ctx, req), h.opt.Pretty)
}

func (h *Handler) executeOne(ctx context.Context, req ProjectionRequest) *projection.Result {
	name := req.Message
	if name == "" {
		name = h.opt.DefaultMessage
	}
	if name == "" {
		return errorResponse("missing 'message'")
	}
	md, err := h.reg.Message(name)
	if err != nil {
		return errorResponse(err.Error())
	}

	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		return errorResponse(err.Error())
	}

	var source any
	absent := len(req.Source) == 0 || string(req.Source) == "null"
	switch req.SourceKind {
	case "", "message":
		if absent {
			break
		}
		msg := dynamicpb.NewMessage(md)
		if err := (protojson.UnmarshalOptions{Resolver: h.types}).Unmarshal(req.Source, msg); err != nil {
			return errorResponse(fmt.Sprintf("invalid 'source': %v", err))
		}
		source = msg
	case "map":
		if absent {
			break
		}
		var m map[string]any
		if err := json.Unmarshal(req.Source, &m); err != nil {
			return errorResponse(fmt.Sprintf("invalid 'source': %v", err))
		}
		source = m
	default:
		return errorResponse(fmt.Sprintf("unknown 'sourceKind' %q", req.SourceKind))
	}

	return projection.New(h.reg, md).Project(ctx, doc, req.OperationName, req.Variables, source)
}

// ------------------ Request parsing ------------------

// ProjectionRequest is the JSON body of one projection.
type ProjectionRequest struct {
	Message       string          `json:"message,omitempty"`
	Query         string          `json:"query"`
	OperationName string          `json:"operationName,omitempty"`
	Variables     map[string]any  `json:"variables,omitempty"`
	Source        json.RawMessage `json:"source"`
	SourceKind    string          `json:"sourceKind,omitempty"`
}

func parseRequest(r *http.Request, maxBody int64) (ProjectionRequest, []ProjectionRequest, string) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return ProjectionRequest{}, nil, "unsupported Content-Type"
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return ProjectionRequest{}, nil, "failed to read body"
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return ProjectionRequest{}, nil, errBodyTooLargeMessage
	}

	// Try array (batch)
	if len(body) > 0 && body[0] == '[' {
		var arr []ProjectionRequest
		if err := json.Unmarshal(body, &arr); err != nil {
			return ProjectionRequest{}, nil, "invalid JSON"
		}
		if len(arr) == 0 {
			return ProjectionRequest{}, nil, "empty batch"
		}
		for i := range arr {
			if arr[i].Query == "" {
				return ProjectionRequest{}, nil, fmt.Sprintf("missing 'query' in batch item %d", i)
			}
		}
		return ProjectionRequest{}, arr, ""
	}
	var req ProjectionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return ProjectionRequest{}, nil, "invalid JSON"
	}
	if req.Query == "" {
		return ProjectionRequest{}, nil, "missing 'query'"
	}
	return req, nil, ""
}

// ------------------ Response formatting ------------------

func errorResponse(message string) *projection.Result {
	return &projection.Result{Errors: []projection.GraphQLError{{Message: message}}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

const errBodyTooLargeMessage = "body too large"

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
