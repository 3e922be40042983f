package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"sync/atomic"

	"drunc.client/internal/core/domain"
	"drunc.client/internal/core/logger"
	"drunc.client/internal/core/ports"
)

// getenvMarker asks for a variable to be copied from the local process environment.
const getenvMarker = "getenv"

// BootRequestCompiler translates configuration descriptors into boot requests.
type BootRequestCompiler struct {
	segments  ports.SegmentResolver
	logger    *slog.Logger
	lookupEnv func(string) (string, bool)
}

type CompilerOption func(*BootRequestCompiler)

// WithSegmentResolver enables SegmentDatabase descriptors.
func WithSegmentResolver(r ports.SegmentResolver) CompilerOption {
	return func(c *BootRequestCompiler) { c.segments = r }
}

func WithCompilerLogger(l *slog.Logger) CompilerOption {
	return func(c *BootRequestCompiler) { c.logger = l }
}

// WithLookupEnv replaces os.LookupEnv for "getenv" variables.
func WithLookupEnv(fn func(string) (string, bool)) CompilerOption {
	return func(c *BootRequestCompiler) { c.lookupEnv = fn }
}

func NewBootRequestCompiler(opts ...CompilerOption) *BootRequestCompiler {
	c := &BootRequestCompiler{
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.With("boot_compiler")
	}
	return c
}

// Compile validates d and returns a lazy, single-pass sequence of boot
// requests. Unsupported descriptors fail here, before any sequence exists.
// Errors met while iterating are yielded once and end the sequence.
func (c *BootRequestCompiler) Compile(ctx context.Context, d domain.Descriptor, id domain.Identity, session string) (iter.Seq2[*domain.BootRequest, error], error) {
	switch desc := d.(type) {
	case domain.NativeBootPlan:
		plan, err := c.loadNativePlan(desc)
		if err != nil {
			return nil, err
		}
		return singlePass(c.compileNative(plan, id, session)), nil
	case domain.SegmentDatabase:
		if c.segments == nil {
			return nil, errors.New("segment database descriptors need a segment resolver")
		}
		return singlePass(c.compileSegments(ctx, desc, id, session)), nil
	case nil:
		return nil, errors.New("nil configuration descriptor")
	default:
		return nil, &domain.ConfigurationTypeNotSupportedError{Type: d.ConfType()}
	}
}

func (c *BootRequestCompiler) loadNativePlan(desc domain.NativeBootPlan) (*nativePlan, error) {
	data := desc.Document
	if data == nil {
		var err error
		data, err = os.ReadFile(desc.Path)
		if err != nil {
			return nil, fmt.Errorf("read boot plan: %w", err)
		}
	}
	return parseNativePlan(data)
}

func (c *BootRequestCompiler) compileNative(plan *nativePlan, id domain.Identity, session string) iter.Seq2[*domain.BootRequest, error] {
	return func(yield func(*domain.BootRequest, error) bool) {
		for i, inst := range plan.Instances {
			req, err := c.nativeRequest(plan, inst, id, session)
			if err != nil {
				yield(nil, fmt.Errorf("instance %d: %w", i, err))
				return
			}
			if !yield(req, nil) {
				return
			}
		}
	}
}

func (c *BootRequestCompiler) nativeRequest(plan *nativePlan, inst map[string]any, id domain.Identity, session string) (*domain.BootRequest, error) {
	fields := make(map[string]string, len(inst))
	for k, v := range inst {
		fields[k] = valueText(v)
	}
	if _, ok := inst["name"]; !ok {
		return nil, errors.New("instance has no name")
	}
	name := fields["name"]

	typ, ok := inst["type"]
	if !ok {
		return nil, fmt.Errorf("%q has no type", name)
	}
	group, ok := plan.Executables[valueText(typ)]
	if !ok {
		return nil, fmt.Errorf("%q: unknown executable type %q", name, valueText(typ))
	}

	steps := []domain.ExecAndArgs{}
	for _, obj := range group.ExecutableAndArguments {
		s, err := stepsOf(obj)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		steps = append(steps, s...)
	}

	env := map[string]string{"SESSION": session}
	for _, f := range group.Environment {
		v, err := decodeValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%q: environment %s: %w", name, f.Key, err)
		}
		s, isString := v.(string)
		switch {
		case isString && s == getenvMarker:
			if val, ok := c.lookupEnv(f.Key); ok && val != "" {
				env[f.Key] = val
			} else {
				c.logger.Warn("Variable is not in the environment, so won't be set", "variable", f.Key, "process", name)
			}
		case isString:
			expanded, err := expandTemplate(s, fields)
			if err != nil {
				return nil, fmt.Errorf("%q: environment %s: %w", name, f.Key, err)
			}
			env[f.Key] = expanded
		default:
			env[f.Key] = valueText(v)
		}
	}

	r, ok := inst["restriction"]
	if !ok {
		return nil, fmt.Errorf("%q has no restriction", name)
	}
	rg, ok := plan.Restrictions[valueText(r)]
	if !ok {
		return nil, fmt.Errorf("%q: unknown restriction %q", name, valueText(r))
	}
	hosts := append([]string{}, rg.Hosts...)

	return &domain.BootRequest{
		ProcessDescription: domain.ProcessDescription{
			Metadata: domain.ProcessMetadata{
				User:    id.UserName,
				Session: session,
				Name:    name,
			},
			ExecutableAndArguments: steps,
			Env:                    env,
		},
		ProcessRestriction: domain.ProcessRestriction{AllowedHosts: hosts},
	}, nil
}

// stepsOf reads one entry of executable_and_arguments. It is either
// {"exec": "x", "args": [...]} or a mapping of executable to arguments,
// flattened in key order.
func stepsOf(obj orderedObject) ([]domain.ExecAndArgs, error) {
	values := make(map[string]any, len(obj))
	for _, f := range obj {
		v, err := decodeValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", f.Key, err)
		}
		values[f.Key] = v
	}

	if exec, ok := values["exec"].(string); ok && isExecArgsPair(obj) {
		return []domain.ExecAndArgs{{Exec: exec, Args: argsOf(values["args"])}}, nil
	}

	steps := make([]domain.ExecAndArgs, 0, len(obj))
	for _, f := range obj {
		steps = append(steps, domain.ExecAndArgs{Exec: f.Key, Args: argsOf(values[f.Key])})
	}
	return steps, nil
}

func isExecArgsPair(obj orderedObject) bool {
	for _, f := range obj {
		if f.Key != "exec" && f.Key != "args" {
			return false
		}
	}
	return true
}

func (c *BootRequestCompiler) compileSegments(ctx context.Context, db domain.SegmentDatabase, id domain.Identity, session string) iter.Seq2[*domain.BootRequest, error] {
	return func(yield func(*domain.BootRequest, error) bool) {
		tree, err := c.segments.Resolve(ctx, db.Reference, session)
		if err != nil {
			yield(nil, fmt.Errorf("resolve %q: %w", db.Reference, err))
			return
		}
		if tree == nil || tree.Segment == nil {
			yield(nil, fmt.Errorf("resolve %q: session %q has no segment", db.Reference, session))
			return
		}

		alloc := NewPortAllocator(BasePort)
		tree.Segment.Walk(func(app *domain.Application) bool {
			req, err := segmentRequest(tree, app, alloc.Next(app.Host), id, session)
			if err != nil {
				yield(nil, err)
				return false
			}
			c.logger.Debug("Compiled boot request", "process", app.Name, "host", app.Host)
			return yield(req, nil)
		})
	}
}

func segmentRequest(tree *domain.SessionTree, app *domain.Application, port int, id domain.Identity, session string) (*domain.BootRequest, error) {
	fields := map[string]string{
		"name":        app.Name,
		"type":        app.Type,
		"args":        app.Args,
		"restriction": app.Host,
		"host":        app.Host,
		"port":        strconv.Itoa(port),
	}

	steps := make([]domain.ExecAndArgs, 0, 2)
	if tree.RTEScript != "" {
		steps = append(steps, domain.ExecAndArgs{Exec: "source", Args: []string{tree.RTEScript}})
	}
	args := []string{}
	if app.Args != "" {
		args = append(args, app.Args)
	}
	steps = append(steps, domain.ExecAndArgs{Exec: app.Type, Args: args})

	env := map[string]string{"PORT": strconv.Itoa(port)}
	for _, k := range slices.Sorted(maps.Keys(app.Env)) {
		v, err := expandTemplate(app.Env[k], fields)
		if err != nil {
			return nil, fmt.Errorf("application %q: environment %s: %w", app.Name, k, err)
		}
		env[k] = v
	}

	return &domain.BootRequest{
		ProcessDescription: domain.ProcessDescription{
			Metadata: domain.ProcessMetadata{
				User:    id.UserName,
				Session: session,
				Name:    app.Name,
			},
			ExecutableAndArguments: steps,
			Env:                    env,
		},
		ProcessRestriction: domain.ProcessRestriction{AllowedHosts: []string{app.Host}},
	}, nil
}

// singlePass guards seq so that ranging over it a second time yields
// domain.ErrSequenceConsumed instead of restarting it.
func singlePass[T any](seq iter.Seq2[T, error]) iter.Seq2[T, error] {
	var used atomic.Bool
	return func(yield func(T, error) bool) {
		if used.Swap(true) {
			var zero T
			yield(zero, domain.ErrSequenceConsumed)
			return
		}
		seq(yield)
	}
}
