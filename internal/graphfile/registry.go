package graphfile

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	flow "github.com/seoyhaein/flow-go"
)

// KindParam is the parameter under which Build records a node's worker kind.
const KindParam = "kind"

// Factory creates the worker for one node definition.
type Factory func(def NodeDef) (flow.Worker, error)

// Registry maps worker kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in kinds:
// echo, sleep, fail, exec and heavy.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("echo", newEcho)
	r.Register("sleep", newSleep)
	r.Register("fail", newFail)
	r.Register("exec", newExec)
	r.Register("heavy", newHeavy)
	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Worker resolves the worker for def.
func (r *Registry) Worker(def NodeDef) (flow.Worker, error) {
	r.mu.RLock()
	f, ok := r.factories[def.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("graphfile: node %q: unknown kind %q (known: %s)",
			def.ID, def.Kind, strings.Join(r.Kinds(), ", "))
	}
	w, err := f(def)
	if err != nil {
		return nil, fmt.Errorf("graphfile: node %q: %w", def.ID, err)
	}
	return w, nil
}

// echo returns params.value, or the node id when unset.
func newEcho(def NodeDef) (flow.Worker, error) {
	value, ok := def.Params["value"]
	if !ok {
		value = def.ID
	}
	return flow.WorkerFunc(func(_, _ *flow.Node, _ *flow.RunContext) (any, error) {
		return value, nil
	}), nil
}

// sleep waits for params.duration and returns the elapsed duration string.
func newSleep(def NodeDef) (flow.Worker, error) {
	d, err := durationParam(def.Params, "duration", 0)
	if err != nil {
		return nil, err
	}
	return flow.WorkerFunc(func(_, _ *flow.Node, rc *flow.RunContext) (any, error) {
		if err := sleepCtx(rc.Context(), d); err != nil {
			return nil, err
		}
		return d.String(), nil
	}), nil
}

// fail always returns an error carrying params.message.
func newFail(def NodeDef) (flow.Worker, error) {
	msg, _ := def.Params["message"].(string)
	if msg == "" {
		msg = "failed"
	}
	return flow.WorkerFunc(func(_, _ *flow.Node, _ *flow.RunContext) (any, error) {
		return nil, errors.New(msg)
	}), nil
}

// exec runs params.command and returns its trimmed standard output.
// command is either a list of arguments or a single string run through sh -c.
func newExec(def NodeDef) (flow.Worker, error) {
	var argv []string
	switch c := def.Params["command"].(type) {
	case string:
		argv = []string{"sh", "-c", c}
	case []any:
		for _, a := range c {
			argv = append(argv, fmt.Sprint(a))
		}
	}
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("exec: params.command is required")
	}
	dir, _ := def.Params["dir"].(string)

	return flow.WorkerFunc(func(_, _ *flow.Node, rc *flow.RunContext) (any, error) {
		cmd := exec.CommandContext(rc.Context(), argv[0], argv[1:]...) //nolint:gosec // command comes from the graph file
		cmd.Dir = dir
		out, err := cmd.Output()
		if err != nil {
			var ee *exec.ExitError
			if errors.As(err, &ee) && len(ee.Stderr) > 0 {
				return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(ee.Stderr)))
			}
			return nil, err
		}
		return strings.TrimSpace(string(out)), nil
	}), nil
}

// heavy simulates a CPU-and-IO-intensive workload for load testing:
// params.iterations rounds of arithmetic followed by a context-aware sleep.
func newHeavy(def NodeDef) (flow.Worker, error) {
	iterations, err := intParam(def.Params, "iterations", 1000)
	if err != nil {
		return nil, err
	}
	d, err := durationParam(def.Params, "sleep", 2*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return flow.WorkerFunc(func(_, _ *flow.Node, rc *flow.RunContext) (any, error) {
		sum := 0
		for i := 0; i < iterations; i++ { //nolint:intrange
			sum += i*i + i%3
		}
		// I/O 지연 시뮬레이션, ctx 취소를 따른다.
		if err := sleepCtx(rc.Context(), d); err != nil {
			return nil, err
		}
		return sum, nil
	}), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// durationParam accepts "150ms" style strings or a number of milliseconds.
func durationParam(params map[string]any, key string, def time.Duration) (time.Duration, error) {
	raw, ok := params[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("params.%s: %w", key, err)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	default:
		return 0, fmt.Errorf("params.%s: expected duration, got %T", key, raw)
	}
}

func intParam(params map[string]any, key string, def int) (int, error) {
	raw, ok := params[key]
	if !ok {
		return def, nil
	}
	v, ok := raw.(int)
	if !ok {
		return 0, fmt.Errorf("params.%s: expected integer, got %T", key, raw)
	}
	return v, nil
}
