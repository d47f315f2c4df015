package probe

import (
	"context"
	"errors"
	"strings"

	"github.com/micromdm/nanoprobe/log/logkeys"
	"github.com/micromdm/nanoprobe/runner"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

// Resolver runs probe lists against one backend.
type Resolver struct {
	runner  runner.Runner
	backend runner.Backend
	logger  log.Logger
}

type Option func(*Resolver)

// WithLogger configures the logger.
func WithLogger(logger log.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a new resolver for backend b.
func NewResolver(run runner.Runner, b runner.Backend, opts ...Option) *Resolver {
	r := &Resolver{
		runner:  run,
		backend: b,
		logger:  log.NopLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backend returns the backend the resolver probes.
func (r *Resolver) Backend() runner.Backend {
	return r.backend
}

var errNoOutput = errors.New("no output")

// attempt runs probe p and returns its candidate values. A probe yields
// its normalized output as one candidate; with perLine set, each non-empty
// output line is normalized into a candidate of its own.
func (r *Resolver) attempt(ctx context.Context, p Probe, perLine bool) ([]string, error) {
	var raw string
	if p.Fetch != nil {
		var err error
		if raw, err = p.Fetch(ctx); err != nil {
			return nil, err
		}
	} else {
		res := r.runner.Run(ctx, r.backend, p.Command)
		if !res.OK() {
			return nil, errors.New(res.Message())
		}
		raw = res.Output
	}
	if p.Prepare != nil {
		raw = p.Prepare(raw)
	}

	var candidates []string
	switch {
	case p.Verbatim:
		candidates = []string{raw}
	case perLine:
		for _, line := range strings.Split(raw, "\n") {
			if line = Normalize(line); line != "" {
				candidates = append(candidates, line)
			}
		}
	default:
		candidates = []string{Normalize(raw)}
	}
	if len(candidates) < 1 || candidates[0] == "" {
		return nil, errNoOutput
	}
	return candidates, nil
}

// each runs the applicable probes of spec in order, calling fn with each
// validated value until fn returns false.
func (r *Resolver) each(ctx context.Context, name string, spec Spec, v Validator, perLine bool, fn func(i int, value string) bool) {
	logger := ctxlog.Logger(ctx, r.logger).With(logkeys.Attribute, name)
	for i, p := range spec {
		if !p.AppliesTo(r.backend) {
			continue
		}
		candidates, err := r.attempt(ctx, p, perLine)
		if err != nil {
			logger.Debug(
				logkeys.ProbeIndex, i,
				logkeys.Command, p.String(),
				logkeys.Error, err,
			)
			continue
		}
		for _, c := range candidates {
			value, ok := v(c)
			if !ok {
				logger.Debug(
					logkeys.ProbeIndex, i,
					logkeys.Command, p.String(),
					logkeys.Message, "validation failed",
				)
				continue
			}
			if !fn(i, value) {
				return
			}
		}
	}
}

// Resolve commits to the first probe in spec that both runs successfully
// and validates. Later probes are not run. When nothing validates the
// result holds Unavailable; that is an expected outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, name string, spec Spec, v Validator) Result {
	res := unavailable(name)
	r.each(ctx, name, spec, v, false, func(i int, value string) bool {
		res = Result{Name: name, Value: value, Validated: true, Source: i}
		return false
	})
	return res
}

// ResolveMulti collects up to max distinct validated values from spec, in
// probe order. Each output line of a probe is a separate candidate, so one
// probe listing every slot can fill several values. Duplicate values are
// suppressed. When nothing validates a single unavailable result is
// returned.
func (r *Resolver) ResolveMulti(ctx context.Context, name string, spec Spec, v Validator, max int) []Result {
	var ret []Result
	seen := make(map[string]bool)
	r.each(ctx, name, spec, v, true, func(i int, value string) bool {
		if !seen[value] {
			seen[value] = true
			ret = append(ret, Result{Name: name, Value: value, Validated: true, Source: i})
		}
		return len(ret) < max
	})
	if len(ret) < 1 {
		return []Result{unavailable(name)}
	}
	return ret
}
