package manager

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/macropower/rulebook/api"
	"github.com/macropower/rulebook/pkg/install"
	"github.com/macropower/rulebook/pkg/log"
	"github.com/macropower/rulebook/pkg/resolve"
)

// Result describes a single workspace operation.
type Result struct {
	Plan *resolve.Plan
	// Report is nil when the plan was not applied.
	Report *install.Report
	// ID identifies the operation in logs and traces.
	ID     string
	Root   string
	DryRun bool
}

// OpOpt configures a workspace operation.
type OpOpt func(*opOptions)

type opOptions struct {
	alsoRemove []string
	dryRun     bool
}

// WithDryRun resolves the plan without applying it.
func WithDryRun(v bool) OpOpt {
	return func(o *opOptions) {
		o.dryRun = v
	}
}

// WithAlsoRemove allows an uninstall to remove the named dependents too.
func WithAlsoRemove(names ...string) OpOpt {
	return func(o *opOptions) {
		o.alsoRemove = append(o.alsoRemove, names...)
	}
}

// Install installs names and their dependencies into the workspace at root.
func (m *Manager) Install(ctx context.Context, root string, names []string, opts ...OpOpt) (*Result, error) {
	return m.run(ctx, resolve.ModeInstall, root, names, opts...)
}

// Uninstall removes names from the workspace at root.
func (m *Manager) Uninstall(ctx context.Context, root string, names []string, opts ...OpOpt) (*Result, error) {
	return m.run(ctx, resolve.ModeUninstall, root, names, opts...)
}

// Update refreshes names in the workspace at root to their catalog
// versions. With no names, every outdated rule is updated.
func (m *Manager) Update(ctx context.Context, root string, names []string, opts ...OpOpt) (*Result, error) {
	return m.run(ctx, resolve.ModeUpdate, root, names, opts...)
}

// BulkInstall installs names into every root concurrently, one goroutine
// per distinct root. The first failure cancels the remaining operations
// between steps. Results are returned in the order of the distinct roots.
func (m *Manager) BulkInstall(ctx context.Context, roots, names []string, opts ...OpOpt) ([]*Result, error) {
	var distinct []string

	for _, root := range roots {
		clean, err := api.CleanPath(root)
		if err != nil {
			return nil, err //nolint:wrapcheck // Already wrapped.
		}

		if !slices.Contains(distinct, clean) {
			distinct = append(distinct, clean)
		}
	}

	results := make([]*Result, len(distinct))
	g, ctx := errgroup.WithContext(ctx)

	for i, root := range distinct {
		g.Go(func() error {
			res, err := m.Install(ctx, root, names, opts...)
			results[i] = res

			return err
		})
	}

	err := g.Wait()

	return results, err //nolint:wrapcheck // Errors come from Install.
}

func (m *Manager) run(ctx context.Context, mode resolve.Mode, root string, names []string, opts ...OpOpt) (*Result, error) {
	o := &opOptions{}
	for _, opt := range opts {
		opt(o)
	}

	root, err := api.CleanPath(root)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	res := &Result{
		ID:     uuid.NewString(),
		Root:   root,
		DryRun: o.dryRun,
	}

	ctx, span := m.tracer.Start(ctx, string(mode), trace.WithAttributes(
		attribute.String("operation.id", res.ID),
		attribute.String("workspace", root),
		attribute.StringSlice("rules", names),
		attribute.Bool("dry_run", o.dryRun),
	))
	defer span.End()

	logger := log.WithContext(ctx).With(
		slog.String(log.KeyOperation, res.ID),
		slog.String("mode", string(mode)),
		slog.String(log.KeyWorkspace, root),
	)

	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.DebugContext(ctx, "operation failed", slog.Any("err", err))

		return res, err
	}

	snap, err := m.Catalog()
	if err != nil {
		return fail(err)
	}

	unlock := m.lock(root)
	defer unlock()

	st, err := m.store.Load(root)
	if err != nil {
		return fail(err)
	}

	var plan *resolve.Plan

	switch {
	case mode == resolve.ModeUninstall:
		plan, err = resolve.Uninstall(names, snap, st, resolve.WithAlsoRemove(o.alsoRemove...))
	case mode == resolve.ModeUpdate && len(names) == 0:
		plan, err = resolve.UpdateAll(snap, st)
	default:
		plan, err = resolve.Resolve(names, snap, st, mode)
	}

	res.Plan = plan
	if err != nil {
		return fail(err)
	}

	logger.DebugContext(ctx, "resolved plan",
		slog.Any("add", plan.AddNames()),
		slog.Any("remove", plan.RemoveNames()),
	)

	if o.dryRun || plan.Empty() {
		return res, nil
	}

	report, err := m.installer.Apply(ctx, plan, st, snap)
	res.Report = report

	if err != nil {
		var partial *install.PartialApplyError
		if errors.As(err, &partial) && len(partial.Completed) > 0 && mode != resolve.ModeUninstall {
			m.registerQuietly(ctx, root)
		}

		return fail(err)
	}

	if mode != resolve.ModeUninstall {
		m.registerQuietly(ctx, root)
	}

	logger.InfoContext(ctx, "operation complete",
		slog.Int("installed", len(report.Installed)),
		slog.Int("removed", len(report.Removed)),
		slog.Int("skipped", len(report.Skipped)),
	)

	return res, nil
}

// registerQuietly records root in the registry. A registry failure does not
// undo a successful install, so it is only logged.
func (m *Manager) registerQuietly(ctx context.Context, root string) {
	_, err := m.RegisterWorkspace(root, "")
	if err != nil {
		log.WithContext(ctx).WarnContext(ctx, "could not register workspace",
			slog.String(log.KeyWorkspace, root),
			slog.Any("err", err),
		)
	}
}
