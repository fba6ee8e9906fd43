// Package install applies resolution plans to a workspace.
//
// Applying a plan is not transactional. Each step writes its payload and
// persists the workspace state before the next step starts, so a failure
// leaves every completed step in place and re-applying the same plan picks
// up where it stopped.
package install

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/rulebook/api"
	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/log"
	"github.com/macropower/rulebook/pkg/resolve"
	"github.com/macropower/rulebook/pkg/workspace"
)

// Report lists what [Installer.Apply] did.
type Report struct {
	Installed []resolve.Step
	Removed   []resolve.Step
	// Skipped lists steps that were already satisfied.
	Skipped []resolve.Step
}

// Changed reports whether any step modified the workspace.
func (r *Report) Changed() bool {
	return len(r.Installed) > 0 || len(r.Removed) > 0
}

// Installer applies plans to workspaces.
type Installer struct {
	tracer trace.Tracer
	store  *workspace.Store
	source PayloadSource
	now    func() time.Time
}

// Opt configures an [Installer].
type Opt func(*Installer)

// WithClock sets the clock used for install timestamps.
func WithClock(now func() time.Time) Opt {
	return func(in *Installer) {
		in.now = now
	}
}

// New creates a new [Installer].
func New(store *workspace.Store, source PayloadSource, opts ...Opt) *Installer {
	in := &Installer{
		tracer: otel.Tracer("installer"),
		store:  store,
		source: source,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(in)
	}

	return in
}

type step struct {
	resolve.Step

	remove bool
}

// Apply executes plan against st, using snap for rule metadata. Add steps
// run first in plan order, then remove steps. st is updated and persisted
// after every step.
//
// A failing step, including cancellation of ctx, stops the run and returns
// a [*PartialApplyError].
func (in *Installer) Apply(ctx context.Context, plan *resolve.Plan, st *workspace.State, snap *catalog.Snapshot) (*Report, error) {
	ctx, span := in.tracer.Start(ctx, "apply", trace.WithAttributes(
		attribute.String("mode", string(plan.Mode)),
		attribute.String("workspace", st.Root()),
		attribute.Int("add", len(plan.Add)),
		attribute.Int("remove", len(plan.Remove)),
	))
	defer span.End()

	logger := log.WithContext(ctx).With(slog.String(log.KeyWorkspace, st.Root()))

	steps := make([]step, 0, len(plan.Add)+len(plan.Remove))
	for _, s := range plan.Add {
		steps = append(steps, step{Step: s})
	}

	for _, s := range plan.Remove {
		steps = append(steps, step{Step: s, remove: true})
	}

	report := &Report{}

	var completed []resolve.Step

	for i, s := range steps {
		var (
			changed bool
			err     error
		)

		err = ctx.Err()
		if err == nil {
			if s.remove {
				changed, err = in.remove(ctx, s.Step, st)
			} else {
				changed, err = in.add(ctx, s.Step, st, snap)
			}
		}

		if err != nil {
			pending := make([]resolve.Step, 0, len(steps)-i-1)
			for _, p := range steps[i+1:] {
				pending = append(pending, p.Step)
			}

			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			logger.ErrorContext(ctx, "apply failed",
				slog.String(log.KeyRule, s.Name),
				slog.Int("completed", len(completed)),
				slog.Int("pending", len(pending)),
				slog.Any("err", err),
			)

			return report, &PartialApplyError{
				Completed: completed,
				Failed:    s.Step,
				Pending:   pending,
				Err:       err,
			}
		}

		completed = append(completed, s.Step)

		switch {
		case !changed:
			report.Skipped = append(report.Skipped, s.Step)
		case s.remove:
			report.Removed = append(report.Removed, s.Step)
		default:
			report.Installed = append(report.Installed, s.Step)
		}
	}

	logger.DebugContext(ctx, "plan applied",
		slog.Int("installed", len(report.Installed)),
		slog.Int("removed", len(report.Removed)),
		slog.Int("skipped", len(report.Skipped)),
	)

	return report, nil
}

func (in *Installer) add(ctx context.Context, s resolve.Step, st *workspace.State, snap *catalog.Snapshot) (bool, error) {
	r, err := snap.Lookup(s.Name)
	if err != nil {
		return false, err //nolint:wrapcheck // Already descriptive.
	}

	root := st.Root()
	path := in.store.PayloadPath(root, r.PayloadFile())

	if rec, ok := st.Get(s.Name); ok && rec.Version == s.Version {
		_, err := os.Stat(path)
		if err == nil {
			return false, nil
		}
	}

	data, err := in.source.Payload(ctx, &r)
	if err != nil {
		return false, fmt.Errorf("fetch payload for %s: %w", s.Name, err)
	}

	sum := catalog.Checksum(data)
	if r.Checksum != "" && r.Checksum != sum {
		return false, fmt.Errorf("%w: %s: want %s, got %s", ErrChecksumMismatch, s.Name, r.Checksum, sum)
	}

	err = api.WriteFileAtomic(path, data, 0o644)
	if err != nil {
		return false, &WorkspaceNotWritableError{Root: root, Err: err}
	}

	prev, hadPrev := st.Get(s.Name)

	st.Put(workspace.Record{
		Name:        s.Name,
		Version:     s.Version,
		InstalledAt: in.now().UTC().Truncate(time.Second),
		Path:        in.store.RelPayloadPath(r.PayloadFile()),
		Checksum:    sum,
	})

	err = in.store.Save(st)
	if err != nil {
		// st must keep matching the state file so a retry redoes this step.
		if hadPrev {
			st.Put(prev)
		} else {
			st.Delete(s.Name)
		}

		return true, &WorkspaceNotWritableError{Root: root, Err: err}
	}

	log.WithContext(ctx).DebugContext(ctx, "installed rule",
		slog.String(log.KeyRule, s.Name),
		slog.String("version", s.Version),
		slog.String("path", path),
	)

	return true, nil
}

func (in *Installer) remove(ctx context.Context, s resolve.Step, st *workspace.State) (bool, error) {
	root := st.Root()
	path := in.store.PayloadPath(root, s.Name+".md")

	rec, ok := st.Get(s.Name)
	if ok && rec.Path != "" {
		path = filepath.Join(root, filepath.FromSlash(rec.Path))
	}

	removedFile := true

	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		removedFile = false
	} else if err != nil {
		return false, &WorkspaceNotWritableError{Root: root, Err: err}
	}

	if !st.Delete(s.Name) {
		return removedFile, nil
	}

	err = in.store.Save(st)
	if err != nil {
		st.Put(rec)

		return true, &WorkspaceNotWritableError{Root: root, Err: err}
	}

	log.WithContext(ctx).DebugContext(ctx, "removed rule",
		slog.String(log.KeyRule, s.Name),
		slog.String("path", path),
	)

	return true, nil
}
