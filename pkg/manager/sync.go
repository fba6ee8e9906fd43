package manager

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/catalogsync"
	"github.com/macropower/rulebook/pkg/log"
)

// SyncResult describes a catalog synchronization.
type SyncResult struct {
	Catalog *catalog.Snapshot
	// Affected maps workspace roots to installed rules whose catalog version
	// changed. Re-run [Manager.Update] on them to pick up the changes.
	Affected map[string][]string
	// Orphaned maps workspace roots to installed rules that were removed
	// from the catalog.
	Orphaned map[string][]string
	ID       string
	Source   string
	Summary  catalogsync.Summary
	// Saved is set when the merged catalog was written.
	Saved bool
}

// Sync fetches the remote catalog once and merges it into the local one.
//
// When the remote cannot be fetched, a [*catalogsync.RemoteUnavailableError]
// is returned and the local catalog is left unchanged. A missing local
// catalog is treated as empty.
func (m *Manager) Sync(ctx context.Context, opts ...OpOpt) (*SyncResult, error) {
	o := &opOptions{}
	for _, opt := range opts {
		opt(o)
	}

	res := &SyncResult{
		ID:       uuid.NewString(),
		Source:   m.remoteURL,
		Affected: map[string][]string{},
		Orphaned: map[string][]string{},
	}

	ctx, span := m.tracer.Start(ctx, "sync", trace.WithAttributes(
		attribute.String("operation.id", res.ID),
		attribute.String("source", m.remoteURL),
		attribute.Bool("dry_run", o.dryRun),
	))
	defer span.End()

	logger := log.WithContext(ctx).With(
		slog.String(log.KeyOperation, res.ID),
		slog.String("source", m.remoteURL),
	)

	fail := func(err error) (*SyncResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return res, err
	}

	if m.remoteURL == "" {
		return fail(ErrNoRemote)
	}

	local, err := m.Catalog()

	exists := err == nil

	switch {
	case errors.Is(err, ErrNoCatalog):
		logger.InfoContext(ctx, "local catalog not found, starting from an empty catalog",
			slog.String("path", m.catalogPath),
		)

		local = catalog.Empty()
	case err != nil:
		return fail(err)
	}

	res.Catalog = local

	remote, err := m.fetcher.Fetch(ctx, m.remoteURL)
	if err != nil {
		return fail(err)
	}

	merged, sum, err := catalogsync.Synchronize(local, remote)
	if err != nil {
		return fail(err)
	}

	res.Catalog = merged
	res.Summary = sum

	// Metadata-only changes (schema version, last_updated) are saved too.
	if !o.dryRun && (!exists || !merged.Equal(local)) {
		err = catalog.Save(m.catalogPath, merged)
		if err != nil {
			return fail(err)
		}

		res.Saved = true
	}

	entries, err := m.Workspaces()
	if err != nil {
		logger.WarnContext(ctx, "could not read workspace registry", slog.Any("err", err))
	}

	for _, e := range entries {
		st, err := m.store.Load(e.Path)
		if err != nil {
			logger.WarnContext(ctx, "could not read workspace state",
				slog.String(log.KeyWorkspace, e.Path),
				slog.Any("err", err),
			)

			continue
		}

		if affected := catalogsync.AffectedInstalls(sum, st); len(affected) > 0 {
			res.Affected[e.Path] = affected
		}

		if orphaned := catalogsync.OrphanedInstalls(sum, st); len(orphaned) > 0 {
			res.Orphaned[e.Path] = orphaned
		}
	}

	logger.InfoContext(ctx, "catalog synchronized",
		slog.Int("added", len(sum.Added)),
		slog.Int("updated", len(sum.Updated)),
		slog.Int("kept", len(sum.Kept)),
		slog.Int("local_only", len(sum.LocalOnly)),
		slog.Int("removed", len(sum.Removed)),
		slog.Bool("saved", res.Saved),
	)

	return res, nil
}
