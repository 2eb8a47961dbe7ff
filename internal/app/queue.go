package app

import (
	"context"
	"errors"
	"path/filepath"

	storeadapter "github.com/felixgeelhaar/makeomatic/internal/adapters/buildstatus"
	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/buildstatus"
	"github.com/felixgeelhaar/makeomatic/internal/domain/settings"
	"github.com/felixgeelhaar/makeomatic/internal/domain/sourcecode"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// BuildQueue is an open build-status database.
type BuildQueue struct {
	*buildstatus.Queue
	store buildstatus.Store
}

// Close closes the database.
func (q *BuildQueue) Close() error {
	return q.store.Close()
}

// OpenQueue opens the build-status database named in st.
func (m *Mom) OpenQueue(st *settings.Settings) (*BuildQueue, error) {
	path := ports.ExpandPath(st.Queue.Database)
	if path == "" {
		return nil, builderr.Configuration("no build status database configured")
	}
	store, err := storeadapter.Open(path)
	if err != nil {
		return nil, builderr.Wrap(builderr.KindConfiguration, err, "cannot open build status database "+path)
	}
	return &BuildQueue{Queue: buildstatus.NewQueue(store), store: store}, nil
}

// RegisterRevisions records the new revisions of the project of each
// script and returns the builds that were added.
func (m *Mom) RegisterRevisions(ctx context.Context, q *BuildQueue, opts RunOptions, scripts ...string) ([]*buildstatus.Build, error) {
	st, err := m.LoadSettings(opts)
	if err != nil {
		return nil, err
	}
	added := make([]*buildstatus.Build, 0)
	for _, path := range scripts {
		script, err := m.loadScript(path)
		if err != nil {
			return added, err
		}
		location := st.Project.SourceLocation
		if location == "" {
			location = script.Project.Source
		}
		branch, tag := st.Project.Branch, st.Project.Tag
		if branch == "" {
			branch = script.Project.Branch
		}
		if tag == "" {
			tag = script.Project.Tag
		}
		provider, err := sourcecode.New(location, m.runner, m.fs,
			sourcecode.WithBranch(branch), sourcecode.WithTag(tag))
		if err != nil {
			return added, err
		}
		if err := provider.Check(ctx); err != nil {
			return added, err
		}
		builds, err := q.RegisterNewRevisions(ctx, script.Path, script.Project.Name, provider)
		if err != nil {
			return added, err
		}
		added = append(added, builds...)
	}
	return added, nil
}

// RunNext builds the next waiting revision with the build type it was
// queued with. It reports whether a build was run and returns its result.
func (m *Mom) RunNext(ctx context.Context, q *BuildQueue, opts RunOptions) (bool, Result, error) {
	var res Result
	ran, err := q.RunNext(ctx, nil, func(ctx context.Context, b *buildstatus.Build) error {
		run := opts
		run.Script = b.Script
		run.Mode = settings.RunModeBuild
		run.Revision = b.Revision
		if b.BuildType != "" {
			run.BuildType = b.BuildType
		}
		if run.WorkDir == "" {
			run.WorkDir = filepath.Dir(b.Script)
		}
		res = m.Run(ctx, run)
		if res.Code == builderr.ExitInterrupted {
			return builderr.Interrupted(errors.Join(context.Canceled, res.Err))
		}
		return nil
	})
	return ran, res, err
}
