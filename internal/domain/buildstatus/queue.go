package buildstatus

import (
	"context"
	"errors"
	"sync"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/sourcecode"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// RevisionSource answers which revisions of a project exist.
type RevisionSource interface {
	CurrentRevision(ctx context.Context) (string, error)
	RevisionsSince(ctx context.Context, revision string, limit int) ([]sourcecode.Revision, error)
}

// Queue schedules builds of new revisions.
type Queue struct {
	mu    sync.Mutex
	store Store
}

// NewQueue creates a queue backed by store.
func NewQueue(store Store) *Queue {
	return &Queue{store: store}
}

// RegisterNewRevisions records the revisions of script's project that
// appeared since the newest known one. The first call for a script only
// records the current revision as the initial revision, without queueing
// a build.
func (q *Queue) RegisterNewRevisions(ctx context.Context, script, project string, src RevisionSource) ([]*Build, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	newest, err := q.store.Newest(ctx, script)
	if errors.Is(err, ErrNotFound) {
		rev, err := src.CurrentRevision(ctx)
		if err != nil {
			return nil, err
		}
		initial := &Build{Project: project, Status: StatusInitialRevision, Revision: rev, Script: script}
		if err := q.store.Save(ctx, []*Build{initial}); err != nil {
			return nil, builderr.Wrap(builderr.KindFramework, err, "cannot save initial revision")
		}
		ports.Log(ctx, ports.LevelDebug, "saved initial revision",
			ports.F("script", script), ports.F("project", project), ports.F("revision", rev))
		return []*Build{initial}, nil
	}
	if err != nil {
		return nil, builderr.Wrap(builderr.KindFramework, err, "cannot read the newest build of "+script)
	}

	revs, err := src.RevisionsSince(ctx, newest.Revision, 0)
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		ports.Log(ctx, ports.LevelDebug, "no new revisions", ports.F("script", script), ports.F("project", project))
		return []*Build{}, nil
	}
	builds := make([]*Build, 0, len(revs))
	for _, r := range revs {
		builds = append(builds, &Build{
			Project:   project,
			Status:    StatusNewRevision,
			BuildType: sourcecode.NewRevisionBuildType,
			Revision:  r.ID,
			URL:       r.URL,
			Script:    script,
		})
		ports.Log(ctx, ports.LevelInfo, "new revision", ports.F("project", project), ports.F("revision", r.ID))
	}
	if err := q.store.Save(ctx, builds); err != nil {
		return nil, builderr.Wrap(builderr.KindFramework, err, "cannot save new revisions")
	}
	return builds, nil
}

// Waiting returns the builds of new revisions in the order they will be
// taken.
func (q *Queue) Waiting(ctx context.Context) ([]*Build, error) {
	return q.List(ctx, StatusNewRevision)
}

// List returns the builds in status, in queue order.
func (q *Queue) List(ctx context.Context, status Status) ([]*Build, error) {
	builds, err := q.store.ByStatus(ctx, status)
	if err != nil {
		return nil, builderr.Wrap(builderr.KindFramework, err, "cannot list "+status.String()+" builds")
	}
	return builds, nil
}

// Take marks the first waiting build that accept allows as pending and
// returns it. It returns ErrNotFound when nothing is waiting.
func (q *Queue) Take(ctx context.Context, accept func(*Build) bool) (*Build, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	builds, err := q.Waiting(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range builds {
		if accept != nil && !accept(b) {
			continue
		}
		b.Status = StatusPending
		if err := q.store.Update(ctx, b); err != nil {
			return nil, builderr.Wrap(builderr.KindFramework, err, "cannot mark build as pending")
		}
		return b, nil
	}
	return nil, ErrNotFound
}

// Finish stores the final status of a taken build.
func (q *Queue) Finish(ctx context.Context, b *Build, status Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	b.Status = status
	if err := q.store.Update(ctx, b); err != nil {
		return builderr.Wrap(builderr.KindFramework, err, "cannot update build status")
	}
	return nil
}

// RunNext takes the next accepted build and performs it. The build is
// marked completed afterwards even if perform fails, and cancelled if the
// run was interrupted. It reports whether a build was taken.
func (q *Queue) RunNext(ctx context.Context, accept func(*Build) bool, perform func(context.Context, *Build) error) (bool, error) {
	b, err := q.Take(ctx, accept)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	perr := perform(ctx, b)
	final := StatusCompleted
	if perr != nil && builderr.KindOf(perr) == builderr.KindInterrupted {
		final = StatusCancelled
	}
	// The status is stored even when ctx was cancelled.
	if err := q.Finish(context.WithoutCancel(ctx), b, final); err != nil {
		return true, err
	}
	return true, perr
}
