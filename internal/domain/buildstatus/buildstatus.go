// Package buildstatus keeps the queue of revisions waiting to be built.
// Revisions are discovered from a project's source code and stored with a
// status that moves from new to pending to completed.
package buildstatus

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Status is the state of a queued build.
type Status int

const (
	StatusNone Status = iota
	StatusNewRevision
	StatusPending
	StatusCompleted
	StatusInitialRevision
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusNone:            "none",
	StatusNewRevision:     "new",
	StatusPending:         "pending",
	StatusCompleted:       "completed",
	StatusInitialRevision: "initial",
	StatusCancelled:       "cancelled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText renders the status name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus parses a status name as returned by String.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == strings.ToLower(name) {
			return s, nil
		}
	}
	return StatusNone, fmt.Errorf("unknown build status %q", name)
}

// ErrNotFound is returned when no build matches a lookup.
var ErrNotFound = errors.New("build not found")

// Build is one queued run of a build script at a revision.
type Build struct {
	ID        int64  `json:"id"`
	Project   string `json:"project"`
	Status    Status `json:"status"`
	Priority  int    `json:"priority"`
	BuildType string `json:"type"`
	Revision  string `json:"revision"`
	URL       string `json:"url"`
	Script    string `json:"script"`
}

// Line renders the build for queue listings.
func (b *Build) Line() string {
	bt := strings.ToUpper(b.BuildType)
	if bt == "" {
		bt = " "
	}
	return fmt.Sprintf("%s %s: %s - %s", bt, b.Project, b.Revision, b.URL)
}

// Store persists builds. Implementations must return builds of a status
// ordered by priority, highest first, then by insertion order.
type Store interface {
	// Save inserts builds and assigns their IDs.
	Save(ctx context.Context, builds []*Build) error
	Update(ctx context.Context, b *Build) error
	ByStatus(ctx context.Context, status Status) ([]*Build, error)
	// Newest returns the build of script inserted last, or ErrNotFound.
	Newest(ctx context.Context, script string) (*Build, error)
	Close() error
}
