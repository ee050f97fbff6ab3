package blackboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one stage output to record.
type Entry struct {
	Type       string
	Role       string
	Payload    string
	Structural StructuralType // defaults to StructuralTypeStandard
}

// Journal records stage outputs of a run.
type Journal interface {
	Record(ctx context.Context, e Entry) (*Artefact, error)
}

// NopJournal discards every entry.
type NopJournal struct{}

func (NopJournal) Record(context.Context, Entry) (*Artefact, error) {
	return nil, nil
}

// ArtefactWriter is the subset of Client a Recorder writes through.
type ArtefactWriter interface {
	CreateArtefact(ctx context.Context, a *Artefact) error
	AddVersionToThread(ctx context.Context, logicalID string, artefactID string, version int) error
}

// Recorder turns entries into artefacts for one run. The first entry of a
// type starts a new logical thread derived from the previous artefact; later
// entries of the same type become the next version of that thread.
// Creation times are strictly increasing within a run so the run index keeps
// recording order.
type Recorder struct {
	w     ArtefactWriter
	runID string
	now   func() time.Time

	mu     sync.Mutex
	latest map[string]*Artefact
	last   *Artefact
}

// NewRecorder creates a recorder writing artefacts for runID.
func NewRecorder(w ArtefactWriter, runID string) (*Recorder, error) {
	if !isValidUUID(runID) {
		return nil, fmt.Errorf("invalid run ID %q: not a valid UUID", runID)
	}
	return &Recorder{
		w:      w,
		runID:  runID,
		now:    time.Now,
		latest: make(map[string]*Artefact),
	}, nil
}

// RunID returns the run this recorder writes for.
func (r *Recorder) RunID() string { return r.runID }

// Record writes e as a new artefact and returns it.
func (r *Recorder) Record(ctx context.Context, e Entry) (*Artefact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	structural := e.Structural
	if structural == "" {
		structural = StructuralTypeStandard
	}

	createdAt := r.now().UnixMilli()
	if r.last != nil && createdAt <= r.last.CreatedAtMs {
		createdAt = r.last.CreatedAtMs + 1
	}

	a := &Artefact{
		ID:              uuid.New().String(),
		RunID:           r.runID,
		Version:         1,
		StructuralType:  structural,
		Type:            e.Type,
		Payload:         e.Payload,
		SourceArtefacts: []string{},
		ProducedByRole:  e.Role,
		CreatedAtMs:     createdAt,
	}

	if prev, ok := r.latest[e.Type]; ok {
		a.LogicalID = prev.LogicalID
		a.Version = prev.Version + 1
		a.SourceArtefacts = []string{prev.ID}
	} else {
		a.LogicalID = a.ID
		if r.last != nil {
			a.SourceArtefacts = []string{r.last.ID}
		}
	}

	if err := r.w.CreateArtefact(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", e.Type, err)
	}
	if err := r.w.AddVersionToThread(ctx, a.LogicalID, a.ID, a.Version); err != nil {
		return nil, fmt.Errorf("failed to thread %s: %w", e.Type, err)
	}

	r.latest[e.Type] = a
	r.last = a
	return a, nil
}
