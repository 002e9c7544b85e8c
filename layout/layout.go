// Package layout plans where new stream objects land in the combined
// output: which object IDs they use and where in the source PDF they are
// spliced in.
package layout

import (
	"errors"
	"fmt"
	"io"

	"icopdf/ico"
	"icopdf/observability"
	"icopdf/pdf"
)

const (
	// FirstCandidateID is where the free-ID search starts. IDs below it
	// are conventionally taken by a document's core structural objects
	// (catalog, pages, fonts), so starting higher avoids collisions
	// without parsing the object graph.
	FirstCandidateID = 990
	// MaxObjectID caps the search; 4-digit decimal IDs are assumed.
	MaxObjectID = 9999
)

var ErrNoFreeRange = errors.New("no usable object ID range found in PDF")

// FreeIDRange returns the first id in [FirstCandidateID, MaxObjectID-count)
// such that none of [id, id+count) appear in used.
func FreeIDRange(used map[int]struct{}, count int) (int, error) {
	for id := FirstCandidateID; id < MaxObjectID-count; id++ {
		if rangeFree(used, id, count) {
			return id, nil
		}
	}
	return 0, ErrNoFreeRange
}

func rangeFree(used map[int]struct{}, id, count int) bool {
	for i := 0; i < count; i++ {
		if _, taken := used[id+i]; taken {
			return false
		}
	}
	return true
}

// Plan is the composer's contract: the first free object ID, the byte
// offset in the source PDF where new objects are inserted, and the icon
// entries in directory order.
type Plan struct {
	FirstID  int
	InsertAt int64
	Entries  []ico.DirEntry
}

// Planner derives a Plan from a source PDF and the validated icon entries.
type Planner interface {
	Plan(r io.ReaderAt, size int64, entries []ico.DirEntry) (Plan, error)
}

type Config struct {
	Logger observability.Logger
}

func NewPlanner(cfg Config) Planner {
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	return &planner{log: log}
}

type planner struct {
	log observability.Logger
}

func (p *planner) Plan(r io.ReaderAt, size int64, entries []ico.DirEntry) (Plan, error) {
	used, err := pdf.ScanObjectIDs(r, size)
	if err != nil {
		return Plan{}, fmt.Errorf("scan object IDs: %w", err)
	}
	p.log.Debug("object IDs scanned", observability.Int("used", len(used)))

	firstID, err := FreeIDRange(used, len(entries))
	if err != nil {
		return Plan{}, err
	}

	insertAt, err := pdf.FindInsertionOffset(r, size)
	if err != nil {
		return Plan{}, err
	}
	p.log.Debug("layout planned",
		observability.Int("first_id", firstID),
		observability.Int("images", len(entries)),
		observability.Int64("insert_at", insertAt))

	return Plan{FirstID: firstID, InsertAt: insertAt, Entries: entries}, nil
}
