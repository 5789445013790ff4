package index

import (
	"context"
	"log/slog"
	"time"
)

// InconsistencyType categorizes a cross-store issue.
type InconsistencyType int

const (
	// OrphanLexical is a lexical entry with no metadata row.
	OrphanLexical InconsistencyType = iota
	// OrphanVector is a vector entry with no metadata row.
	OrphanVector
	// MissingLexical is a metadata row absent from the lexical index.
	MissingLexical
	// MissingVector is a metadata row absent from the vector store.
	MissingVector
)

func (t InconsistencyType) String() string {
	switch t {
	case OrphanLexical:
		return "orphan_lexical"
	case OrphanVector:
		return "orphan_vector"
	case MissingLexical:
		return "missing_lexical"
	case MissingVector:
		return "missing_vector"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected cross-store issue.
type Inconsistency struct {
	Type    InconsistencyType
	ChunkID string
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Consistent reports whether no issues were found.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// ConsistencyChecker verifies that the vector and lexical indexes hold
// the same chunk ID set as the metadata store, which is the source of
// truth.
type ConsistencyChecker struct {
	col    *Collection
	logger *slog.Logger
}

// NewConsistencyChecker creates a checker over an open collection.
func NewConsistencyChecker(col *Collection, logger *slog.Logger) *ConsistencyChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsistencyChecker{col: col, logger: logger}
}

// Check scans all three stores. O(n) in total entries.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	metaIDs, err := c.col.Metadata.AllIDs(ctx)
	if err != nil {
		return nil, err
	}
	metaSet := make(map[string]bool, len(metaIDs))
	for _, id := range metaIDs {
		metaSet[id] = true
	}

	lexIDs, err := c.col.Lexical.AllIDs()
	if err != nil {
		return nil, err
	}
	vecIDs := c.col.Vector.AllIDs()

	var issues []Inconsistency

	lexSet := make(map[string]bool, len(lexIDs))
	for _, id := range lexIDs {
		lexSet[id] = true
		if !metaSet[id] {
			issues = append(issues, Inconsistency{Type: OrphanLexical, ChunkID: id})
		}
	}

	vecSet := make(map[string]bool, len(vecIDs))
	for _, id := range vecIDs {
		vecSet[id] = true
		if !metaSet[id] {
			issues = append(issues, Inconsistency{Type: OrphanVector, ChunkID: id})
		}
	}

	for _, id := range metaIDs {
		if !lexSet[id] {
			issues = append(issues, Inconsistency{Type: MissingLexical, ChunkID: id})
		}
		if !vecSet[id] {
			issues = append(issues, Inconsistency{Type: MissingVector, ChunkID: id})
		}
	}

	return &CheckResult{
		Checked:         len(metaIDs),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair deletes orphans from the vector and lexical indexes and
// un-admits metadata rows missing from either index so the next ingest
// restores them. Best-effort; failures are logged.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) error {
	var orphanLex, orphanVec, missing []string
	for _, issue := range issues {
		switch issue.Type {
		case OrphanLexical:
			orphanLex = append(orphanLex, issue.ChunkID)
		case OrphanVector:
			orphanVec = append(orphanVec, issue.ChunkID)
		case MissingLexical, MissingVector:
			missing = append(missing, issue.ChunkID)
		}
	}

	if len(orphanLex) > 0 {
		if err := c.col.Lexical.Delete(ctx, orphanLex); err != nil {
			c.logger.Warn("failed to delete orphan lexical entries",
				"count", len(orphanLex), "error", err)
		}
	}
	if len(orphanVec) > 0 {
		if err := c.col.Vector.Delete(ctx, orphanVec); err != nil {
			c.logger.Warn("failed to delete orphan vector entries",
				"count", len(orphanVec), "error", err)
		}
	}
	if len(missing) > 0 {
		// A chunk in only one index is removed from both plus metadata;
		// re-ingest brings it back consistently.
		if err := c.col.Vector.Delete(ctx, missing); err != nil {
			c.logger.Warn("failed to delete partial vector entries", "error", err)
		}
		if err := c.col.Lexical.Delete(ctx, missing); err != nil {
			c.logger.Warn("failed to delete partial lexical entries", "error", err)
		}
		if err := c.col.Metadata.DeleteChunks(ctx, missing); err != nil {
			c.logger.Warn("failed to un-admit partial chunks", "error", err)
		}
		c.logger.Warn("removed partially stored chunks, re-ingest to restore",
			"count", len(missing))
	}

	return nil
}
