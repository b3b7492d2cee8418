package qc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Role names an artifact's logical function in the pipeline.
type Role string

const (
	RoleSummary       Role = "summary"
	RoleNucleotides   Role = "nucleotides"
	RoleQuality       Role = "quality"
	RoleCoverage      Role = "coverage"
	RoleGC            Role = "gc"
	RoleLengths       Role = "lengths"
	RoleClipping      Role = "clipping"
	RoleMismatch      Role = "mismatch"
	RoleIndel         Role = "indel"
	RoleInserts       Role = "inserts"
	RoleContamination Role = "contamination"
)

// Artifact is one working file carrying data between stages. External
// artifacts were named by the caller and are never deleted by bamqc.
type Artifact struct {
	Role     Role
	Path     string
	External bool
}

// ArtifactSet holds the artifacts of a single run, keyed by role and
// remembering allocation order.
type ArtifactSet struct {
	byRole map[Role]*Artifact
	order  []Role
}

func newArtifactSet() *ArtifactSet {
	return &ArtifactSet{byRole: make(map[Role]*Artifact)}
}

func (s *ArtifactSet) add(a *Artifact) {
	s.byRole[a.Role] = a
	s.order = append(s.order, a.Role)
}

// Get returns the artifact for role, or nil when the role was not
// allocated in this run (e.g. inserts in single-end mode).
func (s *ArtifactSet) Get(role Role) *Artifact {
	return s.byRole[role]
}

// Path returns the filesystem path for role. The role must exist.
func (s *ArtifactSet) Path(role Role) string {
	return s.byRole[role].Path
}

// requireNonEmpty checks that every named artifact exists and is
// non-empty before it is handed to a reader stage. A writer stage that
// exited zero but left an empty file produced malformed output.
func (s *ArtifactSet) requireNonEmpty(stage string, roles ...Role) error {
	for _, role := range roles {
		a := s.byRole[role]
		if a == nil {
			return &DataShapeError{Stage: stage, Reason: fmt.Sprintf("artifact %s was never allocated", role)}
		}
		fi, err := os.Stat(a.Path)
		if err != nil {
			return &DataShapeError{Stage: stage, Reason: fmt.Sprintf("artifact %s missing at %s", role, a.Path)}
		}
		if fi.Size() == 0 {
			return &DataShapeError{Stage: stage, Reason: fmt.Sprintf("artifact %s is empty at %s", role, a.Path)}
		}
	}
	return nil
}

// cleanup deletes every controller-owned artifact. Deletion failures are
// collected rather than aborting, since the report already exists when
// cleanup runs.
func (s *ArtifactSet) cleanup() *CleanupError {
	var failures []string
	for _, role := range s.order {
		a := s.byRole[role]
		if a.External {
			continue
		}
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			failures = append(failures, fmt.Sprintf("%s: %v", a.Path, err))
		}
	}
	if len(failures) > 0 {
		return &CleanupError{Failures: failures}
	}
	return nil
}

// allocateArtifacts binds one artifact per role needed by the run mode.
// Externally supplied paths are bound as-is and marked external; all
// other artifacts get collision-checked unique names in the working
// directory, so concurrent runs in the same directory cannot clash.
func allocateArtifacts(cfg Config) (*ArtifactSet, error) {
	set := newArtifactSet()

	statsRoles := []Role{
		RoleSummary, RoleNucleotides, RoleQuality, RoleCoverage, RoleGC,
		RoleLengths, RoleClipping, RoleMismatch, RoleIndel,
	}
	for _, role := range statsRoles {
		if role == RoleSummary && cfg.StatsFile != "" {
			set.add(&Artifact{Role: role, Path: cfg.StatsFile, External: true})
			continue
		}
		p, err := uniquePath(cfg.workDir(), role)
		if err != nil {
			return nil, err
		}
		set.add(&Artifact{Role: role, Path: p})
	}

	if !cfg.SingleEnd {
		if cfg.InsertsFile != "" {
			set.add(&Artifact{Role: RoleInserts, Path: cfg.InsertsFile, External: true})
		} else {
			p, err := uniquePath(cfg.workDir(), RoleInserts)
			if err != nil {
				return nil, err
			}
			set.add(&Artifact{Role: RoleInserts, Path: p})
		}
	}

	return set, nil
}

func uniquePath(dir string, role Role) (string, error) {
	for i := 0; i < 16; i++ {
		name := fmt.Sprintf("bamqc_%s_%s.tsv", role, uuid.NewString()[:8])
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
	}
	return "", &OptionError{Reason: fmt.Sprintf("could not allocate a unique working file for %s in %s", role, dir)}
}
