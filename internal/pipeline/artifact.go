package pipeline

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/civiclens/appeals-cli/internal/model"
)

// ErrArtifactNotReady is returned when a stage's output is requested before
// that stage has completed.
var ErrArtifactNotReady = eris.New("pipeline: cannot locate stage output; re-run the prior stage")

// Resolve builds the artifact reference for a completed stage. The service
// reports an output path for the cluster and summarize stages only; when
// present, its final path segment becomes the canonical name. The fallback
// is always derived from the originally uploaded input's name, whether or
// not a canonical name exists.
func Resolve(outputFile *string, inputName string, stage model.StageID) model.ArtifactReference {
	ref := model.ArtifactReference{
		FallbackName: stage.Prefix() + "_" + inputName,
	}

	if outputFile != nil {
		if name := lastPathSegment(*outputFile); name != "" {
			ref.CanonicalName = &name
		}
	}
	return ref
}

// lastPathSegment returns the final segment of a path that may use either
// separator; service responses mix POSIX and Windows style paths.
func lastPathSegment(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
