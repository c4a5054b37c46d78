package portal

import (
	"context"

	"curtailment-alerts/internal/artifact"
)

// Artifact is the downloaded payload for a resolved descriptor.
type Artifact struct {
	FileName string
	Bytes    []byte
}

// Client is the Portal Access collaborator. Implementations own every portal
// mechanic the pipeline must not know about: navigation, waiting for listings
// to stabilise, download events, diagnostics. The pipeline only needs the
// candidate listing and the bytes for the descriptor it selects.
type Client interface {
	ListArtifacts(ctx context.Context) ([]artifact.Descriptor, error)
	Fetch(ctx context.Context, desc artifact.Descriptor) (Artifact, error)
}
