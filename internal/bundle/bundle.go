package bundle

import "encoding/json"

// Payload is the canonical bundle content keyed by section name.
// The "meta" section carries the embedded checksums and is excluded from
// content hashing and section metrics.
type Payload map[string]any

// MetaSection is the reserved section name for embedded checksums.
const MetaSection = "meta"

// Section names used by the builder. Custom sections are allowed; these are
// the ones Dossier itself produces.
const (
	SectionTicket             = "ticket"
	SectionAgentRun           = "agent_run"
	SectionProgress           = "progress"
	SectionEvents             = "events"
	SectionDistilledArtifacts = "distilled_artifacts"
	SectionSelectedSnippets   = "selected_snippets"
	SectionRequirements       = "red_reference"
	SectionManifest           = "integration_manifest_reference"
)

// ContextBundle represents one immutable versioned context snapshot.
type ContextBundle struct {
	// ID is a ULID that uniquely identifies this bundle
	ID string

	// RepoFullName, TicketPK, and Role form the versioning identity tuple
	RepoFullName string
	TicketPK     string

	// TicketID is the external ticket identifier (e.g. issue number or key)
	TicketID string

	// Role is the agent role the bundle was built for
	Role string

	// Version is unique per (repo, ticket_pk, role), dense from 1
	Version int

	// BundleJSON is the canonical serialized payload, meta included
	BundleJSON string

	// ContentChecksum hashes payload content only (meta excluded)
	ContentChecksum string

	// BundleChecksum binds the content checksum to the identity tuple
	BundleChecksum string

	// CreatedBy records the requester (nullable)
	CreatedBy *string

	// CreatedAt is the Unix timestamp when the bundle was written
	CreatedAt int64
}

// Receipt is the 1:1 audit record written alongside every bundle.
// Identity and checksums are denormalized so audit queries need no join.
type Receipt struct {
	ID       string `json:"receipt_id"`
	BundleID string `json:"bundle_id"`

	RepoFullName string `json:"repo_full_name"`
	TicketPK     string `json:"ticket_pk"`
	TicketID     string `json:"ticket_id"`
	Role         string `json:"role"`

	ContentChecksum string `json:"content_checksum"`
	BundleChecksum  string `json:"bundle_checksum"`

	// SectionMetrics maps section name to canonical character count
	SectionMetrics  map[string]int `json:"section_metrics"`
	TotalCharacters int            `json:"total_characters"`

	// RedRef and ManifestRef point at the authoritative documents the
	// bundle was built against (nullable when the repo has none)
	RedRef      *DocRef      `json:"red_reference,omitempty"`
	ManifestRef *ManifestRef `json:"integration_manifest_reference,omitempty"`

	GitRef GitRef `json:"git_ref"`

	ArtifactRefs     []ArtifactRef `json:"artifact_references,omitempty"`
	SelectedSnippets []Snippet     `json:"selected_snippets,omitempty"`

	CreatedAt int64 `json:"created_at"`
}

// GitRef locates the source-control state a bundle was built against.
// At least one sub-field must be non-empty.
type GitRef struct {
	PRURL    string `json:"pr_url,omitempty"`
	PRNumber int    `json:"pr_number,omitempty"`
	BaseSHA  string `json:"base_sha,omitempty"`
	HeadSHA  string `json:"head_sha,omitempty"`
}

// IsBlank reports whether the git ref carries no usable sub-field.
// PRNumber alone does not count; it is only meaningful next to a URL.
func (g GitRef) IsBlank() bool {
	return g.PRURL == "" && g.BaseSHA == "" && g.HeadSHA == ""
}

// DocRef is a versioned pointer to an external authoritative document.
type DocRef struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// ManifestRef is a versioned pointer to an integration manifest.
type ManifestRef struct {
	ManifestID    string `json:"manifest_id"`
	Version       int    `json:"version"`
	SchemaVersion int    `json:"schema_version"`
}

// ArtifactRef records one source artifact that fed a bundle.
type ArtifactRef struct {
	ArtifactID string `json:"artifact_id"`
	Title      string `json:"title,omitempty"`
}

// Snippet is an explicitly supplied fragment included verbatim in a bundle.
type Snippet struct {
	Source string `json:"source,omitempty"`
	Text   string `json:"text"`
}

// DistilledArtifact is the digest of one source artifact. It exists only
// embedded in bundle payloads, never as a standalone row.
type DistilledArtifact struct {
	ArtifactID        string   `json:"artifact_id"`
	ArtifactTitle     string   `json:"artifact_title"`
	Summary           string   `json:"summary"`
	HardFacts         []string `json:"hard_facts"`
	Keywords          []string `json:"keywords"`
	DistillationError string   `json:"distillation_error,omitempty"`
}

// ParsePayload decodes stored bundle JSON back into a Payload.
func ParsePayload(bundleJSON string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(bundleJSON), &p); err != nil {
		return nil, err
	}
	return p, nil
}
