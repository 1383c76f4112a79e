package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/mvickers/dossier/internal/db"
	"github.com/mvickers/dossier/internal/errors"
)

// TicketAddInput contains parameters for the TicketAdd operation.
type TicketAddInput struct {
	TicketPK     string // generated when empty
	RepoFullName string // required
	TicketID     string // required
	DisplayID    string
	BodyMD       string
}

// TicketAddOutput contains the result of the TicketAdd operation.
type TicketAddOutput struct {
	Success  bool       `json:"success"`
	TicketPK string     `json:"ticket_pk"`
	Ticket   *db.Ticket `json:"ticket"`
}

// TicketAdd registers a ticket so bundles can be built against it.
func TicketAdd(ctx context.Context, database *sql.DB, input TicketAddInput) (*TicketAddOutput, error) {
	repo := strings.TrimSpace(input.RepoFullName)
	ticketID := strings.TrimSpace(input.TicketID)
	if repo == "" {
		return nil, errors.NewInvalidRequest("repo_full_name is required")
	}
	if ticketID == "" {
		return nil, errors.NewInvalidRequest("ticket_id is required")
	}

	pk := strings.TrimSpace(input.TicketPK)
	if pk == "" {
		var err error
		pk, err = generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	displayID := strings.TrimSpace(input.DisplayID)
	if displayID == "" {
		displayID = ticketID
	}

	t := &db.Ticket{
		PK:           pk,
		RepoFullName: repo,
		TicketID:     ticketID,
		DisplayID:    displayID,
		BodyMD:       input.BodyMD,
		CreatedAt:    time.Now().Unix(),
	}
	if err := db.InsertTicket(ctx, database, t); err != nil {
		return nil, err
	}

	return &TicketAddOutput{Success: true, TicketPK: pk, Ticket: t}, nil
}

// ArtifactAddInput contains parameters for the ArtifactAdd operation.
type ArtifactAddInput struct {
	ArtifactID string // generated when empty
	TicketPK   string // required
	Title      string // required
	BodyMD     string // required
}

// ArtifactAddOutput contains the result of the ArtifactAdd operation.
type ArtifactAddOutput struct {
	Success    bool   `json:"success"`
	ArtifactID string `json:"artifact_id"`
}

// ArtifactAdd attaches a long-form source artifact to a ticket.
func ArtifactAdd(ctx context.Context, database *sql.DB, input ArtifactAddInput) (*ArtifactAddOutput, error) {
	ticketPK := strings.TrimSpace(input.TicketPK)
	if ticketPK == "" {
		return nil, errors.NewInvalidRequest("ticket_pk is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, errors.NewInvalidRequest("title is required")
	}
	if strings.TrimSpace(input.BodyMD) == "" {
		return nil, errors.NewInvalidRequest("body_md is required")
	}

	id := strings.TrimSpace(input.ArtifactID)
	if id == "" {
		var err error
		id, err = generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	a := &db.Artifact{
		ArtifactID: id,
		TicketPK:   ticketPK,
		Title:      input.Title,
		BodyMD:     input.BodyMD,
		CreatedAt:  time.Now().Unix(),
	}
	if err := db.InsertArtifact(ctx, database, a); err != nil {
		return nil, err
	}

	return &ArtifactAddOutput{Success: true, ArtifactID: id}, nil
}

// RedAddInput contains parameters for the RedAdd operation.
type RedAddInput struct {
	RedID        string // generated when empty
	RepoFullName string // required
	Version      int    // required, >= 1
}

// RedAddOutput contains the result of the RedAdd operation.
type RedAddOutput struct {
	Success bool   `json:"success"`
	RedID   string `json:"red_id"`
	Version int    `json:"version"`
}

// RedAdd registers a requirements document version for a repo. New bundles
// for the repo reference the highest registered version.
func RedAdd(ctx context.Context, database *sql.DB, input RedAddInput) (*RedAddOutput, error) {
	repo := strings.TrimSpace(input.RepoFullName)
	if repo == "" {
		return nil, errors.NewInvalidRequest("repo_full_name is required")
	}
	if input.Version < 1 {
		return nil, errors.NewInvalidRequest("version must be >= 1")
	}

	id := strings.TrimSpace(input.RedID)
	if id == "" {
		var err error
		id, err = generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	if err := db.InsertRequirementsDoc(ctx, database, id, repo, input.Version, time.Now().Unix()); err != nil {
		return nil, err
	}
	return &RedAddOutput{Success: true, RedID: id, Version: input.Version}, nil
}

// ManifestAddInput contains parameters for the ManifestAdd operation.
type ManifestAddInput struct {
	ManifestID    string // generated when empty
	RepoFullName  string // required
	Version       int    // required, >= 1
	SchemaVersion int    // required, >= 1
}

// ManifestAddOutput contains the result of the ManifestAdd operation.
type ManifestAddOutput struct {
	Success    bool   `json:"success"`
	ManifestID string `json:"manifest_id"`
	Version    int    `json:"version"`
}

// ManifestAdd registers an integration manifest version for a repo.
func ManifestAdd(ctx context.Context, database *sql.DB, input ManifestAddInput) (*ManifestAddOutput, error) {
	repo := strings.TrimSpace(input.RepoFullName)
	if repo == "" {
		return nil, errors.NewInvalidRequest("repo_full_name is required")
	}
	if input.Version < 1 {
		return nil, errors.NewInvalidRequest("version must be >= 1")
	}
	if input.SchemaVersion < 1 {
		return nil, errors.NewInvalidRequest("schema_version must be >= 1")
	}

	id := strings.TrimSpace(input.ManifestID)
	if id == "" {
		var err error
		id, err = generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	if err := db.InsertManifest(ctx, database, id, repo, input.Version, input.SchemaVersion, time.Now().Unix()); err != nil {
		return nil, err
	}
	return &ManifestAddOutput{Success: true, ManifestID: id, Version: input.Version}, nil
}
