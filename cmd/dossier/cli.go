package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/config"
	"github.com/mvickers/dossier/internal/distill"
	"github.com/mvickers/dossier/internal/errors"
	"github.com/mvickers/dossier/internal/ops"
	"github.com/mvickers/dossier/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, gate *distill.Gate) *cli.App {
	app := &cli.App{
		Name:    "dossier",
		Usage:   "Versioned context bundles for agent handoffs",
		Version: Version,
		Commands: []*cli.Command{
			buildCmd(db, cfg, gate),
			previewCmd(db, gate),
			fetchCmd(db),
			listCmd(db),
			latestCmd(db),
			receiptCmd(db),
			verifyCmd(db),
			budgetCmd(),
			ticketCmd(db),
			artifactCmd(db),
			redCmd(db),
			manifestCmd(db),
			serveCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// ticketFlags are the shared ticket addressing flags.
func ticketFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "ticket-pk", Usage: "Internal ticket primary key"},
		&cli.StringFlag{Name: "ticket-id", Usage: "External ticket identifier"},
		&cli.StringFlag{Name: "repo", Aliases: []string{"r"}, Usage: "Repository full name (org/repo)"},
	}
}

// stdinSections are the optional bundle sections read as JSON from stdin.
type stdinSections struct {
	SelectedSnippets []bundle.Snippet `json:"selected_snippets,omitempty"`
	AgentRun         map[string]any   `json:"agent_run,omitempty"`
	Progress         map[string]any   `json:"progress,omitempty"`
	Events           []any            `json:"events,omitempty"`
	Content          bundle.Payload   `json:"content,omitempty"`
}

// readStdinSections parses piped JSON into the optional sections, if any.
func readStdinSections() (*stdinSections, error) {
	if !stdinHasData() {
		return &stdinSections{}, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return &stdinSections{}, nil
	}
	var sections stdinSections
	if err := json.Unmarshal([]byte(text), &sections); err != nil {
		return nil, errors.NewInvalidRequest("stdin must be a JSON object: " + err.Error())
	}
	return &sections, nil
}

// buildCmd creates the build command.
func buildCmd(db *sql.DB, cfg *config.Config, gate *distill.Gate) *cli.Command {
	flags := append(ticketFlags(),
		&cli.StringFlag{Name: "role", Required: true, Usage: "Agent role to build for"},
		&cli.StringFlag{Name: "artifacts", Usage: "Comma-separated artifact IDs to distill"},
		&cli.StringFlag{Name: "pr-url", Usage: "Pull request URL"},
		&cli.IntFlag{Name: "pr-number", Usage: "Pull request number"},
		&cli.StringFlag{Name: "base-sha", Usage: "Base commit SHA"},
		&cli.StringFlag{Name: "head-sha", Usage: "Head commit SHA"},
		&cli.StringFlag{Name: "created-by", Usage: "Requester identity"},
	)
	return &cli.Command{
		Name:  "build",
		Usage: "Build a versioned context bundle (optional sections piped as JSON via stdin)",
		Flags: flags,
		Action: func(c *cli.Context) error {
			sections, err := readStdinSections()
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Build(c.Context, db, cfg, gate, ops.BuildInput{
				TicketPK:            c.String("ticket-pk"),
				TicketID:            c.String("ticket-id"),
				RepoFullName:        c.String("repo"),
				Role:                c.String("role"),
				SelectedArtifactIDs: splitIDs(c.String("artifacts")),
				SelectedSnippets:    sections.SelectedSnippets,
				AgentRun:            sections.AgentRun,
				Progress:            sections.Progress,
				Events:              sections.Events,
				Content:             sections.Content,
				GitRef: bundle.GitRef{
					PRURL:    c.String("pr-url"),
					PRNumber: c.Int("pr-number"),
					BaseSHA:  c.String("base-sha"),
					HeadSHA:  c.String("head-sha"),
				},
				CreatedBy: c.String("created-by"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// previewCmd creates the preview command.
func previewCmd(db *sql.DB, gate *distill.Gate) *cli.Command {
	flags := append(ticketFlags(),
		&cli.StringFlag{Name: "role", Required: true, Usage: "Agent role to budget against"},
		&cli.StringFlag{Name: "artifacts", Usage: "Comma-separated artifact IDs to distill"},
	)
	return &cli.Command{
		Name:  "preview",
		Usage: "Assemble and checksum a bundle without persisting it",
		Flags: flags,
		Action: func(c *cli.Context) error {
			sections, err := readStdinSections()
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Preview(c.Context, db, gate, ops.PreviewInput{
				TicketPK:            c.String("ticket-pk"),
				TicketID:            c.String("ticket-id"),
				RepoFullName:        c.String("repo"),
				Role:                c.String("role"),
				SelectedArtifactIDs: splitIDs(c.String("artifacts")),
				SelectedSnippets:    sections.SelectedSnippets,
				AgentRun:            sections.AgentRun,
				Progress:            sections.Progress,
				Events:              sections.Events,
				Content:             sections.Content,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(db *sql.DB) *cli.Command {
	flags := append(ticketFlags(),
		&cli.StringFlag{Name: "role", Usage: "Agent role (identity addressing)"},
		&cli.IntFlag{Name: "version", Usage: "Bundle version (0 = latest)"},
		&cli.BoolFlag{Name: "no-payload", Usage: "Exclude the payload from output"},
	)
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a bundle by ID or by (repo, ticket-pk, role[, version])",
		ArgsUsage: "[bundle_id]",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			input := ops.FetchInput{
				RepoFullName: c.String("repo"),
				TicketPK:     c.String("ticket-pk"),
				Role:         c.String("role"),
				Version:      c.Int("version"),
			}
			if c.NArg() > 0 {
				input.BundleID = c.Args().First()
			}
			if c.Bool("no-payload") {
				includePayload := false
				input.IncludePayload = &includePayload
			}

			output, err := ops.Fetch(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	flags := append(ticketFlags(),
		&cli.StringFlag{Name: "role", Usage: "Filter by agent role"},
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum items to return"},
		&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
	)
	return &cli.Command{
		Name:  "list",
		Usage: "List bundles for a ticket",
		Flags: flags,
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, db, ops.ListInput{
				TicketPK:     c.String("ticket-pk"),
				TicketID:     c.String("ticket-id"),
				RepoFullName: c.String("repo"),
				Role:         c.String("role"),
				Limit:        c.Int("limit"),
				Offset:       c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// latestCmd creates the latest command.
func latestCmd(db *sql.DB) *cli.Command {
	flags := append(ticketFlags(),
		&cli.StringFlag{Name: "role", Required: true, Usage: "Agent role"},
		&cli.BoolFlag{Name: "include-payload", Usage: "Include the payload in output"},
	)
	return &cli.Command{
		Name:  "latest",
		Usage: "Get the latest bundle for (ticket, role) with version history",
		Flags: flags,
		Action: func(c *cli.Context) error {
			input := ops.LatestInput{
				TicketPK:     c.String("ticket-pk"),
				TicketID:     c.String("ticket-id"),
				RepoFullName: c.String("repo"),
				Role:         c.String("role"),
			}
			if c.Bool("include-payload") {
				includePayload := true
				input.IncludePayload = &includePayload
			}

			output, err := ops.Latest(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// receiptCmd creates the receipt command.
func receiptCmd(db *sql.DB) *cli.Command {
	flags := append(ticketFlags(),
		&cli.StringFlag{Name: "role", Usage: "Agent role (identity addressing)"},
		&cli.IntFlag{Name: "version", Usage: "Bundle version (0 = latest)"},
	)
	return &cli.Command{
		Name:      "receipt",
		Usage:     "Fetch the audit receipt for a bundle",
		ArgsUsage: "[bundle_id]",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			input := ops.GetReceiptInput{
				RepoFullName: c.String("repo"),
				TicketPK:     c.String("ticket-pk"),
				Role:         c.String("role"),
				Version:      c.Int("version"),
			}
			if c.NArg() > 0 {
				input.BundleID = c.Args().First()
			}

			output, err := ops.GetReceipt(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// verifyCmd creates the verify command.
func verifyCmd(db *sql.DB) *cli.Command {
	flags := append(ticketFlags(),
		&cli.StringFlag{Name: "role", Usage: "Agent role (identity addressing)"},
		&cli.IntFlag{Name: "version", Usage: "Bundle version (0 = latest)"},
	)
	return &cli.Command{
		Name:      "verify",
		Usage:     "Recompute and check a stored bundle's checksums and metrics",
		ArgsUsage: "[bundle_id]",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			input := ops.VerifyInput{
				RepoFullName: c.String("repo"),
				TicketPK:     c.String("ticket-pk"),
				Role:         c.String("role"),
				Version:      c.Int("version"),
			}
			if c.NArg() > 0 {
				input.BundleID = c.Args().First()
			}

			output, err := ops.Verify(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// budgetCmd creates the budget command.
func budgetCmd() *cli.Command {
	return &cli.Command{
		Name:  "budget",
		Usage: "Show role character budgets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "role", Usage: "Agent role (omit for all roles)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.BudgetGet(ops.BudgetGetInput{Role: c.String("role")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// ticketCmd creates the ticket command group.
func ticketCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "ticket",
		Usage: "Manage tickets",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Register a ticket (body markdown piped via stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pk", Usage: "Ticket primary key (generated when omitted)"},
					&cli.StringFlag{Name: "repo", Aliases: []string{"r"}, Required: true, Usage: "Repository full name"},
					&cli.StringFlag{Name: "id", Required: true, Usage: "External ticket identifier"},
					&cli.StringFlag{Name: "display-id", Usage: "Display identifier (defaults to id)"},
				},
				Action: func(c *cli.Context) error {
					body := ""
					if stdinHasData() {
						text, err := readStdin()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
						body = text
					}

					output, err := ops.TicketAdd(c.Context, db, ops.TicketAddInput{
						TicketPK:     c.String("pk"),
						RepoFullName: c.String("repo"),
						TicketID:     c.String("id"),
						DisplayID:    c.String("display-id"),
						BodyMD:       body,
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// artifactCmd creates the artifact command group.
func artifactCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "artifact",
		Usage: "Manage source artifacts",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Attach an artifact to a ticket (body markdown piped via stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Artifact ID (generated when omitted)"},
					&cli.StringFlag{Name: "ticket-pk", Required: true, Usage: "Ticket primary key"},
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Usage: "Artifact title"},
				},
				Action: func(c *cli.Context) error {
					if !stdinHasData() {
						return outputError(errors.NewInvalidRequest("artifact body must be piped via stdin"))
					}
					body, err := readStdin()
					if err != nil {
						return outputError(errors.NewInternal(err))
					}

					output, err := ops.ArtifactAdd(c.Context, db, ops.ArtifactAddInput{
						ArtifactID: c.String("id"),
						TicketPK:   c.String("ticket-pk"),
						Title:      c.String("title"),
						BodyMD:     body,
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// redCmd creates the requirements doc command group.
func redCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "red",
		Usage: "Manage requirements document references",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Register a requirements document version for a repo",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Document ID (generated when omitted)"},
					&cli.StringFlag{Name: "repo", Aliases: []string{"r"}, Required: true, Usage: "Repository full name"},
					&cli.IntFlag{Name: "version", Required: true, Usage: "Document version (>= 1)"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.RedAdd(c.Context, db, ops.RedAddInput{
						RedID:        c.String("id"),
						RepoFullName: c.String("repo"),
						Version:      c.Int("version"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// manifestCmd creates the integration manifest command group.
func manifestCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "manifest",
		Usage: "Manage integration manifest references",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Register an integration manifest version for a repo",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Manifest ID (generated when omitted)"},
					&cli.StringFlag{Name: "repo", Aliases: []string{"r"}, Required: true, Usage: "Repository full name"},
					&cli.IntFlag{Name: "version", Required: true, Usage: "Manifest version (>= 1)"},
					&cli.IntFlag{Name: "schema-version", Required: true, Usage: "Manifest schema version (>= 1)"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ManifestAdd(c.Context, db, ops.ManifestAddInput{
						ManifestID:    c.String("id"),
						RepoFullName:  c.String("repo"),
						Version:       c.Int("version"),
						SchemaVersion: c.Int("schema-version"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// serveCmd creates the serve command for the web UI.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the read-only web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8322, Usage: "Listen port"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(db, cfg, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if dErr, ok := err.(*errors.DossierError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", dErr.Code, dErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// splitIDs splits a comma-separated ID list, dropping blanks.
func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if id := strings.TrimSpace(p); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
