package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Parameter names mirror the ops input field names so
// CLI, MCP, and web callers speak the same vocabulary.

var buildToolDef = mcp.NewTool("bundle_build",
	mcp.WithDescription("Build an immutable versioned context bundle for a ticket and agent role, writing bundle and receipt atomically. Byte-identical content reuses the existing bundle instead of allocating a new version."),
	mcp.WithString("ticket_pk", mcp.Description("Internal ticket primary key (use this or ticket_id)")),
	mcp.WithString("ticket_id", mcp.Description("External ticket identifier, optionally narrowed by repo_full_name")),
	mcp.WithString("repo_full_name", mcp.Description("Repository full name, e.g. org/repo")),
	mcp.WithString("role", mcp.Required(), mcp.Description("Agent role: pm-agent, implementation-agent, qa-agent, or process-review-agent")),
	mcp.WithArray("selected_artifact_ids", mcp.Description("Artifact IDs to distill into the bundle; all must succeed or the build fails")),
	mcp.WithArray("selected_snippets", mcp.Description("Verbatim snippets, each {source?, text}")),
	mcp.WithObject("agent_run", mcp.Description("Agent run state to embed")),
	mcp.WithObject("progress", mcp.Description("Progress state to embed")),
	mcp.WithArray("events", mcp.Description("Event log entries to embed")),
	mcp.WithObject("content", mcp.Description("Explicit payload override; skips assembly and snapshots this content as-is")),
	mcp.WithObject("git_ref", mcp.Required(), mcp.Description("Source-control reference {pr_url?, pr_number?, base_sha?, head_sha?}; at least one of pr_url, base_sha, head_sha is required")),
	mcp.WithString("created_by", mcp.Description("Requester identity recorded on the bundle")),
)

var previewToolDef = mcp.NewTool("bundle_preview",
	mcp.WithDescription("Assemble and checksum a bundle without persisting anything, returning section metrics and how the size sits against the role's character budget."),
	mcp.WithString("ticket_pk", mcp.Description("Internal ticket primary key (use this or ticket_id)")),
	mcp.WithString("ticket_id", mcp.Description("External ticket identifier")),
	mcp.WithString("repo_full_name", mcp.Description("Repository full name")),
	mcp.WithString("role", mcp.Required(), mcp.Description("Agent role to budget against")),
	mcp.WithArray("selected_artifact_ids", mcp.Description("Artifact IDs to distill")),
	mcp.WithArray("selected_snippets", mcp.Description("Verbatim snippets")),
	mcp.WithObject("agent_run", mcp.Description("Agent run state to embed")),
	mcp.WithObject("progress", mcp.Description("Progress state to embed")),
	mcp.WithArray("events", mcp.Description("Event log entries to embed")),
	mcp.WithObject("content", mcp.Description("Explicit payload override")),
)

var fetchToolDef = mcp.NewTool("bundle_fetch",
	mcp.WithDescription("Fetch a bundle by its ID, or by (repo_full_name, ticket_pk, role) with version defaulting to latest."),
	mcp.WithString("bundle_id", mcp.Description("Bundle ULID")),
	mcp.WithString("repo_full_name", mcp.Description("Repository full name (identity addressing)")),
	mcp.WithString("ticket_pk", mcp.Description("Ticket primary key (identity addressing)")),
	mcp.WithString("role", mcp.Description("Agent role (identity addressing)")),
	mcp.WithNumber("version", mcp.Description("Bundle version; 0 or omitted means latest")),
	mcp.WithBoolean("include_payload", mcp.Description("Include the full payload (default true)")),
)

var listToolDef = mcp.NewTool("bundle_list",
	mcp.WithDescription("List bundle summaries for a ticket, newest version first, optionally filtered by role."),
	mcp.WithString("ticket_pk", mcp.Description("Internal ticket primary key (use this or ticket_id)")),
	mcp.WithString("ticket_id", mcp.Description("External ticket identifier")),
	mcp.WithString("repo_full_name", mcp.Description("Repository full name")),
	mcp.WithString("role", mcp.Description("Optional role filter")),
	mcp.WithNumber("limit", mcp.Description("Max results (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Pagination offset")),
)

var latestToolDef = mcp.NewTool("bundle_latest",
	mcp.WithDescription("Fetch the highest-version bundle for (ticket, role) along with the full version history."),
	mcp.WithString("ticket_pk", mcp.Description("Internal ticket primary key (use this or ticket_id)")),
	mcp.WithString("ticket_id", mcp.Description("External ticket identifier")),
	mcp.WithString("repo_full_name", mcp.Description("Repository full name")),
	mcp.WithString("role", mcp.Required(), mcp.Description("Agent role")),
	mcp.WithBoolean("include_payload", mcp.Description("Include the full payload (default false)")),
)

var receiptToolDef = mcp.NewTool("bundle_receipt",
	mcp.WithDescription("Fetch the audit receipt for a bundle: checksums, per-section metrics, document references, and the git ref it was built against."),
	mcp.WithString("bundle_id", mcp.Description("Bundle ULID")),
	mcp.WithString("repo_full_name", mcp.Description("Repository full name (identity addressing)")),
	mcp.WithString("ticket_pk", mcp.Description("Ticket primary key (identity addressing)")),
	mcp.WithString("role", mcp.Description("Agent role (identity addressing)")),
	mcp.WithNumber("version", mcp.Description("Bundle version; 0 or omitted means latest")),
)

var verifyToolDef = mcp.NewTool("bundle_verify",
	mcp.WithDescription("Recompute a stored bundle's checksums and metrics from its payload and check them against the bundle row, embedded meta, and receipt."),
	mcp.WithString("bundle_id", mcp.Description("Bundle ULID")),
	mcp.WithString("repo_full_name", mcp.Description("Repository full name (identity addressing)")),
	mcp.WithString("ticket_pk", mcp.Description("Ticket primary key (identity addressing)")),
	mcp.WithString("role", mcp.Description("Agent role (identity addressing)")),
	mcp.WithNumber("version", mcp.Description("Bundle version; 0 or omitted means latest")),
)

var budgetToolDef = mcp.NewTool("budget_get",
	mcp.WithDescription("Get the hard character limit for an agent role, or the whole budget table when role is omitted."),
	mcp.WithString("role", mcp.Description("Agent role; omit for all roles")),
)
