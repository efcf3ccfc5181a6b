package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var createToolDef = mcp.NewTool("lead_create",
	mcp.WithDescription("Save a lead. Name and link are required; the link is normalized to https. New leads go to the front of the list."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Display name of the lead")),
	mcp.WithString("url", mcp.Required(), mcp.Description("Link to the lead; a missing scheme becomes https://")),
	mcp.WithString("stage", mcp.Description("Pipeline stage, default prospect"),
		mcp.Enum("prospect", "contacted", "in-progress", "won")),
	mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags; stored trimmed and lowercased")),
	mcp.WithString("note", mcp.Description("Free-form note (Markdown)")),
)

var captureToolDef = mcp.NewTool("lead_capture",
	mcp.WithDescription("Save a link as a new prospect, named after its page title when it can be fetched, otherwise after its domain."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Link to capture")),
	mcp.WithString("title", mcp.Description("Title to use instead of fetching the page")),
)

var starToolDef = mcp.NewTool("lead_star",
	mcp.WithDescription("Toggle the starred flag of a lead."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Lead id")),
)

var removeToolDef = mcp.NewTool("lead_remove",
	mcp.WithDescription("Remove a lead. An unknown id reports removed=false."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Lead id")),
	mcp.WithDestructiveHintAnnotation(true),
)

var clearToolDef = mcp.NewTool("lead_clear",
	mcp.WithDescription("Delete every saved lead. Requires confirm=true."),
	mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true to clear the vault")),
	mcp.WithDestructiveHintAnnotation(true),
)

var listToolDef = mcp.NewTool("lead_list",
	mcp.WithDescription("List leads, most recent first, with collection metrics. Search matches name, link and tags, case-insensitive."),
	mcp.WithString("filter", mcp.Description("all (default), starred, or a stage"),
		mcp.Enum("all", "starred", "prospect", "contacted", "in-progress", "won")),
	mcp.WithString("search", mcp.Description("Substring to match")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var getToolDef = mcp.NewTool("lead_get",
	mcp.WithDescription("Fetch one lead by id."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Lead id")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var metricsToolDef = mcp.NewTool("lead_metrics",
	mcp.WithDescription("Total, starred and added-in-the-last-7-days counts."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var exportToolDef = mcp.NewTool("lead_export",
	mcp.WithDescription("Export leads to a .jsonl or .yaml file. Default path is the exports directory."),
	mcp.WithString("path", mcp.Description("Target file; must be inside the exports directory or an allowed path")),
	mcp.WithString("filter", mcp.Description("Optional filter, as for lead_list")),
	mcp.WithString("search", mcp.Description("Optional search term, as for lead_list")),
)

var importToolDef = mcp.NewTool("lead_import",
	mcp.WithDescription("Import leads from a .jsonl, .json, .yaml or .yml file. Legacy link-only entries are accepted."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source file")),
	mcp.WithString("mode", mcp.Description("What to do with ids that already exist"),
		mcp.Enum("skip", "replace")),
)
