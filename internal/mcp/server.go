// Package mcp provides a Model Context Protocol server for FactGate.
//
// It exposes the canonical index and the validation rule chain as MCP
// tools (lookup, validate, run reports) so agents can probe why a
// candidate was accepted or rejected without running a full pipeline.
// Supports stdio transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/factgate/factgate/internal/canon"
	"github.com/factgate/factgate/internal/relevance"
	"github.com/factgate/factgate/internal/store"
	"github.com/factgate/factgate/internal/validate"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Index   *canon.Index
	Config  validate.Config
	Store   store.Store // optional, enables run report tools
	Version string
}

// NewServer creates a configured MCP server with all FactGate tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"FactGate",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerLookupTool(s, cfg.Index)
	registerValidateTool(s, cfg)
	if cfg.Store != nil {
		registerRunReportTool(s, cfg.Store)
	}
	registerIndexResource(s, cfg.Index)

	return s
}

func registerLookupTool(s *server.MCPServer, index *canon.Index) {
	tool := mcp.NewTool("factgate_lookup",
		mcp.WithDescription("Look up an entity mention in the canonical index. Returns the matched record or a miss."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Entity mention text"),
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Claimed entity type (PLAYER, COACH, CLUB, COMPETITION, STADIUM, NATIONAL_TEAM)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		entityType, err := req.RequireString("type")
		if err != nil {
			return mcp.NewToolResultError("type is required"), nil
		}

		type lookupResult struct {
			Matched       bool   `json:"matched"`
			Name          string `json:"name,omitempty"`
			CanonicalName string `json:"canonical_name,omitempty"`
			WikiID        *int64 `json:"wiki_id,omitempty"`
		}

		out := lookupResult{}
		if rec := index.Lookup(text, entityType); rec != nil {
			out.Matched = true
			out.Name = rec.Name
			out.CanonicalName = rec.CanonicalName
			out.WikiID = rec.WikiID
		}

		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerValidateTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("factgate_validate",
		mcp.WithDescription("Run one candidate entity through the full validation rule chain. Returns the outcome and the rejecting rule, if any."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Entity mention text"),
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Claimed entity type"),
		),
		mcp.WithNumber("confidence",
			mcp.Required(),
			mcp.Description("Annotator confidence in [0,1]"),
		),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Provenance: dictionary, model, or pattern"),
		),
		mcp.WithString("context",
			mcp.Description("Surrounding sentence, used by the domain-relevance rule"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		entityType, err := req.RequireString("type")
		if err != nil {
			return mcp.NewToolResultError("type is required"), nil
		}
		confidence, err := req.RequireFloat("confidence")
		if err != nil {
			return mcp.NewToolResultError("confidence is required"), nil
		}
		source, err := req.RequireString("source")
		if err != nil {
			return mcp.NewToolResultError("source is required"), nil
		}
		sentence := ""
		if c, err := req.RequireString("context"); err == nil {
			sentence = c
		}

		// A fresh validator per call: the tool reports a single decision,
		// not run-level counters.
		v := validate.NewEntityValidator(cfg.Config, cfg.Index, relevance.NewClassifier())
		out := v.Validate(validate.CandidateEntity{
			Text:       text,
			Type:       entityType,
			Confidence: confidence,
			Source:     source,
		}, sentence)

		type validateResult struct {
			Accepted      bool     `json:"accepted"`
			Reason        string   `json:"reason,omitempty"`
			IsNew         bool     `json:"is_new,omitempty"`
			MatchedName   string   `json:"matched_name,omitempty"`
			DomainRelated bool     `json:"domain_related,omitempty"`
			Notes         []string `json:"notes,omitempty"`
		}

		res := validateResult{Accepted: out.Accepted()}
		if out.Accepted() {
			res.IsNew = out.Entity.IsNew
			res.DomainRelated = out.Entity.DomainRelated
			res.Notes = out.Entity.Notes
			if out.Entity.Matched != nil {
				res.MatchedName = out.Entity.Matched.Name
			}
		} else {
			res.Reason = string(out.Reason)
		}

		data, _ := json.MarshalIndent(res, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRunReportTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("factgate_runs",
		mcp.WithDescription("List recent enrichment runs from the audit store, or fetch one by run id."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("run_id",
			mcp.Description("Specific run id; empty lists the most recent runs"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum runs to list (default: 10, max: 50)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if runID, err := req.RequireString("run_id"); err == nil && runID != "" {
			run, err := st.GetRun(ctx, runID)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("run %s: %v", runID, err)), nil
			}
			data, _ := json.MarshalIndent(run, "", "  ")
			return mcp.NewToolResultText(string(data)), nil
		}

		limit := 10
		if v, err := req.RequireFloat("limit"); err == nil {
			if n := int(v); n > 0 {
				limit = n
			}
			if limit > 50 {
				limit = 50
			}
		}
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing runs: %v", err)), nil
		}
		data, _ := json.MarshalIndent(runs, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerIndexResource(s *server.MCPServer, index *canon.Index) {
	resource := mcp.NewResource(
		"factgate://index/stats",
		"Canonical Index Stats",
		mcp.WithResourceDescription("Loaded canonical record counts per entity type."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		payload := map[string]any{
			"total":   index.Len(),
			"by_type": index.Counts(),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
