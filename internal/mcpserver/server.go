// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the content graph and the vault for LLM integration via
// stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/headless/internal/apperr"
	"github.com/starford/headless/internal/content"
	"github.com/starford/headless/internal/docservice"
	"github.com/starford/headless/internal/hn"
)

// ContractURI is the resource URI of the document format contract.
const ContractURI = "headless://document-format"

// Server wraps the MCP server with the headless tools.
type Server struct {
	mcp     *server.MCPServer
	graph   *hn.Service
	docs    *docservice.Service
	account content.Account
}

// New creates a new MCP server with all tools registered. Graphs are built
// for account.
func New(graph *hn.Service, docs *docservice.Service, account content.Account) *Server {
	s := &Server{graph: graph, docs: docs, account: account}

	s.mcp = server.NewMCPServer(
		"Headless",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_content_graph",
		mcp.WithDescription("Resolve a site path and return its normalized content graph: "+
			"every object keyed by uuid under data, path to uuid under paths, and status."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Site path (e.g. /news/launch)")),
		mcp.WithBoolean("debug", mcp.Description("Attach the build log under __meta")),
	), s.getContentGraph)

	s.mcp.AddTool(mcp.NewTool("search_content",
		mcp.WithDescription("Full-text search through content titles and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.searchContent)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a vault document with its checksum, object identity, references and backlinks."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. pages/about.md)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List indexed documents."),
		mcp.WithString("kind", mcp.Description("Optional kind filter"), mcp.Enum("content", "config")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_references",
		mcp.WithDescription("List the references of an object and the objects referencing it."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Object category (e.g. node)")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Object id")),
	), s.getReferences)

	s.mcp.AddTool(mcp.NewTool("write_document",
		mcp.WithDescription("Create or replace a vault document. "+
			"Content MUST follow the document format contract; read it first via "+
			"the get_document_contract tool or the "+ContractURI+" resource. "+
			"Pass the checksum from read_document when replacing a document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path (.md for content, .yaml for config)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Document content following the contract")),
		mcp.WithString("checksum", mcp.Description("Checksum of the version being replaced")),
	), s.writeDocument)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the document format contract. "+
			"Call this before writing documents to ensure correct structure."),
	), s.getDocumentContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Document Format Contract",
			mcp.WithResourceDescription("Format of content and config documents in the vault."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) getContentGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.graph.BuildResponse(ctx, hn.Request{
		Path:    path,
		Account: s.account,
		Debug:   req.GetBool("debug", false),
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(resp)
}

func (s *Server) searchContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.docs.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no results"), nil
	}
	return jsonResult(results)
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.docs.GetDocument(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	return jsonResult(doc)
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.docs.ListDocuments(ctx,
		req.GetString("kind", ""), req.GetInt("limit", 0), req.GetInt("offset", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"documents": items, "total": total})
}

func (s *Server) getReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, backlinks, err := s.docs.References(ctx, category, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"references": refs, "backlinks": backlinks})
}

func (s *Server) writeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, created, err := s.docs.PutDocument(ctx, path, []byte(body), req.GetString("checksum", ""))
	if err != nil {
		return toolError(path, err), nil
	}
	verb := "updated"
	if created {
		verb = "created"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s (checksum %s)", verb, path, doc.Checksum)), nil
}

func (s *Server) getDocumentContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(path string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError(fmt.Sprintf("checksum mismatch: %s was changed, read it again", path))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}
