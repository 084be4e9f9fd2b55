// Package mcp exposes the flashcard tools over the Model Context Protocol
// using github.com/mark3labs/mcp-go.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/conorfennell/flashcard-mcp/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

const (
	// Name is the server name reported to MCP clients.
	Name = "flashcard-mcp"
	// Version is the server version reported to MCP clients.
	Version = "0.3.0"
)

// NewServer builds an MCP server with every flashcard tool registered.
func NewServer(svc *tools.Service, logger zerolog.Logger) *server.MCPServer {
	s := server.NewMCPServer(Name, Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	h := &handlers{svc: svc, logger: logger}
	for _, t := range h.tools() {
		s.AddTool(t.tool, t.handler)
	}
	return s
}

// ServeStdio serves MCP over stdin/stdout until the input closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// HTTPHandler serves MCP over streamable HTTP without sessions, so every
// request stands alone.
func HTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s, server.WithStateLess(true))
}

type registration struct {
	tool    mcp.Tool
	handler server.ToolHandlerFunc
}

type handlers struct {
	svc    *tools.Service
	logger zerolog.Logger
}

func (h *handlers) tools() []registration {
	return []registration{
		{
			tool: mcp.NewTool("list_projects",
				mcp.WithDescription("List all flashcard projects. Call this first to see what projects exist before creating flashcards or querying them. Each project has a name and description so you can pick the right one."),
			),
			handler: func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return h.result("list_projects", func() (string, error) { return h.svc.ListProjects(ctx) })
			},
		},
		{
			tool: mcp.NewTool("create_project",
				mcp.WithDescription("Create a new flashcard project. Use a short, lowercase name (e.g. 'math', 'spanish', 'medicine'). The description helps identify the project later."),
				mcp.WithString("name", mcp.Required(), mcp.Description("Short project name, e.g. 'math', 'spanish', 'medicine'")),
				mcp.WithString("description", mcp.Required(), mcp.Description("What this project is for, e.g. 'Self-taught math from algebra through abstract algebra'")),
			),
			handler: bind(h, "create_project", h.svc.CreateProject),
		},
		{
			tool: mcp.NewTool("get_project",
				mcp.WithDescription("Show a project's description, card counts and its memory notes."),
				mcp.WithString("name", mcp.Required(), mcp.Description("The project name")),
			),
			handler: bind(h, "get_project", h.svc.GetProject),
		},
		{
			tool: mcp.NewTool("update_project",
				mcp.WithDescription("Update a project's description and/or memory. Memory is freeform text for notes about the learner's progress in this project. Only provided fields are changed."),
				mcp.WithString("name", mcp.Required(), mcp.Description("The project name")),
				mcp.WithString("description", mcp.Description("New description")),
				mcp.WithString("memory", mcp.Description("New memory text (replaces the existing memory)")),
			),
			handler: bind(h, "update_project", h.svc.UpdateProject),
		},
		{
			tool: mcp.NewTool("create_flashcard",
				mcp.WithDescription("Create a new flashcard in a project. Front is the prompt/question, back is the answer. Tags help organize by topic within the project. You must specify a project; call list_projects first if you're not sure which one to use."),
				mcp.WithString("project", mcp.Required(), mcp.Description("The project name to add this card to (e.g. 'math')")),
				mcp.WithString("front", mcp.Required(), mcp.Description("The question or prompt side of the flashcard")),
				mcp.WithString("back", mcp.Required(), mcp.Description("The answer side of the flashcard")),
				mcp.WithArray("tags", mcp.Description("Tags for organizing, e.g. ['linear-algebra', 'eigenvalues']"), mcp.Items(map[string]any{"type": "string"})),
			),
			handler: bind(h, "create_flashcard", h.svc.CreateFlashcard),
		},
		{
			tool: mcp.NewTool("edit_flashcard",
				mcp.WithDescription("Edit an existing flashcard. You can update the front, back, and/or tags. Only provided fields are changed."),
				mcp.WithString("id", mcp.Required(), mcp.Description("The flashcard ID to edit")),
				mcp.WithString("front", mcp.Description("New question or prompt side of the flashcard")),
				mcp.WithString("back", mcp.Description("New answer side of the flashcard")),
				mcp.WithArray("tags", mcp.Description("New tags (replaces existing tags)"), mcp.Items(map[string]any{"type": "string"})),
			),
			handler: bind(h, "edit_flashcard", h.svc.EditFlashcard),
		},
		{
			tool: mcp.NewTool("get_due_flashcards",
				mcp.WithDescription("Get flashcards that are due for review right now. Returns cards whose next_review date is in the past. Specify a project to filter, or omit to see due cards across all projects."),
				mcp.WithString("project", mcp.Description("Filter by project name")),
				mcp.WithNumber("limit", mcp.Description("Max number of cards to return (default 10)"), mcp.Min(1)),
				mcp.WithString("tag", mcp.Description("Filter by tag")),
			),
			handler: bind(h, "get_due_flashcards", h.svc.DueFlashcards),
		},
		{
			tool: mcp.NewTool("review_flashcard",
				mcp.WithDescription("Record a review result for a flashcard. This updates the spaced repetition schedule."),
				mcp.WithString("id", mcp.Required(), mcp.Description("The flashcard ID")),
				mcp.WithNumber("quality", mcp.Required(), mcp.Min(1), mcp.Max(4),
					mcp.Description("How well you remembered: 1 = forgot, 2 = hard, 3 = good, 4 = easy")),
			),
			handler: bind(h, "review_flashcard", h.svc.ReviewFlashcard),
		},
		{
			tool: mcp.NewTool("get_flashcard_answer",
				mcp.WithDescription("Get the answer (back) of a specific flashcard by ID. Use this after quizzing yourself."),
				mcp.WithString("id", mcp.Required(), mcp.Description("The flashcard ID")),
			),
			handler: bind(h, "get_flashcard_answer", h.svc.FlashcardAnswer),
		},
		{
			tool: mcp.NewTool("list_flashcards",
				mcp.WithDescription("List all flashcards, optionally filtered by project and/or tag. Shows front, tags, and review status. Supports pagination and ordering."),
				mcp.WithString("project", mcp.Description("Filter by project name")),
				mcp.WithString("tag", mcp.Description("Filter by tag")),
				mcp.WithString("order_by", mcp.Enum("created_at", "next_review"), mcp.Description("Field to order by (default: created_at)")),
				mcp.WithString("order", mcp.Enum("asc", "desc"), mcp.Description("Sort direction (default: asc)")),
				mcp.WithNumber("offset", mcp.Min(0), mcp.Description("Number of cards to skip for pagination (default: 0)")),
				mcp.WithNumber("limit", mcp.Min(0), mcp.Description("Max number of cards to return for pagination (default: all)")),
			),
			handler: bind(h, "list_flashcards", h.svc.ListFlashcards),
		},
		{
			tool: mcp.NewTool("delete_flashcard",
				mcp.WithDescription("Delete a flashcard by ID."),
				mcp.WithString("id", mcp.Required(), mcp.Description("The flashcard ID to delete")),
			),
			handler: bind(h, "delete_flashcard", h.svc.DeleteFlashcard),
		},
	}
}

// bind decodes the call arguments into A and runs op.
func bind[A any](h *handlers, name string, op func(context.Context, A) (string, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args A
		if err := decodeArguments(req.GetArguments(), &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		return h.result(name, func() (string, error) { return op(ctx, args) })
	}
}

// result turns a tool outcome into an MCP result. Argument problems are
// reported to the caller; anything else is logged and reported generically.
func (h *handlers) result(name string, run func() (string, error)) (*mcp.CallToolResult, error) {
	text, err := run()
	if err == nil {
		return mcp.NewToolResultText(text), nil
	}
	if errors.Is(err, tools.ErrInvalidArgument) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h.logger.Error().Err(err).Str("tool", name).Msg("tool call failed")
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", name, err)), nil
}

func decodeArguments(in map[string]any, out any) error {
	if in == nil {
		in = map[string]any{}
	}
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
