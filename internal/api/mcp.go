package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"askd/internal/qa"
	"askd/internal/ratelimit"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Dispatcher Submitter
	Poller     StatusReader
	Limiter    Admitter
}

// NewMCPServer creates an MCP server exposing question submission and
// result polling as tools. The MCP transport is a local stdio surface;
// callers identify themselves by name or fall back to guest (with the
// guest quota applied).
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"askd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("askd — asynchronous question answering. Submit a question with ask_question, then poll get_answer with the returned task_id until the status is terminal."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_question",
			mcp.WithDescription("Submit a question for asynchronous answering. Returns a task_id to poll."),
			mcp.WithString("question", mcp.Description("The question text (1-2000 characters)"), mcp.Required()),
			mcp.WithString("identity", mcp.Description("Caller identity; omit for guest (guests are rate limited per day)")),
		),
		mcpAskQuestion(deps),
	)

	s.AddTool(
		mcp.NewTool("get_answer",
			mcp.WithDescription("Poll the status of a submitted question. Terminal statuses are success and failure."),
			mcp.WithString("task_id", mcp.Description("Task ID returned by ask_question"), mcp.Required()),
		),
		mcpGetAnswer(deps),
	)

	return s
}

func mcpAskQuestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		if err := qa.ValidateQuestion(question); err != nil {
			return mcpError(err.Error()), nil
		}

		identity := req.GetString("identity", ratelimit.Guest)
		if identity == "" {
			identity = ratelimit.Guest
		}

		admitted, err := deps.Limiter.Admit(ctx, identity)
		if err != nil {
			return mcpError(fmt.Sprintf("checking rate limit: %v", err)), nil
		}
		if !admitted {
			return mcpError("daily question limit reached"), nil
		}

		taskID, err := deps.Dispatcher.Submit(question, identity)
		if err != nil {
			return mcpError(fmt.Sprintf("submitting task: %v", err)), nil
		}

		b, err := json.Marshal(map[string]string{"task_id": taskID})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetAnswer(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireString("task_id")
		if err != nil {
			return mcpError("task_id is required"), nil
		}

		status, err := deps.Poller.Status(taskID)
		if err != nil {
			return mcpError(fmt.Sprintf("reading task status: %v", err)), nil
		}

		b, err := json.Marshal(resultResponse{
			Status: status.State,
			Answer: status.Answer,
			Error:  status.Error,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
