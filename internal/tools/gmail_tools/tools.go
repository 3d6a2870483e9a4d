package gmail_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mbaselga/safe-gmail-mcp/internal/auth"
	"github.com/mbaselga/safe-gmail-mcp/internal/gmail"
	"github.com/mbaselga/safe-gmail-mcp/internal/server"
	"github.com/mbaselga/safe-gmail-mcp/internal/tools/batch"
	"github.com/mbaselga/safe-gmail-mcp/internal/tools/common"
)

// gmailClient returns the shared Gmail client or a tool error result
// explaining how to authorize. The second return value is non-nil when
// the client could not be built.
func gmailClient(ctx context.Context, sc *server.ServerContext) (*gmail.Client, *mcp.CallToolResult) {
	client, err := sc.GmailClient(ctx)
	if err == nil {
		return client, nil
	}

	switch {
	case errors.Is(err, auth.ErrNoCredentials):
		return nil, mcp.NewToolResultError(
			"No stored Gmail credentials. Run `safe-gmail-mcp auth` to authorize access, then restart the server.")
	case errors.Is(err, auth.ErrRefreshTokenMissing), errors.Is(err, auth.ErrRefreshFailed):
		return nil, mcp.NewToolResultError(fmt.Sprintf(
			"Stored Gmail credentials can no longer be refreshed: %v. Run `safe-gmail-mcp auth` to authorize again.", err))
	default:
		return nil, mcp.NewToolResultError(fmt.Sprintf("Failed to create Gmail client: %v", err))
	}
}

// RegisterGmailTools registers all Gmail tools with the MCP server.
// When readOnly is true, the label tools are left out and the server
// exposes only read operations.
func RegisterGmailTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	// Register attachment tools (read-only)
	if err := RegisterAttachmentTools(s, sc); err != nil {
		return fmt.Errorf("failed to register attachment tools: %w", err)
	}

	// Search threads tool
	searchThreadsTool := mcp.NewTool("gmail_search_threads",
		mcp.WithDescription("Search Gmail threads matching a query"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Gmail search query (e.g., 'in:inbox', 'from:user@example.com')"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)

	s.AddTool(searchThreadsTool, common.InstrumentedToolHandlerWithService(
		"gmail_search_threads", "gmail", "search", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSearchThreads(ctx, request, sc)
		}))

	// Get thread tool
	getThreadTool := mcp.NewTool("gmail_get_thread",
		mcp.WithDescription("Get a Gmail thread with a summary of each message"),
		mcp.WithString("threadId",
			mcp.Required(),
			mcp.Description("The ID of the thread to fetch"),
		),
	)

	s.AddTool(getThreadTool, common.InstrumentedToolHandlerWithService(
		"gmail_get_thread", "gmail", "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetThread(ctx, request, sc)
		}))

	// Get message tool
	getMessageTool := mcp.NewTool("gmail_get_message",
		mcp.WithDescription("Get a single Gmail message with headers and snippet"),
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("The ID of the message to fetch"),
		),
	)

	s.AddTool(getMessageTool, common.InstrumentedToolHandlerWithService(
		"gmail_get_message", "gmail", "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetMessage(ctx, request, sc)
		}))

	// Get message bodies tool
	getMessageBodiesTool := mcp.NewTool("gmail_get_message_bodies",
		mcp.WithDescription("Extract text or HTML body from one or more Gmail messages"),
		mcp.WithString("messageIds",
			mcp.Required(),
			mcp.Description("Message ID (string) or array of message IDs"),
		),
		mcp.WithString("format",
			mcp.Description("Body format: 'text' (default) or 'html'"),
		),
	)

	s.AddTool(getMessageBodiesTool, common.InstrumentedToolHandlerWithService(
		"gmail_get_message_bodies", "gmail", "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetMessageBodies(ctx, request, sc)
		}))

	// List labels tool
	listLabelsTool := mcp.NewTool("gmail_list_labels",
		mcp.WithDescription("List all labels in the Gmail mailbox"),
	)

	s.AddTool(listLabelsTool, common.InstrumentedToolHandlerWithService(
		"gmail_list_labels", "gmail", "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListLabels(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	// Modify labels tool (supports single or multiple threads)
	modifyLabelsTool := mcp.NewTool("gmail_modify_labels",
		mcp.WithDescription("Add and/or remove labels on one or more Gmail threads"),
		mcp.WithString("threadIds",
			mcp.Required(),
			mcp.Description("Thread ID (string) or array of thread IDs to modify"),
		),
		mcp.WithString("addLabelIds",
			mcp.Description("Label ID (string) or array of label IDs to add"),
		),
		mcp.WithString("removeLabelIds",
			mcp.Description("Label ID (string) or array of label IDs to remove"),
		),
	)

	s.AddTool(modifyLabelsTool, common.InstrumentedToolHandlerWithService(
		"gmail_modify_labels", "gmail", "update", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleModifyLabels(ctx, request, sc)
		}))

	// Archive threads tool (supports single or multiple threads)
	archiveThreadsTool := mcp.NewTool("gmail_archive_threads",
		mcp.WithDescription("Archive one or more Gmail threads by removing them from the inbox"),
		mcp.WithString("threadIds",
			mcp.Required(),
			mcp.Description("Thread ID (string) or array of thread IDs to archive"),
		),
	)

	s.AddTool(archiveThreadsTool, common.InstrumentedToolHandlerWithService(
		"gmail_archive_threads", "gmail", "update", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleArchiveThreads(ctx, request, sc)
		}))

	// Mark read tool (supports single or multiple threads)
	markReadTool := mcp.NewTool("gmail_mark_read",
		mcp.WithDescription("Mark one or more Gmail threads as read or unread"),
		mcp.WithString("threadIds",
			mcp.Required(),
			mcp.Description("Thread ID (string) or array of thread IDs"),
		),
		mcp.WithBoolean("unread",
			mcp.Description("Mark threads unread instead of read (default: false)"),
		),
	)

	s.AddTool(markReadTool, common.InstrumentedToolHandlerWithService(
		"gmail_mark_read", "gmail", "update", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleMarkRead(ctx, request, sc)
		}))

	return nil
}

func handleSearchThreads(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	maxResults := int64(10)
	if maxResultsVal, ok := args["maxResults"]; ok {
		if maxResultsFloat, ok := maxResultsVal.(float64); ok {
			maxResults = int64(maxResultsFloat)
		}
	}

	client, errResult := gmailClient(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	threads, err := client.ListThreads(query, maxResults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to search threads: %v", err)), nil
	}

	if len(threads) == 0 {
		return mcp.NewToolResultText("No threads matched the query"), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d threads:\n", len(threads))
	for i, thread := range threads {
		fmt.Fprintf(&sb, "%d. Thread ID: %s (Snippet: %s)\n", i+1, thread.Id, thread.Snippet)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func handleGetThread(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	threadID, ok := args["threadId"].(string)
	if !ok || threadID == "" {
		return mcp.NewToolResultError("threadId is required"), nil
	}

	client, errResult := gmailClient(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	thread, err := client.GetThread(threadID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get thread: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Thread ID: %s (%d messages)\n\n", thread.Id, len(thread.Messages))
	for i, msg := range thread.Messages {
		fmt.Fprintf(&sb, "--- Message %d ---\n", i+1)
		sb.WriteString(gmail.SummarizeMessage(msg).Format())
		sb.WriteString("\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func handleGetMessage(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	messageID, ok := args["messageId"].(string)
	if !ok || messageID == "" {
		return mcp.NewToolResultError("messageId is required"), nil
	}

	client, errResult := gmailClient(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	msg, err := client.GetMessage(messageID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get message: %v", err)), nil
	}

	return mcp.NewToolResultText(gmail.SummarizeMessage(msg).Format()), nil
}

func handleGetMessageBodies(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	messageIDs, err := batch.ParseStringOrArray(args["messageIds"], "messageIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	format := "text"
	if formatVal, ok := args["format"].(string); ok && formatVal != "" {
		format = formatVal
	}
	if format != "text" && format != "html" {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid format '%s', must be 'text' or 'html'", format)), nil
	}

	client, errResult := gmailClient(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	results := batch.ProcessBatch(messageIDs, func(messageID string) (string, error) {
		body, err := client.GetMessageBody(messageID, format)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Message body (%s, %d bytes):\n%s", format, len(body), body), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleListLabels(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, errResult := gmailClient(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	labels, err := client.ListLabels()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list labels: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d labels:\n", len(labels))
	for _, label := range labels {
		fmt.Fprintf(&sb, "- %s (ID: %s, Type: %s)\n", label.Name, label.Id, label.Type)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func handleModifyLabels(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	threadIDs, err := batch.ParseStringOrArray(args["threadIds"], "threadIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var addLabelIDs, removeLabelIDs []string
	if args["addLabelIds"] != nil {
		addLabelIDs, err = batch.ParseStringOrArray(args["addLabelIds"], "addLabelIds")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if args["removeLabelIds"] != nil {
		removeLabelIDs, err = batch.ParseStringOrArray(args["removeLabelIds"], "removeLabelIds")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if len(addLabelIDs) == 0 && len(removeLabelIDs) == 0 {
		return mcp.NewToolResultError("at least one of addLabelIds or removeLabelIds is required"), nil
	}

	client, errResult := gmailClient(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	results := batch.ProcessBatch(threadIDs, func(threadID string) (string, error) {
		if err := client.ModifyThread(threadID, addLabelIDs, removeLabelIDs); err != nil {
			return "", err
		}
		return fmt.Sprintf("Thread %s labels updated", threadID), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleArchiveThreads(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	threadIDs, err := batch.ParseStringOrArray(args["threadIds"], "threadIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, errResult := gmailClient(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	results := batch.ProcessBatch(threadIDs, func(threadID string) (string, error) {
		if err := client.ArchiveThread(threadID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Thread %s archived successfully", threadID), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleMarkRead(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	threadIDs, err := batch.ParseStringOrArray(args["threadIds"], "threadIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	unread := false
	if unreadVal, ok := args["unread"].(bool); ok {
		unread = unreadVal
	}

	client, errResult := gmailClient(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	results := batch.ProcessBatch(threadIDs, func(threadID string) (string, error) {
		if unread {
			if err := client.MarkThreadUnread(threadID); err != nil {
				return "", err
			}
			return fmt.Sprintf("Thread %s marked unread", threadID), nil
		}
		if err := client.MarkThreadRead(threadID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Thread %s marked read", threadID), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}
