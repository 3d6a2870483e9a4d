package gmail_tools

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mbaselga/safe-gmail-mcp/internal/server"
)

func newTestServerContext(t *testing.T) *server.ServerContext {
	t.Helper()
	sc := server.NewServerContext(context.Background(), nil, nil)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func newRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText flattens the text content of a tool result for assertions.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("nil tool result")
	}
	var sb strings.Builder
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func TestRegisterGmailTools(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
	sc := newTestServerContext(t)

	if err := RegisterGmailTools(s, sc, false); err != nil {
		t.Fatalf("RegisterGmailTools() error = %v", err)
	}

	registered := make(map[string]bool)
	for _, serverTool := range s.ListTools() {
		registered[serverTool.Tool.Name] = true
	}

	want := []string{
		"gmail_search_threads",
		"gmail_get_thread",
		"gmail_get_message",
		"gmail_get_message_bodies",
		"gmail_list_labels",
		"gmail_list_attachments",
		"gmail_get_attachment",
		"gmail_modify_labels",
		"gmail_archive_threads",
		"gmail_mark_read",
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("tool %q not registered", name)
		}
	}

	forbidden := []string{
		"gmail_send_email", "gmail_reply_email", "gmail_forward_email",
		"gmail_trash_threads", "gmail_delete_threads",
	}
	for _, name := range forbidden {
		if registered[name] {
			t.Errorf("tool %q must not be registered", name)
		}
	}
}

func TestRegisterGmailToolsReadOnly(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
	sc := newTestServerContext(t)

	if err := RegisterGmailTools(s, sc, true); err != nil {
		t.Fatalf("RegisterGmailTools() error = %v", err)
	}

	registered := make(map[string]bool)
	for _, serverTool := range s.ListTools() {
		registered[serverTool.Tool.Name] = true
	}

	if !registered["gmail_search_threads"] {
		t.Error("read tools should be registered in read-only mode")
	}
	for _, name := range []string{"gmail_modify_labels", "gmail_archive_threads", "gmail_mark_read"} {
		if registered[name] {
			t.Errorf("label tool %q should not be registered in read-only mode", name)
		}
	}
}

func TestHandleSearchThreadsMissingQuery(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	result, err := handleSearchThreads(ctx, newRequest("gmail_search_threads", map[string]interface{}{}), sc)
	if err != nil {
		t.Fatalf("handleSearchThreads() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for missing query")
	}
	if got := resultText(t, result); !strings.Contains(got, "query is required") {
		t.Errorf("result = %q, want query requirement message", got)
	}
}

func TestHandleSearchThreadsNoCredentials(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	result, err := handleSearchThreads(ctx, newRequest("gmail_search_threads", map[string]interface{}{
		"query": "in:inbox",
	}), sc)
	if err != nil {
		t.Fatalf("handleSearchThreads() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected error result without stored credentials")
	}
	if got := resultText(t, result); !strings.Contains(got, "safe-gmail-mcp auth") {
		t.Errorf("result = %q, want authorization guidance", got)
	}
}

func TestHandleGetThreadMissingID(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	result, err := handleGetThread(ctx, newRequest("gmail_get_thread", map[string]interface{}{}), sc)
	if err != nil {
		t.Fatalf("handleGetThread() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for missing threadId")
	}
}

func TestHandleGetMessageMissingID(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	result, err := handleGetMessage(ctx, newRequest("gmail_get_message", map[string]interface{}{}), sc)
	if err != nil {
		t.Fatalf("handleGetMessage() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for missing messageId")
	}
}

func TestHandleGetMessageBodiesValidation(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "missing messageIds",
			args: map[string]interface{}{},
			want: "messageIds is required",
		},
		{
			name: "empty messageIds array",
			args: map[string]interface{}{"messageIds": []interface{}{}},
			want: "messageIds cannot be empty",
		},
		{
			name: "invalid format",
			args: map[string]interface{}{"messageIds": "msg-1", "format": "pdf"},
			want: "Invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handleGetMessageBodies(ctx, newRequest("gmail_get_message_bodies", tt.args), sc)
			if err != nil {
				t.Fatalf("handleGetMessageBodies() error = %v", err)
			}
			if !result.IsError {
				t.Error("expected error result")
			}
			if got := resultText(t, result); !strings.Contains(got, tt.want) {
				t.Errorf("result = %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestHandleModifyLabelsValidation(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "missing threadIds",
			args: map[string]interface{}{"addLabelIds": "STARRED"},
			want: "threadIds is required",
		},
		{
			name: "no label changes",
			args: map[string]interface{}{"threadIds": "thread-1"},
			want: "at least one of addLabelIds or removeLabelIds",
		},
		{
			name: "non-string label id",
			args: map[string]interface{}{
				"threadIds":   "thread-1",
				"addLabelIds": []interface{}{1},
			},
			want: "addLabelIds[0] must be a string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handleModifyLabels(ctx, newRequest("gmail_modify_labels", tt.args), sc)
			if err != nil {
				t.Fatalf("handleModifyLabels() error = %v", err)
			}
			if !result.IsError {
				t.Error("expected error result")
			}
			if got := resultText(t, result); !strings.Contains(got, tt.want) {
				t.Errorf("result = %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestHandleArchiveThreadsMissingIDs(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	result, err := handleArchiveThreads(ctx, newRequest("gmail_archive_threads", map[string]interface{}{}), sc)
	if err != nil {
		t.Fatalf("handleArchiveThreads() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for missing threadIds")
	}
}

func TestHandleMarkReadMissingIDs(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	result, err := handleMarkRead(ctx, newRequest("gmail_mark_read", map[string]interface{}{}), sc)
	if err != nil {
		t.Fatalf("handleMarkRead() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for missing threadIds")
	}
}
