package gmail_tools

import (
	"context"
	"strings"
	"testing"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{name: "zero bytes", bytes: 0, expected: "0 bytes"},
		{name: "small bytes", bytes: 512, expected: "512 bytes"},
		{name: "just under 1KB", bytes: 1023, expected: "1023 bytes"},
		{name: "exactly 1KB", bytes: 1024, expected: "1.00 KB"},
		{name: "1.5KB", bytes: 1536, expected: "1.50 KB"},
		{name: "just under 1MB", bytes: 1048575, expected: "1024.00 KB"},
		{name: "exactly 1MB", bytes: 1048576, expected: "1.00 MB"},
		{name: "5MB", bytes: 5242880, expected: "5.00 MB"},
		{name: "exactly 1GB", bytes: 1073741824, expected: "1.00 GB"},
		{name: "2GB", bytes: 2147483648, expected: "2.00 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatSize(tt.bytes)
			if got != tt.expected {
				t.Errorf("formatSize(%d) = %q, want %q", tt.bytes, got, tt.expected)
			}
		})
	}
}

func TestHandleListAttachmentsMissingID(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	result, err := handleListAttachments(ctx, newRequest("gmail_list_attachments", map[string]interface{}{}), sc)
	if err != nil {
		t.Fatalf("handleListAttachments() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for missing messageId")
	}
	if got := resultText(t, result); !strings.Contains(got, "messageId is required") {
		t.Errorf("result = %q, want messageId requirement message", got)
	}
}

func TestHandleGetAttachmentValidation(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "missing messageId",
			args: map[string]interface{}{"attachmentId": "att-1"},
			want: "messageId is required",
		},
		{
			name: "missing attachmentId",
			args: map[string]interface{}{"messageId": "msg-1"},
			want: "attachmentId is required",
		},
		{
			name: "invalid encoding",
			args: map[string]interface{}{
				"messageId":    "msg-1",
				"attachmentId": "att-1",
				"encoding":     "hex",
			},
			want: "Invalid encoding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handleGetAttachment(ctx, newRequest("gmail_get_attachment", tt.args), sc)
			if err != nil {
				t.Fatalf("handleGetAttachment() error = %v", err)
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

func TestHandleGetAttachmentNoCredentials(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	result, err := handleGetAttachment(ctx, newRequest("gmail_get_attachment", map[string]interface{}{
		"messageId":    "msg-1",
		"attachmentId": "att-1",
	}), sc)
	if err != nil {
		t.Fatalf("handleGetAttachment() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected error result without stored credentials")
	}
	if got := resultText(t, result); !strings.Contains(got, "safe-gmail-mcp auth") {
		t.Errorf("result = %q, want authorization guidance", got)
	}
}
