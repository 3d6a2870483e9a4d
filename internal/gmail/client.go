package gmail

import (
	"context"
	"fmt"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/mbaselga/safe-gmail-mcp/internal/auth"
	"github.com/mbaselga/safe-gmail-mcp/internal/logging"
)

// Client wraps the Gmail Users service with read, search and label
// operations. All calls act on the authorized user ("me").
type Client struct {
	svc *gmail.UsersService

	// Log receives debug output for API calls. Nil means slog.Default
	// through a SlogAdapter.
	Log logging.Logger
}

func (c *Client) logger() logging.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logging.NewSlogAdapter(nil)
}

// NewClient builds a Gmail client from the stored credential record.
// The underlying token source refreshes access tokens in memory as
// they expire; writing refreshed records back to disk is the refresh
// gate's job, not this client's.
func NewClient(ctx context.Context, keys *auth.KeyMaterial, creds *auth.Credentials) (*Client, error) {
	conf := keys.Config("")
	ts := conf.TokenSource(ctx, creds.Token())

	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &Client{svc: svc.Users}, nil
}

// ListThreads lists threads matching the query, fetching additional
// pages until maxResults threads have been collected or the results
// run out.
func (c *Client) ListThreads(q string, maxResults int64) ([]*gmail.Thread, error) {
	var allThreads []*gmail.Thread
	pageToken := ""

	for {
		remaining := maxResults - int64(len(allThreads))
		if remaining <= 0 {
			break
		}

		// The API caps page size at 100.
		pageSize := remaining
		if pageSize > 100 {
			pageSize = 100
		}

		req := c.svc.Threads.List("me").Q(q).MaxResults(pageSize)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		res, err := req.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list threads: %w", err)
		}

		allThreads = append(allThreads, res.Threads...)

		if res.NextPageToken == "" || int64(len(allThreads)) >= maxResults {
			break
		}
		pageToken = res.NextPageToken
	}

	if int64(len(allThreads)) > maxResults {
		allThreads = allThreads[:maxResults]
	}
	c.logger().Debug("listed threads", "query", q, "count", len(allThreads))
	return allThreads, nil
}

// GetThread retrieves a full thread with all its messages.
func (c *Client) GetThread(threadID string) (*gmail.Thread, error) {
	thread, err := c.svc.Threads.Get("me", threadID).Format("full").Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", threadID, err)
	}
	return thread, nil
}

// GetMessage retrieves a full message.
func (c *Client) GetMessage(messageID string) (*gmail.Message, error) {
	msg, err := c.svc.Messages.Get("me", messageID).Format("full").Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return msg, nil
}

// GetMessageBody fetches a message and extracts its text or HTML body.
func (c *Client) GetMessageBody(messageID, format string) (string, error) {
	msg, err := c.GetMessage(messageID)
	if err != nil {
		return "", err
	}
	return MessageBody(msg, format)
}

// ListLabels returns the user's labels, system and custom alike.
func (c *Client) ListLabels() ([]*gmail.Label, error) {
	res, err := c.svc.Labels.List("me").Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	return res.Labels, nil
}

// ModifyThread adds and removes labels on a thread.
func (c *Client) ModifyThread(threadID string, addLabelIDs, removeLabelIDs []string) error {
	_, err := c.svc.Threads.Modify("me", threadID, &gmail.ModifyThreadRequest{
		AddLabelIds:    addLabelIDs,
		RemoveLabelIds: removeLabelIDs,
	}).Do()
	if err != nil {
		return fmt.Errorf("failed to modify thread %s: %w", threadID, err)
	}
	c.logger().Debug("modified thread labels",
		"thread", threadID, "added", len(addLabelIDs), "removed", len(removeLabelIDs))
	return nil
}

// ArchiveThread archives a thread by removing the INBOX label.
func (c *Client) ArchiveThread(threadID string) error {
	return c.ModifyThread(threadID, nil, []string{"INBOX"})
}

// MarkThreadRead clears the UNREAD label on a thread.
func (c *Client) MarkThreadRead(threadID string) error {
	return c.ModifyThread(threadID, nil, []string{"UNREAD"})
}

// MarkThreadUnread sets the UNREAD label on a thread.
func (c *Client) MarkThreadUnread(threadID string) error {
	return c.ModifyThread(threadID, []string{"UNREAD"}, nil)
}
