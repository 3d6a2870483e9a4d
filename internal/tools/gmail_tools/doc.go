// Package gmail_tools provides MCP tools for working with Gmail.
//
// The toolset is deliberately restricted to reading mail and adjusting
// labels. There are no tools for sending, replying, trashing, or
// permanently deleting mail, so an agent wired to this server cannot
// exfiltrate or destroy mailbox content through it.
//
// Available tools:
//   - gmail_search_threads: Search threads with a Gmail query
//   - gmail_get_thread: Fetch a thread with message summaries
//   - gmail_get_message: Fetch a single message
//   - gmail_get_message_bodies: Extract text or HTML bodies in batch
//   - gmail_list_labels: List the mailbox labels
//   - gmail_list_attachments: Enumerate attachments on a message
//   - gmail_get_attachment: Download one attachment
//
// Label tools (registered unless the server runs read-only):
//   - gmail_modify_labels: Add/remove labels on one or more threads
//   - gmail_archive_threads: Remove threads from the inbox
//   - gmail_mark_read: Mark threads read or unread
package gmail_tools
