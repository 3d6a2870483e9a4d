// Package gmail wraps the Gmail API with the restricted operation set
// this server exposes: searching and reading threads and messages,
// listing and fetching attachments, and label changes (which cover
// archiving and read state). There are deliberately no send, trash or
// delete operations in this package; the API client is built with the
// gmail.modify scope and nothing here reaches beyond it.
//
// Message parsing helpers (header lookup, body extraction, attachment
// enumeration) are pure functions over *gmail.Message so they can be
// exercised without network access.
package gmail
