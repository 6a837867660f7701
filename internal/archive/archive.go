// Package archive stores generated documents and their revisions.
package archive

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

// UntitledDocument is the title used when a document has no heading.
const UntitledDocument = "未命名文档"

// ErrNotFound is returned when a document id is unknown.
var ErrNotFound = errors.New("archive: document not found")

// Document is one generated document. A rewrite is stored as a new
// document whose ParentDocID points at the draft it replaced.
type Document struct {
	UserID      string    `bson:"user_id" json:"user_id"`
	DocID       string    `bson:"doc_id" json:"doc_id"`
	Title       string    `bson:"title" json:"title"`
	Content     string    `bson:"content" json:"content"`
	ParentDocID string    `bson:"parent_doc_id,omitempty" json:"parent_doc_id,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// Archive persists documents keyed by DocID.
type Archive interface {
	// Save inserts or replaces a document. CreatedAt is kept from the
	// stored copy on replace; UpdatedAt is always set to now.
	Save(ctx context.Context, doc Document) (Document, error)

	Get(ctx context.Context, docID string) (Document, error)

	// ListByUser returns a user's documents, most recently updated first.
	ListByUser(ctx context.Context, userID string, limit int) ([]Document, error)

	Close(ctx context.Context) error
}

var headingRe = regexp.MustCompile(`(?m)^#{1,2}\s+(.+)$`)

// ExtractTitle returns the text of the first level 1 or 2 markdown
// heading, or UntitledDocument.
func ExtractTitle(markdown string) string {
	m := headingRe.FindStringSubmatch(markdown)
	if m == nil {
		return UntitledDocument
	}
	if title := strings.TrimSpace(m[1]); title != "" {
		return title
	}
	return UntitledDocument
}

func validate(doc Document) error {
	if strings.TrimSpace(doc.DocID) == "" {
		return errors.New("archive: doc_id is required")
	}
	return nil
}
