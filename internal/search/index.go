// Package search maintains a best-effort full-text mirror of transaction
// records in an embedded bleve index.
//
// The index is never read for balance computation. A failed sync leaves
// it stale until the next mutation of the same record.
package search

import (
	"fmt"
	"strconv"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/finledger/backend/internal/models"
)

// Document is the indexed projection of a transaction record.
type Document struct {
	AccountID   uint64    `json:"accountId"`
	UserID      uint64    `json:"userId"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

// Index mirrors transaction records into a bleve index.
type Index struct {
	index bleve.Index
}

// Open opens the index at path, creating it if it does not exist.
func Open(path string) (*Index, error) {
	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}

	return &Index{index: index}, nil
}

// OpenInMemory returns an index that is not persisted. Used in tests and
// when no index path is configured.
func OpenInMemory() (*Index, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("opening in-memory search index: %w", err)
	}

	return &Index{index: index}, nil
}

func documentOf(record models.TransactionRecord) Document {
	return Document{
		AccountID:   record.AccountID,
		UserID:      record.UserID,
		Type:        string(record.Type),
		Amount:      record.Amount.InexactFloat64(),
		Date:        record.Date,
		Description: record.Description,
	}
}

func docID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// Index upserts a record into the index.
func (i *Index) Index(record models.TransactionRecord) error {
	return i.index.Index(docID(record.ID), documentOf(record))
}

// Update re-indexes a record. bleve indexing is an upsert, so this is
// the same operation as Index; the separate name mirrors the mutation it
// is called for.
func (i *Index) Update(record models.TransactionRecord) error {
	return i.Index(record)
}

// Delete removes a record from the index.
func (i *Index) Delete(id uint64) error {
	return i.index.Delete(docID(id))
}

// DeleteBatch removes multiple records from the index in one batch.
func (i *Index) DeleteBatch(ids []uint64) error {
	batch := i.index.NewBatch()
	for _, id := range ids {
		batch.Delete(docID(id))
	}

	return i.index.Batch(batch)
}

// Search runs a query string query against the index and returns the
// matching record IDs.
func (i *Index) Search(query string) ([]uint64, error) {
	request := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))

	result, err := i.index.Search(request)
	if err != nil {
		return nil, fmt.Errorf("searching records: %w", err)
	}

	ids := make([]uint64, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing document ID %q: %w", hit.ID, err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// Close closes the underlying index.
func (i *Index) Close() error {
	return i.index.Close()
}
