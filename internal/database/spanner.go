package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
)

// DocumentsTable is the Spanner table backing the store:
//
//	CREATE TABLE Documents (
//	  Path      STRING(1024) NOT NULL,
//	  Data      STRING(MAX)  NOT NULL,
//	  UpdatedAt TIMESTAMP    NOT NULL OPTIONS (allow_commit_timestamp=true),
//	) PRIMARY KEY (Path);
const DocumentsTable = "Documents"

var documentColumns = []string{"Path", "Data", "UpdatedAt"}

// Client is a Store backed by Cloud Spanner.
type Client struct {
	client *spanner.Client
}

// NewClient connects to projects/{projectID}/instances/{instance}/databases/{database}.
func NewClient(ctx context.Context, projectID, instance, database string) (*Client, error) {
	dbPath := fmt.Sprintf("projects/%s/instances/%s/databases/%s", projectID, instance, database)
	client, err := spanner.NewClient(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create spanner client: %w", err)
	}
	return &Client{client: client}, nil
}

// Close releases the underlying Spanner sessions.
func (c *Client) Close() error {
	c.client.Close()
	return nil
}

// RunTransaction runs fn in a Spanner read-write transaction. Spanner retries
// the callback when the transaction is aborted by a concurrent writer.
func (c *Client) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	_, err := c.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		return fn(ctx, &spannerTx{txn: txn})
	})
	return err
}

// Get reads one document with a single-use read-only transaction.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	row, err := c.client.Single().ReadRow(ctx, DocumentsTable, spanner.Key{path}, []string{"Data"})
	if spanner.ErrCode(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	var data string
	if err := row.Columns(&data); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return []byte(data), nil
}

// List returns the documents under prefix ordered by path.
func (c *Client) List(ctx context.Context, prefix string) ([]Document, error) {
	stmt := spanner.Statement{
		SQL: `SELECT Path, Data
		      FROM Documents
		      WHERE STARTS_WITH(Path, @prefix)
		      ORDER BY Path`,
		Params: map[string]interface{}{
			"prefix": prefix,
		},
	}

	iter := c.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	var docs []Document
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate documents: %w", err)
		}

		var path, data string
		if err := row.Columns(&path, &data); err != nil {
			return nil, fmt.Errorf("failed to parse document: %w", err)
		}
		docs = append(docs, Document{Path: path, Data: []byte(data)})
	}

	return docs, nil
}

type spannerTx struct {
	txn *spanner.ReadWriteTransaction
}

func (t *spannerTx) Get(ctx context.Context, path string) ([]byte, bool, error) {
	row, err := t.txn.ReadRow(ctx, DocumentsTable, spanner.Key{path}, []string{"Data"})
	if spanner.ErrCode(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read document: %w", err)
	}

	var data string
	if err := row.Columns(&data); err != nil {
		return nil, false, fmt.Errorf("failed to parse document: %w", err)
	}
	return []byte(data), true, nil
}

func (t *spannerTx) Set(path string, data []byte) error {
	mutation := spanner.InsertOrUpdate(DocumentsTable, documentColumns,
		[]interface{}{path, string(data), spanner.CommitTimestamp},
	)
	if err := t.txn.BufferWrite([]*spanner.Mutation{mutation}); err != nil {
		return fmt.Errorf("failed to buffer document write: %w", err)
	}
	return nil
}

func (t *spannerTx) Delete(path string) error {
	if err := t.txn.BufferWrite([]*spanner.Mutation{spanner.Delete(DocumentsTable, spanner.Key{path})}); err != nil {
		return fmt.Errorf("failed to buffer document delete: %w", err)
	}
	return nil
}
