// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package badger

import (
	"encoding/json"
	"fmt"

	"github.com/absmach/mailmq/storage"
	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
)

var _ storage.ContentStore = (*ContentStore)(nil)

// Content bodies carry full mail text and attachments, so values are
// zstd-compressed at rest. Stateless encoder/decoder shared by all calls.
var (
	contentEncoder, _ = zstd.NewWriter(nil)
	contentDecoder, _ = zstd.NewReader(nil)
)

// ContentStore implements storage.ContentStore using BadgerDB.
//
// Key format: content/{contentID}
type ContentStore struct {
	db *badger.DB
}

// NewContentStore creates a new BadgerDB content store.
func NewContentStore(db *badger.DB) *ContentStore {
	return &ContentStore{db: db}
}

// Save persists a content record.
func (s *ContentStore) Save(content *storage.Content) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}
	compressed := contentEncoder.EncodeAll(data, nil)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixContent+content.ID), compressed)
	})
}

// Get retrieves a content record by ID.
func (s *ContentStore) Get(id string) (*storage.Content, error) {
	var content *storage.Content

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixContent + id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			data, err := contentDecoder.DecodeAll(val, nil)
			if err != nil {
				return fmt.Errorf("failed to decompress content: %w", err)
			}
			content = &storage.Content{}
			return json.Unmarshal(data, content)
		})
	})
	if err != nil {
		return nil, err
	}

	return content, nil
}

// GetAll retrieves content records for the given IDs, skipping missing ones.
func (s *ContentStore) GetAll(ids []string) ([]*storage.Content, error) {
	var contents []*storage.Content

	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get([]byte(prefixContent + id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}

			err = item.Value(func(val []byte) error {
				data, err := contentDecoder.DecodeAll(val, nil)
				if err != nil {
					return fmt.Errorf("failed to decompress content: %w", err)
				}
				var content storage.Content
				if err := json.Unmarshal(data, &content); err != nil {
					return err
				}
				contents = append(contents, &content)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return contents, nil
}

// Delete removes a content record.
func (s *ContentStore) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixContent + id))
	})
}
