//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"whisperfeed/domain"
)

type IMessageRepository interface {
	Append(message domain.Message) (domain.Message, error)
	ReadSince(sinceID uint64, limit int) ([]domain.Message, error)
	Recent(window int) ([]domain.Message, error)
}

// MessageRepository is the durable append-only log of admitted messages.
// IDs come from a Badger sequence and are the canonical total order for
// fan-out and backfill.
type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

// NewMessageRepository opens the id sequence. The caller owns the Badger
// handle; Close releases only the sequence lease.
func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	// Bandwidth 1 keeps ids contiguous across restarts at the cost of one
	// write per Next, fine at whisper-feed scale.
	seq, err := db.GetSequence([]byte("seq:msg"), 1)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// diskMessage is the stored form of a message.
type diskMessage struct {
	ID       uint64    `json:"id"`
	Author   string    `json:"author"`
	Content  string    `json:"content"`
	At       time.Time `json:"at"`
	Hashtags []string  `json:"hashtags,omitempty"`
	Links    []string  `json:"links,omitempty"`
}

// msgKey formats the storage key with 19-digit zero padding so that the
// numeric id order and the lexicographic key order coincide.
func msgKey(id uint64) []byte {
	return []byte(fmt.Sprintf("msg:%019d", id))
}

// Append assigns the next sequence id and persists the message. The input
// message must not carry an id yet; the persisted copy is returned.
func (m *MessageRepository) Append(message domain.Message) (domain.Message, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("next message id: %w", err)
	}
	message.ID = next + 1 // ids start at 1, 0 means "from the beginning"

	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(msgKey(message.ID), bytes)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// ReadSince returns up to limit messages with id > sinceID, in ascending id
// order. A limit <= 0 means no limit.
func (m *MessageRepository) ReadSince(sinceID uint64, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(msgKey(sinceID + 1)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			var message domain.Message
			err := it.Item().Value(func(value []byte) error {
				var innerErr error
				message, innerErr = decodeMessage(value)
				return innerErr
			})
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	return messages, err
}

// Recent returns the last `window` messages in ascending id order, for
// backfilling a newly connected reader.
func (m *MessageRepository) Recent(window int) ([]domain.Message, error) {
	if window <= 0 {
		return nil, nil
	}
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:")
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the highest possible key, then walk backwards.
		seekKey := append([]byte{}, prefix...)
		seekKey = append(seekKey, []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == window {
				break
			}
			var message domain.Message
			err := it.Item().Value(func(value []byte) error {
				var innerErr error
				message, innerErr = decodeMessage(value)
				return innerErr
			})
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reverse into ascending id order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:       message.ID,
		Author:   string(message.Author),
		Content:  message.Content,
		At:       message.CreatedAt.UTC(),
		Hashtags: message.Hashtags,
		Links:    message.Links,
	}
}

func decodeMessage(value []byte) (domain.Message, error) {
	var disk diskMessage
	if err := json.Unmarshal(value, &disk); err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        disk.ID,
		Author:    domain.Identity(disk.Author),
		Content:   disk.Content,
		CreatedAt: disk.At,
		Hashtags:  disk.Hashtags,
		Links:     disk.Links,
	}, nil
}
