// Package search maintains a full-text index over message content.
// The index is advisory: it is written best-effort after the durable save and
// queried only by the message-search endpoint, never by the delivery path.
package search

import (
	"context"
	"log/slog"
	"time"

	"care-chat/domain"

	"github.com/blugelabs/bluge"
)

type IMessageIndex interface {
	Index(message domain.Message) error
	Search(ctx context.Context, userID, query string, limit int) ([]Hit, error)
}

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Hit is one search result, rebuilt entirely from stored fields so no store
// round trip is needed to render it.
type Hit struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Index adds one message to the index. Both participant ids are indexed under
// the same keyword field so a single term query scopes results to the caller's
// own conversations.
func (i *MessageIndex) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("participant", message.SenderID)).
		AddField(bluge.NewKeywordField("participant", message.ReceiverID)).
		AddField(bluge.NewKeywordField("conversation_id", message.ConversationID).StoreValue()).
		AddField(bluge.NewStoredOnlyField("sender_id", []byte(message.SenderID))).
		AddField(bluge.NewStoredOnlyField("created_at", []byte(message.CreatedAt.UTC().Format(time.RFC3339Nano))))

	return i.writer.Update(doc.ID(), doc)
}

// Search runs a content match scoped to conversations the user participates
// in, best score first.
func (i *MessageIndex) Search(ctx context.Context, userID, query string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Error("failed to close index reader", "error", err)
		}
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("content")).
		AddMust(bluge.NewTermQuery(userID).SetField("participant"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "content":
				hit.Content = string(value)
			case "conversation_id":
				hit.ConversationID = string(value)
			case "sender_id":
				hit.SenderID = string(value)
			case "created_at":
				if at, err := time.Parse(time.RFC3339Nano, string(value)); err == nil {
					hit.CreatedAt = at
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
