package chat

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Messages stores relayed chat events for history replay.
type Messages interface {
	repository.Repository[*ChatMessage]

	Save(ctx context.Context, msg *ChatMessage) (*ChatMessage, error)
	SaveTx(ctx context.Context, tx bun.IDB, msg *ChatMessage) (*ChatMessage, error)
	Latest(ctx context.Context, limit int) ([]*ChatMessage, error)
}

type messages struct {
	repository.Repository[*ChatMessage]
	db *bun.DB
}

var (
	_ Messages                            = (*messages)(nil)
	_ repository.Repository[*ChatMessage] = (*messages)(nil)
)

func NewMessagesRepository(db *bun.DB) Messages {
	repo := repository.NewRepository[*ChatMessage](db, repository.ModelHandlers[*ChatMessage]{
		NewRecord: func() *ChatMessage { return &ChatMessage{} },
		GetID: func(m *ChatMessage) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *ChatMessage, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
	})

	return &messages{
		Repository: repo,
		db:         db,
	}
}

func (r *messages) Save(ctx context.Context, msg *ChatMessage) (*ChatMessage, error) {
	return r.SaveTx(ctx, r.db, msg)
}

func (r *messages) SaveTx(ctx context.Context, tx bun.IDB, msg *ChatMessage) (*ChatMessage, error) {
	prepareMessageDefaults(msg)
	return r.Repository.CreateTx(ctx, tx, msg)
}

// Latest returns the most recent messages in chronological order.
func (r *messages) Latest(ctx context.Context, limit int) ([]*ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []*ChatMessage
	err := r.db.NewSelect().
		Model(&records).
		Order("sent_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	return records, nil
}

func prepareMessageDefaults(msg *ChatMessage) {
	if msg == nil {
		return
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	if msg.SentAt == nil {
		now := time.Now()
		msg.SentAt = &now
	}
}
