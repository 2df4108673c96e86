package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/internal/infrastructure/buffer"
	"github.com/fastygo/sellerdesk/usecase"
)

// BufferBridge adapts the processor to the use case port.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferActivity(ctx context.Context, entry *domain.ActivityEntry) error {
	if b.processor == nil || entry == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	// Audit entries keep their id so a replay after a partial success stays idempotent.
	item := buffer.Item{
		ID:        entry.ID,
		UserID:    entry.ActorID,
		Entity:    buffer.EntityActivity,
		Operation: buffer.OperationAppend,
		Data:      payload,
		Priority:  1,
	}
	return b.processor.BufferOperation(ctx, item)
}

func (b *BufferBridge) BufferCacheWrite(ctx context.Context, write usecase.CacheWrite) error {
	if b.processor == nil {
		return domain.ErrInvalidPayload
	}
	operation, ok := cacheOperations[write.Op]
	if !ok {
		return domain.NewError(domain.ErrCodeInvalid, "unknown cache operation "+write.Op)
	}
	write.At = domain.AsOf(write.At)
	payload, err := json.Marshal(write)
	if err != nil {
		return err
	}
	item := buffer.Item{
		Entity:    buffer.EntityCache,
		Operation: operation,
		Data:      payload,
		Priority:  3,
	}
	return b.processor.BufferOperation(ctx, item)
}

var cacheOperations = map[string]string{
	usecase.CacheOpUpsert:        buffer.OperationUpsert,
	usecase.CacheOpInsertMissing: buffer.OperationInsertMissing,
	usecase.CacheOpReplace:       buffer.OperationReplace,
	usecase.CacheOpDelete:        buffer.OperationDelete,
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
