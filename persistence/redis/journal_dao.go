package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/persistence"
	"github.com/mohitkumar/txflow/util"
	"go.uber.org/zap"
)

const OPERATION_KEY string = "OPS"
const ABANDONED_KEY string = "OPS_ABANDONED"

var _ persistence.OperationJournal = new(redisJournalDao)

type redisJournalDao struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.OperationRecord]
}

func NewRedisJournalDao(conf Config, encoderDecoder util.EncoderDecoder[model.OperationRecord]) *redisJournalDao {
	return &redisJournalDao{
		baseDao:        *newBaseDao(conf),
		encoderDecoder: encoderDecoder,
	}
}

func (rj *redisJournalDao) Record(ctx context.Context, rec model.OperationRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	return rj.save(ctx, rec)
}

func (rj *redisJournalDao) Get(ctx context.Context, handle model.OperationHandle) (*model.OperationRecord, error) {
	key := rj.getNamespaceKey(OPERATION_KEY)
	data, err := rj.redisClient.HGet(ctx, key, handle.String()).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.RecordNotFoundError{Key: handle.String()}
		}
		logger.Error("error in getting operation record", zap.String("handle", handle.String()), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rj.encoderDecoder.Decode([]byte(data))
}

func (rj *redisJournalDao) UpdatePhase(ctx context.Context, handle model.OperationHandle, phase model.Phase) error {
	return rj.update(ctx, handle, func(rec *model.OperationRecord) {
		rec.LastPhase = phase
	})
}

func (rj *redisJournalDao) MarkAbandoned(ctx context.Context, handle model.OperationHandle) error {
	return rj.update(ctx, handle, func(rec *model.OperationRecord) {
		rec.Abandoned = true
	})
}

func (rj *redisJournalDao) Complete(ctx context.Context, handle model.OperationHandle, outcome model.Outcome) error {
	return rj.update(ctx, handle, func(rec *model.OperationRecord) {
		rec.Outcome = &outcome
	})
}

func (rj *redisJournalDao) Abandoned(ctx context.Context) ([]model.OperationRecord, error) {
	handles, err := rj.redisClient.SMembers(ctx, rj.getNamespaceKey(ABANDONED_KEY)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	records := make([]model.OperationRecord, 0, len(handles))
	for _, h := range handles {
		rec, err := rj.Get(ctx, model.OperationHandle(h))
		if err != nil {
			logger.Error("dangling abandoned operation", zap.String("handle", h), zap.Error(err))
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (rj *redisJournalDao) update(ctx context.Context, handle model.OperationHandle, fn func(rec *model.OperationRecord)) error {
	rec, err := rj.Get(ctx, handle)
	if err != nil {
		return err
	}
	fn(rec)
	rec.UpdatedAt = time.Now()
	return rj.save(ctx, *rec)
}

func (rj *redisJournalDao) save(ctx context.Context, rec model.OperationRecord) error {
	data, err := rj.encoderDecoder.Encode(rec)
	if err != nil {
		return err
	}
	abandonedKey := rj.getNamespaceKey(ABANDONED_KEY)
	_, err = rj.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HSet(ctx, rj.getNamespaceKey(OPERATION_KEY), rec.Handle.String(), string(data))
		if rec.Abandoned && rec.Outcome == nil {
			pipe.SAdd(ctx, abandonedKey, rec.Handle.String())
		} else {
			pipe.SRem(ctx, abandonedKey, rec.Handle.String())
		}
		return nil
	})
	if err != nil {
		logger.Error("error in saving operation record", zap.String("handle", rec.Handle.String()), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
