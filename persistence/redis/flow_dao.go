package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/persistence"
	"github.com/mohitkumar/txflow/util"
	"go.uber.org/zap"
)

const FLOW_KEY string = "FLOW"

var _ persistence.FlowDao = new(redisFlowDao)

type redisFlowDao struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.FlowSnapshot]
}

func NewRedisFlowDao(conf Config, encoderDecoder util.EncoderDecoder[model.FlowSnapshot]) *redisFlowDao {
	return &redisFlowDao{
		baseDao:        *newBaseDao(conf),
		encoderDecoder: encoderDecoder,
	}
}

func (rf *redisFlowDao) SaveSnapshot(ctx context.Context, snapshot model.FlowSnapshot) error {
	data, err := rf.encoderDecoder.Encode(snapshot)
	if err != nil {
		return err
	}
	if err := rf.redisClient.HSet(ctx, rf.getNamespaceKey(FLOW_KEY), snapshot.ID, string(data)).Err(); err != nil {
		logger.Error("error in saving flow snapshot", zap.String("flow", snapshot.Name), zap.String("flowId", snapshot.ID), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rf *redisFlowDao) GetSnapshot(ctx context.Context, flowId string) (*model.FlowSnapshot, error) {
	data, err := rf.redisClient.HGet(ctx, rf.getNamespaceKey(FLOW_KEY), flowId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.RecordNotFoundError{Key: flowId}
		}
		logger.Error("error in getting flow snapshot", zap.String("flowId", flowId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rf.encoderDecoder.Decode([]byte(data))
}

func (rf *redisFlowDao) DeleteSnapshot(ctx context.Context, flowId string) error {
	if err := rf.redisClient.HDel(ctx, rf.getNamespaceKey(FLOW_KEY), flowId).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
