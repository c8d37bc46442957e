package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messageCollection = "message"

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	GetMessagesByIDs(ctx context.Context, ids []string) (map[string]*Message, error)
	GetHistory(ctx context.Context, convID, viewerID uint64, before time.Time, limit int) ([]*Message, error)
	UpdateContent(ctx context.Context, id primitive.ObjectID, content string, at time.Time) (*Message, error)
	MarkDeleted(ctx context.Context, id primitive.ObjectID, at time.Time) (*Message, error)
	HideFor(ctx context.Context, id primitive.ObjectID, userID uint64) error
	AddDelivered(ctx context.Context, id primitive.ObjectID, userID uint64, at time.Time) (bool, error)
	AddRead(ctx context.Context, id primitive.ObjectID, userID uint64, at time.Time) (bool, error)
	MarkConversationRead(ctx context.Context, convID, userID uint64, at time.Time) (int64, error)
	FindExpiredMedia(ctx context.Context, before time.Time, limit int) ([]*Message, error)
	MarkMediaPurged(ctx context.Context, id primitive.ObjectID) error
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection(messageCollection),
	}
}

// SaveMessage 将消息存入 MongoDB
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *Message) error {
	_, err := s.col.InsertOne(ctx, msg)
	return err
}

// GetMessage id 非法或不存在时返回 nil
func (s *messageRepoImpl) GetMessage(ctx context.Context, id string) (*Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var msg Message
	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessagesByIDs 批量查询, 用于会话列表的最后一条消息
func (s *messageRepoImpl) GetMessagesByIDs(ctx context.Context, ids []string) (map[string]*Message, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	result := make(map[string]*Message, len(oids))
	if len(oids) == 0 {
		return result, nil
	}

	cursor, err := s.col.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	for _, m := range messages {
		result[m.ID.Hex()] = m
	}
	return result, nil
}

// GetHistory 按时间倒序返回 before 之前的消息, 排除 viewer 隐藏的消息
func (s *messageRepoImpl) GetHistory(ctx context.Context, convID, viewerID uint64, before time.Time, limit int) ([]*Message, error) {
	filter := bson.M{
		"conversation_id": convID,
		"deleted_for":     bson.M{"$ne": viewerID},
	}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// UpdateContent 已全局删除的消息不可编辑, 未命中返回 nil
func (s *messageRepoImpl) UpdateContent(ctx context.Context, id primitive.ObjectID, content string, at time.Time) (*Message, error) {
	filter := bson.M{"_id": id, "is_deleted": false}
	update := bson.M{"$set": bson.M{"content": content, "is_edited": true, "edited_at": at}}
	return s.findOneAndUpdate(ctx, filter, update)
}

func (s *messageRepoImpl) MarkDeleted(ctx context.Context, id primitive.ObjectID, at time.Time) (*Message, error) {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{"is_deleted": true, "deleted_at": at}}
	return s.findOneAndUpdate(ctx, filter, update)
}

// HideFor $addToSet 保证重复隐藏无副作用
func (s *messageRepoImpl) HideFor(ctx context.Context, id primitive.ObjectID, userID uint64) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$addToSet": bson.M{"deleted_for": userID}})
	return err
}

// AddDelivered 条件 $push, 返回本次是否真正写入
func (s *messageRepoImpl) AddDelivered(ctx context.Context, id primitive.ObjectID, userID uint64, at time.Time) (bool, error) {
	return s.pushReceipt(ctx, id, "delivered_to", "status.delivered", userID, at)
}

func (s *messageRepoImpl) AddRead(ctx context.Context, id primitive.ObjectID, userID uint64, at time.Time) (bool, error) {
	return s.pushReceipt(ctx, id, "read_by", "status.read", userID, at)
}

func (s *messageRepoImpl) pushReceipt(ctx context.Context, id primitive.ObjectID, field, flag string, userID uint64, at time.Time) (bool, error) {
	filter := bson.M{
		"_id":                id,
		field + ".user_id": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$push": bson.M{field: Receipt{UserID: userID, At: at}},
		"$set":  bson.M{flag: true},
	}
	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// MarkConversationRead 对方发送且尚未被 userID 读过的消息批量追加回执
func (s *messageRepoImpl) MarkConversationRead(ctx context.Context, convID, userID uint64, at time.Time) (int64, error) {
	filter := bson.M{
		"conversation_id": convID,
		"sender_id":       bson.M{"$ne": userID},
		"read_by.user_id": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$push": bson.M{"read_by": Receipt{UserID: userID, At: at}},
		"$set":  bson.M{"status.read": true},
	}
	res, err := s.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// FindExpiredMedia 超过保留期且对象仍存在的媒体消息
func (s *messageRepoImpl) FindExpiredMedia(ctx context.Context, before time.Time, limit int) ([]*Message, error) {
	filter := bson.M{
		"media.url":    bson.M{"$exists": true},
		"media.purged": bson.M{"$ne": true},
		"created_at":   bson.M{"$lt": before},
	}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *messageRepoImpl) MarkMediaPurged(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"media.purged": true}})
	return err
}

func (s *messageRepoImpl) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var msg Message
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
