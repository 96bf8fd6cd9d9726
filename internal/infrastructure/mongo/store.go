// Package mongo implements the durable record store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/huynd94/system-live-chat/internal/domain"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	agentsCollection        = "agents"
)

type Store struct {
	db *mongo.Database
}

// Connect opens a client, pings the deployment and returns the store.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{db: client.Database(database)}, nil
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// EnsureIndexes creates the lookup indexes the read paths rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(conversationsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "assigned_agent", Value: 1}}},
		{Keys: bson.D{{Key: "customer.phone", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create conversation indexes: %w", err)
	}

	_, err = s.db.Collection(messagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create message indexes: %w", err)
	}

	_, err = s.db.Collection(agentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create agent indexes: %w", err)
	}
	return nil
}

// Save upserts a conversation by id.
func (s *Store) Save(ctx context.Context, conversation *domain.Conversation) error {
	_, err := s.db.Collection(conversationsCollection).ReplaceOne(ctx,
		bson.M{"_id": conversation.ID},
		conversation,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", conversation.ID, err)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, id string) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := s.db.Collection(conversationsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&conversation)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation %s: %w", id, err)
	}
	return &conversation, nil
}

func (s *Store) FindAssigned(ctx context.Context, agentID string, statuses []string) ([]domain.Conversation, error) {
	filter := bson.M{
		"assigned_agent": agentID,
		"status":         bson.M{"$in": statuses},
	}
	cursor, err := s.db.Collection(conversationsCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find assigned conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var conversations []domain.Conversation
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("decode assigned conversations: %w", err)
	}
	return conversations, nil
}

// ConversationFilter narrows the dashboard list endpoint.
type ConversationFilter struct {
	Status string
	Search string
	Page   int64
	Limit  int64
}

// List returns a page of conversations sorted by most recent activity,
// with the total match count for pagination.
func (s *Store) List(ctx context.Context, filter ConversationFilter) ([]domain.Conversation, int64, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Search != "" {
		query["$or"] = bson.A{
			bson.M{"customer.name": bson.M{"$regex": filter.Search, "$options": "i"}},
			bson.M{"customer.phone": bson.M{"$regex": filter.Search, "$options": "i"}},
		}
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}

	coll := s.db.Collection(conversationsCollection)
	total, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetSkip((filter.Page - 1) * filter.Limit).
		SetLimit(filter.Limit)
	cursor, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var conversations []domain.Conversation
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, 0, fmt.Errorf("decode conversations: %w", err)
	}
	return conversations, total, nil
}

// SaveMessage appends a message. Messages are immutable; there is no
// update path.
func (s *Store) SaveMessage(ctx context.Context, message *domain.Message) error {
	_, err := s.db.Collection(messagesCollection).InsertOne(ctx, message)
	if err != nil {
		return fmt.Errorf("save message %s: %w", message.ID, err)
	}
	return nil
}

// ListMessages returns a page of a conversation's messages, oldest first
// within the page, newest pages first.
func (s *Store) ListMessages(ctx context.Context, conversationID string, page, limit int64) ([]domain.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	coll := s.db.Collection(messagesCollection)
	query := bson.M{"conversation_id": conversationID}

	total, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cursor, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []domain.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, 0, fmt.Errorf("decode messages: %w", err)
	}

	// Stored newest-first for pagination; present oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, total, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Agent, error) {
	var agent domain.Agent
	err := s.db.Collection(agentsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&agent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find agent %s: %w", id, err)
	}
	return &agent, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	var agent domain.Agent
	err := s.db.Collection(agentsCollection).FindOne(ctx, bson.M{"email": email}).Decode(&agent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find agent by email: %w", err)
	}
	return &agent, nil
}

func (s *Store) SaveAgent(ctx context.Context, agent *domain.Agent) error {
	_, err := s.db.Collection(agentsCollection).ReplaceOne(ctx,
		bson.M{"_id": agent.ID},
		agent,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save agent %s: %w", agent.ID, err)
	}
	return nil
}

func (s *Store) SetOnline(ctx context.Context, id string, online bool) error {
	now := time.Now().UTC()
	_, err := s.db.Collection(agentsCollection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_online": online, "last_seen": now}})
	if err != nil {
		return fmt.Errorf("set agent %s online=%t: %w", id, online, err)
	}
	return nil
}
