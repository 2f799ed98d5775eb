package repository

import (
	"context"
	"math"
	"time"

	"github.com/BouzirJawad/cart-micro/internal/domain"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const cartsCollection = "carts"

type cartDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"userId,omitempty"`
	GuestID   string             `bson:"guestId,omitempty"`
	Items     []itemDocument     `bson:"items"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type itemDocument struct {
	ProductID string    `bson:"productId"`
	Quantity  int       `bson:"quantity"`
	AddedAt   time.Time `bson:"addedAt"`
}

type MongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection(cartsCollection),
		now:        time.Now,
	}
}

func (m *MongoRepository) FindByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	return m.find(ctx, domain.User(userID))
}

func (m *MongoRepository) FindByGuest(ctx context.Context, guestID string) (*domain.Cart, error) {
	return m.find(ctx, domain.Guest(guestID))
}

func (m *MongoRepository) find(ctx context.Context, owner domain.Identity) (*domain.Cart, error) {
	var doc cartDocument
	err := m.collection.FindOne(ctx, identityFilter(owner)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, errors.Wrapf(err, "failed to find cart %s", owner)
	}

	return doc.toDomain(), nil
}

func (m *MongoRepository) Save(ctx context.Context, cart *domain.Cart) error {
	now := m.now().UTC()

	update := bson.M{
		"$set": bson.M{
			"items":     toItemDocuments(cart.Items),
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var saved cartDocument
	err := m.collection.FindOneAndUpdate(ctx, identityFilter(cart.Owner), update, opts).Decode(&saved)
	if err != nil {
		return errors.Wrapf(err, "failed to save cart %s", cart.Owner)
	}

	cart.ID = saved.ID.Hex()
	cart.CreatedAt = saved.CreatedAt
	cart.UpdatedAt = saved.UpdatedAt
	return nil
}

func (m *MongoRepository) DeleteByUser(ctx context.Context, userID string) error {
	return m.delete(ctx, domain.User(userID))
}

func (m *MongoRepository) DeleteByGuest(ctx context.Context, guestID string) error {
	return m.delete(ctx, domain.Guest(guestID))
}

func (m *MongoRepository) delete(ctx context.Context, owner domain.Identity) error {
	result, err := m.collection.DeleteOne(ctx, identityFilter(owner))
	if err != nil {
		return errors.Wrapf(err, "failed to delete cart %s", owner)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return errors.WithStack(m.collection.Database().Client().Ping(ctx, readpref.Primary()))
}

// CreateIndexes enforces one cart per user and per guest. Documents lacking the field do not
// collide because the indexes are sparse. A positive guestTTL expires guest carts that have not
// been touched for that long.
func (m *MongoRepository) CreateIndexes(ctx context.Context, guestTTL time.Duration) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "guestId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
	if guestTTL > 0 {
		expireAfter, err := ttlSeconds(guestTTL)
		if err != nil {
			return err
		}
		indexes = append(indexes, mongo.IndexModel{
			Keys: bson.D{{Key: "updatedAt", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(expireAfter).
				SetPartialFilterExpression(bson.M{"guestId": bson.M{"$exists": true}}),
		})
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

// ttlSeconds converts d for expireAfterSeconds, which MongoDB stores as a 32-bit integer.
func ttlSeconds(d time.Duration) (int32, error) {
	seconds := int64(d / time.Second)
	if seconds > math.MaxInt32 {
		return 0, errors.Errorf("guest cart TTL %s exceeds the MongoDB limit", d)
	}
	return int32(seconds), nil
}

func identityFilter(owner domain.Identity) bson.M {
	if owner.IsUser() {
		return bson.M{"userId": owner.ID()}
	}
	return bson.M{"guestId": owner.ID()}
}

func toItemDocuments(items []domain.CartItem) []itemDocument {
	docs := make([]itemDocument, len(items))
	for i, item := range items {
		docs[i] = itemDocument{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt.UTC(),
		}
	}
	return docs
}

func (d cartDocument) toDomain() *domain.Cart {
	owner := domain.Guest(d.GuestID)
	if d.UserID != "" {
		owner = domain.User(d.UserID)
	}

	cart := domain.NewCart(owner)
	cart.ID = d.ID.Hex()
	cart.CreatedAt = d.CreatedAt
	cart.UpdatedAt = d.UpdatedAt
	for _, item := range d.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		})
	}
	return cart
}
