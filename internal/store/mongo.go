package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/chat-auth-be/internal/auth"
	"github.com/isdelr/chat-auth-be/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const usersCollection = "users"

// mongoUser is the document layout of the users collection.
type mongoUser struct {
	ID                       primitive.ObjectID `bson:"_id,omitempty"`
	Email                    string             `bson:"email"`
	Password                 string             `bson:"password"`
	FirstName                string             `bson:"firstName,omitempty"`
	LastName                 string             `bson:"lastName,omitempty"`
	Image                    string             `bson:"image,omitempty"`
	Color                    *int               `bson:"color,omitempty"`
	ProfileSetup             bool               `bson:"profileSetup"`
	IsVerified               bool               `bson:"isVerified"`
	VerificationToken        string             `bson:"verificationToken,omitempty"`
	VerificationTokenExpires *time.Time         `bson:"verificationTokenExpires,omitempty"`
	CreatedAt                time.Time          `bson:"createdAt"`
	UpdatedAt                time.Time          `bson:"updatedAt"`
}

func (d mongoUser) toModel() models.User {
	return models.User{
		ID:                       d.ID.Hex(),
		Email:                    d.Email,
		PasswordHash:             d.Password,
		FirstName:                d.FirstName,
		LastName:                 d.LastName,
		Image:                    d.Image,
		Color:                    d.Color,
		ProfileSetup:             d.ProfileSetup,
		IsVerified:               d.IsVerified,
		VerificationToken:        d.VerificationToken,
		VerificationTokenExpires: d.VerificationTokenExpires,
		CreatedAt:                d.CreatedAt,
		UpdatedAt:                d.UpdatedAt,
	}
}

// MongoStore keeps users in a MongoDB collection.
type MongoStore struct {
	db     *mongo.Database
	users  *mongo.Collection
	hasher auth.PasswordHasher
	now    func() time.Time
}

// NewMongoStore creates a store over db's users collection.
func NewMongoStore(db *mongo.Database, hasher auth.PasswordHasher) *MongoStore {
	return &MongoStore{
		db:     db,
		users:  db.Collection(usersCollection),
		hasher: hasher,
		now:    time.Now,
	}
}

// EnsureIndexes creates the unique email index and the token lookup index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "verificationToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, email, password string) (models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, err
	}

	now := s.now().UTC()
	doc := mongoUser{
		Email:     email,
		Password:  hash,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return models.User{}, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	doc.ID = oid
	return doc.toModel(), nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.User{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) FindByVerificationToken(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"verificationToken": token})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var doc mongoUser
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) SetVerificationToken(ctx context.Context, id, token string, expires time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	return s.updateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{
			"verificationToken":        token,
			"verificationTokenExpires": expires.UTC(),
			"updatedAt":                s.now().UTC(),
		},
	})
}

func (s *MongoStore) MarkVerified(ctx context.Context, id, token string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	return s.updateOne(ctx, bson.M{"_id": oid, "verificationToken": token}, bson.M{
		"$set":   bson.M{"isVerified": true, "updatedAt": s.now().UTC()},
		"$unset": bson.M{"verificationToken": "", "verificationTokenExpires": ""},
	})
}

func (s *MongoStore) SetPassword(ctx context.Context, id, plaintext string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	return s.updateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"password": hash, "updatedAt": s.now().UTC()},
	})
}

func (s *MongoStore) updateOne(ctx context.Context, filter, update bson.M) error {
	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Stats(ctx context.Context) (models.AccountStats, error) {
	total, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return models.AccountStats{}, fmt.Errorf("count users: %w", err)
	}
	verified, err := s.users.CountDocuments(ctx, bson.M{"isVerified": true})
	if err != nil {
		return models.AccountStats{}, fmt.Errorf("count verified users: %w", err)
	}
	return models.AccountStats{Total: total, Verified: verified, Unverified: total - verified}, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
