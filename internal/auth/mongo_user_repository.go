package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const userCollection = "users"

// userDocument is the BSON shape of a User.
type userDocument struct {
	ID                   bson.ObjectID `bson:"_id,omitempty"`
	Name                 string        `bson:"name"`
	Email                string        `bson:"email"`
	Photo                string        `bson:"photo"`
	Role                 string        `bson:"role"`
	PasswordHash         string        `bson:"password_hash,omitempty"`
	PasswordChangedAt    *time.Time    `bson:"password_changed_at"`
	PasswordResetToken   *string       `bson:"password_reset_token"`
	PasswordResetExpires *time.Time    `bson:"password_reset_expires"`
	Active               bool          `bson:"active"`
	CreatedAt            time.Time     `bson:"created_at"`
	UpdatedAt            time.Time     `bson:"updated_at"`
}

func (d *userDocument) toUser() *User {
	u := &User{
		ID:                     d.ID.Hex(),
		Name:                   d.Name,
		Email:                  d.Email,
		Photo:                  d.Photo,
		Role:                   Role(d.Role),
		PasswordHash:           d.PasswordHash,
		PasswordChangedAt:      utcPtr(d.PasswordChangedAt),
		PasswordResetExpiresAt: utcPtr(d.PasswordResetExpires),
		Active:                 d.Active,
		CreatedAt:              d.CreatedAt.UTC(),
		UpdatedAt:              d.UpdatedAt.UTC(),
	}
	if d.PasswordResetToken != nil {
		u.PasswordResetTokenHash = *d.PasswordResetToken
	}
	return u
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MongoUserRepository implements UserRepository on a MongoDB collection.
// IDs are ObjectID hex strings.
type MongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository ensures the collection indexes and returns the
// repository.
func NewMongoUserRepository(ctx context.Context, db *mongo.Database) (*MongoUserRepository, error) {
	coll := db.Collection(userCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "password_reset_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}},
		},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("creating user indexes: %w", err)
	}

	return &MongoUserRepository{coll: coll}, nil
}

// Create inserts a new user. The ObjectID is assigned by the driver.
func (r *MongoUserRepository) Create(ctx context.Context, user *User) error {
	if user.PasswordHash == "" {
		return errors.New("creating user: password hash is empty")
	}
	if user.Role == "" {
		user.Role = RoleUser
	}
	if user.Photo == "" {
		user.Photo = DefaultPhoto
	}
	user.Email = NormalizeEmail(user.Email)

	now := time.Now().UTC().Truncate(time.Millisecond)
	user.CreatedAt = now
	user.UpdatedAt = now

	doc := userDocument{
		Name:                 user.Name,
		Email:                user.Email,
		Photo:                user.Photo,
		Role:                 string(user.Role),
		PasswordHash:         user.PasswordHash,
		PasswordChangedAt:    user.PasswordChangedAt,
		PasswordResetToken:   optionalString(user.PasswordResetTokenHash),
		PasswordResetExpires: user.PasswordResetExpiresAt,
		Active:               user.Active,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	result, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	id, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return errors.New("creating user: inserted id is not an ObjectID")
	}
	user.ID = id.Hex()
	return nil
}

// FindByID retrieves a user by ObjectID hex. A malformed ID is not found.
func (r *MongoUserRepository) FindByID(ctx context.Context, id string, opts ReadOptions) (*User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid}, opts)
}

// FindByEmail retrieves a user by normalised email.
func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string, opts ReadOptions) (*User, error) {
	return r.findOne(ctx, bson.M{"email": NormalizeEmail(email)}, opts)
}

// FindByResetToken retrieves the active user holding tokenHash with an
// expiry after now.
func (r *MongoUserRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	if tokenHash == "" {
		return nil, ErrUserNotFound
	}
	filter := bson.M{
		"password_reset_token":   tokenHash,
		"password_reset_expires": bson.M{"$gt": now.UTC()},
	}
	return r.findOne(ctx, filter, ReadOptions{WithPassword: true})
}

// Save writes all mutable fields with one $set. The hash is included only
// when non-empty.
func (r *MongoUserRepository) Save(ctx context.Context, user *User) error {
	oid, err := bson.ObjectIDFromHex(user.ID)
	if err != nil {
		return ErrUserNotFound
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	user.Email = NormalizeEmail(user.Email)

	set := bson.M{
		"name":                   user.Name,
		"email":                  user.Email,
		"photo":                  user.Photo,
		"role":                   string(user.Role),
		"password_changed_at":    user.PasswordChangedAt,
		"password_reset_token":   optionalString(user.PasswordResetTokenHash),
		"password_reset_expires": user.PasswordResetExpiresAt,
		"active":                 user.Active,
		"updated_at":             now,
	}
	if user.PasswordHash != "" {
		set["password_hash"] = user.PasswordHash
	}

	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("saving user: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	user.UpdatedAt = now
	return nil
}

// List returns users ordered by creation date.
func (r *MongoUserRepository) List(ctx context.Context, filter ListFilter) ([]User, error) {
	query := bson.M{}
	if !filter.IncludeInactive {
		query["active"] = true
	}
	if filter.Role != "" {
		query["role"] = string(filter.Role)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(filter.limit())).
		SetSkip(int64(max(filter.Offset, 0))).
		SetProjection(bson.M{"password_hash": 0})

	cursor, err := r.coll.Find(ctx, query, findOpts)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []User{}
	for cursor.Next(ctx) {
		var doc userDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding user: %w", err)
		}
		users = append(users, *doc.toUser())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// Count returns the total number of user documents.
func (r *MongoUserRepository) Count(ctx context.Context) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return int(n), nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M, opts ReadOptions) (*User, error) {
	if !opts.IncludeInactive {
		filter["active"] = true
	}

	findOpts := options.FindOne()
	if !opts.WithPassword {
		findOpts.SetProjection(bson.M{"password_hash": 0})
	}

	var doc userDocument
	if err := r.coll.FindOne(ctx, filter, findOpts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return doc.toUser(), nil
}
