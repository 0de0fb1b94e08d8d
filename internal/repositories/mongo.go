package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/oauth2"
)

const (
	usersCollection     = "users"
	playlistsCollection = "playlists"
	tokensCollection    = "spotify_tokens"

	// mutateAttempts bounds the optimistic retry loop in [MongoPlaylistStore.Mutate].
	mutateAttempts = 5
)

// MongoStores groups the MongoDB-backed stores sharing one client.
type MongoStores struct {
	client    *mongo.Client
	Users     *MongoUserStore
	Playlists *MongoPlaylistStore
	Tokens    *MongoTokenStore
}

// NewMongoStores connects to uri, selects database name and ensures the unique indexes
// that enforce username and email uniqueness.
func NewMongoStores(ctx context.Context, uri, name string) (*MongoStores, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(name)
	stores := &MongoStores{
		client:    client,
		Users:     &MongoUserStore{coll: db.Collection(usersCollection)},
		Playlists: &MongoPlaylistStore{coll: db.Collection(playlistsCollection)},
		Tokens:    &MongoTokenStore{coll: db.Collection(tokensCollection)},
	}

	if err := stores.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return stores, nil
}

func (s *MongoStores) ensureIndexes(ctx context.Context) error {
	_, err := s.Users.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	_, err = s.Playlists.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create playlist indexes: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *MongoStores) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// newObjectID returns a hex ObjectID string.
func newObjectID() string {
	return primitive.NewObjectID().Hex()
}

// MongoUserStore implements [UserStore] on a MongoDB collection.
type MongoUserStore struct {
	coll *mongo.Collection
}

func (s *MongoUserStore) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	user.ID = newObjectID()
	if user.PlaylistIDs == nil {
		user.PlaylistIDs = []string{}
	}

	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		user.ID = ""
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: username or email is taken", shared.ErrConflict)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *MongoUserStore) Get(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id}, id)
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	return s.findOne(ctx, bson.M{"email": email}, email)
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M, key string) (*models.User, error) {
	var user models.User
	err := s.coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("user", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *MongoUserStore) Exists(ctx context.Context, username, email string) (bool, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": models.NormalizeEmail(email)},
	}}
	count, err := s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to query users: %w", err)
	}
	return count > 0, nil
}

func (s *MongoUserStore) List(ctx context.Context) ([]*models.User, error) {
	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	users := []*models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (s *MongoUserStore) AddPlaylistRef(ctx context.Context, userID, playlistID string) error {
	return s.updateRefs(ctx, userID, bson.M{"$addToSet": bson.M{"playlists": playlistID}})
}

func (s *MongoUserStore) RemovePlaylistRef(ctx context.Context, userID, playlistID string) error {
	return s.updateRefs(ctx, userID, bson.M{"$pull": bson.M{"playlists": playlistID}})
}

func (s *MongoUserStore) updateRefs(ctx context.Context, userID string, update bson.M) error {
	update["$set"] = bson.M{"updatedAt": time.Now().UTC()}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return notFound("user", userID)
	}
	return nil
}

// MongoPlaylistStore implements [PlaylistStore] on a MongoDB collection.
//
// Mutate uses optimistic concurrency on updatedAt: the replacement only matches if the
// document has not been written since it was read, otherwise the mutation is retried.
type MongoPlaylistStore struct {
	coll *mongo.Collection
}

func (s *MongoPlaylistStore) Create(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	playlist.ID = newObjectID()
	if playlist.Songs == nil {
		playlist.Songs = []models.Song{}
	}
	playlist.CreatedAt = playlist.CreatedAt.Truncate(time.Millisecond)
	playlist.UpdatedAt = playlist.UpdatedAt.Truncate(time.Millisecond)

	if _, err := s.coll.InsertOne(ctx, playlist); err != nil {
		playlist.ID = ""
		return fmt.Errorf("failed to insert playlist: %w", err)
	}
	return nil
}

func (s *MongoPlaylistStore) Get(ctx context.Context, id, owner string) (*models.Playlist, error) {
	var playlist models.Playlist
	err := s.coll.FindOne(ctx, bson.M{"_id": id, "user": owner}).Decode(&playlist)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("playlist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist: %w", err)
	}
	if playlist.Songs == nil {
		playlist.Songs = []models.Song{}
	}
	return &playlist, nil
}

func (s *MongoPlaylistStore) ListByOwner(ctx context.Context, owner string) ([]*models.Playlist, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{"user": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}

	playlists := []*models.Playlist{}
	if err := cursor.All(ctx, &playlists); err != nil {
		return nil, fmt.Errorf("failed to decode playlists: %w", err)
	}
	for _, p := range playlists {
		if p.Songs == nil {
			p.Songs = []models.Song{}
		}
	}
	return playlists, nil
}

func (s *MongoPlaylistStore) Delete(ctx context.Context, id, owner string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "user": owner})
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if res.DeletedCount == 0 {
		return notFound("playlist", id)
	}
	return nil
}

func (s *MongoPlaylistStore) Mutate(ctx context.Context, id, owner string, fn func(*models.Playlist) error) (*models.Playlist, error) {
	for range mutateAttempts {
		playlist, err := s.Get(ctx, id, owner)
		if err != nil {
			return nil, err
		}
		readAt := playlist.UpdatedAt

		if err := fn(playlist); err != nil {
			return nil, err
		}
		if err := playlist.Validate(); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		playlist.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
		if !playlist.UpdatedAt.After(readAt) {
			playlist.UpdatedAt = readAt.Add(time.Millisecond)
		}

		filter := bson.M{"_id": id, "user": owner, "updatedAt": readAt}
		res, err := s.coll.ReplaceOne(ctx, filter, playlist)
		if err != nil {
			return nil, fmt.Errorf("failed to update playlist: %w", err)
		}
		if res.MatchedCount == 1 {
			return playlist, nil
		}
	}
	return nil, fmt.Errorf("%w: playlist %s kept changing during update", shared.ErrInternal, id)
}

type mongoToken struct {
	UserID       string    `bson:"_id"`
	AccessToken  string    `bson:"accessToken"`
	TokenType    string    `bson:"tokenType"`
	RefreshToken string    `bson:"refreshToken"`
	Expiry       time.Time `bson:"expiry"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

// MongoTokenStore implements [TokenStore] on a MongoDB collection keyed by user id.
type MongoTokenStore struct {
	coll *mongo.Collection
}

func (s *MongoTokenStore) Save(ctx context.Context, userID string, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("cannot save empty token for user %s", userID)
	}

	set := bson.M{
		"accessToken": token.AccessToken,
		"tokenType":   token.TokenType,
		"expiry":      token.Expiry.UTC(),
		"updatedAt":   time.Now().UTC(),
	}
	if token.RefreshToken != "" {
		set["refreshToken"] = token.RefreshToken
	}

	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save spotify token: %w", err)
	}
	return nil
}

func (s *MongoTokenStore) Get(ctx context.Context, userID string) (*oauth2.Token, error) {
	var doc mongoToken
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("spotify token for user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query spotify token: %w", err)
	}

	return &oauth2.Token{
		AccessToken:  doc.AccessToken,
		TokenType:    doc.TokenType,
		RefreshToken: doc.RefreshToken,
		Expiry:       doc.Expiry,
	}, nil
}

func (s *MongoTokenStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		return fmt.Errorf("failed to delete spotify token: %w", err)
	}
	return nil
}
