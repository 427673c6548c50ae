package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/exposehub/expose-gateway/internal/core/domain"
)

const collectionInstances = "instances"

// InstanceRepository implements ports.InstanceRepository on a MongoDB
// collection holding one document per username.
type InstanceRepository struct {
	col *mongo.Collection
}

func NewInstanceRepository(db *mongo.Database) *InstanceRepository {
	return &InstanceRepository{col: db.Collection(collectionInstances)}
}

// Create inserts a new instance document. The _id is a string uuid rather
// than an ObjectID so the record round-trips through the domain type.
func (r *InstanceRepository) Create(ctx context.Context, inst *domain.Instance) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	_, err := r.col.InsertOne(ctx, inst)
	return err
}

// FindByUsername retrieves an instance by its public username.
func (r *InstanceRepository) FindByUsername(ctx context.Context, username string) (*domain.Instance, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// FindByToken retrieves an instance by its secret token.
func (r *InstanceRepository) FindByToken(ctx context.Context, token string) (*domain.Instance, error) {
	return r.findOne(ctx, bson.M{"token": token})
}

func (r *InstanceRepository) findOne(ctx context.Context, filter bson.M) (*domain.Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var inst domain.Instance
	err := r.col.FindOne(ctx, filter).Decode(&inst)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// UpdateEndpoint overwrites endpoint and refreshes last_heartbeat on the
// record identified by username, leaving token and owner_id untouched.
func (r *InstanceRepository) UpdateEndpoint(ctx context.Context, username, endpoint string, now time.Time) (*domain.Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"endpoint":       endpoint,
		"last_heartbeat": now.UTC(),
	}}

	var inst domain.Instance
	err := r.col.FindOneAndUpdate(
		ctx,
		bson.M{"username": username},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&inst)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// TouchHeartbeat sets last_heartbeat and applies inline snapshot updates in a
// single document write. Unknown tokens mutate nothing.
func (r *InstanceRepository) TouchHeartbeat(ctx context.Context, token string, now time.Time, snapshots map[string]json.RawMessage) (*domain.Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"last_heartbeat": now.UTC()}
	for kind, data := range snapshots {
		set["snapshots."+kind] = bson.M{
			"data":      []byte(data),
			"last_sync": now.UTC(),
		}
	}

	var inst domain.Instance
	err := r.col.FindOneAndUpdate(
		ctx,
		bson.M{"token": token},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&inst)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// UpdateSnapshot overwrites a single cached snapshot on the username's record.
func (r *InstanceRepository) UpdateSnapshot(ctx context.Context, username, kind string, data json.RawMessage, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"snapshots." + kind: bson.M{
			"data":      []byte(data),
			"last_sync": now.UTC(),
		},
	}}

	res, err := r.col.UpdateOne(ctx, bson.M{"username": username}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrInstanceNotFound
	}
	return nil
}

// DeleteByToken removes the record; only the holder of the secret may do this.
func (r *InstanceRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"token": token})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// ListHeartbeatedSince returns records whose last_heartbeat is at or after
// cutoff (inclusive, matching the liveness boundary).
func (r *InstanceRepository) ListHeartbeatedSince(ctx context.Context, cutoff time.Time) ([]*domain.Instance, error) {
	return r.list(ctx, bson.M{"last_heartbeat": bson.M{"$gte": cutoff.UTC()}})
}

// ListByOwner returns all records registered under one owner.
func (r *InstanceRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Instance, error) {
	return r.list(ctx, bson.M{"owner_id": ownerID})
}

func (r *InstanceRepository) list(ctx context.Context, filter bson.M) ([]*domain.Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*domain.Instance
	for cur.Next(ctx) {
		var inst domain.Instance
		if err := cur.Decode(&inst); err != nil {
			return nil, err
		}
		out = append(out, &inst)
	}
	return out, cur.Err()
}

// DeleteHeartbeatedBefore removes records whose last_heartbeat is strictly
// before cutoff. Used only by the periodic sweep.
func (r *InstanceRepository) DeleteHeartbeatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteMany(ctx, bson.M{"last_heartbeat": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates the unique indexes backing username and token lookups.
func (r *InstanceRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "last_heartbeat", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
