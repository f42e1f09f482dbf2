package persistence

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/taskgraph/pkg/api"
)

// MongoRunnerStore is a RunnerStore backed by a MongoDB collection with
// one document per entity.
type MongoRunnerStore struct {
	coll *mongo.Collection
}

var _ RunnerStore = (*MongoRunnerStore)(nil)

// NewMongoRunnerStore creates a Mongo-backed runner store.
// dbName defaults to "taskgraph" if empty, collName defaults to "runners".
func NewMongoRunnerStore(client *mongo.Client, dbName, collName string) *MongoRunnerStore {
	if dbName == "" {
		dbName = "taskgraph"
	}
	if collName == "" {
		collName = "runners"
	}
	return &MongoRunnerStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

type mongoRunnerDoc struct {
	Entity     int64   `bson:"_id"`
	Graph      string  `bson:"graph"`
	TemplateID int64   `bson:"template_id"`
	NodeIndex  int     `bson:"node_index"`
	StateTimer float64 `bson:"state_timer"`
	LastStatus string  `bson:"last_status"`
	Blackboard []byte  `bson:"blackboard,omitempty"`
}

func (d mongoRunnerDoc) record() RunnerRecord {
	return RunnerRecord{
		Entity: api.EntityID(d.Entity),
		Graph:  d.Graph,
		State: api.RunnerState{
			TemplateID: api.AssetID(d.TemplateID),
			NodeIndex:  d.NodeIndex,
			StateTimer: d.StateTimer,
			LastStatus: api.TaskStatus(d.LastStatus),
			Blackboard: d.Blackboard,
		},
	}
}

func (s *MongoRunnerStore) SaveRunner(ctx context.Context, rec RunnerRecord) error {
	doc := mongoRunnerDoc{
		Entity:     int64(rec.Entity),
		Graph:      rec.Graph,
		TemplateID: int64(rec.State.TemplateID),
		NodeIndex:  rec.State.NodeIndex,
		StateTimer: rec.State.StateTimer,
		LastStatus: string(rec.State.LastStatus),
		Blackboard: rec.State.Blackboard,
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.Entity}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoRunnerStore) LoadRunner(ctx context.Context, entity api.EntityID) (RunnerRecord, error) {
	var doc mongoRunnerDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": int64(entity)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return RunnerRecord{}, ErrRunnerNotFound
		}
		return RunnerRecord{}, err
	}
	return doc.record(), nil
}

func (s *MongoRunnerStore) DeleteRunner(ctx context.Context, entity api.EntityID) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": int64(entity)})
	return err
}

func (s *MongoRunnerStore) ListRunners(ctx context.Context) ([]RunnerRecord, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []RunnerRecord
	for cur.Next(ctx) {
		var doc mongoRunnerDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.record())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}
