package todos

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding todo documents.
const CollectionName = "todos"

type todoDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description *string            `bson:"description,omitempty"`
	Tags        []string           `bson:"tags,omitempty"`
	Completed   bool               `bson:"completed"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d todoDocument) model() models.Todo {
	return models.Todo{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Tags:        d.Tags,
		Completed:   d.Completed,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// MongoRepository implements Repository on a single MongoDB collection.
// Ids are ObjectIDs rendered as hex; a malformed id simply matches nothing.
type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll}
}

// EnsureIndexes creates the secondary indexes used by list, tag and
// range queries. It is idempotent.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "completed", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, todo models.Todo) (*models.Todo, error) {
	doc := todoDocument{
		ID:          primitive.NewObjectID(),
		Title:       todo.Title,
		Description: todo.Description,
		Tags:        todo.Tags,
		Completed:   todo.Completed,
		CreatedAt:   todo.CreatedAt,
		UpdatedAt:   todo.UpdatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert todo: %w", err)
	}
	out := doc.model()
	out.Tags = todo.Tags
	return &out, nil
}

func (r *MongoRepository) FindAll(ctx context.Context, filter models.ListFilter) ([]models.Todo, error) {
	var conds bson.A
	if filter.Completed != nil {
		conds = append(conds, bson.M{"completed": *filter.Completed})
	}
	if filter.Search != "" {
		conds = append(conds, textFilter(filter.Search))
	}

	q := bson.M{}
	if len(conds) > 0 {
		q = bson.M{"$and": conds}
	}
	return r.findMany(ctx, q)
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.Todo, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrorNotFound
	}

	var doc todoDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("find todo: %w", err)
	}
	out := doc.model()
	return &out, nil
}

// Update runs as a pipeline update so updatedAt can be derived from the
// stored value atomically. Patch values are wrapped in $literal to keep
// strings starting with '$' from being read as field paths.
func (r *MongoRepository) Update(ctx context.Context, id string, patch models.UpdateTodo, now time.Time) (*models.Todo, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrorNotFound
	}

	set := bson.D{}
	if patch.Title != nil {
		set = append(set, bson.E{Key: "title", Value: literal(*patch.Title)})
	}
	if patch.Description != nil {
		set = append(set, bson.E{Key: "description", Value: literal(*patch.Description)})
	}
	if patch.Tags != nil {
		tags := *patch.Tags
		if tags == nil {
			tags = []string{}
		}
		set = append(set, bson.E{Key: "tags", Value: literal(tags)})
	}
	if patch.Completed != nil {
		set = append(set, bson.E{Key: "completed", Value: literal(*patch.Completed)})
	}
	set = append(set, bson.E{Key: "updatedAt", Value: bson.M{
		"$max": bson.A{now, bson.M{"$add": bson.A{"$updatedAt", UpdateStep.Milliseconds()}}},
	}})

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc todoDocument
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, mongo.Pipeline{{{Key: "$set", Value: set}}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("update todo: %w", err)
	}
	out := doc.model()
	return &out, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrorNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if res.DeletedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *MongoRepository) Exists(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count todo: %w", err)
	}
	return n > 0, nil
}

func (r *MongoRepository) FindByStatus(ctx context.Context, completed bool) ([]models.Todo, error) {
	return r.findMany(ctx, bson.M{"completed": completed})
}

func (r *MongoRepository) FindByTags(ctx context.Context, tags []string) ([]models.Todo, error) {
	return r.findMany(ctx, bson.M{"tags": bson.M{"$in": tags}})
}

func (r *MongoRepository) Search(ctx context.Context, text string) ([]models.Todo, error) {
	return r.findMany(ctx, textFilter(text))
}

func (r *MongoRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]models.Todo, error) {
	return r.findMany(ctx, bson.M{"createdAt": bson.M{"$gte": from, "$lte": to}})
}

func (r *MongoRepository) CountByStatus(ctx context.Context, search string) (models.StatusCount, error) {
	match := bson.M{}
	if search != "" {
		match = textFilter(search)
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.M{"$sum": 1}},
			{Key: "done", Value: bson.M{"$sum": bson.M{"$cond": bson.A{"$completed", 1, 0}}}},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return models.StatusCount{}, fmt.Errorf("count todos: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Total int64 `bson:"total"`
		Done  int64 `bson:"done"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return models.StatusCount{}, fmt.Errorf("count todos: %w", err)
	}

	var c models.StatusCount
	if len(rows) > 0 {
		c.Total = rows[0].Total
		c.Done = rows[0].Done
		c.Open = c.Total - c.Done
	}
	return c, nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *MongoRepository) findMany(ctx context.Context, filter any) ([]models.Todo, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find todos: %w", err)
	}
	defer cur.Close(ctx)

	result := make([]models.Todo, 0)
	for cur.Next(ctx) {
		var doc todoDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode todo: %w", err)
		}
		result = append(result, doc.model())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// textFilter matches text literally and case-insensitively in the title
// or the description.
func textFilter(text string) bson.M {
	re := primitive.Regex{Pattern: regexp.QuoteMeta(text), Options: "i"}
	return bson.M{"$or": bson.A{
		bson.M{"title": re},
		bson.M{"description": re},
	}}
}

func literal(v any) bson.M {
	return bson.M{"$literal": v}
}
