package item

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lostfound/pkg/apperror"
	"lostfound/pkg/mongodb"
)

type Repo struct {
	items mongodb.IMongoCollection
}

func NewItemRepo(itemsCol *mongo.Collection) *Repo {
	return &Repo{
		items: mongodb.NewCollection(itemsCol),
	}
}

// stored is an item as it comes back from Mongo, comments still raw.
type stored struct {
	Item     `bson:",inline"`
	Comments bson.RawValue `bson:"comments"`
}

// NewId hands out the identifier before the item is written, so the payload
// can carry its own postId. Object ids sort by creation time.
func (r *Repo) NewId() PostId {
	return PostId(primitive.NewObjectID().Hex())
}

func NewCommentId() CommentId {
	return CommentId(primitive.NewObjectID().Hex())
}

func (r *Repo) Add(ctx context.Context, it *Item) (PostId, error) {
	_, err := r.items.InsertOne(ctx, it)
	if err != nil {
		return PostId(``), fmt.Errorf("item/repo: failed inserting an item: %w", err)
	}
	return it.PostId, nil
}

func (r *Repo) GetById(ctx context.Context, id PostId) (*Item, error) {
	s := new(stored)
	err := r.items.FindOne(ctx, bson.M{"postId": id}).Decode(s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("item/repo: %w", apperror.NotFound("item", string(id)))
	}
	if err != nil {
		return nil, fmt.Errorf("item/repo: failed finding item %s: %w", id, err)
	}
	return s.decode()
}

// GetAll returns every item in insertion order.
func (r *Repo) GetAll(ctx context.Context) ([]*Item, error) {
	return r.find(ctx, bson.M{})
}

// GetUserItems is the equality query on userEmail, in insertion order.
func (r *Repo) GetUserItems(ctx context.Context, email string) ([]*Item, error) {
	return r.find(ctx, bson.D{{Key: "userEmail", Value: email}})
}

func (r *Repo) find(ctx context.Context, filter interface{}) ([]*Item, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.items.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("item/repo: failed finding items: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []*stored{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("item/repo: failed getting items from cursor: %w", err)
	}

	items := make([]*Item, 0, len(docs))
	for _, d := range docs {
		it, err := d.decode()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// AddComment stores c under comments.<c.Id> of the item.
func (r *Repo) AddComment(ctx context.Context, postId PostId, c *Comment) error {
	filter := bson.D{{Key: "postId", Value: postId}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "comments." + string(c.Id), Value: c},
	}}}
	res, err := r.items.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("item/repo: failed adding comment to %s: %w", postId, err)
	}
	if res.Matched() == 0 {
		return fmt.Errorf("item/repo: %w", apperror.NotFound("item", string(postId)))
	}
	return nil
}

func (r *Repo) GetComments(ctx context.Context, postId PostId) ([]*Comment, error) {
	it, err := r.GetById(ctx, postId)
	if err != nil {
		return nil, err
	}
	return it.Comments, nil
}

func (s *stored) decode() (*Item, error) {
	comments, err := NormalizeComments(s.Comments)
	if err != nil {
		return nil, fmt.Errorf("item/repo: bad comments on %s: %w", s.PostId, err)
	}
	it := s.Item
	it.Comments = comments
	return &it, nil
}
