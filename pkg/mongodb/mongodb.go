// Package mongodb wraps the driver's collection and result types behind
// interfaces so repositories can be tested with gomock.
package mongodb

//go:generate mockgen -source=mongodb.go -destination=mock_mongodb.go -package=mongodb

import (
	"context"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ( // Interfaces
	IMongoCollection interface {
		InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (IMongoInsertOneResult, error)
		UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (IMongoUpdateResult, error)
		FindOne(context.Context, interface{}, ...*options.FindOneOptions) IMongoSingleResult
		Find(context.Context, interface{}, ...*options.FindOptions) (IMongoCursor, error)
	}

	IMongoCursor interface {
		Close(context.Context) error
		All(context.Context, interface{}) error
	}

	IMongoSingleResult    interface{ Decode(interface{}) error }
	IMongoInsertOneResult interface{}
	IMongoUpdateResult    interface {
		Matched() int64
	}

	IMongoBucket interface {
		Upload(ctx context.Context, filename string, source io.Reader) error
		Exists(ctx context.Context, filename string) (bool, error)
		Download(ctx context.Context, filename string, w io.Writer) error
	}
)

type ( // Structs
	MongoCursor struct{ cur *mongo.Cursor }

	MongoCollection struct {
		Coll *mongo.Collection
	}

	MongoSingleResult    struct{ res *mongo.SingleResult }
	MongoInsertOneResult struct{ res *mongo.InsertOneResult }
	MongoUpdateResult    struct{ res *mongo.UpdateResult }

	MongoBucket struct {
		B *gridfs.Bucket
	}
)

func NewCollection(coll *mongo.Collection) *MongoCollection {
	return &MongoCollection{Coll: coll}
}

// MongoSingleResult

func (sr *MongoSingleResult) Decode(v interface{}) error {
	return sr.res.Decode(v)
}

// MongoUpdateResult

func (ur *MongoUpdateResult) Matched() int64 {
	return ur.res.MatchedCount + ur.res.UpsertedCount
}

// MongoCursor

func (cur *MongoCursor) Close(ctx context.Context) error {
	return cur.cur.Close(ctx)
}

func (cur *MongoCursor) All(ctx context.Context, results interface{}) error {
	return cur.cur.All(ctx, results)
}

// MongoCollection

func (col *MongoCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (IMongoInsertOneResult, error) {
	insertOneResult, err := col.Coll.InsertOne(ctx, document, opts...)
	if err != nil {
		return nil, err
	}
	return &MongoInsertOneResult{res: insertOneResult}, nil
}

func (col *MongoCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (IMongoUpdateResult, error) {
	updateResult, err := col.Coll.UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	return &MongoUpdateResult{res: updateResult}, nil
}

func (col *MongoCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) IMongoSingleResult {
	singleResult := col.Coll.FindOne(ctx, filter, opts...)
	return &MongoSingleResult{res: singleResult}
}

func (col *MongoCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (IMongoCursor, error) {
	cursorResult, err := col.Coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return &MongoCursor{cur: cursorResult}, nil
}

// MongoBucket

func NewBucket(b *gridfs.Bucket) *MongoBucket {
	return &MongoBucket{B: b}
}

func (b *MongoBucket) Upload(_ context.Context, filename string, source io.Reader) error {
	_, err := b.B.UploadFromStream(filename, source)
	return err
}

func (b *MongoBucket) Exists(ctx context.Context, filename string) (bool, error) {
	cursor, err := b.B.FindContext(ctx, bson.M{"filename": filename})
	if err != nil {
		return false, err
	}
	defer cursor.Close(ctx)
	if cursor.Next(ctx) {
		return true, nil
	}
	return false, cursor.Err()
}

// Download fails with gridfs.ErrFileNotFound for an unknown filename.
func (b *MongoBucket) Download(_ context.Context, filename string, w io.Writer) error {
	_, err := b.B.DownloadToStreamByName(filename, w)
	return err
}
