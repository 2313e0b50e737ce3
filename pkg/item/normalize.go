package item

import (
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// NormalizeComments turns the stored comments value into an ordered list.
// A key/value document keeps document order and uses the key as the comment
// id; an array uses the element index. Missing or null means no comments.
func NormalizeComments(raw bson.RawValue) ([]*Comment, error) {
	comments := []*Comment{}

	switch raw.Type {
	case 0, bsontype.Null, bsontype.Undefined:
		return comments, nil

	case bsontype.EmbeddedDocument:
		elems, err := raw.Document().Elements()
		if err != nil {
			return nil, err
		}
		for _, e := range elems {
			c, err := decodeComment(e.Value())
			if err != nil {
				return nil, fmt.Errorf("comment %s: %w", e.Key(), err)
			}
			if c == nil {
				continue
			}
			c.Id = CommentId(e.Key())
			comments = append(comments, c)
		}

	case bsontype.Array:
		values, err := raw.Array().Values()
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			c, err := decodeComment(v)
			if err != nil {
				return nil, fmt.Errorf("comment %d: %w", i, err)
			}
			if c == nil {
				continue
			}
			c.Id = CommentId(strconv.Itoa(i))
			comments = append(comments, c)
		}

	default:
		return nil, fmt.Errorf("unexpected comments type %s", raw.Type)
	}

	return comments, nil
}

// decodeComment returns nil for holes (null entries) in array-like data.
func decodeComment(v bson.RawValue) (*Comment, error) {
	if v.Type == bsontype.Null || v.Type == bsontype.Undefined {
		return nil, nil
	}
	c := new(Comment)
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}
	return c, nil
}
