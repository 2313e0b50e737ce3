package item

import (
	"strings"

	"lostfound/pkg/apperror"
)

const (
	// Topic is notified after every write to the item collection,
	// comments included.
	Topic = "items"

	AnonymousAuthor = "Anonymous"
)

// CommentsTopic is notified after a comment is added to the item.
func CommentsTopic(id PostId) string {
	return Topic + "/" + string(id) + "/comments"
}

type (
	PostId    string
	CommentId string
)

// Item is a lost or found post. It never changes after creation except for
// new comments.
type Item struct {
	PostId    PostId `json:"postId" bson:"postId"`
	Text      string `json:"text" bson:"text"`
	Image     string `json:"image" bson:"image"` // empty when no image was attached
	Location  string `json:"location" bson:"location"`
	Color     string `json:"color" bson:"color"`
	Category  string `json:"category" bson:"category"`
	Timestamp int64  `json:"timestamp" bson:"timestamp"` // epoch ms, server clock
	UserEmail string `json:"userEmail" bson:"userEmail"`

	Comments []*Comment `json:"comments" bson:"-"`
}

type Comment struct {
	Id        CommentId `json:"id" bson:"-"`
	UserEmail string    `json:"userEmail" bson:"userEmail"`
	Text      string    `json:"text" bson:"text"`
}

// Fields is what the author types into the composer.
type Fields struct {
	Text     string `json:"text"`
	Location string `json:"location"`
	Color    string `json:"color"`
	Category string `json:"category"`
}

func (f Fields) Trimmed() Fields {
	return Fields{
		Text:     strings.TrimSpace(f.Text),
		Location: strings.TrimSpace(f.Location),
		Color:    strings.TrimSpace(f.Color),
		Category: strings.TrimSpace(f.Category),
	}
}

// Validate reports the first required field that is blank.
func (f Fields) Validate() error {
	t := f.Trimmed()
	switch {
	case t.Text == "":
		return apperror.ValidationFailed("text", "describe what you lost or found")
	case t.Location == "":
		return apperror.ValidationFailed("location", "location is required")
	case t.Color == "":
		return apperror.ValidationFailed("color", "color is required")
	case t.Category == "":
		return apperror.ValidationFailed("category", "category is required")
	}
	return nil
}

func (f Fields) IsZero() bool {
	return f.Trimmed() == Fields{}
}
