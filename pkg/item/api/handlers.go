package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	. "lostfound/pkg/common"
	"lostfound/pkg/composer"
	"lostfound/pkg/feed"
	"lostfound/pkg/item"
	"lostfound/pkg/logger"
	"lostfound/pkg/media"
	"lostfound/pkg/sessions"
	"lostfound/pkg/thread"
)

const (
	defaultMaxImageBytes = 10 << 20
	// room for the item fields and JSON framing around the base64 image
	jsonBodySlack = 64 << 10
)

// jsonBodyLimit is the largest JSON body that can carry an image of
// maxImage bytes in base64.
func jsonBodyLimit(maxImage int64) int64 {
	return (maxImage+2)/3*4 + jsonBodySlack
}

type IItemRepo interface {
	GetById(context.Context, item.PostId) (*item.Item, error)
}

type ItemHandler struct {
	Items    IItemRepo
	Feed     *feed.Subscriber
	Threads  *thread.Service
	Uploader composer.Uploader
	Writer   composer.Writer

	MaxImageBytes int64
	upgrader      websocket.Upgrader
}

// addItemReq is the JSON form of a new item. Image carries the picked file
// inline, the server can't open client side URIs.
type addItemReq struct {
	item.Fields
	Image *media.Handle `json:"image"`
}

func NewItemHandler(items IItemRepo, f *feed.Subscriber, t *thread.Service, u composer.Uploader, w composer.Writer) *ItemHandler {
	return &ItemHandler{
		Items:         items,
		Feed:          f,
		Threads:       t,
		Uploader:      u,
		Writer:        w,
		MaxImageBytes: defaultMaxImageBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the API is token based, cookies are never read
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// List is the global feed, newest first, narrowed by ?q= on category.
func (ih *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	snap, err := ih.Feed.Load(r.Context(), feed.Query{})
	if err != nil {
		logger.Log(r.Context()).Errorf("item/handlers: can't load items: %v", err)
		WriteError(w, err)
		return
	}

	WriteRespJSON(w, feed.Filter(snap, r.URL.Query().Get("q")))
}

func (ih *ItemHandler) GetByUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	email := mux.Vars(r)["email"]
	snap, err := ih.Feed.Load(r.Context(), feed.Query{UserEmail: email})
	if err != nil {
		logger.Log(r.Context()).Errorf("item/handlers: can't load items of `%s`: %v", email, err)
		WriteError(w, err)
		return
	}

	WriteRespJSON(w, feed.Filter(snap, r.URL.Query().Get("q")))
}

func (ih *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	postId := item.PostId(mux.Vars(r)["post_id"])
	it, err := ih.Items.GetById(r.Context(), postId)
	if err != nil {
		logger.Log(r.Context()).Errorf("item/handlers: can't get item with id %s: %v", postId, err)
		WriteError(w, err)
		return
	}

	WriteRespJSON(w, it)
}

// Add runs the composer for one request: the fields and the optional image
// come either as a multipart form (part "image") or as JSON.
func (ih *ItemHandler) Add(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	author, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		WriteMsg(w, "not authorized", http.StatusUnauthorized)
		return
	}

	c := composer.New(ih.Uploader, ih.Writer)
	var picker media.Picker
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(ih.MaxImageBytes); err != nil {
			logger.Log(r.Context()).Errorf("item/handlers: can't parse multipart form: %v", err)
			WriteMsg(w, "bad request format", http.StatusBadRequest)
			return
		}
		c.SetFields(item.Fields{
			Text:     r.FormValue("text"),
			Location: r.FormValue("location"),
			Color:    r.FormValue("color"),
			Category: r.FormValue("category"),
		})
		picker = media.FormPicker{Request: r, Field: "image", MaxBytes: ih.MaxImageBytes}
	} else {
		if ih.MaxImageBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, jsonBodyLimit(ih.MaxImageBytes))
		}
		req := addItemReq{}
		if err := ParseReqBody(r.Body, &req); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				WriteError(w, media.TooLarge(ih.MaxImageBytes))
				return
			}
			logger.Log(r.Context()).Errorf("item/handlers: can't parse item from request body: %v", err)
			WriteMsg(w, "can't parse item", http.StatusBadRequest)
			return
		}
		c.SetFields(req.Fields)
		picker = media.StaticPicker{Handle: req.Image, MaxBytes: ih.MaxImageBytes}
	}

	if err := c.SelectImage(r.Context(), picker); err != nil {
		logger.Log(r.Context()).Errorf("item/handlers: can't take the image: %v", err)
		WriteError(w, err)
		return
	}

	// a client that goes away does not abort the upload and write
	ctx := context.WithoutCancel(r.Context())
	postId, err := c.Submit(ctx, author.Email)
	if err != nil {
		WriteError(w, err)
		return
	}

	it, err := ih.Items.GetById(ctx, postId)
	if err != nil {
		logger.Log(ctx).Errorf("item/handlers: item %s written but can't be read back: %v", postId, err)
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	WriteRespJSON(w, it)
}

// AddComment is open to anonymous users; their comments are signed
// item.AnonymousAuthor.
func (ih *ItemHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	postId := item.PostId(mux.Vars(r)["post_id"])

	body := struct {
		Text string `json:"text"`
	}{}
	if err := ParseReqBody(r.Body, &body); err != nil {
		logger.Log(r.Context()).Errorf("item/handlers: can't get comment body: %v", err)
		WriteMsg(w, "failed parsing comment body", http.StatusBadRequest)
		return
	}

	author := ""
	if u, err := sessions.GetAuthUser(r.Context()); err == nil {
		author = u.Email
	}

	c, err := ih.Threads.AddComment(context.WithoutCancel(r.Context()), postId, author, body.Text)
	if err != nil {
		logger.Log(r.Context()).Errorf("item/handlers: can't add comment to %s: %v", postId, err)
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	WriteRespJSON(w, c)
}

func (ih *ItemHandler) Comments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	postId := item.PostId(mux.Vars(r)["post_id"])
	comments, err := ih.Threads.Comments(r.Context(), postId)
	if err != nil {
		logger.Log(r.Context()).Errorf("item/handlers: can't load comments of %s: %v", postId, err)
		WriteError(w, err)
		return
	}

	WriteRespJSON(w, comments)
}
