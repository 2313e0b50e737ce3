package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	. "lostfound/pkg/common"
	"lostfound/pkg/feed"
	"lostfound/pkg/item"
	"lostfound/pkg/logger"
	"lostfound/pkg/sessions"
	"lostfound/pkg/thread"
)

const writeWait = 10 * time.Second

type (
	// queryMsg changes the search query of a live feed.
	queryMsg struct {
		Query string `json:"query"`
	}

	snapshotMsg struct {
		Query string       `json:"query"`
		Items []*item.Item `json:"items"`
	}

	// commentMsg adds a comment to a live thread.
	commentMsg struct {
		Text string `json:"text"`
	}

	commentsMsg struct {
		Comments []*item.Comment `json:"comments"`
	}

	errorMsg struct {
		Error Msg `json:"error"`
	}

	// liveConn serializes writes; gorilla connections allow one writer.
	liveConn struct {
		mu sync.Mutex
		ws *websocket.Conn
	}
)

// send writes the message built by build. build runs under the write lock
// so messages go out in the order their state was computed.
func (c *liveConn) send(ctx context.Context, build func() interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(build()); err != nil {
		logger.Log(ctx).Debugf("item/live: write failed: %v", err)
	}
}

func (c *liveConn) sendError(ctx context.Context, err error) {
	_, msg := ErrorMsg(err)
	c.send(ctx, func() interface{} { return errorMsg{Error: msg} })
}

// LiveItems streams the global feed over a websocket.
func (ih *ItemHandler) LiveItems(w http.ResponseWriter, r *http.Request) {
	ih.liveFeed(w, r, feed.Query{})
}

// LiveUserItems streams the items of one author.
func (ih *ItemHandler) LiveUserItems(w http.ResponseWriter, r *http.Request) {
	ih.liveFeed(w, r, feed.Query{UserEmail: mux.Vars(r)["email"]})
}

func (ih *ItemHandler) liveFeed(w http.ResponseWriter, r *http.Request, q feed.Query) {
	ws, err := ih.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log(r.Context()).Errorf("item/live: upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := &liveConn{ws: ws}
	view := &feed.View{}
	view.SetQuery(r.URL.Query().Get("q"))

	unsubscribe, err := ih.Feed.Subscribe(ctx, q, func(s feed.Snapshot) {
		conn.send(ctx, func() interface{} {
			return snapshotMsg{Query: view.Query(), Items: view.SetSnapshot(s)}
		})
	})
	if err != nil {
		logger.Log(ctx).Errorf("item/live: can't subscribe to %+v: %v", q, err)
		conn.sendError(ctx, err)
		return
	}
	defer unsubscribe()

	for {
		msg := queryMsg{}
		if err := ws.ReadJSON(&msg); err != nil {
			logClosed(ctx, err)
			return
		}
		conn.send(ctx, func() interface{} {
			return snapshotMsg{Query: msg.Query, Items: view.SetQuery(msg.Query)}
		})
	}
}

// LiveComments streams the comments of one item. Clients add comments by
// sending {"text": ...}; each comment shows up once even though it arrives
// both from the local append and from the store.
func (ih *ItemHandler) LiveComments(w http.ResponseWriter, r *http.Request) {
	postId := item.PostId(mux.Vars(r)["post_id"])
	author := ""
	if u, err := sessions.GetAuthUser(r.Context()); err == nil {
		author = u.Email
	}

	ws, err := ih.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log(r.Context()).Errorf("item/live: upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := &liveConn{ws: ws}
	th, err := thread.Open(ctx, ih.Threads, postId, func(comments []*item.Comment) {
		conn.send(ctx, func() interface{} { return commentsMsg{Comments: comments} })
	})
	if err != nil {
		logger.Log(ctx).Errorf("item/live: can't open thread %s: %v", postId, err)
		conn.sendError(ctx, err)
		return
	}
	defer th.Close()

	for {
		msg := commentMsg{}
		if err := ws.ReadJSON(&msg); err != nil {
			logClosed(ctx, err)
			return
		}
		if _, err := th.Add(context.WithoutCancel(ctx), author, msg.Text); err != nil {
			logger.Log(ctx).Errorf("item/live: can't add comment to %s: %v", postId, err)
			conn.sendError(ctx, err)
		}
	}
}

func logClosed(ctx context.Context, err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Log(ctx).Infof("item/live: connection dropped: %v", err)
	}
}
