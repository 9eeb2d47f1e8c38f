// Package httpapp is the illustrative HTTP consumer of the session store
// collaborator named in §6: a small gin application exposing session
// CRUD, independent of the reactor core.
//
// Grounded on the reference reactor's gkhttp.GkGin
// (moqsien-gknet/gkhttp/gkgin.go), which wraps a *gin.Engine the same
// way, generalized away from that package's raw-socket HTTP hosting
// (GkGin served HTTP directly over the reactor's own accepted
// connections) to ordinary net/http hosting via gin.Engine.Run, since
// this specification's session store is an independent collaborator, not
// a thing the reactor itself serves.
package httpapp

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reactorcore/tcpreactor/session"
)

// App wraps a gin.Engine exposing the session store over HTTP.
type App struct {
	store  session.Store
	engine *gin.Engine
}

// New constructs an App backed by store.
func New(store session.Store) *App {
	a := &App{store: store, engine: gin.New()}
	a.engine.Use(gin.Recovery())
	a.registerRoutes()
	return a
}

// Handler exposes the underlying http.Handler, e.g. for httptest.
func (a *App) Handler() http.Handler { return a.engine }

// Run starts the HTTP server on addr, blocking until it exits.
func (a *App) Run(addr string) error { return a.engine.Run(addr) }

func (a *App) registerRoutes() {
	a.engine.POST("/sessions", a.createSession)
	a.engine.GET("/sessions/:id", a.getSession)
	a.engine.DELETE("/sessions/:id", a.deleteSession)
}

type sessionView struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *App) createSession(c *gin.Context) {
	s := a.store.New()
	c.JSON(http.StatusCreated, sessionView{ID: s.ID(), CreatedAt: s.CreatedAt()})
}

func (a *App) getSession(c *gin.Context) {
	s, ok := a.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, sessionView{ID: s.ID(), CreatedAt: s.CreatedAt()})
}

func (a *App) deleteSession(c *gin.Context) {
	a.store.Delete(c.Param("id"))
	c.Status(http.StatusNoContent)
}
