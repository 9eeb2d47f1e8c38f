package server

import "github.com/reactorcore/tcpreactor/internal/tcpconn"

// weakConn is a non-owning reference to a connection, the reimplementation
// of the specification's weak-handle pattern (§9). Go has no native weak
// pointer; strong ownership lives entirely in Server.conns, and a weakConn
// just carries the connection id back to that table. Upgrade re-looks the
// id up under the table's read lock and is the normal way a worker
// discovers that teardown has already happened.
type weakConn struct {
	server *Server
	id     int
}

// Upgrade returns the live connection for this handle, or ok=false if it
// has already left the table (§8 invariant 5).
func (w weakConn) Upgrade() (*tcpconn.Conn, bool) {
	return w.server.lookup(w.id)
}
