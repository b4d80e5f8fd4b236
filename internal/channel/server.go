// Package channel serves the bridge's method channels over WebSocket.
//
// Clients connect to /ws and exchange JSON frames: a Request names a channel,
// a method and its arguments, and exactly one Reply comes back for it with
// the same ID. Requests on one connection are dispatched concurrently, so
// replies may arrive out of order.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/agiangrant/gobridge"
	"github.com/agiangrant/gobridge/internal/bridgeerr"
	"github.com/agiangrant/gobridge/internal/ffi"
)

// Bridge is the part of gobridge.Bridge the server needs.
type Bridge interface {
	Dispatch(channel string, call gobridge.MethodCall) gobridge.Response
	ModuleState() ffi.State
}

// clientConn tracks a single WebSocket connection.
type clientConn struct {
	id        uint64
	ws        *websocket.Conn
	sendCh    chan Reply // outbound queue
	done      chan struct{}
	closeOnce sync.Once
	inflight  sync.WaitGroup
}

func (cc *clientConn) close() {
	cc.closeOnce.Do(func() { close(cc.done) })
}

// Server exposes a Bridge over WebSocket.
type Server struct {
	bridge  Bridge
	addr    string
	logger  *zap.Logger
	clients sync.Map // connID (uint64) -> *clientConn
	nextID  atomic.Uint64

	mu        sync.Mutex
	httpSrv   *http.Server
	boundAddr string
	ready     chan struct{}
}

// NewServer creates a server that will listen on addr.
func NewServer(bridge Bridge, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		bridge: bridge,
		addr:   addr,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Handler returns the HTTP handler serving /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start begins accepting connections. Blocks until ctx is cancelled or the
// server is stopped.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("channel listen: %w", err)
	}

	s.mu.Lock()
	s.boundAddr = listener.Addr().String()
	s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	srv := s.httpSrv
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("channel: server started", zap.String("addr", listener.Addr().String()))

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			if err := s.Stop(context.Background()); err != nil {
				s.logger.Warn("channel: shutdown", zap.Error(err))
			}
		case <-stopped:
		}
	}()

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("channel serve: %w", err)
	}
	return nil
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// BoundAddr returns the address the server bound to. Only valid after Ready.
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

// Stop closes every connection and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.clients.Range(func(key, value any) bool {
		cc := value.(*clientConn)
		cc.close()
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.clients.Delete(key)
		return true
	})

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.bridge.ModuleState()
	w.Header().Set("Content-Type", "application/json")
	if state != ffi.StateLoaded {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"module": state.String()})
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		},
	})
	if err != nil {
		s.logger.Warn("channel: websocket accept failed", zap.Error(err))
		return
	}

	cc := &clientConn{
		id:     s.nextID.Add(1),
		ws:     ws,
		sendCh: make(chan Reply, 64),
		done:   make(chan struct{}),
	}
	s.clients.Store(cc.id, cc)
	s.logger.Debug("channel: client connected", zap.Uint64("conn_id", cc.id))

	go s.writeLoop(cc)
	s.readLoop(r.Context(), cc)

	cc.close()
	cc.inflight.Wait()
	s.clients.Delete(cc.id)
	ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Debug("channel: client disconnected", zap.Uint64("conn_id", cc.id))
}

func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		default:
		}

		_, data, err := cc.ws.Read(ctx)
		if err != nil {
			return // connection closed
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.logger.Debug("channel: malformed frame", zap.Uint64("conn_id", cc.id), zap.Error(err))
			s.reply(cc, Reply{Response: gobridge.Failure(bridgeerr.InvalidArgument("malformed frame: %v", err))})
			continue
		}

		cc.inflight.Add(1)
		go func() {
			defer cc.inflight.Done()
			s.dispatch(cc, req)
		}()
	}
}

func (s *Server) writeLoop(cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case reply := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(ctx, cc.ws, reply)
			cancel()
			if err != nil {
				s.logger.Warn("channel: write failed", zap.Uint64("conn_id", cc.id), zap.Error(err))
				cc.close()
				return
			}
		}
	}
}

func (s *Server) dispatch(cc *clientConn, req Request) {
	id := req.ID
	if id == "" {
		id = ulid.Make().String()
	}

	var resp gobridge.Response
	callArgs, err := DecodeArgs(req.Args)
	if err != nil {
		resp = gobridge.Failure(bridgeerr.InvalidArgument("malformed args: %v", err))
	} else {
		resp = s.bridge.Dispatch(req.Channel, gobridge.MethodCall{ID: id, Method: req.Method, Args: callArgs})
	}

	s.reply(cc, Reply{ID: id, Response: resp})
}

// reply queues r for the writer. It only gives up once the connection is
// closed.
func (s *Server) reply(cc *clientConn, r Reply) {
	select {
	case cc.sendCh <- r:
	case <-cc.done:
		s.logger.Debug("channel: reply dropped, connection closed", zap.String("call_id", r.ID))
	}
}
