// ABOUTME: WebSocket visualization server
// ABOUTME: Streams spectrum frames and level meters to browser clients
package viz

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/mdns"

	"github.com/loopmon/loopmon-go/internal/version"
)

const (
	// serviceType is the mDNS service advertised for viz clients.
	serviceType = "_loopmon-viz._tcp"

	// sendQueueLen bounds per-client frame queues. Slow clients drop
	// frames instead of stalling the publisher.
	sendQueueLen = 8

	writeTimeout = 2 * time.Second
)

// Frame is the JSON message streamed to each client.
type Frame struct {
	Type     string    `json:"type"`
	Bands    []float32 `json:"bands"`
	Waveform []float32 `json:"waveform,omitempty"`
	PeakDB   float64   `json:"peak_db"`
	RMSDB    float64   `json:"rms_db"`
	Underrun bool      `json:"underrun"`
}

// hello is sent once when a client connects.
type hello struct {
	Type    string `json:"type"`
	Product string `json:"product"`
	Version string `json:"version"`
}

// Server publishes analyzer output over WebSocket.
type Server struct {
	port     int
	upgrader websocket.Upgrader

	httpServer *http.Server
	mdnsServer *mdns.Server

	clients   map[string]chan []byte
	clientsMu sync.RWMutex
}

// NewServer creates a viz server listening on the given port.
func NewServer(port int) *Server {
	return &Server{
		port: port,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]chan []byte),
	}
}

// Start begins serving and advertises the endpoint via mDNS.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/viz", s.handleWebSocket)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("viz listen: %w", err)
	}

	s.httpServer = &http.Server{Handler: mux}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Viz server error: %v", err)
		}
	}()

	if err := s.advertise(); err != nil {
		log.Printf("mDNS advertisement failed: %v", err)
	}

	log.Printf("Viz server listening on :%d", s.port)
	return nil
}

// Stop shuts down the server and disconnects all clients.
func (s *Server) Stop() {
	if s.mdnsServer != nil {
		s.mdnsServer.Shutdown()
		s.mdnsServer = nil
	}
	if s.httpServer != nil {
		s.httpServer.Close()
		s.httpServer = nil
	}

	s.clientsMu.Lock()
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
	s.clientsMu.Unlock()
}

// ClientCount returns the number of connected viz clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Publish sends a frame to all connected clients. Clients that cannot
// keep up miss frames.
func (s *Server) Publish(frame Frame) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	if len(s.clients) == 0 {
		return
	}

	frame.Type = "frame"
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	for _, ch := range s.clients {
		select {
		case ch <- data:
		default:
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Viz upgrade failed: %v", err)
		return
	}

	id := uuid.New().String()
	sendChan := make(chan []byte, sendQueueLen)

	s.clientsMu.Lock()
	s.clients[id] = sendChan
	s.clientsMu.Unlock()

	log.Printf("Viz client connected: %s (%s)", id, r.RemoteAddr)

	greeting, _ := json.Marshal(hello{
		Type:    "hello",
		Product: version.Product,
		Version: version.Version,
	})
	conn.WriteMessage(websocket.TextMessage, greeting)

	go s.clientWriter(id, conn, sendChan)
	s.clientReader(id, conn)
}

// clientReader discards inbound messages and detects disconnects.
func (s *Server) clientReader(id string, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.removeClient(id)
}

func (s *Server) clientWriter(id string, conn *websocket.Conn, sendChan chan []byte) {
	defer conn.Close()

	for data := range sendChan {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.removeClient(id)
			return
		}
	}
}

func (s *Server) removeClient(id string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if ch, ok := s.clients[id]; ok {
		close(ch)
		delete(s.clients, id)
		log.Printf("Viz client disconnected: %s", id)
	}
}

func (s *Server) advertise() error {
	ips, err := localIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	host, _ := fqdnHostname()
	service, err := mdns.NewMDNSService(
		host,
		serviceType,
		"",
		"",
		s.port,
		ips,
		[]string{"path=/viz", "version=" + version.Version},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	s.mdnsServer = server

	log.Printf("Advertising mDNS service: %s on port %d", serviceType, s.port)
	return nil
}

// localIPs returns non-loopback IPv4 addresses.
func localIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	if len(ips) == 0 {
		return nil, fmt.Errorf("no usable network interfaces")
	}
	return ips, nil
}

func fqdnHostname() (string, error) {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "loopmon", err
	}
	return host, nil
}
