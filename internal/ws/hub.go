package ws

import (
	"sync"

	"github.com/ignatzorin/workchain-backend/internal/goroutine"
)

// Hub управляет всеми WebSocket клиентами. Подключения группируются по
// адресу кошелька: участник без аккаунта тоже получает события своих
// сделок, подключившись со своим адресом.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
}

type message struct {
	address string
	payload []byte
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 32),
	}
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.address, msg.payload)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// SendToAddress отправляет сообщение всем подключениям адреса.
func (h *Hub) SendToAddress(address string, payload []byte) {
	h.broadcast <- message{address: address, payload: payload}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.address]; !ok {
		h.clients[client.address] = make(map[*Client]struct{})
	}
	h.clients[client.address][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.address]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.address)
		}
	}
}

func (h *Hub) send(address string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[address] {
		select {
		case client.send <- payload:
		default:
			// Медленный клиент: закрываем, не блокируя остальных.
			c := client
			goroutine.SafeGo(func() { c.Close() })
		}
	}
}
