package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signaged/proto"
)

type WSClient struct {
	ConnMetadata
	conn    *websocket.Conn
	writeMu sync.Mutex // gorilla allows one concurrent writer
}

func NewWSClient(conn *websocket.Conn, t Transport, remoteAddr string) *WSClient {
	return &WSClient{
		conn: conn,
		ConnMetadata: ConnMetadata{
			Id:          generateConnId("ws"),
			RemoteAddr:  remoteAddr,
			ConnectedAt: time.Now(),
			Transport:   t,
		},
	}
}

func (c *WSClient) Send(msg proto.Message) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, jsonData)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	slog.Debug("Sent WebSocket message", "to", c.Id, "type", msg.Type, "size", len(msg.Payload))
	return nil
}

func (c *WSClient) Close() error {
	return c.conn.Close()
}

func (c *WSClient) Meta() *ConnMetadata {
	return &c.ConnMetadata
}
