package server

import (
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"signaged/proto"
)

type TCPClient struct {
	ConnMetadata
	conn    net.Conn
	writeMu sync.Mutex
}

func NewTCPClient(conn net.Conn, t Transport) *TCPClient {
	return &TCPClient{
		conn: conn,
		ConnMetadata: ConnMetadata{
			Id:          generateConnId("tcp"),
			RemoteAddr:  conn.RemoteAddr().String(),
			ConnectedAt: time.Now(),
			Transport:   t,
		},
	}
}

func (c *TCPClient) Send(msg proto.Message) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	jsonData = append(jsonData, '\n')

	c.writeMu.Lock()
	_, err = c.conn.Write(jsonData)
	c.writeMu.Unlock()

	slog.Debug("Sent message", "to", c.Id, "type", msg.Type, "size", len(msg.Payload))
	return err
}

func (c *TCPClient) Close() error {
	return c.conn.Close()
}

func (c *TCPClient) Meta() *ConnMetadata {
	return &c.ConnMetadata
}
