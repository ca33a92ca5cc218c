package transport

import (
	"context"
	"sync"

	zmq "github.com/pebbe/zmq4"
)

// ZMQPublisher binds a PUB socket and sends every payload as a two-frame
// message: destination first, payload second. Subscribers filter on the
// destination frame.
type ZMQPublisher struct {
	mu     sync.Mutex // zmq sockets are not safe for concurrent use
	socket *zmq.Socket
}

func NewZMQPublisher(addr string) (*ZMQPublisher, error) {
	socket, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return nil, err
	}
	if err := socket.Bind(addr); err != nil {
		socket.Close()
		return nil, err
	}
	return &ZMQPublisher{socket: socket}, nil
}

func (p *ZMQPublisher) Publish(_ context.Context, destination string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.socket.Send(destination, zmq.SNDMORE); err != nil {
		return err
	}
	_, err := p.socket.SendBytes(payload, 0)
	return err
}

func (p *ZMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.socket.Close()
}
