package collector

import (
	"sync"
	"time"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/logger"
)

// State is the collector run state
type State int

const (
	// StateStopped - no loop running
	StateStopped State = iota
	// StateStarting - loop being spawned
	StateStarting
	// StateRunning - loop consuming messages
	StateRunning
	// StateStopping - stop signalled, waiting for the iteration boundary
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Message is one inbound transport message
type Message struct {
	Topic   string
	Payload []byte
}

// Transport is the broker session driven by the collector loop
type Transport interface {
	Connect() error
	Subscribe(topic string) error
	// Messages is the delivery channel filled by the transport's own
	// I/O loop; the collector drains it one message at a time
	Messages() <-chan Message
	Disconnect()
}

// Service owns the collector loop lifecycle. The hosting process holds a
// single instance and calls Start/Stop/IsRunning from any goroutine.
type Service struct {
	transport Transport
	collector *Collector
	topic     string
	backoff   time.Duration

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}
}

// NewService creates the lifecycle controller for the collector loop
func NewService(transport Transport, collector *Collector, topic string, backoff time.Duration) *Service {
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &Service{
		transport: transport,
		collector: collector,
		topic:     topic,
		backoff:   backoff,
		state:     StateStopped,
	}
}

// Start spawns the collector loop; reports false when a loop is already
// active
func (s *Service) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		logger.Warn("collector already running (state=%s)", s.state)
		return false
	}

	s.state = StateStarting
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	s.state = StateRunning

	logger.Info("collector started on topic %s", s.topic)
	return true
}

// Stop signals the loop and waits for the current iteration to finish;
// reports false when not running. An in-flight message's writes are never
// interrupted.
func (s *Service) Stop() bool {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		logger.Warn("collector not running (state=%s)", s.state)
		return false
	}
	s.state = StateStopping
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	logger.Info("collector stopped")
	return true
}

// IsRunning reports whether the collector loop is active
func (s *Service) IsRunning() bool {
	return s.State() == StateRunning
}

// State returns the current run state
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Service) run(stop, done chan struct{}) {
	defer close(done)
	defer s.setState(StateStopped)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := s.transport.Connect(); err != nil {
			logger.Error("broker connection failed: %v", err)
			if !s.wait(stop) {
				return
			}
			continue
		}

		if err := s.transport.Subscribe(s.topic); err != nil {
			logger.Error("subscribe to %s failed: %v", s.topic, err)
			s.transport.Disconnect()
			if !s.wait(stop) {
				return
			}
			continue
		}

		for {
			select {
			case <-stop:
				s.transport.Disconnect()
				return
			case msg := <-s.transport.Messages():
				s.collector.HandleMessage(msg.Topic, msg.Payload)
			}
		}
	}
}

// wait sleeps for the backoff, returning false when stop is signalled
func (s *Service) wait(stop chan struct{}) bool {
	select {
	case <-stop:
		return false
	case <-time.After(s.backoff):
		return true
	}
}
