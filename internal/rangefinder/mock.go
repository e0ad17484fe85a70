package rangefinder

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// TestablePort implements Porter with configurable behaviour for testing.
// It provides fine-grained control over reads, writes, errors, and latency.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// ReadCalls records the number of Read calls
	ReadCalls int

	// WriteCalls records the number of Write calls
	WriteCalls int

	// ReadTimeout is the current read timeout
	ReadTimeout time.Duration

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	// readCond is used to signal blocked readers
	readCond *sync.Cond
}

// NewTestablePort creates a new TestablePort for testing.
func NewTestablePort() *TestablePort {
	tp := &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tp.readCond = sync.NewCond(&tp.mu)
	return tp
}

// Read reads from the read buffer, optionally simulating errors.
func (t *TestablePort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++

	if t.Closed {
		return 0, errors.New("port closed")
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	// If blocking reads are enabled and buffer is empty, wait for data
	if t.BlockReads && t.ReadBuffer.Len() == 0 {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, errors.New("port closed")
		}
	}

	return t.ReadBuffer.Read(p)
}

// Write writes to the write buffer, optionally simulating errors.
func (t *TestablePort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++

	if t.Closed {
		return 0, errors.New("port closed")
	}

	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast() // Wake up any blocked readers

	return t.CloseError
}

// SetReadTimeout implements TimeoutPorter.
func (t *TestablePort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadTimeout = timeout
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Signal() // Wake up a blocked reader
}

// GetWrittenData returns all data written to the port.
func (t *TestablePort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.WriteBuffer.Bytes()
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path string
	Mode *PortMode
}

// MockFactory implements PortFactory for testing. Each path can be
// mapped to a port or an error; unmapped paths fail to open.
type MockFactory struct {
	mu sync.Mutex

	// Ports maps device paths to the port returned for them
	Ports map[string]Porter

	// Errors maps device paths to the error returned for them
	Errors map[string]error

	// OpenCalls records all Open calls
	OpenCalls []MockOpenCall
}

// NewMockFactory creates a new MockFactory with no mapped paths.
func NewMockFactory() *MockFactory {
	return &MockFactory{
		Ports:  make(map[string]Porter),
		Errors: make(map[string]error),
	}
}

// Open returns the port or error configured for the path.
func (f *MockFactory) Open(path string, mode *PortMode) (Porter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = append(f.OpenCalls, MockOpenCall{
		Path: path,
		Mode: mode,
	})

	if err, ok := f.Errors[path]; ok {
		return nil, err
	}
	if port, ok := f.Ports[path]; ok {
		return port, nil
	}
	return nil, errors.New("no such device: " + path)
}

// OpenedPaths returns the paths of all recorded Open calls in order.
func (f *MockFactory) OpenedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	paths := make([]string, len(f.OpenCalls))
	for i, c := range f.OpenCalls {
		paths[i] = c.Path
	}
	return paths
}
