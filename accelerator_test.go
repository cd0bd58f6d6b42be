package flowmap

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// mockAccelerator implements Accelerator for testing.
type mockAccelerator struct {
	name      string
	initErr   error
	accumErr  error
	delegate  bool // run the CPU kernel instead of returning accumErr
	closed    bool
	calls     int
	logger    *slog.Logger
	lastParam Params
	mu        sync.Mutex
}

func (m *mockAccelerator) Name() string { return m.name }

func (m *mockAccelerator) Init() error { return m.initErr }

func (m *mockAccelerator) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *mockAccelerator) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockAccelerator) SetLogger(l *slog.Logger) { m.logger = l }

func (m *mockAccelerator) Accumulate(dst, src *Buffer, params Params) error {
	m.calls++
	m.lastParam = params
	if m.delegate {
		return (&CPUAccelerator{}).Accumulate(dst, src, params)
	}
	return m.accumErr
}

// awareAccelerator additionally accepts a device provider.
type awareAccelerator struct {
	mockAccelerator
	provider    any
	providerErr error
}

func (a *awareAccelerator) SetDeviceProvider(provider any) error {
	a.provider = provider
	return a.providerErr
}

// nullProvider is a gpucontext.DeviceProvider without a device.
type nullProvider struct{}

func (nullProvider) Device() gpucontext.Device   { return nil }
func (nullProvider) Queue() gpucontext.Queue     { return nil }
func (nullProvider) Adapter() gpucontext.Adapter { return nil }
func (nullProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Type: gpucontext.AdapterTypeUnknown}
}
func (nullProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

var _ gpucontext.DeviceProvider = nullProvider{}

func TestCPUAcceleratorMatchesSoftwarePass(t *testing.T) {
	p := DefaultParams()
	p.Pointer = V2(0.4, 0.6)
	p.Velocity = V2(0.05, -0.02)
	p.Aspect = 1.5

	src := mustBuffer(t, 64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			src.SetTexel(x, y, Texel{R: float32(x) / 64, B: float32(y) / 64})
		}
	}

	viaAccel := mustBuffer(t, 64)
	a := &CPUAccelerator{}
	if err := a.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := a.Accumulate(viaAccel, src, p); err != nil {
		t.Fatalf("Accumulate() error = %v", err)
	}
	a.Close()

	viaPass := mustBuffer(t, 64)
	softwarePass(nil, viaPass, src, &p)

	for i, v := range viaPass.Data() {
		if viaAccel.Data()[i] != v {
			t.Fatalf("value %d: accelerator %v, software %v", i, viaAccel.Data()[i], v)
		}
	}
}

func TestCPUAcceleratorSizeMismatch(t *testing.T) {
	err := (&CPUAccelerator{}).Accumulate(mustBuffer(t, 8), mustBuffer(t, 16), DefaultParams())
	if !errors.Is(err, ErrFallbackToCPU) {
		t.Errorf("Accumulate(size mismatch) error = %v, want ErrFallbackToCPU", err)
	}
}

func TestAcceleratorReceivesParams(t *testing.T) {
	mock := &mockAccelerator{name: "params", delegate: true}
	fm := newTestFlowmap(t, WithSize(32), WithAccelerator(mock))

	fm.SetPointer(0.2, 0.3)
	fm.SetVelocity(0.1, 0.05)
	fm.Update()

	if mock.calls != 1 {
		t.Fatalf("accelerator called %d times, want 1", mock.calls)
	}
	if mock.lastParam.Pointer != V2(0.2, 0.3) || mock.lastParam.Velocity != V2(0.1, 0.05) {
		t.Errorf("accelerator got params %+v", mock.lastParam)
	}
	if fm.Read().IsZero() {
		t.Error("accelerated pass result not visible in Read")
	}
}

func TestAcceleratorFallback(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog bool
	}{
		{"declined", ErrFallbackToCPU, false},
		{"failed", errors.New("device lost"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&logBuf, nil))

			mock := &mockAccelerator{name: "fallback", accumErr: tt.err}
			fm := newTestFlowmap(t, WithSize(32), WithAccelerator(mock), WithLogger(log))
			ref := newTestFlowmap(t, WithSize(32))

			for _, f := range []*Flowmap{fm, ref} {
				f.SetVelocity(0.2, 0.1)
				f.Update()
			}

			if mock.calls != 1 {
				t.Errorf("accelerator called %d times, want 1", mock.calls)
			}
			if fm.ReadIndex() != 1 {
				t.Error("fallback pass must still swap")
			}
			for i, v := range ref.Read().Data() {
				if fm.Read().Data()[i] != v {
					t.Fatalf("fallback result differs at %d", i)
				}
			}
			if got := strings.Contains(logBuf.String(), "using CPU"); got != tt.wantLog {
				t.Errorf("warning logged = %v, want %v (log: %q)", got, tt.wantLog, logBuf.String())
			}
		})
	}
}

func TestAcceleratorInitError(t *testing.T) {
	mock := &mockAccelerator{name: "broken", initErr: errors.New("no adapter")}
	_, err := New(WithAccelerator(mock))
	if !errors.Is(err, ErrDevice) {
		t.Fatalf("New() error = %v, want ErrDevice", err)
	}
	if !strings.Contains(err.Error(), "no adapter") {
		t.Errorf("error %q should carry the init failure", err)
	}
}

func TestAcceleratorClosedWithFlowmap(t *testing.T) {
	mock := &mockAccelerator{name: "owned"}
	fm, err := New(WithAccelerator(mock))
	if err != nil {
		t.Fatal(err)
	}
	if mock.isClosed() {
		t.Fatal("accelerator closed too early")
	}
	_ = fm.Close()
	if !mock.isClosed() {
		t.Error("Close did not close the accelerator")
	}
}

func TestAcceleratorReceivesLogger(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	mock := &mockAccelerator{name: "logger"}
	newTestFlowmap(t, WithAccelerator(mock), WithLogger(custom))

	if mock.logger != custom {
		t.Error("New did not propagate the logger to the accelerator")
	}
}

func TestDeviceProvider(t *testing.T) {
	t.Run("aware accelerator", func(t *testing.T) {
		a := &awareAccelerator{mockAccelerator: mockAccelerator{name: "aware"}}
		newTestFlowmap(t, WithAccelerator(a), WithDeviceProvider(nullProvider{}))
		if _, ok := a.provider.(nullProvider); !ok {
			t.Errorf("provider = %T, want nullProvider", a.provider)
		}
	})

	t.Run("provider rejected", func(t *testing.T) {
		a := &awareAccelerator{
			mockAccelerator: mockAccelerator{name: "picky"},
			providerErr:     errors.New("no HAL access"),
		}
		_, err := New(WithAccelerator(a), WithDeviceProvider(nullProvider{}))
		if !errors.Is(err, ErrDevice) {
			t.Errorf("New() error = %v, want ErrDevice", err)
		}
		if !a.isClosed() {
			t.Error("accelerator must be closed when attaching fails")
		}
	})

	t.Run("accelerator not aware", func(t *testing.T) {
		mock := &mockAccelerator{name: "plain"}
		_, err := New(WithAccelerator(mock), WithDeviceProvider(nullProvider{}))
		if !errors.Is(err, ErrDevice) {
			t.Errorf("New() error = %v, want ErrDevice", err)
		}
		if !mock.isClosed() {
			t.Error("accelerator must be closed when attaching fails")
		}
	})
}
