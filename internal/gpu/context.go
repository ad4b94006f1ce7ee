// Package gpu owns the headless WebGPU device, the render pipelines and
// the per-frame draw/readback loop.
package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// InitError reports that no suitable GPU device could be acquired.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("gpu init: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// DeviceLostError reports a fatal mid-render device loss.
type DeviceLostError struct {
	Reason string
}

func (e *DeviceLostError) Error() string {
	return "gpu device lost: " + e.Reason
}

// Context bundles the headless device and its queue. It is single-owner
// and single-threaded; the render loop drives it sequentially.
type Context struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

// NewContext acquires a headless device. The backend is wgpu-native's
// platform preference (Metal on macOS, then Vulkan, then D3D12); a
// high-performance adapter is requested first with a fallback to
// whatever the platform offers.
func NewContext() (*Context, error) {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, &InitError{Err: fmt.Errorf("no WebGPU instance available")}
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		adapter, err = instance.RequestAdapter(nil)
	}
	if err != nil {
		instance.Release()
		return nil, &InitError{Err: fmt.Errorf("no suitable adapter: %w", err)}
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, &InitError{Err: fmt.Errorf("no suitable device: %w", err)}
	}

	return &Context{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
	}, nil
}

// Device exposes the raw device for pipeline and resource creation.
func (c *Context) Device() *wgpu.Device { return c.device }

// Queue exposes the submission queue.
func (c *Context) Queue() *wgpu.Queue { return c.queue }

// Poll blocks until the device's queued work completes.
func (c *Context) Poll() {
	c.device.Poll(true, nil)
}

// Release drops every GPU handle. The context is unusable afterward.
func (c *Context) Release() {
	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
	if c.adapter != nil {
		c.adapter.Release()
		c.adapter = nil
	}
	if c.instance != nil {
		c.instance.Release()
		c.instance = nil
	}
}
