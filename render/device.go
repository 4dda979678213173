// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfx/gpucore"
)

// DeviceHandle provides GPU device access from a host application.
//
// A host that already owns a device (a windowing framework, an editor)
// passes a DeviceHandle to the native backend instead of letting it open
// its own adapter, so both share one device and one queue. The render
// package only uses it to pick a color format that matches the host's
// surface.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider.
type DeviceHandle = gpucontext.DeviceProvider

// NullDeviceHandle is a DeviceHandle without a device, used for headless
// rendering.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo reports an unknown adapter for the null device.
func (NullDeviceHandle) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Type: gpucontext.AdapterTypeUnknown}
}

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

var _ DeviceHandle = NullDeviceHandle{}

// DefaultColorFormat is used when the host surface format is unknown or has
// no gpucore equivalent.
const DefaultColorFormat = gpucore.TextureFormatRGBA8Unorm

// SurfaceFormat returns the gpucore color format matching the host's
// surface, or DefaultColorFormat.
func SurfaceFormat(h DeviceHandle) gpucore.TextureFormat {
	if h == nil {
		return DefaultColorFormat
	}
	switch h.SurfaceFormat() {
	case gputypes.TextureFormatBGRA8Unorm:
		return gpucore.TextureFormatBGRA8Unorm
	case gputypes.TextureFormatRGBA8Unorm:
		return gpucore.TextureFormatRGBA8Unorm
	default:
		return DefaultColorFormat
	}
}
