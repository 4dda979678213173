// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import "errors"

var (
	// ErrNotInitialized is returned when a target is resolved before Init.
	ErrNotInitialized = errors.New("render: target not initialized")

	// ErrInvalidFace is returned for a shadow face the light does not have.
	ErrInvalidFace = errors.New("render: invalid shadow face")

	// ErrPassState is returned for a lifecycle call out of order.
	ErrPassState = errors.New("render: invalid pass state")

	// ErrDeviceMismatch is returned when a target is used with a device
	// other than the one it was initialized on.
	ErrDeviceMismatch = errors.New("render: target belongs to another device")

	// ErrInvalidLight is returned for a light that cannot cast shadows.
	ErrInvalidLight = errors.New("render: invalid light")
)
