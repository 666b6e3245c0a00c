//go:build !nogpu

package main

import (
	_ "github.com/gogpu/wgpu/hal/allbackends"

	_ "github.com/gogpu/gpgpu/backend/native"
)
