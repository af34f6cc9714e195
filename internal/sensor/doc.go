// Package sensor adapts the skeleton bridge to the joints package.
//
// The bridge is a host process wrapping the depth camera SDK. It emits one
// JSON object per line, either over a serial link (see serialmux) or into a
// recording file:
//
//	{"ts_ms":1234,"users":[{"id":1,"state":"tracking","com":[x,y,z],
//	  "joints":{"head":{"p":[x,y,z],"c":0.9}}}]}
//
// World coordinates are millimetres in the camera frame. Screen positions are
// derived locally with a Projector that reproduces the camera's
// real-world-to-projective conversion.
package sensor
