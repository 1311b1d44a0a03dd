// Package server implements the MCP (Model Context Protocol) server for the
// palm bunch counting pipeline.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Pipeline:
//   - palm_detect: Detect, annotate and save a folder of photos as a new run
//   - palm_collage: Tile a run's results into the next collage file
//   - palm_audit: Read the total labels back and compare with the record
//   - palm_history: List recorded runs or summarize one
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Inspection:
//   - image_crop: Extract a region as base64 PNG
//   - image_sample_color: Get the color at a pixel
//   - image_ocr: Read text from an image or a region
//
// Pipeline tools run one at a time. Arguments override the configuration the
// server was started with for that call only.
//
// # Image Caching
//
// Images read by the image_* tools are cached by path for the
// lifetime of the process. palm_detect evicts its result folder and palm_collage the file it wrote.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
package server
