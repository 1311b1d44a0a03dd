package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func regionProperties() map[string]interface{} {
	return map[string]interface{}{
		"x1": map[string]interface{}{"type": "integer", "description": "Left edge X coordinate (0-based)"},
		"y1": map[string]interface{}{"type": "integer", "description": "Top edge Y coordinate (0-based)"},
		"x2": map[string]interface{}{"type": "integer", "description": "Right edge X coordinate (exclusive)"},
		"y2": map[string]interface{}{"type": "integer", "description": "Bottom edge Y coordinate (exclusive)"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Pipeline
		{
			Name:        "palm_detect",
			Description: "Detect palm fruit bunches in every JPEG/PNG of the input folder, draw a box around each and a total label, and save the results into a new numbered run folder. Returns the per-image counts.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"input_dir":  pathProperty("Folder of input photos. Defaults to the configured input folder"),
					"model_path": pathProperty("ONNX detection model. Defaults to the configured model"),
					"confidence": map[string]interface{}{
						"type":        "number",
						"description": "Minimum detection score between 0 and 1. Default 0.4",
						"default":     0.4,
					},
					"skip_invalid": map[string]interface{}{
						"type":        "boolean",
						"description": "Skip files that fail instead of aborting the run. Default false",
						"default":     false,
					},
				},
			},
		},
		{
			Name:        "palm_collage",
			Description: "Tile the annotated results of a run into a 5-column grid of 800x600 cells and save it as the next free collage_result_<N>.jpg.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"results_dir": pathProperty("Folder of annotated images. Defaults to the result folder of the newest run"),
					"output_dir":  pathProperty("Folder receiving the collage. Defaults to the configured collage folder"),
					"columns": map[string]interface{}{
						"type":        "integer",
						"description": "Tiles per row. Default 5",
						"default":     5,
					},
				},
			},
		},
		{
			Name:        "palm_audit",
			Description: "Read the total label back from every result image of a run with OCR and compare it with the recorded count.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"run_dir": pathProperty("Run folder to audit. Defaults to the newest run"),
				},
			},
		},
		{
			Name:        "palm_history",
			Description: "List recorded detection runs, newest first, or summarize the per-image counts of one run.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"run_id": map[string]interface{}{
						"type":        "integer",
						"description": "Summarize this run instead of listing runs",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum runs to list. Default 20",
						"default":     20,
					},
				},
			},
		},

		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},

		// Region and Color Operations
		{
			Name:        "image_crop",
			Description: "Crop a rectangular region from an image and return it as base64-encoded PNG. Use this to zoom into a detection box or the total label.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": withProperties(regionProperties(), map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				}),
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "image_sample_color",
			Description: "Get the color of a single pixel as hex, RGB and HSL. Useful for checking box and label colors.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
					"x":    map[string]interface{}{"type": "integer", "description": "X coordinate (0-based)"},
					"y":    map[string]interface{}{"type": "integer", "description": "Y coordinate (0-based)"},
				},
				"required": []string{"path", "x", "y"},
			},
		},

		// OCR Operations
		{
			Name:        "image_ocr",
			Description: "Extract text from an image with Tesseract, optionally limited to a region read as a single line.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Tesseract language code. Defaults to the configured language",
					},
					"region": map[string]interface{}{
						"type":        "object",
						"description": "Optional region to read",
						"properties":  regionProperties(),
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Upscale factor applied to the region before OCR. Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

func withProperties(props map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
