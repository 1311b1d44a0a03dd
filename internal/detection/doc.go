// Package detection finds objects in images with a YOLO-family model.
//
// A Detector takes a decoded image and returns boxes in the pixel space of
// that image. Two backends are available:
//
//   - "onnx": ONNX Runtime through its C API. Needs the onnxruntime shared
//     library at run time; its path comes from Options.SharedLibraryPath.
//   - "opencv": the OpenCV DNN module through gocv. Only compiled in with the
//     "opencv" build tag; otherwise New returns ErrBackendUnavailable.
//
// Both backends expect a YOLOv8 ONNX export: one float32 input named
// "images" of shape (1, 3, S, S) in RGB order scaled to [0, 1], and one output
// of shape (1, 4+nc, anchors). Each anchor column holds the box center, width
// and height in input pixels followed by one score per class.
//
// # Post-processing
//
// Candidates scoring below Options.Confidence are dropped, the rest go through
// class-aware non-maximum suppression at Options.IoU, and at most 300 boxes
// survive. Boxes are scaled back to the source image, clamped to its bounds
// and returned in descending score order.
//
// # Visualization
//
// Plot reproduces the model's own rendering: a colored rectangle per box with
// a "<class> <score>" tag on top.
package detection
