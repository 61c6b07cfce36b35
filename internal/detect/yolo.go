package detect

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// YOLO input geometry and NMS threshold shared by both backends.
const (
	yoloInputSize = 640
	nmsThreshold  = 0.45
)

// classMapper turns a model class id into an item name. Returning "" skips
// the class entirely.
type classMapper func(id int) string

func cocoClassMapper() classMapper {
	return func(id int) string {
		if id == 0 {
			return ClassPerson
		}
		return cocoDiningClasses[id]
	}
}

func stockClassMapper(classes map[int]string) classMapper {
	return func(id int) string {
		if name, ok := classes[id]; ok {
			return name
		}
		return fmt.Sprintf("gorengan_%d", id)
	}
}

// yoloDetector runs a YOLO ONNX network through the GoCV DNN module.
type yoloDetector struct {
	net     gocv.Net
	mapper  classMapper
	minConf float32
	mu      sync.Mutex
	closed  bool
}

func newYOLODetector(modelPath string, minConf float32, mapper classMapper) (*yoloDetector, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("load %q: %w", modelPath, ErrModelUnavailable)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &yoloDetector{
		net:     net,
		mapper:  mapper,
		minConf: minConf,
	}, nil
}

// Detect runs one forward pass and decodes the output. The network is not
// reentrant, so inference is serialized.
func (d *yoloDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrModelUnavailable
	}
	if frame == nil || frame.Empty() {
		return nil, ErrFrameDecode
	}

	blob := gocv.BlobFromImage(*frame, 1.0/255.0,
		image.Pt(yoloInputSize, yoloInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	dets := d.decode(&output, frame.Cols(), frame.Rows())
	return filterConfidence(dets, d.minConf), nil
}

// decode parses YOLOv8-style output [1, 4+nc, anchors]: rows are cx, cy,
// w, h followed by per-class scores.
func (d *yoloDetector) decode(output *gocv.Mat, frameW, frameH int) []Detection {
	dims := output.Size()
	if len(dims) != 3 {
		return nil
	}
	rows := dims[1]
	anchors := dims[2]
	numClasses := rows - 4
	if numClasses <= 0 {
		return nil
	}

	scaleX := float64(frameW) / yoloInputSize
	scaleY := float64(frameH) / yoloInputSize

	var (
		boxes   []image.Rectangle
		scores  []float32
		classes []int
	)

	for a := 0; a < anchors; a++ {
		bestScore := float32(0)
		bestClass := -1
		for c := 0; c < numClasses; c++ {
			score := output.GetFloatAt3(0, 4+c, a)
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < d.minConf {
			continue
		}
		if d.mapper(bestClass) == "" {
			continue
		}

		cx := float64(output.GetFloatAt3(0, 0, a)) * scaleX
		cy := float64(output.GetFloatAt3(0, 1, a)) * scaleY
		w := float64(output.GetFloatAt3(0, 2, a)) * scaleX
		h := float64(output.GetFloatAt3(0, 3, a)) * scaleY

		boxes = append(boxes, image.Rect(
			int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)))
		scores = append(scores, bestScore)
		classes = append(classes, bestClass)
	}

	if len(boxes) == 0 {
		return nil
	}

	keep := gocv.NMSBoxes(boxes, scores, d.minConf, nmsThreshold)

	dets := make([]Detection, 0, len(keep))
	for _, idx := range keep {
		box := boxes[idx]
		dets = append(dets, newDetection(
			d.mapper(classes[idx]), scores[idx],
			float64(box.Min.X), float64(box.Min.Y),
			float64(box.Max.X), float64(box.Max.Y),
			frameW, frameH))
	}
	return dets
}

// Close releases the network.
func (d *yoloDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}

// newDetection fills both pixel and fractional geometry from a pixel box.
func newDetection(class string, conf float32, x1, y1, x2, y2 float64, frameW, frameH int) Detection {
	w := float64(frameW)
	h := float64(frameH)
	cx := (x1 + x2) / 2
	cy := (y1 + y2) / 2
	return Detection{
		Class:        class,
		Confidence:   conf,
		BBox:         BBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
		NormBBox:     BBox{X1: x1 / w, Y1: y1 / h, X2: x2 / w, Y2: y2 / h},
		Centroid:     Point{X: cx, Y: cy},
		NormCentroid: Point{X: cx / w, Y: cy / h},
	}
}
