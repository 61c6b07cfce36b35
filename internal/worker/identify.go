package worker

import (
	"image"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/sotocloud/sotovision/internal/detect"
	"github.com/sotocloud/sotovision/internal/identity"
)

// Identifier tags person detections in place.
type Identifier interface {
	Identify(frame *gocv.Mat, dets []detect.Detection)
}

// PersonIdentifier crops each detected person from the frame, encodes
// the crop as JPEG and runs it through the embedding matcher.
type PersonIdentifier struct {
	enc     identity.Encoder
	matcher *identity.Matcher
	now     func() time.Time
}

func NewPersonIdentifier(enc identity.Encoder, matcher *identity.Matcher) *PersonIdentifier {
	return &PersonIdentifier{enc: enc, matcher: matcher, now: time.Now}
}

func (p *PersonIdentifier) Identify(frame *gocv.Mat, dets []detect.Detection) {
	for i := range dets {
		if !dets[i].IsPerson() {
			continue
		}
		jpeg, err := cropJPEG(frame, dets[i].BBox)
		if err != nil {
			log.Printf("Identity crop failed: %v", err)
			continue
		}
		emb, err := p.enc.Encode(jpeg)
		if err != nil {
			// Encoder sidecar down; people stay untagged this tick.
			continue
		}
		dets[i].Identity = p.matcher.Match(emb, p.now())
	}
}

// cropJPEG extracts the bounding box from the frame as JPEG bytes. The
// box is clamped to the frame.
func cropJPEG(frame *gocv.Mat, box detect.BBox) ([]byte, error) {
	rect := image.Rect(int(box.X1), int(box.Y1), int(box.X2), int(box.Y2))
	rect = rect.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if rect.Empty() {
		return nil, detect.ErrFrameDecode
	}

	region := frame.Region(rect)
	crop := region.Clone()
	region.Close()
	defer crop.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, crop)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
