package worker

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/sotocloud/sotovision/internal/alert"
	"github.com/sotocloud/sotovision/internal/billing"
	"github.com/sotocloud/sotovision/internal/capture"
	"github.com/sotocloud/sotovision/internal/detect"
	"github.com/sotocloud/sotovision/internal/zone"
)

// Pipeline runs one camera's capture-detect-evaluate chain. It is the
// unit behind both the periodic worker loop and one-shot analysis.
type Pipeline struct {
	CameraID   string
	Camera     capture.Camera
	Detector   detect.Detector
	Identifier Identifier // optional, nil skips identity tagging
	Evaluator  *zone.Evaluator
	Zones      []zone.Zone
	Billing    *billing.Emitter
	Alerts     *alert.Detector

	// EncodeFrame includes the JPEG frame in snapshots for streaming.
	EncodeFrame bool
}

// Tick runs a single analysis pass. prev is the previous tick's zone
// states and may be nil on the first pass.
func (p *Pipeline) Tick(prev map[string]*zone.State, now time.Time) (*Snapshot, error) {
	frame, err := p.Camera.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	dets, err := p.Detector.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	if p.Identifier != nil {
		p.Identifier.Identify(frame, dets)
	}

	dets = p.Evaluator.Assign(p.Zones, dets)
	states := p.Evaluator.Evaluate(p.Zones, prev, dets)

	snap := &Snapshot{
		CameraID:   p.CameraID,
		TakenAt:    now,
		Detections: dets,
		States:     states,
		Billing:    p.Billing.FromStates(p.CameraID, states, now),
		Alerts:     p.Alerts.FromStates(p.CameraID, states, now),
	}

	if p.EncodeFrame {
		if buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame); err == nil {
			snap.JPEG = append([]byte(nil), buf.GetBytes()...)
			buf.Close()
		}
	}

	return snap, nil
}
