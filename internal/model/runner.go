// Package model wraps the pretrained blob segmentation network behind a
// typed runner: grayscale ROI in, 8-bit foreground-likelihood map out.
package model

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// probeSize is the edge length of the blank input used to verify the output
// contract at load time. The network is fully convolutional, so any small
// size exercises the same output shape.
const probeSize = 64

// Runner holds the loaded network and the device it was pinned to.
// A Runner is not safe for concurrent use; the pipeline is sequential.
type Runner struct {
	net    gocv.Net
	device Device
}

// Load reads the model artifact, pins it to the best available device and
// verifies the single-batch single-channel output contract with a probe
// forward pass. Any failure here is fatal for the run.
func Load(path string) (*Runner, error) {
	net := gocv.ReadNet(path, "")
	if net.Empty() {
		return nil, fmt.Errorf("model artifact %s is missing or invalid", path)
	}

	r := &Runner{net: net, device: DetectDevice()}

	var backend gocv.NetBackendType
	var target gocv.NetTargetType
	if r.device == DeviceCUDA {
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	} else {
		backend, target = gocv.NetBackendDefault, gocv.NetTargetCPU
	}
	if err := r.net.SetPreferableBackend(backend); err != nil {
		net.Close()
		return nil, fmt.Errorf("select %s backend: %w", r.device, err)
	}
	if err := r.net.SetPreferableTarget(target); err != nil {
		net.Close()
		return nil, fmt.Errorf("select %s target: %w", r.device, err)
	}

	if err := r.verifyContract(); err != nil {
		net.Close()
		return nil, err
	}

	return r, nil
}

// Device reports the backend the model was pinned to.
func (r *Runner) Device() Device {
	return r.device
}

// Close releases the network.
func (r *Runner) Close() {
	r.net.Close()
}

// verifyContract runs a blank probe input through the network and checks
// that it emits exactly one batch element and one output channel. The rest
// of the pipeline indexes the output under that assumption, so a mismatched
// artifact must fail at load rather than silently mis-index.
func (r *Runner) verifyContract() error {
	probe := gocv.NewMatWithSize(probeSize, probeSize, gocv.MatTypeCV8U)
	defer probe.Close()

	out, err := r.forward(probe)
	if err != nil {
		return fmt.Errorf("model probe: %w", err)
	}
	out.Close()
	return nil
}

// Predict runs one forward pass over a grayscale ROI and returns a same-size
// single-channel map in [0,255]. The caller owns the returned Mat.
func (r *Runner) Predict(roi gocv.Mat) (gocv.Mat, error) {
	if roi.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty roi")
	}

	// The network was trained on photometrically inverted crops, where the
	// blob region carries the higher values.
	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(roi, &inverted)

	prob, err := r.forward(inverted)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer prob.Close()

	// Raw output is assumed in [0,1]; scale to an 8-bit map. The saturating
	// conversion clamps anything outside the range.
	pred := gocv.NewMat()
	prob.ConvertToWithParams(&pred, gocv.MatTypeCV8U, 255, 0)
	return pred, nil
}

// forward executes one inference pass and reshapes the checked 1x1xHxW
// output into a 2-dimensional float map.
func (r *Runner) forward(gray gocv.Mat) (gocv.Mat, error) {
	// Raw byte range as float input, single image, no resize or crop.
	blob := gocv.BlobFromImage(gray, 1.0,
		image.Pt(gray.Cols(), gray.Rows()), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	r.net.SetInput(blob, "")
	out := r.net.Forward("")
	defer out.Close()

	size := out.Size()
	if len(size) != 4 || size[0] != 1 || size[1] != 1 {
		return gocv.NewMat(), fmt.Errorf("model output shape %v violates the 1x1xHxW contract", size)
	}

	prob := out.Reshape(1, size[2])
	cloned := prob.Clone()
	prob.Close()
	return cloned, nil
}
