package model

import (
	"gocv.io/x/gocv/cuda"
)

// Device is the inference backend selected for a run. Selection happens once
// at model load, never per ROI.
type Device int

const (
	DeviceCPU Device = iota
	DeviceCUDA
)

func (d Device) String() string {
	switch d {
	case DeviceCUDA:
		return "cuda"
	default:
		return "cpu"
	}
}

// DetectDevice probes for a usable accelerator. Both checks must pass before
// CUDA execution is selected: a device has to be present, and its compute
// feature set has to be usable by the DNN backend.
func DetectDevice() Device {
	if cuda.GetCudaEnabledDeviceCount() < 1 {
		return DeviceCPU
	}
	if !cuda.DeviceSupports(cuda.FeatureSetCompute50) {
		return DeviceCPU
	}
	return DeviceCUDA
}
