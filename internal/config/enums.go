package config

import "git.home.luguber.info/inful/feeder/internal/foundation/normalization"

// HardwareDriver selects the GPIO backend.
type HardwareDriver string

const (
	DriverPeriph HardwareDriver = "periph"
	DriverSim    HardwareDriver = "sim"
)

var driverNormalizer = normalization.NewNormalizer("hardware driver", map[string]HardwareDriver{
	"periph":    DriverPeriph,
	"gpio":      DriverPeriph,
	"sim":       DriverSim,
	"simulated": DriverSim,
}, "")

// Reducer selects how a batch of raw load cell counts is collapsed.
type Reducer string

const (
	ReducerMean   Reducer = "mean"
	ReducerMedian Reducer = "median"
)

var reducerNormalizer = normalization.NewNormalizer("reducer", map[string]Reducer{
	"mean":    ReducerMean,
	"average": ReducerMean,
	"median":  ReducerMedian,
}, "")

// CameraSource selects where frames come from.
type CameraSource string

const (
	CameraNone      CameraSource = "none"
	CameraDirectory CameraSource = "directory"
	CameraHTTP      CameraSource = "http"
)

var cameraSourceNormalizer = normalization.NewNormalizer("camera source", map[string]CameraSource{
	"none":      CameraNone,
	"directory": CameraDirectory,
	"dir":       CameraDirectory,
	"http":      CameraHTTP,
	"snapshot":  CameraHTTP,
}, "")
