package meter

import "time"

// #region config

// Config holds the energy-model constants for the CPU baseline and the FPGA
// comparison target.
type Config struct {
	TDPWatts       float64 // CPU package TDP used to scale instantaneous load
	FPGANominalMW  float64 // nominal FPGA draw in milliwatts
	LinkBitsPerSec float64 // serial link throughput the FPGA streams at
}

// DefaultConfig returns the measurement rig's constants.
func DefaultConfig() Config {
	return Config{
		TDPWatts:       25.0,
		FPGANominalMW:  450.0,
		LinkBitsPerSec: 115200,
	}
}

// #endregion config

// #region sample

// Sample is the energy reading for one evaluation.
type Sample struct {
	CPUWatts float64       // TDP-scaled draw at the time of the evaluation
	Joules   float64       // CPUWatts integrated over Duration
	NJPerBit float64       // energy density: Joules per input bit, in nanojoules
	Bits     int           // input size in bits
	Duration time.Duration // wall time of the wrapped evaluation
}

// #endregion sample

// #region summary

// Summary is the run-level energy report comparing the CPU baseline to the
// nominal FPGA target.
type Summary struct {
	Samples          int
	TotalBits        int
	MeanCPUWatts     float64
	MeanNJPerBit     float64 // CPU energy density
	FPGAWatts        float64
	FPGANJPerBit     float64 // FPGA energy density at the configured link rate
	ThermalAdvantage float64 // percent power reduction vs the CPU baseline
	EfficiencyRatio  float64 // mean CPU watts / FPGA watts
}

// #endregion summary
