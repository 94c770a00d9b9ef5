// Package detector implements the pump-probe signal-region pipeline.
//
// Responsibilities: per-pixel histogram accumulation, likelihood-ratio
// significance testing against a scaled background reference, connected
// component labelling of the significance mask, and mask-pair generation
// (signal clusters paired with annular background halos).
// Key types: HistogramStack, PValueMap, Mask, MaskPair, GenerationParams.
//
// Persistence lives in store.go (RunStore); diagnostic rendering is in
// the monitor subpackage. Nothing in this package touches the network.
package detector
