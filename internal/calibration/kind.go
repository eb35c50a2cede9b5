package calibration

import "fmt"

const (
	// KindAntennaFactor converts a received voltage into field strength and is added to the reading
	KindAntennaFactor Kind = "antenna_factor"

	// KindLoss is a loss (e.g. cable, attenuator) that suppresses the reading and is added back
	KindLoss Kind = "loss"

	// KindGain is a gain (e.g. preamp) that inflates the reading and is subtracted
	KindGain Kind = "gain"
)

var validKinds = map[Kind]struct{}{
	KindAntennaFactor: {},
	KindLoss:          {},
	KindGain:          {},
}

// Kind selects the sign convention used when a table corrects a trace.
// Factors are always stored as positive dB values: a 5 dB cable loss is 5, not -5.
type Kind string

func (k Kind) String() string {
	return string(k)
}

// ParseKind returns the Kind named by s
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := validKinds[k]; !ok {
		return "", fmt.Errorf("calibration: unknown kind '%s'", s)
	}
	return k, nil
}

// sign returns the multiplier applied to the factor when correcting a reading
func (k Kind) sign() float64 {
	if k == KindGain {
		return -1
	}
	return 1
}
