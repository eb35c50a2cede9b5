package limit

const (
	UnitMicrovoltPerMeter3m    = "uV/m(3m)"
	UnitDBMicrovoltPerMeter3m  = "dBuV/m(3m)"
	UnitMicrovoltPerMeter10m   = "uV/m(10m)"
	UnitDBMicrovoltPerMeter10m = "dBuV/m(10m)"
)

// unitColumns maps a unit to its position in row.values
var unitColumns = map[string]int{
	UnitMicrovoltPerMeter3m:    0,
	UnitDBMicrovoltPerMeter3m:  1,
	UnitMicrovoltPerMeter10m:   2,
	UnitDBMicrovoltPerMeter10m: 3,
}

// row is one piecewise-constant segment covering (low, high]
type row struct {
	low, high float64
	values    [4]float64
}

// Radiated emissions limits. Rows are ordered and contiguous.
var tables = map[string][]row{
	"fccclassa": {
		{30e6, 88e6, [4]float64{300, 49.6, 90, 39.1}},
		{88e6, 216e6, [4]float64{500, 54, 150, 43.5}},
		{216e6, 960e6, [4]float64{700, 56.9, 210, 46.4}},
		{960e6, 10e9, [4]float64{1000, 60, 300, 49.5}},
	},
	"fccclassb": {
		{30e6, 88e6, [4]float64{100, 40, 30, 29.5}},
		{88e6, 216e6, [4]float64{150, 43.5, 45, 33.1}},
		{216e6, 960e6, [4]float64{200, 46, 60, 35.6}},
		{960e6, 10e9, [4]float64{500, 54, 150, 43.5}},
	},
	"cispr22classa": {
		{30e6, 230e6, [4]float64{333.3, 50.5, 100, 40}},
		{230e6, 1000e6, [4]float64{746.2, 57.5, 223.9, 47}},
	},
	"cispr22classb": {
		{30e6, 230e6, [4]float64{105.4, 40.5, 31.6, 30}},
		{230e6, 1000e6, [4]float64{236, 47.5, 70.8, 37}},
	},
}
