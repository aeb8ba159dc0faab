// Package sample defines the fixed-width balance-board sample record and the
// growable row store that backs the acquisition engine.
package sample

// Width is the number of columns in a sample row. The column order is fixed
// and must match Headers() exactly; rows are stored and exported in this
// order.
const Width = 8

// Column indices into a sample row.
const (
	ColCogX = iota
	ColCogY
	ColSensor1
	ColSensor2
	ColSensor3
	ColSensor4
	ColBattery
	ColTimestamp
)

// PayloadColumns are the sensor-derived columns compared for duplicate
// detection. Battery and timestamp are deliberately excluded: the board may
// be polled faster than it refreshes internally, so repeats must be detected
// on the sensor payload rather than on time.
var PayloadColumns = []int{ColCogX, ColCogY, ColSensor1, ColSensor2, ColSensor3, ColSensor4}

// Sample is one reading from the board: the 2D centre-of-gravity offsets,
// the four per-corner load-cell values, the battery level, and the monotonic
// read timestamp in seconds since the acquisition epoch.
type Sample struct {
	CogX      float64 `json:"cog_x"`
	CogY      float64 `json:"cog_y"`
	Sensor1   float64 `json:"sensor1"`
	Sensor2   float64 `json:"sensor2"`
	Sensor3   float64 `json:"sensor3"`
	Sensor4   float64 `json:"sensor4"`
	Battery   float64 `json:"battery"`
	Timestamp float64 `json:"timestamp"`
}

// Headers returns the column labels in storage order.
func Headers() []string {
	return []string{
		"cog_x", "cog_y",
		"sensor1", "sensor2", "sensor3", "sensor4",
		"battery", "timestamp",
	}
}

// Row returns the sample as a row in column order.
func (s Sample) Row() [Width]float64 {
	return [Width]float64{
		s.CogX, s.CogY,
		s.Sensor1, s.Sensor2, s.Sensor3, s.Sensor4,
		s.Battery, s.Timestamp,
	}
}

// FromRow builds a Sample from a row slice. The slice must have at least
// Width elements; extra elements are ignored.
func FromRow(row []float64) Sample {
	return Sample{
		CogX:      row[ColCogX],
		CogY:      row[ColCogY],
		Sensor1:   row[ColSensor1],
		Sensor2:   row[ColSensor2],
		Sensor3:   row[ColSensor3],
		Sensor4:   row[ColSensor4],
		Battery:   row[ColBattery],
		Timestamp: row[ColTimestamp],
	}
}
