package sample

// Snapshot is a point-in-time copy of a buffer's contents in two shapes:
// a row-major matrix in fixed header order, and one named column per header.
// Both views are built from the same copy, so collaborators may consume
// whichever shape they prefer.
type Snapshot struct {
	Headers []string             `json:"headers"`
	Matrix  [][]float64          `json:"matrix"`
	Fields  map[string][]float64 `json:"fields"`
}

// Rows returns the number of sample rows captured in the snapshot.
func (s Snapshot) Rows() int { return len(s.Matrix) }

// TakeSnapshot captures the buffer's logical rows. It is a pure read: the
// buffer is not cleared, and the returned snapshot shares no storage with
// it. Clearing after export is the caller's responsibility.
func TakeSnapshot(b *Buffer) Snapshot {
	headers := Headers()
	matrix := make([][]float64, b.rows)
	fields := make(map[string][]float64, Width)
	for _, h := range headers {
		fields[h] = make([]float64, b.rows)
	}
	for i := 0; i < b.rows; i++ {
		row := make([]float64, Width)
		copy(row, b.data[i*Width:(i+1)*Width])
		matrix[i] = row
		for c, h := range headers {
			fields[h][i] = row[c]
		}
	}
	return Snapshot{Headers: headers, Matrix: matrix, Fields: fields}
}
